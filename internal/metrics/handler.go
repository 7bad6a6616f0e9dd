package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// ContentType is the fixed exposition content type served by Handler.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

// Handler returns an http.HandlerFunc rendering every metric gathered from g
// in the text exposition format. The content type never varies with the
// registry contents, the request's Accept header or a gather failure, which
// answers 500 with an empty body.
func Handler(g prometheus.Gatherer, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", ContentType)
		mfs, err := g.Gather()
		if err != nil {
			logger.ErrorContext(r.Context(), "gather", "domain", "metrics", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		enc := expfmt.NewEncoder(w, format)
		for _, mf := range mfs {
			if err := enc.Encode(mf); err != nil {
				// Headers are already out; all that is left is to stop writing.
				logger.ErrorContext(r.Context(), "encode", "domain", "metrics", "metric", mf.GetName(), "error", err)
				return
			}
		}
	}
}
