package httpx

import (
	"net/http"

	"github.com/haukened/apiprobe/internal/health"
)

// handleHealth returns liveness.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, health.Liveness())
}

// handleReady returns readiness. The status is always 200: downstream health
// is carried only by the db field so the probe stays parseable while the
// database is down.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	res := health.Result{DB: false, Error: "readiness checker not configured"}
	if h.Readiness != nil {
		res = h.Readiness.Check(r.Context())
	}
	h.writeJSON(w, r, http.StatusOK, res)
}
