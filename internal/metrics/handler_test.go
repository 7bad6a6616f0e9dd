package metrics

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)) }

func serve(t *testing.T, g prometheus.Gatherer, accept string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	rw := httptest.NewRecorder()
	Handler(g, quietLogger())(rw, req)
	return rw
}

func TestHandlerEmptyApplicationRegistry(t *testing.T) {
	rw := serve(t, NewRegistry(), "")
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rw.Code)
	}
	if ct := rw.Header().Get("Content-Type"); ct != ContentType {
		t.Fatalf("content-type %q", ct)
	}
	body := rw.Body.String()
	if !strings.Contains(body, "# HELP ") || !strings.Contains(body, "# TYPE ") {
		t.Fatalf("expected HELP/TYPE comment lines, got %q", body)
	}
	var p expfmt.TextParser
	if _, err := p.TextToMetricFamilies(strings.NewReader(body)); err != nil {
		t.Fatalf("body is not valid exposition text: %v", err)
	}
}

func TestHandlerBareRegistry(t *testing.T) {
	rw := serve(t, prometheus.NewRegistry(), "")
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rw.Code)
	}
	if ct := rw.Header().Get("Content-Type"); ct != ContentType {
		t.Fatalf("content-type %q", ct)
	}
	if rw.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", rw.Body.String())
	}
}

func TestHandlerIgnoresAcceptNegotiation(t *testing.T) {
	for _, accept := range []string{"application/openmetrics-text; version=1.0.0", "application/vnd.google.protobuf", "*/*"} {
		rw := serve(t, NewRegistry(), accept)
		if ct := rw.Header().Get("Content-Type"); ct != ContentType {
			t.Fatalf("accept %q: content-type %q", accept, ct)
		}
	}
}

func TestHandlerRendersProbeMetrics(t *testing.T) {
	reg := NewRegistry()
	m := NewProbeMetrics(reg)
	m.ObserveDBCheck(false, 5*time.Millisecond)

	body := serve(t, reg, "").Body.String()
	if !strings.Contains(body, `apiprobe_db_checks_total{result="error"} 1`) {
		t.Fatalf("missing error counter in %q", body)
	}
	if !strings.Contains(body, "# TYPE apiprobe_db_check_duration_seconds histogram") {
		t.Fatalf("missing histogram type line")
	}
}

func TestHandlerGatherError(t *testing.T) {
	g := prometheus.GathererFunc(func() ([]*dto.MetricFamily, error) {
		return nil, errors.New("boom")
	})
	rw := serve(t, g, "")
	if rw.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rw.Code)
	}
	if ct := rw.Header().Get("Content-Type"); ct != ContentType {
		t.Fatalf("content-type %q", ct)
	}
	if rw.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", rw.Body.String())
	}
}
