package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// The metrics middleware labels by chi route pattern, not the raw URL path.
func TestMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Post("/images/{op}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/images/{op}", http.MethodPost, "201"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/images/upscale", nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/images/{op}", http.MethodPost, "201"))
	if after != before+1 {
		t.Fatalf("counter for route pattern: before=%v after=%v", before, after)
	}

	mrr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(mrr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if bytes.Contains(mrr.Body.Bytes(), []byte(`path="/images/upscale"`)) {
		t.Fatalf("raw path leaked into labels")
	}
}

func TestStatusRecorderFlushes(t *testing.T) {
	rr := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rr, status: http.StatusOK}
	var _ http.Flusher = sr
	sr.Flush()
	if !rr.Flushed {
		t.Fatalf("flush was not forwarded")
	}
}

func TestIncrementBackpressure(t *testing.T) {
	baseline := testutil.ToFloat64(backpressureTotal.WithLabelValues("queue"))
	IncrementBackpressure("queue")
	IncrementBackpressure("queue")
	if got := testutil.ToFloat64(backpressureTotal.WithLabelValues("queue")); got != baseline+2 {
		t.Fatalf("expected %v, got %v", baseline+2, got)
	}

	before := testutil.ToFloat64(backpressureTotal.WithLabelValues("unspecified"))
	IncrementBackpressure("")
	if after := testutil.ToFloat64(backpressureTotal.WithLabelValues("unspecified")); after != before+1 {
		t.Fatalf("empty reason should count as unspecified: before=%v after=%v", before, after)
	}
}

func TestTooBusyCountsBackpressure(t *testing.T) {
	before := testutil.ToFloat64(backpressureTotal.WithLabelValues("queue"))
	h := NewTextMux(&fakeText{err: tooBusy()}, Options{})
	if w := postJSON(h, "/completions", `{"prompt":"hi"}`); w.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d", w.Code)
	}
	if after := testutil.ToFloat64(backpressureTotal.WithLabelValues("queue")); after != before+1 {
		t.Fatalf("backpressure not counted: before=%v after=%v", before, after)
	}
}
