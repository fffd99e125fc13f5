package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/stockflow-backend/pkg/logger"
	"github.com/angelmondragon/stockflow-backend/pkg/metrics"
)

func TestRequestIDEchoesOrReplaces(t *testing.T) {
	handler := RequestID(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	cases := []struct {
		name    string
		inbound string
		keep    bool
	}{
		{name: "caller id kept", inbound: "req-abc-123", keep: true},
		{name: "missing id minted", inbound: ""},
		{name: "spaces rejected", inbound: "req 1"},
		{name: "oversized rejected", inbound: strings.Repeat("a", maxRequestIDLen+1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.inbound != "" {
				req.Header.Set(requestIDHeader, tc.inbound)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			got := rec.Header().Get(requestIDHeader)
			if got == "" {
				t.Fatalf("expected a request id header")
			}
			if tc.keep != (got == tc.inbound) {
				t.Fatalf("inbound %q produced %q (keep=%v)", tc.inbound, got, tc.keep)
			}
		})
	}
}

func TestRequestIDVisibleToHandlers(t *testing.T) {
	var seen string
	handler := RequestID(logger.Nop())(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = chimw.GetReqID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "trace-7")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "trace-7" {
		t.Fatalf("expected handler to read trace-7, got %q", seen)
	}
}

func TestRecovererReturnsInternalError(t *testing.T) {
	reg := prometheus.NewRegistry()
	handler := Recoverer(logger.Nop(), metrics.NewHTTPMetrics(reg))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil carrier")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/shipments", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if got := gatherCounter(t, reg, "stockflow_http_panics_recovered_total"); got != 1 {
		t.Fatalf("expected panic to be counted, got %v", got)
	}
	if strings.Contains(rec.Body.String(), "nil carrier") {
		t.Fatalf("panic value leaked into response: %s", rec.Body.String())
	}
}

func TestRecovererLetsAbortHandlerThrough(t *testing.T) {
	handler := Recoverer(logger.Nop(), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("expected ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestLoggingRecordsRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := chi.NewRouter()
	r.Use(Logging(logger.Nop(), metrics.NewHTTPMetrics(reg)))
	r.Get("/api/v1/carriers/{carrierId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/carriers/c-1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/carriers/c-2", nil))

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "stockflow_http_requests_total" {
			continue
		}
		if len(mf.GetMetric()) != 1 {
			t.Fatalf("expected one series for the route pattern, got %d", len(mf.GetMetric()))
		}
		labels := map[string]string{}
		for _, l := range mf.GetMetric()[0].GetLabel() {
			labels[l.GetName()] = l.GetValue()
		}
		if labels["route"] != "/api/v1/carriers/{carrierId}" || labels["status"] != "418" {
			t.Fatalf("unexpected labels %v", labels)
		}
		if mf.GetMetric()[0].GetCounter().GetValue() != 2 {
			t.Fatalf("expected two requests counted")
		}
		return
	}
	t.Fatal("request counter not registered")
}

func gatherCounter(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name && len(mf.GetMetric()) > 0 {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}
