package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/stockflow-backend/pkg/config"
)

func TestCORSPreflight(t *testing.T) {
	handler := CORS(config.CORSConfig{
		AllowedOrigins:   []string{"https://ops.example.com"},
		AllowCredentials: true,
		MaxAge:           5 * time.Minute,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the handler")
	}))

	tests := []struct {
		origin      string
		wantAllowed bool
	}{
		{"https://ops.example.com", true},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/sales-orders", nil)
		req.Header.Set("Origin", tt.origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Idempotency-Key")
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)

		got := resp.Header().Get("Access-Control-Allow-Origin")
		if tt.wantAllowed && got != tt.origin {
			t.Fatalf("%s: expected origin echoed, got %q", tt.origin, got)
		}
		if !tt.wantAllowed && got != "" {
			t.Fatalf("%s: expected origin rejected, got %q", tt.origin, got)
		}
		if tt.wantAllowed && resp.Header().Get("Access-Control-Max-Age") != "300" {
			t.Fatalf("expected max age 300, got %q", resp.Header().Get("Access-Control-Max-Age"))
		}
	}
}

func TestCORSExposesOperationalHeaders(t *testing.T) {
	handler := CORS(config.CORSConfig{AllowedOrigins: []string{"*"}})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/carriers", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	exposed := resp.Header().Get("Access-Control-Expose-Headers")
	for _, h := range []string{"X-Request-Id", "X-Ratelimit-Remaining"} {
		if !strings.Contains(strings.ToLower(exposed), strings.ToLower(h)) {
			t.Fatalf("expected %s exposed, got %q", h, exposed)
		}
	}
}
