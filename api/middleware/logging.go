package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/angelmondragon/stockflow-backend/pkg/logger"
	"github.com/angelmondragon/stockflow-backend/pkg/metrics"
)

// Logging emits one access entry per request and feeds the HTTP metrics.
// 5xx responses log at warn; the handler already logged the cause.
func Logging(logg *logger.Logger, httpMetrics *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"method": r.Method,
					"path":   r.URL.Path,
				})
			}

			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))
			took := time.Since(start)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)
			httpMetrics.ObserveRequest(r.Method, route, status, took)

			if logg == nil {
				return
			}
			fields := map[string]any{
				"status":      status,
				"bytes":       ww.BytesWritten(),
				"duration_ms": took.Milliseconds(),
			}
			if route != "" {
				fields["route"] = route
			}
			entry := logg.WithFields(ctx, fields)
			if status >= http.StatusInternalServerError {
				logg.Warn(entry, "request.failed")
				return
			}
			logg.Info(entry, "request.complete")
		})
	}
}

// routePattern is only complete after the router has matched, so read it post-handler.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
