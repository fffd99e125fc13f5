package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/stockflow-backend/api/responses"
	"github.com/angelmondragon/stockflow-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/stockflow-backend/pkg/errors"
	"github.com/angelmondragon/stockflow-backend/pkg/logger"
)

const (
	rateLimitHeader     = "X-RateLimit-Limit"
	rateRemainingHeader = "X-RateLimit-Remaining"
)

// RateLimitStore counts requests for a scope inside a fixed window.
type RateLimitStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// WriteRateLimit caps mutating requests per caller. Reads pass through untouched.
// Store failures fail open so a Redis outage does not block fulfillment.
func WriteRateLimit(cfg config.RateLimitConfig, store RateLimitStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil || cfg.WriteLimit <= 0 || cfg.Window <= 0 || !isWriteMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			scope := "writes:" + callerScope(r)
			allowed, count, err := store.FixedWindowAllow(r.Context(), scope, int64(cfg.WriteLimit), cfg.Window)
			if err != nil {
				if logg != nil {
					logg.Error(logg.WithField(r.Context(), "scope", scope), "rate limit check failed", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			limit := int64(cfg.WriteLimit)
			w.Header().Set(rateLimitHeader, strconv.FormatInt(limit, 10))
			w.Header().Set(rateRemainingHeader, strconv.FormatInt(max(limit-count, 0), 10))
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "write rate limit exceeded").
					WithDetails(map[string]any{"limit": cfg.WriteLimit, "count": count}))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isWriteMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func callerScope(r *http.Request) string {
	if userID := UserIDFromContext(r.Context()); userID != "" {
		return "user:" + userID
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first := strings.TrimSpace(strings.Split(forwarded, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
