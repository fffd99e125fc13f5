package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/angelmondragon/stockflow-backend/pkg/config"
)

var (
	corsMethods = []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}
	corsHeaders = []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", requestIDHeader}
	// Browsers hide response headers from scripts unless they are listed here.
	corsExposed = []string{requestIDHeader, "Retry-After", rateLimitHeader, rateRemainingHeader}
)

func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   corsMethods,
		AllowedHeaders:   corsHeaders,
		ExposedHeaders:   corsExposed,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           int(cfg.MaxAge.Seconds()),
	})
}
