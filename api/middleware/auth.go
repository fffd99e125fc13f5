package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/angelmondragon/stockflow-backend/api/responses"
	"github.com/angelmondragon/stockflow-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/stockflow-backend/pkg/errors"
	"github.com/angelmondragon/stockflow-backend/pkg/logger"
)

// TokenVerifier turns a raw bearer token into verified claims.
type TokenVerifier interface {
	Verify(raw string) (*auth.Claims, error)
}

// Auth requires a valid bearer token and stores the caller's Identity on the context.
func Auth(tokens TokenVerifier, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			claims, err := tokens.Verify(raw)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, auth.ErrExpired) {
					msg = "token expired"
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg))
				return
			}

			p := claims.Principal()
			ctx := WithIdentity(r.Context(), Identity{UserID: p.UserID, Role: p.Role, ClientID: p.ClientID})
			if logg != nil {
				ctx = logg.WithUserID(ctx, p.UserID.String())
				ctx = logg.WithActorRole(ctx, p.Role.String())
				if p.ClientID != nil {
					ctx = logg.WithField(ctx, "client_id", p.ClientID.String())
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the credential from an "Authorization: Bearer <token>" header.
// The scheme is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
