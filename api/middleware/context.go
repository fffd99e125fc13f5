package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockflow-backend/pkg/enums"
)

type contextKey string

const ctxIdentity contextKey = "identity"

// Identity is the authenticated caller extracted from the bearer token.
type Identity struct {
	UserID   uuid.UUID
	Role     enums.Role
	ClientID *uuid.UUID
}

// WithIdentity injects the caller into the context for downstream handlers.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(ctxIdentity).(Identity)
	return identity, ok
}

func UserIDFromContext(ctx context.Context) string {
	if identity, ok := IdentityFromContext(ctx); ok && identity.UserID != uuid.Nil {
		return identity.UserID.String()
	}
	return ""
}

func RoleFromContext(ctx context.Context) enums.Role {
	identity, _ := IdentityFromContext(ctx)
	return identity.Role
}

func ClientIDFromContext(ctx context.Context) string {
	if identity, ok := IdentityFromContext(ctx); ok && identity.ClientID != nil {
		return identity.ClientID.String()
	}
	return ""
}
