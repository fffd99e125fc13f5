package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/stockflow-backend/pkg/enums"
)

// Principal is the caller a token speaks for. Client accounts act for exactly one client.
type Principal struct {
	UserID   uuid.UUID
	Role     enums.Role
	ClientID *uuid.UUID
}

func (p Principal) validate() error {
	if p.UserID == uuid.Nil {
		return errors.New("user id is required")
	}
	if !p.Role.IsValid() {
		return fmt.Errorf("invalid role %q", p.Role)
	}
	if p.Role == enums.RoleClient && p.ClientID == nil {
		return errors.New("client role requires a client id")
	}
	return nil
}

// Claims is the JWT body. jwt/v5 calls Validate after the registered claims pass.
type Claims struct {
	UserID   uuid.UUID  `json:"user_id"`
	Role     enums.Role `json:"role"`
	ClientID *uuid.UUID `json:"client_id,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Validate() error {
	if c.Subject != c.UserID.String() {
		return errors.New("subject does not match user id")
	}
	return c.Principal().validate()
}

func (c *Claims) Principal() Principal {
	return Principal{UserID: c.UserID, Role: c.Role, ClientID: c.ClientID}
}
