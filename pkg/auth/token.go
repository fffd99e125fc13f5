package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/stockflow-backend/pkg/config"
)

var signingMethod = jwt.SigningMethodHS256

// ErrExpired is returned by Verify for tokens past their expiry plus leeway.
var ErrExpired = jwt.ErrTokenExpired

// Tokens mints and verifies HS256 access tokens for one issuer.
type Tokens struct {
	key    []byte
	issuer string
	ttl    time.Duration
	parser *jwt.Parser
}

func NewTokens(cfg config.JWTConfig) (*Tokens, error) {
	switch {
	case cfg.Secret == "":
		return nil, errors.New("jwt secret is required")
	case cfg.Issuer == "":
		return nil, errors.New("jwt issuer is required")
	case cfg.ExpirationMinutes <= 0:
		return nil, errors.New("jwt expiration minutes must be positive")
	}
	return &Tokens{
		key:    []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    time.Duration(cfg.ExpirationMinutes) * time.Minute,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{signingMethod.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithLeeway(cfg.Leeway),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}, nil
}

// Mint signs a token for p valid from now until the configured TTL elapses.
func (t *Tokens) Mint(p Principal, now time.Time) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}
	claims := Claims{
		UserID:   p.UserID,
		Role:     p.Role,
		ClientID: p.ClientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   p.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

func (t *Tokens) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, err := t.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.key, nil
	}); err != nil {
		return nil, err
	}
	return claims, nil
}
