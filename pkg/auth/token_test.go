package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/stockflow-backend/pkg/config"
	"github.com/angelmondragon/stockflow-backend/pkg/enums"
)

func newTestTokens(t *testing.T, minutes int) *Tokens {
	t.Helper()
	tokens, err := NewTokens(config.JWTConfig{Secret: "secret", Issuer: "stockflow", ExpirationMinutes: minutes})
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	return tokens
}

func TestMintAndVerify(t *testing.T) {
	tokens := newTestTokens(t, 30)
	now := time.Now().UTC()
	principal := Principal{UserID: uuid.New(), Role: enums.RoleClient}
	clientID := uuid.New()
	principal.ClientID = &clientID

	raw, err := tokens.Mint(principal, now)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	claims, err := tokens.Verify(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	got := claims.Principal()
	if got.UserID != principal.UserID || got.Role != enums.RoleClient {
		t.Fatalf("unexpected principal %+v", got)
	}
	if got.ClientID == nil || *got.ClientID != clientID {
		t.Fatalf("client id not preserved")
	}
	if claims.Issuer != "stockflow" || claims.Subject != principal.UserID.String() {
		t.Fatalf("unexpected registered claims %+v", claims.RegisteredClaims)
	}
	if claims.ID == "" {
		t.Fatal("expected a token id")
	}
	wantExp := now.Add(30 * time.Minute).Truncate(time.Second)
	if !claims.ExpiresAt.Time.Equal(wantExp) {
		t.Fatalf("expected expiry %v got %v", wantExp, claims.ExpiresAt.Time)
	}
}

func TestVerifyRejects(t *testing.T) {
	tokens := newTestTokens(t, 10)
	staff := Principal{UserID: uuid.New(), Role: enums.RoleLogistics}
	valid, err := tokens.Mint(staff, time.Now())
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	otherIssuer, _ := NewTokens(config.JWTConfig{Secret: "secret", Issuer: "someone-else", ExpirationMinutes: 10})
	foreign, _ := otherIssuer.Mint(staff, time.Now())
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": staff.UserID.String()}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	forged, _ := jwt.NewWithClaims(signingMethod, &Claims{
		UserID: staff.UserID,
		Role:   "owner",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "stockflow",
			Subject:   staff.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte("secret"))

	tests := []struct {
		name string
		raw  string
	}{
		{"tampered signature", valid + "x"},
		{"wrong issuer", foreign},
		{"alg none", none},
		{"unknown role", forged},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		if _, err := tokens.Verify(tt.raw); err == nil {
			t.Fatalf("%s: expected verification to fail", tt.name)
		}
	}
}

func TestVerifyExpired(t *testing.T) {
	tokens := newTestTokens(t, 15)
	raw, err := tokens.Mint(Principal{UserID: uuid.New(), Role: enums.RoleAdmin}, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	_, err = tokens.Verify(raw)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestMintRejectsBadPrincipal(t *testing.T) {
	tokens := newTestTokens(t, 5)
	tests := []struct {
		name      string
		principal Principal
		wantErr   string
	}{
		{"missing user", Principal{Role: enums.RoleAdmin}, "user id"},
		{"empty role", Principal{UserID: uuid.New()}, "invalid role"},
		{"unknown role", Principal{UserID: uuid.New(), Role: "owner"}, "invalid role"},
		{"client without client id", Principal{UserID: uuid.New(), Role: enums.RoleClient}, "client id"},
	}
	for _, tt := range tests {
		_, err := tokens.Mint(tt.principal, time.Now())
		if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
			t.Fatalf("%s: expected error containing %q, got %v", tt.name, tt.wantErr, err)
		}
	}
}

func TestNewTokensValidatesConfig(t *testing.T) {
	tests := []config.JWTConfig{
		{Issuer: "stockflow", ExpirationMinutes: 5},
		{Secret: "secret", ExpirationMinutes: 5},
		{Secret: "secret", Issuer: "stockflow"},
	}
	for i, cfg := range tests {
		if _, err := NewTokens(cfg); err == nil {
			t.Fatalf("case %d: expected config error", i)
		}
	}
}
