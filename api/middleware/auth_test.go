package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockflow-backend/pkg/auth"
	"github.com/angelmondragon/stockflow-backend/pkg/config"
	"github.com/angelmondragon/stockflow-backend/pkg/enums"
)

func testTokens(t *testing.T) *auth.Tokens {
	t.Helper()
	tokens, err := auth.NewTokens(config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60})
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	return tokens
}

func TestAuthRejects(t *testing.T) {
	tokens := testTokens(t)
	expired, err := tokens.Mint(auth.Principal{UserID: uuid.New(), Role: enums.RoleAdmin}, time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"basic scheme", "Basic dXNlcjpwYXNz"},
		{"empty bearer", "Bearer   "},
		{"bare token", "abc.def.ghi"},
		{"garbage token", "Bearer invalid"},
		{"expired token", "Bearer " + expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := Auth(tokens, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)
			if resp.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401 got %d", resp.Code)
			}
			if called {
				t.Fatal("handler must not run")
			}
		})
	}
}

func TestAuthSeedsIdentity(t *testing.T) {
	tokens := testTokens(t)
	userID := uuid.New()
	clientID := uuid.New()
	raw, err := tokens.Mint(auth.Principal{UserID: userID, Role: enums.RoleClient, ClientID: &clientID}, time.Now())
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	var captured Identity
	handler := Auth(tokens, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.UserID != userID || captured.Role != enums.RoleClient {
		t.Fatalf("unexpected identity %+v", captured)
	}
	if captured.ClientID == nil || *captured.ClientID != clientID {
		t.Fatalf("expected client id %s got %v", clientID, captured.ClientID)
	}
}

func TestAuthAcceptsLowercaseScheme(t *testing.T) {
	tokens := testTokens(t)
	raw, err := tokens.Mint(auth.Principal{UserID: uuid.New(), Role: enums.RoleLogistics}, time.Now())
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	handler := Auth(tokens, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RoleFromContext(r.Context()) != enums.RoleLogistics {
			t.Fatalf("role missing from context")
		}
		if ClientIDFromContext(r.Context()) != "" {
			t.Fatalf("staff tokens should not carry a client id")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+raw)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", resp.Code)
	}
}
