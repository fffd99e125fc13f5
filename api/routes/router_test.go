package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockflow-backend/internal/carriers"
	pkgAuth "github.com/angelmondragon/stockflow-backend/pkg/auth"
	"github.com/angelmondragon/stockflow-backend/pkg/config"
	"github.com/angelmondragon/stockflow-backend/pkg/db/models"
	"github.com/angelmondragon/stockflow-backend/pkg/enums"
	"github.com/angelmondragon/stockflow-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type memoryStore struct {
	stubPinger
	data   map[string]string
	counts map[string]int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryStore) Lookup(_ context.Context, key string) (string, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryStore) SetNX(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value
	return true, nil
}

func (m *memoryStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "sf:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	m.counts[scope]++
	return m.counts[scope] <= limit, m.counts[scope], nil
}

type stubCarrierService struct {
	creates int
}

func (s *stubCarrierService) Increment(ctx context.Context, tx *gorm.DB, carrierID uuid.UUID, n int) error {
	return nil
}

func (s *stubCarrierService) Decrement(ctx context.Context, tx *gorm.DB, carrierID uuid.UUID) error {
	return nil
}

func (s *stubCarrierService) ResetAll(ctx context.Context) (int64, error) {
	return 0, nil
}

func (s *stubCarrierService) Create(ctx context.Context, input carriers.CreateInput) (*models.Carrier, error) {
	s.creates++
	return &models.Carrier{ID: uuid.New(), Code: input.Code, Name: input.Name, MaxDailyCapacity: input.MaxDailyCapacity}, nil
}

func (s *stubCarrierService) Get(ctx context.Context, id uuid.UUID) (*models.Carrier, error) {
	return &models.Carrier{ID: id}, nil
}

func (s *stubCarrierService) GetTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Carrier, error) {
	return &models.Carrier{ID: id}, nil
}

func (s *stubCarrierService) List(ctx context.Context) ([]models.Carrier, error) {
	return []models.Carrier{{ID: uuid.New(), Code: "FAST"}}, nil
}

func (s *stubCarrierService) SetStatus(ctx context.Context, id uuid.UUID, status enums.CarrierStatus) (*models.Carrier, error) {
	return &models.Carrier{ID: id, Status: status}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:          config.AppConfig{Env: "dev"},
		JWT:          config.JWTConfig{Secret: "secret", Issuer: "stockflow", ExpirationMinutes: 60},
		FeatureFlags: config.FeatureFlagsConfig{Idempotency: true},
		RateLimit:    config.RateLimitConfig{Window: time.Minute, WriteLimit: 100},
		CORS:         config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}
}

func testTokens(cfg *config.Config) *pkgAuth.Tokens {
	tokens, err := pkgAuth.NewTokens(cfg.JWT)
	if err != nil {
		panic(err)
	}
	return tokens
}

func newTestRouter(cfg *config.Config, carrierSvc carriers.Service) http.Handler {
	return NewRouter(cfg, logger.Nop(), testTokens(cfg), stubPinger{}, newMemoryStore(), http.NotFoundHandler(), nil, nil, nil, carrierSvc, nil, nil, nil)
}

func bearer(t *testing.T, cfg *config.Config, role enums.Role) string {
	t.Helper()
	token, err := testTokens(cfg).Mint(pkgAuth.Principal{UserID: uuid.New(), Role: role}, time.Now())
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func TestHealthRoutesArePublic(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, &stubCarrierService{})

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d body=%s", path, resp.Code, resp.Body.String())
		}
	}
}

func TestAPIRequiresToken(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, &stubCarrierService{})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/carriers", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if resp.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestRolePolicyAppliedAtRouter(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, &stubCarrierService{})

	tests := []struct {
		role   enums.Role
		status int
	}{
		{enums.RoleClient, http.StatusForbidden},
		{enums.RolePurchasing, http.StatusForbidden},
		{enums.RoleLogistics, http.StatusOK},
		{enums.RoleAdmin, http.StatusOK},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/carriers", nil)
		req.Header.Set("Authorization", bearer(t, cfg, tt.role))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != tt.status {
			t.Fatalf("role %s: expected %d got %d", tt.role, tt.status, resp.Code)
		}
	}
}

func TestUnguardedCreateReachesServiceEachTime(t *testing.T) {
	cfg := testConfig()
	svc := &stubCarrierService{}
	router := newTestRouter(cfg, svc)
	auth := bearer(t, cfg, enums.RoleAdmin)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/carriers", strings.NewReader(`{"code":"FAST","name":"Fast","max_daily_capacity":5}`))
		req.Header.Set("Authorization", auth)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusCreated {
			t.Fatalf("expected 201 got %d body=%s", resp.Code, resp.Body.String())
		}
	}
	if svc.creates != 2 {
		t.Fatalf("expected 2 creates got %d", svc.creates)
	}
}

func TestGuardedRouteRequiresIdempotencyKey(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, &stubCarrierService{})

	body := `{"shipment_ids":["` + uuid.NewString() + `"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/carriers/"+uuid.NewString()+"/shipments", strings.NewReader(body))
	req.Header.Set("Authorization", bearer(t, cfg, enums.RoleLogistics))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), "Idempotency-Key") {
		t.Fatalf("expected idempotency message in %s", resp.Body.String())
	}
}

func TestMetricsRouteMounted(t *testing.T) {
	cfg := testConfig()
	called := false
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	router := NewRouter(cfg, logger.Nop(), testTokens(cfg), stubPinger{}, newMemoryStore(), metrics, nil, nil, nil, &stubCarrierService{}, nil, nil, nil)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK || !called {
		t.Fatalf("expected metrics handler to serve, code=%d", resp.Code)
	}
}
