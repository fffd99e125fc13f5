package salesorders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockflow-backend/api/middleware"
	internalsalesorders "github.com/angelmondragon/stockflow-backend/internal/salesorders"
	"github.com/angelmondragon/stockflow-backend/pkg/db/models"
	"github.com/angelmondragon/stockflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockflow-backend/pkg/errors"
	"github.com/angelmondragon/stockflow-backend/pkg/logger"
)

type stubService struct {
	create  func(ctx context.Context, actor internalsalesorders.Actor, input internalsalesorders.CreateInput) (*internalsalesorders.CreateResult, error)
	reserve func(ctx context.Context, actor internalsalesorders.Actor, id uuid.UUID) (*models.SalesOrder, error)
	ship    func(ctx context.Context, actor internalsalesorders.Actor, id uuid.UUID) (*internalsalesorders.ShipResult, error)
	cancel  func(ctx context.Context, actor internalsalesorders.Actor, id uuid.UUID) (*models.SalesOrder, error)
	list    func(ctx context.Context, actor internalsalesorders.Actor, params internalsalesorders.ListParams) (*internalsalesorders.ListResult, error)
}

func (s *stubService) Create(ctx context.Context, actor internalsalesorders.Actor, input internalsalesorders.CreateInput) (*internalsalesorders.CreateResult, error) {
	return s.create(ctx, actor, input)
}

func (s *stubService) ReserveStock(ctx context.Context, actor internalsalesorders.Actor, id uuid.UUID) (*models.SalesOrder, error) {
	return s.reserve(ctx, actor, id)
}

func (s *stubService) ShipOrder(ctx context.Context, actor internalsalesorders.Actor, id uuid.UUID) (*internalsalesorders.ShipResult, error) {
	return s.ship(ctx, actor, id)
}

func (s *stubService) DeliverOrder(ctx context.Context, actor internalsalesorders.Actor, id uuid.UUID) (*models.SalesOrder, error) {
	panic("not implemented")
}

func (s *stubService) CancelOrder(ctx context.Context, actor internalsalesorders.Actor, id uuid.UUID) (*models.SalesOrder, error) {
	return s.cancel(ctx, actor, id)
}

func (s *stubService) Get(ctx context.Context, actor internalsalesorders.Actor, id uuid.UUID) (*models.SalesOrder, error) {
	panic("not implemented")
}

func (s *stubService) List(ctx context.Context, actor internalsalesorders.Actor, params internalsalesorders.ListParams) (*internalsalesorders.ListResult, error) {
	return s.list(ctx, actor, params)
}

func newRouter(svc internalsalesorders.Service) http.Handler {
	logg := logger.Nop()
	r := chi.NewRouter()
	r.Get("/sales-orders", List(svc, logg))
	r.Post("/sales-orders", Create(svc, logg))
	r.Post("/sales-orders/{orderId}/reserve", Reserve(svc, logg))
	r.Post("/sales-orders/{orderId}/ship", Ship(svc, logg))
	r.Post("/sales-orders/{orderId}/cancel", Cancel(svc, logg))
	return r
}

func withIdentity(req *http.Request, identity middleware.Identity) *http.Request {
	return req.WithContext(middleware.WithIdentity(req.Context(), identity))
}

func TestCreateReturnsReservationOutcome(t *testing.T) {
	clientID := uuid.New()
	productID := uuid.New()
	warehouseID := uuid.New()
	var gotActor internalsalesorders.Actor
	svc := &stubService{
		create: func(ctx context.Context, actor internalsalesorders.Actor, input internalsalesorders.CreateInput) (*internalsalesorders.CreateResult, error) {
			gotActor = actor
			if len(input.Lines) != 1 || input.Lines[0].Quantity != 150 {
				t.Fatalf("unexpected input %+v", input)
			}
			return &internalsalesorders.CreateResult{
				Order: &models.SalesOrder{
					ID:       uuid.New(),
					ClientID: clientID,
					Status:   enums.SalesOrderStatusCreated,
					Lines: []models.SalesOrderLine{{
						ID: uuid.New(), ProductID: productID, WarehouseID: warehouseID,
						Quantity: 150, UnitPrice: decimal.RequireFromString("2.50"),
					}},
				},
				Reservation: internalsalesorders.ReservationOutcome{Reserved: false, Reason: "insufficient stock"},
			}, nil
		},
	}

	body := `{"lines":[{"product_id":"` + productID.String() + `","warehouse_id":"` + warehouseID.String() + `","quantity":150}]}`
	req := httptest.NewRequest(http.MethodPost, "/sales-orders", strings.NewReader(body))
	req = withIdentity(req, middleware.Identity{UserID: uuid.New(), Role: enums.RoleClient, ClientID: &clientID})
	resp := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", resp.Code, resp.Body.String())
	}
	if gotActor.Role != enums.RoleClient || gotActor.ClientID == nil || *gotActor.ClientID != clientID {
		t.Fatalf("actor not propagated: %+v", gotActor)
	}

	var payload struct {
		Data struct {
			Order struct {
				Status string `json:"status"`
				Total  string `json:"total"`
			} `json:"order"`
			Reservation struct {
				Reserved bool `json:"reserved"`
			} `json:"reservation"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Data.Order.Status != string(enums.SalesOrderStatusCreated) {
		t.Fatalf("unexpected status %q", payload.Data.Order.Status)
	}
	if payload.Data.Order.Total != "375" {
		t.Fatalf("unexpected total %q", payload.Data.Order.Total)
	}
	if payload.Data.Reservation.Reserved {
		t.Fatalf("expected reservation to be reported as failed")
	}
}

func TestCreateRejectsEmptyLines(t *testing.T) {
	svc := &stubService{
		create: func(ctx context.Context, actor internalsalesorders.Actor, input internalsalesorders.CreateInput) (*internalsalesorders.CreateResult, error) {
			t.Fatalf("service should not be called")
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/sales-orders", strings.NewReader(`{"lines":[]}`))
	resp := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestReserveMapsInsufficientStock(t *testing.T) {
	orderID := uuid.New()
	svc := &stubService{
		reserve: func(ctx context.Context, actor internalsalesorders.Actor, id uuid.UUID) (*models.SalesOrder, error) {
			if id != orderID {
				t.Fatalf("expected order %s got %s", orderID, id)
			}
			return nil, pkgerrors.InsufficientStock("wh", "p", 150, 100)
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/sales-orders/"+orderID.String()+"/reserve", nil)
	resp := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeInsufficientStock) {
		t.Fatalf("unexpected code %s", payload.Error.Code)
	}
	if payload.Error.Details["available"] != float64(100) {
		t.Fatalf("expected shortage details, got %v", payload.Error.Details)
	}
}

func TestShipReturnsShipment(t *testing.T) {
	orderID := uuid.New()
	svc := &stubService{
		ship: func(ctx context.Context, actor internalsalesorders.Actor, id uuid.UUID) (*internalsalesorders.ShipResult, error) {
			return &internalsalesorders.ShipResult{
				Order:    &models.SalesOrder{ID: id, Status: enums.SalesOrderStatusShipped},
				Shipment: &models.Shipment{ID: uuid.New(), OrderID: id, TrackingNumber: "TRK-1", Status: enums.ShipmentStatusPlanned},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/sales-orders/"+orderID.String()+"/ship", nil)
	resp := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), `"tracking_number":"TRK-1"`) {
		t.Fatalf("expected tracking number in body %s", resp.Body.String())
	}
}

func TestCancelRejectsInvalidID(t *testing.T) {
	svc := &stubService{}
	req := httptest.NewRequest(http.MethodPost, "/sales-orders/not-a-uuid/cancel", nil)
	resp := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestListParsesFilters(t *testing.T) {
	clientID := uuid.New()
	svc := &stubService{
		list: func(ctx context.Context, actor internalsalesorders.Actor, params internalsalesorders.ListParams) (*internalsalesorders.ListResult, error) {
			if params.Status == nil || *params.Status != enums.SalesOrderStatusReserved {
				t.Fatalf("expected RESERVED filter got %v", params.Status)
			}
			if params.ClientID == nil || *params.ClientID != clientID {
				t.Fatalf("expected client filter")
			}
			if params.Limit != 10 || params.Cursor != "abc" {
				t.Fatalf("unexpected paging %+v", params.Params)
			}
			return &internalsalesorders.ListResult{NextCursor: "next"}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/sales-orders?status=RESERVED&limit=10&cursor=abc&client_id="+clientID.String(), nil)
	resp := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), `"next_cursor":"next"`) {
		t.Fatalf("expected next cursor in %s", resp.Body.String())
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/sales-orders?status=LOST", nil)
	resp := httptest.NewRecorder()
	newRouter(&stubService{}).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
