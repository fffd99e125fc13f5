package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/stockflow-backend/pkg/errors"
	"github.com/angelmondragon/stockflow-backend/pkg/pagination"
)

func TestParsePage(t *testing.T) {
	valid := pagination.EncodeCursor(pagination.Cursor{CreatedAt: time.Now().UTC(), ID: uuid.New()})
	tests := []struct {
		name      string
		query     string
		wantLimit int
		wantErr   bool
	}{
		{name: "defaults", query: "", wantLimit: pagination.DefaultLimit},
		{name: "explicit limit and cursor", query: "limit=10&cursor=" + valid, wantLimit: 10},
		{name: "limit above max", query: "limit=101", wantErr: true},
		{name: "non numeric limit", query: "limit=ten", wantErr: true},
		{name: "garbage cursor", query: "cursor=not-a-cursor", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/orders?"+tt.query, nil)
			page, err := ParsePage(r)
			if tt.wantErr {
				if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if page.Limit != tt.wantLimit {
				t.Fatalf("expected limit %d, got %d", tt.wantLimit, page.Limit)
			}
		})
	}
}

func TestParseURLUUID(t *testing.T) {
	id := uuid.New()
	withParam := func(value string) *http.Request {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("orderId", value)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}

	got, err := ParseURLUUID(withParam(id.String()), "orderId")
	if err != nil || got != id {
		t.Fatalf("expected %s, got %s (%v)", id, got, err)
	}
	for _, bad := range []string{"", "  ", "12345"} {
		if _, err := ParseURLUUID(withParam(bad), "orderId"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%q: expected validation error, got %v", bad, err)
		}
	}
}

func TestParseQueryUUID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/orders", nil)
	if got, err := ParseQueryUUID(r, "client_id"); got != nil || err != nil {
		t.Fatalf("absent parameter should be nil, got %v (%v)", got, err)
	}
	r = httptest.NewRequest(http.MethodGet, "/orders?client_id=nope", nil)
	if _, err := ParseQueryUUID(r, "client_id"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
