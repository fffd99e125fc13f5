package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/stockflow-backend/pkg/errors"
)

type lineRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type orderRequest struct {
	Reference string        `json:"reference" validate:"required,notblank,max=16"`
	Lines     []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

func decode(body string) (orderRequest, error) {
	var dest orderRequest
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	return dest, DecodeJSONBody(req, &dest)
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	got, err := decode(`{"reference":"SO-1","lines":[{"product_id":"p1","quantity":2}]}` + "\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Reference != "SO-1" || len(got.Lines) != 1 || got.Lines[0].Quantity != 2 {
		t.Fatalf("unexpected decode result %+v", got)
	}
}

func TestDecodeJSONBodyRejects(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
		field   string
	}{
		{"empty body", ``, "request body is required", ""},
		{"malformed", `{"reference":`, "invalid request body", ""},
		{"unknown field", `{"reference":"SO-1","lines":[{"product_id":"p","quantity":1}],"rush":true}`, "unknown field", ""},
		{"trailing data", `{"reference":"SO-1","lines":[{"product_id":"p","quantity":1}]}{}`, "request body must contain a single JSON object", ""},
		{"wrong type", `{"reference":"SO-1","lines":[{"product_id":"p","quantity":"two"}]}`, "invalid request body", ""},
		{"blank reference", `{"reference":"   ","lines":[{"product_id":"p","quantity":1}]}`, "validation failed", "reference"},
		{"no lines", `{"reference":"SO-1","lines":[]}`, "validation failed", "lines"},
		{"bad line", `{"reference":"SO-1","lines":[{"product_id":"p","quantity":0}]}`, "validation failed", "lines[0].quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decode(tt.body)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if typed.Message() != tt.message {
				t.Fatalf("expected message %q got %q", tt.message, typed.Message())
			}
			if tt.field == "" {
				return
			}
			details, ok := typed.Details().(map[string]string)
			if !ok || details[tt.field] == "" {
				t.Fatalf("expected detail for %s, got %#v", tt.field, typed.Details())
			}
		})
	}
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	body := `{"reference":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	_, err := decode(body)
	typed := pkgerrors.As(err)
	if typed == nil || !strings.Contains(typed.Message(), "exceeds") {
		t.Fatalf("expected size error, got %v", err)
	}
}
