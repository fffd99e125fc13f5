package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type createProductRequest struct {
	SKU       string          `json:"sku" validate:"required,max=64"`
	Name      string          `json:"name" validate:"required,notblank,max=255"`
	Category  *string         `json:"category,omitempty" validate:"omitempty,max=64"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type createWarehouseRequest struct {
	Code      string     `json:"code" validate:"required,max=32"`
	Name      string     `json:"name" validate:"required,notblank,max=255"`
	Capacity  int        `json:"capacity" validate:"gte=0"`
	ManagerID *uuid.UUID `json:"manager_id,omitempty"`
}

type createPartyRequest struct {
	Name  string `json:"name" validate:"required,notblank,max=255"`
	Email string `json:"email" validate:"required,email"`
}
