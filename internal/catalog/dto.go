package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockflow-backend/pkg/db/models"
)

// CreateProductInput carries the fields accepted when registering a product.
type CreateProductInput struct {
	SKU       string
	Name      string
	Category  *string
	UnitPrice decimal.Decimal
}

type CreateWarehouseInput struct {
	Code      string
	Name      string
	Capacity  int
	ManagerID *uuid.UUID
}

// CreatePartyInput covers clients and suppliers, which share the same shape.
type CreatePartyInput struct {
	Name  string
	Email string
}

type ProductDTO struct {
	ID        uuid.UUID       `json:"id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Category  *string         `json:"category,omitempty"`
	Active    bool            `json:"active"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type WarehouseDTO struct {
	ID        uuid.UUID  `json:"id"`
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	Capacity  int        `json:"capacity"`
	Active    bool       `json:"active"`
	ManagerID *uuid.UUID `json:"manager_id,omitempty"`
}

// PartyDTO renders either a client or a supplier.
type PartyDTO struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	Active bool      `json:"active"`
}

func ProductToDTO(p *models.Product) ProductDTO {
	return ProductDTO{ID: p.ID, SKU: p.SKU, Name: p.Name, Category: p.Category, Active: p.Active, UnitPrice: p.UnitPrice}
}

func WarehouseToDTO(w *models.Warehouse) WarehouseDTO {
	return WarehouseDTO{ID: w.ID, Code: w.Code, Name: w.Name, Capacity: w.Capacity, Active: w.Active, ManagerID: w.ManagerID}
}

func ClientToDTO(c *models.Client) PartyDTO {
	return PartyDTO{ID: c.ID, Name: c.Name, Email: c.Email, Active: c.Active}
}

func SupplierToDTO(s *models.Supplier) PartyDTO {
	return PartyDTO{ID: s.ID, Name: s.Name, Email: s.Email, Active: s.Active}
}
