package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a sellable item identified by its SKU.
type Product struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SKU       string          `gorm:"column:sku;not null;uniqueIndex:idx_products_sku"`
	Name      string          `gorm:"column:name;not null"`
	Category  *string         `gorm:"column:category"`
	Active    bool            `gorm:"column:active;not null;default:true"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null;default:0"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// Warehouse is a physical stock location.
type Warehouse struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Code      string     `gorm:"column:code;not null;uniqueIndex:idx_warehouses_code"`
	Name      string     `gorm:"column:name;not null"`
	Capacity  int        `gorm:"column:capacity;not null;default:0"`
	Active    bool       `gorm:"column:active;not null;default:true"`
	ManagerID *uuid.UUID `gorm:"column:manager_id;type:uuid"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (w *Warehouse) BeforeCreate(*gorm.DB) error {
	assignID(&w.ID)
	return nil
}

// Client places sales orders.
type Client struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Email     string    `gorm:"column:email;not null;uniqueIndex:idx_clients_email"`
	Active    bool      `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Client) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// Supplier receives purchase orders.
type Supplier struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Email     string    `gorm:"column:email;not null;uniqueIndex:idx_suppliers_email"`
	Active    bool      `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Supplier) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}
