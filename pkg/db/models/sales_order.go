package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockflow-backend/pkg/enums"
)

// SalesOrder is a client order moving through reservation, shipping and delivery.
type SalesOrder struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	ClientID    uuid.UUID              `gorm:"column:client_id;type:uuid;not null;index:idx_sales_orders_client"`
	Status      enums.SalesOrderStatus `gorm:"column:status;type:text;not null;default:'CREATED'"`
	ReservedAt  *time.Time             `gorm:"column:reserved_at"`
	ShippedAt   *time.Time             `gorm:"column:shipped_at"`
	DeliveredAt *time.Time             `gorm:"column:delivered_at"`
	CanceledAt  *time.Time             `gorm:"column:canceled_at"`
	Lines       []SalesOrderLine       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *SalesOrder) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// Total sums quantity times unit price across lines.
func (o SalesOrder) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range o.Lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// SalesOrderLine references its product and warehouse by id only.
type SalesOrderLine struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index:idx_sales_order_lines_order"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	WarehouseID uuid.UUID       `gorm:"column:warehouse_id;type:uuid;not null"`
	Quantity    int             `gorm:"column:quantity;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null;default:0"`
}

func (l *SalesOrderLine) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	return nil
}

func (l SalesOrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
