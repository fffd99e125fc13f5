package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockflow-backend/pkg/enums"
)

// PurchaseOrder replenishes stock from a supplier.
type PurchaseOrder struct {
	ID                  uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	SupplierID          uuid.UUID                 `gorm:"column:supplier_id;type:uuid;not null;index:idx_purchase_orders_supplier"`
	Status              enums.PurchaseOrderStatus `gorm:"column:status;type:text;not null;default:'CREATED'"`
	ExpectedDelivery    *time.Time                `gorm:"column:expected_delivery"`
	ApprovedAt          *time.Time                `gorm:"column:approved_at"`
	ReceivedAt          *time.Time                `gorm:"column:received_at"`
	CanceledAt          *time.Time                `gorm:"column:canceled_at"`
	ReceivedWarehouseID *uuid.UUID                `gorm:"column:received_warehouse_id;type:uuid"`
	Lines               []PurchaseOrderLine       `gorm:"foreignKey:PurchaseOrderID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PurchaseOrder) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

func (p PurchaseOrder) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range p.Lines {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

// PurchaseOrderLine references its product by id only.
type PurchaseOrderLine struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	PurchaseOrderID uuid.UUID       `gorm:"column:purchase_order_id;type:uuid;not null;index:idx_purchase_order_lines_order"`
	ProductID       uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Quantity        int             `gorm:"column:quantity;not null"`
	UnitPrice       decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null;default:0"`
}

func (l *PurchaseOrderLine) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	return nil
}
