package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockflow-backend/pkg/enums"
)

// Inventory tracks on-hand and reserved counts per warehouse and product.
type Inventory struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	WarehouseID uuid.UUID `gorm:"column:warehouse_id;type:uuid;not null;uniqueIndex:idx_inventories_warehouse_product,priority:1"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_inventories_warehouse_product,priority:2"`
	QtyOnHand   int       `gorm:"column:qty_on_hand;not null;default:0"`
	QtyReserved int       `gorm:"column:qty_reserved;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Inventory) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// Available is the sellable remainder.
func (i Inventory) Available() int {
	return i.QtyOnHand - i.QtyReserved
}

// InventoryMovement is an append-only ledger entry for an on-hand change.
type InventoryMovement struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	InventoryID       uuid.UUID          `gorm:"column:inventory_id;type:uuid;not null;index:idx_inventory_movements_inventory"`
	Type              enums.MovementType `gorm:"column:type;type:text;not null"`
	Quantity          int                `gorm:"column:quantity;not null"`
	BalanceAfter      int                `gorm:"column:balance_after;not null"`
	ReferenceDocument *string            `gorm:"column:reference_document"`
	Description       *string            `gorm:"column:description"`
	OccurredAt        time.Time          `gorm:"column:occurred_at;not null"`
}

func (m *InventoryMovement) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	if m.OccurredAt.IsZero() {
		m.OccurredAt = time.Now().UTC()
	}
	return nil
}
