package inventory

import "github.com/google/uuid"

type createInventoryRequest struct {
	WarehouseID uuid.UUID `json:"warehouse_id" validate:"required"`
	ProductID   uuid.UUID `json:"product_id" validate:"required"`
	QtyOnHand   int       `json:"qty_on_hand" validate:"gte=0"`
	QtyReserved int       `json:"qty_reserved" validate:"gte=0"`
}

type adjustRequest struct {
	QtyOnHand   *int   `json:"qty_on_hand,omitempty" validate:"omitempty,gte=0"`
	QtyReserved *int   `json:"qty_reserved,omitempty" validate:"omitempty,gte=0"`
	Reason      string `json:"reason" validate:"required,notblank,max=255"`
}
