package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockflow-backend/pkg/db/models"
	"github.com/angelmondragon/stockflow-backend/pkg/enums"
)

// CreateInput opens a ledger row for a warehouse and product.
type CreateInput struct {
	WarehouseID uuid.UUID
	ProductID   uuid.UUID
	QtyOnHand   int
	QtyReserved int
}

// AdjustInput overrides one or both quantities after a physical count. Nil fields are kept.
type AdjustInput struct {
	InventoryID uuid.UUID
	QtyOnHand   *int
	QtyReserved *int
	Reason      string
}

// InventoryDTO is the read model returned by the API.
type InventoryDTO struct {
	ID          uuid.UUID `json:"id"`
	WarehouseID uuid.UUID `json:"warehouse_id"`
	ProductID   uuid.UUID `json:"product_id"`
	QtyOnHand   int       `json:"qty_on_hand"`
	QtyReserved int       `json:"qty_reserved"`
	Available   int       `json:"available"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type MovementDTO struct {
	ID                uuid.UUID          `json:"id"`
	InventoryID       uuid.UUID          `json:"inventory_id"`
	Type              enums.MovementType `json:"type"`
	Quantity          int                `json:"quantity"`
	BalanceAfter      int                `json:"balance_after"`
	ReferenceDocument *string            `json:"reference_document,omitempty"`
	Description       *string            `json:"description,omitempty"`
	OccurredAt        time.Time          `json:"occurred_at"`
}

func ToDTO(row *models.Inventory) InventoryDTO {
	return InventoryDTO{
		ID:          row.ID,
		WarehouseID: row.WarehouseID,
		ProductID:   row.ProductID,
		QtyOnHand:   row.QtyOnHand,
		QtyReserved: row.QtyReserved,
		Available:   row.Available(),
		UpdatedAt:   row.UpdatedAt,
	}
}

func ToMovementDTOs(rows []models.InventoryMovement) []MovementDTO {
	out := make([]MovementDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, MovementDTO{
			ID:                row.ID,
			InventoryID:       row.InventoryID,
			Type:              row.Type,
			Quantity:          row.Quantity,
			BalanceAfter:      row.BalanceAfter,
			ReferenceDocument: row.ReferenceDocument,
			Description:       row.Description,
			OccurredAt:        row.OccurredAt,
		})
	}
	return out
}
