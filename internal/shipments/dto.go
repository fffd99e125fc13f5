package shipments

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockflow-backend/pkg/db/models"
	"github.com/angelmondragon/stockflow-backend/pkg/enums"
)

// AssignBatchInput binds several planned shipments to one carrier.
type AssignBatchInput struct {
	ShipmentIDs []uuid.UUID `json:"shipment_ids" validate:"required,min=1"`
}

// AssignCarrierInput binds one shipment to a carrier.
type AssignCarrierInput struct {
	CarrierID uuid.UUID `json:"carrier_id" validate:"required"`
}

type ShipmentDTO struct {
	ID             uuid.UUID            `json:"id"`
	OrderID        uuid.UUID            `json:"order_id"`
	TrackingNumber string               `json:"tracking_number"`
	Status         enums.ShipmentStatus `json:"status"`
	CarrierID      *uuid.UUID           `json:"carrier_id,omitempty"`
	PlannedDate    string               `json:"planned_date"`
	ShippedDate    *time.Time           `json:"shipped_date,omitempty"`
	DeliveredDate  *time.Time           `json:"delivered_date,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

// ToDTO renders the planned date as a calendar day.
func ToDTO(s *models.Shipment) ShipmentDTO {
	return ShipmentDTO{
		ID:             s.ID,
		OrderID:        s.OrderID,
		TrackingNumber: s.TrackingNumber,
		Status:         s.Status,
		CarrierID:      s.CarrierID,
		PlannedDate:    s.PlannedDate.Format(time.DateOnly),
		ShippedDate:    s.ShippedDate,
		DeliveredDate:  s.DeliveredDate,
		CreatedAt:      s.CreatedAt,
	}
}

func ToDTOs(rows []models.Shipment) []ShipmentDTO {
	out := make([]ShipmentDTO, 0, len(rows))
	for i := range rows {
		out = append(out, ToDTO(&rows[i]))
	}
	return out
}
