package carriers

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockflow-backend/pkg/db/models"
	"github.com/angelmondragon/stockflow-backend/pkg/enums"
)

type CarrierDTO struct {
	ID                    uuid.UUID           `json:"id"`
	Code                  string              `json:"code"`
	Name                  string              `json:"name"`
	Status                enums.CarrierStatus `json:"status"`
	MaxDailyCapacity      int                 `json:"max_daily_capacity"`
	CurrentDailyShipments int                 `json:"current_daily_shipments"`
	AvailableCapacity     int                 `json:"available_capacity"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

func ToDTO(c *models.Carrier) CarrierDTO {
	return CarrierDTO{
		ID:                    c.ID,
		Code:                  c.Code,
		Name:                  c.Name,
		Status:                c.Status,
		MaxDailyCapacity:      c.MaxDailyCapacity,
		CurrentDailyShipments: c.CurrentDailyShipments,
		AvailableCapacity:     c.AvailableCapacity(),
		UpdatedAt:             c.UpdatedAt,
	}
}

func ToDTOs(rows []models.Carrier) []CarrierDTO {
	out := make([]CarrierDTO, 0, len(rows))
	for i := range rows {
		out = append(out, ToDTO(&rows[i]))
	}
	return out
}
