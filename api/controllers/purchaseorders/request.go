package purchaseorders

import (
	"github.com/google/uuid"

	internalpurchaseorders "github.com/angelmondragon/stockflow-backend/internal/purchaseorders"
)

type updateLinesRequest struct {
	Lines []internalpurchaseorders.LineInput `json:"lines" validate:"required,min=1,dive"`
}

type receiveRequest struct {
	WarehouseID uuid.UUID `json:"warehouse_id" validate:"required"`
}
