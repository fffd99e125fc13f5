package purchaseorders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockflow-backend/pkg/db/models"
	"github.com/angelmondragon/stockflow-backend/pkg/enums"
	"github.com/angelmondragon/stockflow-backend/pkg/pagination"
)

// LineInput is one product quantity ordered from the supplier.
type LineInput struct {
	ProductID uuid.UUID       `json:"product_id" validate:"required"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CreateInput opens a purchase order.
type CreateInput struct {
	SupplierID       uuid.UUID   `json:"supplier_id" validate:"required"`
	ExpectedDelivery *time.Time  `json:"expected_delivery,omitempty"`
	Lines            []LineInput `json:"lines" validate:"required,min=1,dive"`
}

// ListParams filters a purchase order page.
type ListParams struct {
	Status *enums.PurchaseOrderStatus
	pagination.Params
}

// ListResult is one cursor page, newest first.
type ListResult struct {
	Orders     []models.PurchaseOrder
	NextCursor string
}

type LineDTO struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OrderDTO struct {
	ID                  uuid.UUID                 `json:"id"`
	SupplierID          uuid.UUID                 `json:"supplier_id"`
	Status              enums.PurchaseOrderStatus `json:"status"`
	ExpectedDelivery    *time.Time                `json:"expected_delivery,omitempty"`
	Lines               []LineDTO                 `json:"lines"`
	Total               decimal.Decimal           `json:"total"`
	CreatedAt           time.Time                 `json:"created_at"`
	ApprovedAt          *time.Time                `json:"approved_at,omitempty"`
	ReceivedAt          *time.Time                `json:"received_at,omitempty"`
	CanceledAt          *time.Time                `json:"canceled_at,omitempty"`
	ReceivedWarehouseID *uuid.UUID                `json:"received_warehouse_id,omitempty"`
}

func ToDTO(order *models.PurchaseOrder) OrderDTO {
	lines := make([]LineDTO, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, LineDTO{
			ID:        line.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	return OrderDTO{
		ID:                  order.ID,
		SupplierID:          order.SupplierID,
		Status:              order.Status,
		ExpectedDelivery:    order.ExpectedDelivery,
		Lines:               lines,
		Total:               order.Total(),
		CreatedAt:           order.CreatedAt,
		ApprovedAt:          order.ApprovedAt,
		ReceivedAt:          order.ReceivedAt,
		CanceledAt:          order.CanceledAt,
		ReceivedWarehouseID: order.ReceivedWarehouseID,
	}
}

func ToDTOs(orders []models.PurchaseOrder) []OrderDTO {
	out := make([]OrderDTO, 0, len(orders))
	for i := range orders {
		out = append(out, ToDTO(&orders[i]))
	}
	return out
}
