package salesorders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockflow-backend/pkg/db/models"
	"github.com/angelmondragon/stockflow-backend/pkg/enums"
	"github.com/angelmondragon/stockflow-backend/pkg/outbox"
	"github.com/angelmondragon/stockflow-backend/pkg/pagination"
)

// Actor is the authenticated caller driving an operation.
type Actor struct {
	UserID   uuid.UUID
	Role     enums.Role
	ClientID *uuid.UUID
}

// owns reports whether the actor may see or cancel the order.
func (a Actor) owns(order *models.SalesOrder) bool {
	if a.Role != enums.RoleClient {
		return true
	}
	return a.ClientID != nil && *a.ClientID == order.ClientID
}

func (a Actor) ref() *outbox.ActorRef {
	if a.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: a.UserID, ClientID: a.ClientID, Role: a.Role}
}

// LineInput is one requested product quantity from a warehouse.
type LineInput struct {
	ProductID   uuid.UUID `json:"product_id" validate:"required"`
	WarehouseID uuid.UUID `json:"warehouse_id" validate:"required"`
	Quantity    int       `json:"quantity" validate:"required,gt=0"`
}

// CreateInput places a new order. Client callers may omit ClientID.
type CreateInput struct {
	ClientID uuid.UUID   `json:"client_id"`
	Lines    []LineInput `json:"lines" validate:"required,min=1,dive"`
}

// ReservationOutcome reports the automatic reservation attempted on create.
type ReservationOutcome struct {
	Reserved bool   `json:"reserved"`
	Reason   string `json:"reason,omitempty"`
	Details  any    `json:"details,omitempty"`
}

// CreateResult is the placed order and its reservation outcome.
type CreateResult struct {
	Order       *models.SalesOrder
	Reservation ReservationOutcome
}

// ShipResult pairs the shipped order with its shipment.
type ShipResult struct {
	Order    *models.SalesOrder
	Shipment *models.Shipment
}

// ListParams filters the order listing.
type ListParams struct {
	Status   *enums.SalesOrderStatus
	ClientID *uuid.UUID
	pagination.Params
}

// ListResult is one cursor page.
type ListResult struct {
	Orders     []models.SalesOrder
	NextCursor string
}

type LineDTO struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	WarehouseID uuid.UUID       `json:"warehouse_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type OrderDTO struct {
	ID          uuid.UUID              `json:"id"`
	ClientID    uuid.UUID              `json:"client_id"`
	Status      enums.SalesOrderStatus `json:"status"`
	Lines       []LineDTO              `json:"lines"`
	Total       decimal.Decimal        `json:"total"`
	CreatedAt   time.Time              `json:"created_at"`
	ReservedAt  *time.Time             `json:"reserved_at,omitempty"`
	ShippedAt   *time.Time             `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time             `json:"delivered_at,omitempty"`
	CanceledAt  *time.Time             `json:"canceled_at,omitempty"`
}

// ToDTO renders an order with decimal subtotals and total.
func ToDTO(order *models.SalesOrder) OrderDTO {
	lines := make([]LineDTO, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, LineDTO{
			ID:          line.ID,
			ProductID:   line.ProductID,
			WarehouseID: line.WarehouseID,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Subtotal:    line.Subtotal(),
		})
	}
	return OrderDTO{
		ID:          order.ID,
		ClientID:    order.ClientID,
		Status:      order.Status,
		Lines:       lines,
		Total:       order.Total(),
		CreatedAt:   order.CreatedAt,
		ReservedAt:  order.ReservedAt,
		ShippedAt:   order.ShippedAt,
		DeliveredAt: order.DeliveredAt,
		CanceledAt:  order.CanceledAt,
	}
}

func ToDTOs(orders []models.SalesOrder) []OrderDTO {
	out := make([]OrderDTO, 0, len(orders))
	for i := range orders {
		out = append(out, ToDTO(&orders[i]))
	}
	return out
}
