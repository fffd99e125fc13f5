package payloads

import (
	"time"

	"github.com/google/uuid"
)

// SalesOrderLine is the line snapshot carried by sales order events.
type SalesOrderLine struct {
	ProductID   uuid.UUID `json:"product_id"`
	WarehouseID uuid.UUID `json:"warehouse_id"`
	Quantity    int       `json:"quantity" validate:"gt=0"`
}

// SalesOrderCreatedEvent announces a new order and whether stock was reserved up front.
type SalesOrderCreatedEvent struct {
	OrderID  uuid.UUID        `json:"order_id" validate:"required"`
	ClientID uuid.UUID        `json:"client_id" validate:"required"`
	Status   string           `json:"status" validate:"required"`
	Reserved bool             `json:"reserved"`
	Lines    []SalesOrderLine `json:"lines" validate:"required,min=1,dive"`
}

// SalesOrderStatusEvent covers reserved, shipped, delivered and canceled transitions.
type SalesOrderStatusEvent struct {
	OrderID    uuid.UUID `json:"order_id" validate:"required"`
	ClientID   uuid.UUID `json:"client_id"`
	Status     string    `json:"status" validate:"required"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ShipmentPlannedEvent hands the tracking number and planned date to labeling.
type ShipmentPlannedEvent struct {
	ShipmentID     uuid.UUID `json:"shipment_id" validate:"required"`
	OrderID        uuid.UUID `json:"order_id"`
	TrackingNumber string    `json:"tracking_number" validate:"required"`
	PlannedDate    time.Time `json:"planned_date"`
}

// ShipmentCarrierAssignedEvent is emitted for single and batch assignment.
type ShipmentCarrierAssignedEvent struct {
	ShipmentID     uuid.UUID `json:"shipment_id" validate:"required"`
	OrderID        uuid.UUID `json:"order_id"`
	CarrierID      uuid.UUID `json:"carrier_id" validate:"required"`
	TrackingNumber string    `json:"tracking_number" validate:"required"`
}

// ShipmentStatusEvent covers in-transit and delivered transitions.
type ShipmentStatusEvent struct {
	ShipmentID     uuid.UUID  `json:"shipment_id" validate:"required"`
	OrderID        uuid.UUID  `json:"order_id"`
	CarrierID      *uuid.UUID `json:"carrier_id,omitempty"`
	TrackingNumber string     `json:"tracking_number"`
	Status         string     `json:"status" validate:"required"`
	OccurredAt     time.Time  `json:"occurred_at"`
}

// PurchaseOrderReceivedEvent lists the quantities credited to a warehouse.
type PurchaseOrderReceivedEvent struct {
	PurchaseOrderID uuid.UUID               `json:"purchase_order_id" validate:"required"`
	SupplierID      uuid.UUID               `json:"supplier_id"`
	WarehouseID     uuid.UUID               `json:"warehouse_id" validate:"required"`
	Lines           []PurchaseOrderLineInfo `json:"lines" validate:"required,min=1,dive"`
	ReceivedAt      time.Time               `json:"received_at"`
}

type PurchaseOrderLineInfo struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity" validate:"gt=0"`
}

// CarrierCapacityResetEvent records the daily counter reset.
type CarrierCapacityResetEvent struct {
	CarriersReset int64     `json:"carriers_reset" validate:"gte=0"`
	ResetAt       time.Time `json:"reset_at"`
}

// CarrierStatusChangedEvent is emitted when a carrier is suspended or reactivated.
type CarrierStatusChangedEvent struct {
	CarrierID uuid.UUID `json:"carrier_id" validate:"required"`
	Code      string    `json:"code"`
	From      string    `json:"from" validate:"required"`
	To        string    `json:"to" validate:"required"`
	ChangedAt time.Time `json:"changed_at"`
}
