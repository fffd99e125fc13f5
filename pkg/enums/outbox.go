package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateSalesOrder    OutboxAggregateType = "sales_order"
	AggregateShipment      OutboxAggregateType = "shipment"
	AggregatePurchaseOrder OutboxAggregateType = "purchase_order"
	AggregateCarrier       OutboxAggregateType = "carrier"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateSalesOrder,
	AggregateShipment,
	AggregatePurchaseOrder,
	AggregateCarrier,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a fulfillment domain event.
type OutboxEventType string

const (
	EventSalesOrderCreated       OutboxEventType = "sales_order_created"
	EventSalesOrderReserved      OutboxEventType = "sales_order_reserved"
	EventSalesOrderShipped       OutboxEventType = "sales_order_shipped"
	EventSalesOrderDelivered     OutboxEventType = "sales_order_delivered"
	EventSalesOrderCanceled      OutboxEventType = "sales_order_canceled"
	EventShipmentPlanned         OutboxEventType = "shipment_planned"
	EventShipmentCarrierAssigned OutboxEventType = "shipment_carrier_assigned"
	EventShipmentInTransit       OutboxEventType = "shipment_in_transit"
	EventShipmentDelivered       OutboxEventType = "shipment_delivered"
	EventPurchaseOrderReceived   OutboxEventType = "purchase_order_received"
	EventCarrierCapacityReset    OutboxEventType = "carrier_capacity_reset"
	EventCarrierStatusChanged    OutboxEventType = "carrier_status_changed"
)

// eventAggregates ties every event type to the aggregate that emits it.
var eventAggregates = map[OutboxEventType]OutboxAggregateType{
	EventSalesOrderCreated:       AggregateSalesOrder,
	EventSalesOrderReserved:      AggregateSalesOrder,
	EventSalesOrderShipped:       AggregateSalesOrder,
	EventSalesOrderDelivered:     AggregateSalesOrder,
	EventSalesOrderCanceled:      AggregateSalesOrder,
	EventShipmentPlanned:         AggregateShipment,
	EventShipmentCarrierAssigned: AggregateShipment,
	EventShipmentInTransit:       AggregateShipment,
	EventShipmentDelivered:       AggregateShipment,
	EventPurchaseOrderReceived:   AggregatePurchaseOrder,
	EventCarrierCapacityReset:    AggregateCarrier,
	EventCarrierStatusChanged:    AggregateCarrier,
}

func (e OutboxEventType) IsValid() bool {
	_, ok := eventAggregates[e]
	return ok
}

// Aggregate returns the aggregate type that owns e, or "" for unknown events.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	return eventAggregates[e]
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	if e := OutboxEventType(value); e.IsValid() {
		return e, nil
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason records why the publisher stopped retrying a row.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts    OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable   OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonUnknownEvent   OutboxDLQErrorReason = "unknown_event"
	OutboxDLQReasonInvalidPayload OutboxDLQErrorReason = "invalid_payload"
)
