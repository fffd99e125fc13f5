package enums

import "fmt"

// ShipmentStatus tracks a shipment from planning to delivery.
type ShipmentStatus string

const (
	ShipmentStatusPlanned   ShipmentStatus = "PLANNED"
	ShipmentStatusInTransit ShipmentStatus = "IN_TRANSIT"
	ShipmentStatusDelivered ShipmentStatus = "DELIVERED"
)

var validShipmentStatuses = []ShipmentStatus{
	ShipmentStatusPlanned,
	ShipmentStatusInTransit,
	ShipmentStatusDelivered,
}

func (s ShipmentStatus) String() string {
	return string(s)
}

func (s ShipmentStatus) IsValid() bool {
	for _, candidate := range validShipmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseShipmentStatus(value string) (ShipmentStatus, error) {
	for _, candidate := range validShipmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipment status %q", value)
}
