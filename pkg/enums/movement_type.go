package enums

import "fmt"

// MovementType classifies an inventory ledger entry.
type MovementType string

const (
	MovementTypeInbound    MovementType = "INBOUND"
	MovementTypeOutbound   MovementType = "OUTBOUND"
	MovementTypeAdjustment MovementType = "ADJUSTMENT"
)

var validMovementTypes = []MovementType{
	MovementTypeInbound,
	MovementTypeOutbound,
	MovementTypeAdjustment,
}

func (m MovementType) String() string {
	return string(m)
}

func (m MovementType) IsValid() bool {
	for _, candidate := range validMovementTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

func ParseMovementType(value string) (MovementType, error) {
	for _, candidate := range validMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement type %q", value)
}
