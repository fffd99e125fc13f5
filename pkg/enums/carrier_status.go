package enums

import "fmt"

// CarrierStatus controls whether a carrier can take new shipments.
type CarrierStatus string

const (
	CarrierStatusActive    CarrierStatus = "ACTIVE"
	CarrierStatusSuspended CarrierStatus = "SUSPENDED"
)

var validCarrierStatuses = []CarrierStatus{
	CarrierStatusActive,
	CarrierStatusSuspended,
}

func (s CarrierStatus) String() string {
	return string(s)
}

func (s CarrierStatus) IsValid() bool {
	for _, candidate := range validCarrierStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseCarrierStatus(value string) (CarrierStatus, error) {
	for _, candidate := range validCarrierStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid carrier status %q", value)
}
