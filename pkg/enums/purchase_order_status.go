package enums

import "fmt"

// PurchaseOrderStatus tracks a replenishment order placed with a supplier.
type PurchaseOrderStatus string

const (
	PurchaseOrderStatusCreated  PurchaseOrderStatus = "CREATED"
	PurchaseOrderStatusApproved PurchaseOrderStatus = "APPROVED"
	PurchaseOrderStatusReceived PurchaseOrderStatus = "RECEIVED"
	PurchaseOrderStatusCanceled PurchaseOrderStatus = "CANCELED"
)

var validPurchaseOrderStatuses = []PurchaseOrderStatus{
	PurchaseOrderStatusCreated,
	PurchaseOrderStatusApproved,
	PurchaseOrderStatusReceived,
	PurchaseOrderStatusCanceled,
}

func (s PurchaseOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PurchaseOrderStatus.
func (s PurchaseOrderStatus) IsValid() bool {
	for _, candidate := range validPurchaseOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsClosed reports whether the order can no longer be edited.
func (s PurchaseOrderStatus) IsClosed() bool {
	return s == PurchaseOrderStatusReceived || s == PurchaseOrderStatusCanceled
}

// ParsePurchaseOrderStatus converts raw input into a PurchaseOrderStatus.
func ParsePurchaseOrderStatus(value string) (PurchaseOrderStatus, error) {
	for _, candidate := range validPurchaseOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase order status %q", value)
}
