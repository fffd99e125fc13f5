package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockflow-backend/pkg/enums"
)

// Shipment moves a single sales order to its client.
type Shipment struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex:idx_shipments_order"`
	TrackingNumber string               `gorm:"column:tracking_number;not null;uniqueIndex:idx_shipments_tracking_number"`
	Status         enums.ShipmentStatus `gorm:"column:status;type:text;not null;default:'PLANNED'"`
	CarrierID      *uuid.UUID           `gorm:"column:carrier_id;type:uuid;index:idx_shipments_carrier"`
	PlannedDate    time.Time            `gorm:"column:planned_date;not null"`
	ShippedDate    *time.Time           `gorm:"column:shipped_date"`
	DeliveredDate  *time.Time           `gorm:"column:delivered_date"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Shipment) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// Carrier delivers shipments under a daily capacity limit.
type Carrier struct {
	ID                    uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Code                  string              `gorm:"column:code;not null;uniqueIndex:idx_carriers_code"`
	Name                  string              `gorm:"column:name;not null"`
	MaxDailyCapacity      int                 `gorm:"column:max_daily_capacity;not null"`
	CurrentDailyShipments int                 `gorm:"column:current_daily_shipments;not null;default:0"`
	Status                enums.CarrierStatus `gorm:"column:status;type:text;not null;default:'ACTIVE'"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Carrier) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// AvailableCapacity is the number of shipments the carrier can still take today.
func (c Carrier) AvailableCapacity() int {
	if remaining := c.MaxDailyCapacity - c.CurrentDailyShipments; remaining > 0 {
		return remaining
	}
	return 0
}
