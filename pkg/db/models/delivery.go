package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/courier-dispatch/pkg/enums"
)

// Delivery is the logistics record owned 1:1 by an order.
type Delivery struct {
	ID                 uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID            uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Status             enums.DeliveryStatus `gorm:"column:status;type:text;not null;index"`
	CourierID          *uuid.UUID           `gorm:"column:courier_id;type:uuid;index"`
	PickupLatitude     float64              `gorm:"column:pickup_latitude;not null"`
	PickupLongitude    float64              `gorm:"column:pickup_longitude;not null"`
	DropoffLatitude    float64              `gorm:"column:dropoff_latitude;not null"`
	DropoffLongitude   float64              `gorm:"column:dropoff_longitude;not null"`
	LastKnownLatitude  *float64             `gorm:"column:last_known_latitude"`
	LastKnownLongitude *float64             `gorm:"column:last_known_longitude"`
	LocationUpdatedAt  *time.Time           `gorm:"column:location_updated_at"`
	AssignedAt         *time.Time           `gorm:"column:assigned_at"`
	ArrivedAt          *time.Time           `gorm:"column:arrived_at"`
	PickedUpAt         *time.Time           `gorm:"column:picked_up_at"`
	DeliveredAt        *time.Time           `gorm:"column:delivered_at"`
	FailedAt           *time.Time           `gorm:"column:failed_at"`
	Version            int64                `gorm:"column:version;not null"`
	CreatedAt          time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *Delivery) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Version == 0 {
		d.Version = 1
	}
	return nil
}

// HasCourier reports whether a courier currently holds the delivery.
func (d *Delivery) HasCourier() bool {
	return d.CourierID != nil && *d.CourierID != uuid.Nil
}

// DeliveryTimestampColumn returns the column stamped when the delivery enters status.
func DeliveryTimestampColumn(status enums.DeliveryStatus) string {
	switch status {
	case enums.DeliveryStatusDriverAssigned:
		return "assigned_at"
	case enums.DeliveryStatusDriverArrived:
		return "arrived_at"
	case enums.DeliveryStatusPickedUp:
		return "picked_up_at"
	case enums.DeliveryStatusDelivered:
		return "delivered_at"
	case enums.DeliveryStatusFailed:
		return "failed_at"
	}
	return ""
}

// StampStatus mirrors a status write onto the in-memory delivery.
func (d *Delivery) StampStatus(status enums.DeliveryStatus, at time.Time) {
	d.Status = status
	stamp := at
	switch status {
	case enums.DeliveryStatusDriverAssigned:
		d.AssignedAt = &stamp
	case enums.DeliveryStatusDriverArrived:
		d.ArrivedAt = &stamp
	case enums.DeliveryStatusPickedUp:
		d.PickedUpAt = &stamp
	case enums.DeliveryStatusDelivered:
		d.DeliveredAt = &stamp
	case enums.DeliveryStatusFailed:
		d.FailedAt = &stamp
	}
}
