package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/courier-dispatch/pkg/enums"
)

// Order is a customer's placed food request.
type Order struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber       string              `gorm:"column:order_number;not null;uniqueIndex"`
	CustomerID        uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	RestaurantID      uuid.UUID           `gorm:"column:restaurant_id;type:uuid;not null;index"`
	DeliveryAddressID *uuid.UUID          `gorm:"column:delivery_address_id;type:uuid"`
	Status            enums.OrderStatus   `gorm:"column:status;type:text;not null;index"`
	PaymentStatus     enums.PaymentStatus `gorm:"column:payment_status;type:text;not null"`
	SubtotalCents     int                 `gorm:"column:subtotal_cents;not null"`
	DeliveryFeeCents  int                 `gorm:"column:delivery_fee_cents;not null"`
	TotalCents        int                 `gorm:"column:total_cents;not null"`
	Notes             *string             `gorm:"column:notes"`
	Version           int64               `gorm:"column:version;not null"`
	AcceptedAt        *time.Time          `gorm:"column:accepted_at"`
	PreparingAt       *time.Time          `gorm:"column:preparing_at"`
	ReadyAt           *time.Time          `gorm:"column:ready_at"`
	PickedUpAt        *time.Time          `gorm:"column:picked_up_at"`
	OnTheWayAt        *time.Time          `gorm:"column:on_the_way_at"`
	DeliveredAt       *time.Time          `gorm:"column:delivered_at"`
	CancelledAt       *time.Time          `gorm:"column:cancelled_at"`
	RejectedAt        *time.Time          `gorm:"column:rejected_at"`
	Items             []OrderItem         `gorm:"foreignKey:OrderID"`
	Delivery          *Delivery           `gorm:"foreignKey:OrderID"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Version == 0 {
		o.Version = 1
	}
	return nil
}

// StatusTimestampColumn returns the column stamped when the order enters status.
func StatusTimestampColumn(status enums.OrderStatus) string {
	switch status {
	case enums.OrderStatusAccepted:
		return "accepted_at"
	case enums.OrderStatusPreparing:
		return "preparing_at"
	case enums.OrderStatusReady:
		return "ready_at"
	case enums.OrderStatusPickedUp:
		return "picked_up_at"
	case enums.OrderStatusOnTheWay:
		return "on_the_way_at"
	case enums.OrderStatusDelivered:
		return "delivered_at"
	case enums.OrderStatusCancelled:
		return "cancelled_at"
	case enums.OrderStatusRejected:
		return "rejected_at"
	}
	return ""
}

// StampStatus mirrors a status write onto the in-memory order.
func (o *Order) StampStatus(status enums.OrderStatus, at time.Time) {
	o.Status = status
	stamp := at
	switch status {
	case enums.OrderStatusAccepted:
		o.AcceptedAt = &stamp
	case enums.OrderStatusPreparing:
		o.PreparingAt = &stamp
	case enums.OrderStatusReady:
		o.ReadyAt = &stamp
	case enums.OrderStatusPickedUp:
		o.PickedUpAt = &stamp
	case enums.OrderStatusOnTheWay:
		o.OnTheWayAt = &stamp
	case enums.OrderStatusDelivered:
		o.DeliveredAt = &stamp
		o.PaymentStatus = enums.PaymentStatusPaid
	case enums.OrderStatusCancelled:
		o.CancelledAt = &stamp
	case enums.OrderStatusRejected:
		o.RejectedAt = &stamp
	}
}
