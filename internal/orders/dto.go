package orders

import (
	"time"

	"github.com/angelmondragon/courier-dispatch/pkg/db/models"
	"github.com/angelmondragon/courier-dispatch/pkg/enums"
	"github.com/angelmondragon/courier-dispatch/pkg/geo"
	"github.com/google/uuid"
)

// OrderDTO is the order shape returned to clients and carried on realtime events.
type OrderDTO struct {
	ID               uuid.UUID           `json:"id"`
	OrderNumber      string              `json:"order_number"`
	CustomerID       uuid.UUID           `json:"customer_id"`
	RestaurantID     uuid.UUID           `json:"restaurant_id"`
	Status           enums.OrderStatus   `json:"status"`
	PaymentStatus    enums.PaymentStatus `json:"payment_status"`
	SubtotalCents    int                 `json:"subtotal_cents"`
	DeliveryFeeCents int                 `json:"delivery_fee_cents"`
	TotalCents       int                 `json:"total_cents"`
	Notes            *string             `json:"notes,omitempty"`
	AcceptedAt       *time.Time          `json:"accepted_at,omitempty"`
	PreparingAt      *time.Time          `json:"preparing_at,omitempty"`
	ReadyAt          *time.Time          `json:"ready_at,omitempty"`
	PickedUpAt       *time.Time          `json:"picked_up_at,omitempty"`
	OnTheWayAt       *time.Time          `json:"on_the_way_at,omitempty"`
	DeliveredAt      *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt      *time.Time          `json:"cancelled_at,omitempty"`
	RejectedAt       *time.Time          `json:"rejected_at,omitempty"`
	Items            []OrderItemDTO      `json:"items,omitempty"`
	Delivery         *DeliveryDTO        `json:"delivery,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

type OrderItemDTO struct {
	ID             uuid.UUID  `json:"id"`
	MenuItemID     *uuid.UUID `json:"menu_item_id,omitempty"`
	Name           string     `json:"name"`
	Quantity       int        `json:"quantity"`
	UnitPriceCents int        `json:"unit_price_cents"`
	TotalCents     int        `json:"total_cents"`
}

// DeliveryDTO is the delivery shape returned to clients and carried on realtime events.
type DeliveryDTO struct {
	ID                uuid.UUID            `json:"id"`
	OrderID           uuid.UUID            `json:"order_id"`
	Status            enums.DeliveryStatus `json:"status"`
	CourierID         *uuid.UUID           `json:"courier_id,omitempty"`
	Pickup            geo.Point            `json:"pickup"`
	Dropoff           geo.Point            `json:"dropoff"`
	LastKnown         *geo.Point           `json:"last_known,omitempty"`
	LocationUpdatedAt *time.Time           `json:"location_updated_at,omitempty"`
	AssignedAt        *time.Time           `json:"assigned_at,omitempty"`
	ArrivedAt         *time.Time           `json:"arrived_at,omitempty"`
	PickedUpAt        *time.Time           `json:"picked_up_at,omitempty"`
	DeliveredAt       *time.Time           `json:"delivered_at,omitempty"`
	FailedAt          *time.Time           `json:"failed_at,omitempty"`
}

// NewOrderDTO maps an order, including any preloaded items and delivery.
func NewOrderDTO(order *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:               order.ID,
		OrderNumber:      order.OrderNumber,
		CustomerID:       order.CustomerID,
		RestaurantID:     order.RestaurantID,
		Status:           order.Status,
		PaymentStatus:    order.PaymentStatus,
		SubtotalCents:    order.SubtotalCents,
		DeliveryFeeCents: order.DeliveryFeeCents,
		TotalCents:       order.TotalCents,
		Notes:            order.Notes,
		AcceptedAt:       order.AcceptedAt,
		PreparingAt:      order.PreparingAt,
		ReadyAt:          order.ReadyAt,
		PickedUpAt:       order.PickedUpAt,
		OnTheWayAt:       order.OnTheWayAt,
		DeliveredAt:      order.DeliveredAt,
		CancelledAt:      order.CancelledAt,
		RejectedAt:       order.RejectedAt,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:             item.ID,
			MenuItemID:     item.MenuItemID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     item.TotalCents,
		})
	}
	if order.Delivery != nil {
		delivery := NewDeliveryDTO(order.Delivery)
		dto.Delivery = &delivery
	}
	return dto
}

func NewDeliveryDTO(delivery *models.Delivery) DeliveryDTO {
	dto := DeliveryDTO{
		ID:                delivery.ID,
		OrderID:           delivery.OrderID,
		Status:            delivery.Status,
		CourierID:         delivery.CourierID,
		Pickup:            geo.Point{Lat: delivery.PickupLatitude, Lon: delivery.PickupLongitude},
		Dropoff:           geo.Point{Lat: delivery.DropoffLatitude, Lon: delivery.DropoffLongitude},
		LocationUpdatedAt: delivery.LocationUpdatedAt,
		AssignedAt:        delivery.AssignedAt,
		ArrivedAt:         delivery.ArrivedAt,
		PickedUpAt:        delivery.PickedUpAt,
		DeliveredAt:       delivery.DeliveredAt,
		FailedAt:          delivery.FailedAt,
	}
	if delivery.LastKnownLatitude != nil && delivery.LastKnownLongitude != nil {
		dto.LastKnown = &geo.Point{Lat: *delivery.LastKnownLatitude, Lon: *delivery.LastKnownLongitude}
	}
	return dto
}

// StatusEvent is the realtime payload for a committed status change.
type StatusEvent struct {
	Order    OrderDTO     `json:"order"`
	Delivery *DeliveryDTO `json:"delivery,omitempty"`
}

// NewStatusEvent builds the realtime payload. delivery is nil when it was not touched.
func NewStatusEvent(order *models.Order, delivery *models.Delivery) StatusEvent {
	event := StatusEvent{Order: NewOrderDTO(order)}
	if delivery != nil {
		dto := NewDeliveryDTO(delivery)
		event.Delivery = &dto
	}
	return event
}
