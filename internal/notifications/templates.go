package notifications

import (
	"github.com/angelmondragon/courier-dispatch/pkg/enums"
	"github.com/google/uuid"
)

// Template is the fixed title and body for one notification type.
type Template struct {
	Type    enums.NotificationType
	Title   string
	Message string
}

// Message is what callers hand to the Emitter.
type Message struct {
	Type    enums.NotificationType `json:"type"`
	Title   string                 `json:"title"`
	Message string                 `json:"message"`
	OrderID *uuid.UUID             `json:"order_id,omitempty"`
}

var orderStatusTemplates = map[enums.OrderStatus]Template{
	enums.OrderStatusAccepted: {
		Type:    enums.NotificationTypeOrderAccepted,
		Title:   "Order accepted",
		Message: "The restaurant accepted your order.",
	},
	enums.OrderStatusPreparing: {
		Type:    enums.NotificationTypeOrderPreparing,
		Title:   "Order in the kitchen",
		Message: "Your order is being prepared.",
	},
	enums.OrderStatusReady: {
		Type:    enums.NotificationTypeOrderReady,
		Title:   "Order ready",
		Message: "Your order is ready and waiting for a courier.",
	},
	enums.OrderStatusPickedUp: {
		Type:    enums.NotificationTypeOrderPickedUp,
		Title:   "Order picked up",
		Message: "Your courier picked up the order.",
	},
	enums.OrderStatusOnTheWay: {
		Type:    enums.NotificationTypeOrderOnTheWay,
		Title:   "On the way",
		Message: "Your order is on the way.",
	},
	enums.OrderStatusDelivered: {
		Type:    enums.NotificationTypeOrderDelivered,
		Title:   "Order delivered",
		Message: "Your order was delivered. Enjoy your meal!",
	},
	enums.OrderStatusCancelled: {
		Type:    enums.NotificationTypeOrderCancelled,
		Title:   "Order cancelled",
		Message: "Your order was cancelled.",
	},
	enums.OrderStatusRejected: {
		Type:    enums.NotificationTypeOrderRejected,
		Title:   "Order rejected",
		Message: "The restaurant could not take your order.",
	},
}

// Event templates for delivery-driven notifications.
var (
	CourierAssigned = Template{
		Type:    enums.NotificationTypeCourierAssigned,
		Title:   "Courier found",
		Message: "A courier is heading to the restaurant for your order.",
	}
	CourierArrived = Template{
		Type:    enums.NotificationTypeCourierArrived,
		Title:   "Courier at the restaurant",
		Message: "Your courier arrived at the restaurant.",
	}
	DeliveryFailed = Template{
		Type:    enums.NotificationTypeDeliveryFailed,
		Title:   "Delivery failed",
		Message: "We could not complete your delivery. Please contact support.",
	}
	NewDelivery = Template{
		Type:    enums.NotificationTypeNewDelivery,
		Title:   "New delivery",
		Message: "You have a new delivery. Head to the restaurant for pickup.",
	}
)

// ForOrderStatus returns the customer template for an order entering status.
// PENDING has no template.
func ForOrderStatus(status enums.OrderStatus) (Template, bool) {
	tmpl, ok := orderStatusTemplates[status]
	return tmpl, ok
}

// Render binds the template to an order.
func (t Template) Render(orderID uuid.UUID) Message {
	msg := Message{Type: t.Type, Title: t.Title, Message: t.Message}
	if orderID != uuid.Nil {
		id := orderID
		msg.OrderID = &id
	}
	return msg
}
