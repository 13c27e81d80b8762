package enums

import "fmt"

// NotificationType names the event that produced a notification.
type NotificationType string

const (
	NotificationTypeOrderAccepted   NotificationType = "ORDER_ACCEPTED"
	NotificationTypeOrderPreparing  NotificationType = "ORDER_PREPARING"
	NotificationTypeOrderReady      NotificationType = "ORDER_READY"
	NotificationTypeOrderPickedUp   NotificationType = "ORDER_PICKED_UP"
	NotificationTypeOrderOnTheWay   NotificationType = "ORDER_ON_THE_WAY"
	NotificationTypeOrderDelivered  NotificationType = "ORDER_DELIVERED"
	NotificationTypeOrderCancelled  NotificationType = "ORDER_CANCELLED"
	NotificationTypeOrderRejected   NotificationType = "ORDER_REJECTED"
	NotificationTypeCourierAssigned NotificationType = "COURIER_ASSIGNED"
	NotificationTypeCourierArrived  NotificationType = "COURIER_ARRIVED"
	NotificationTypeDeliveryFailed  NotificationType = "DELIVERY_FAILED"
	NotificationTypeNewDelivery     NotificationType = "NEW_DELIVERY"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrderAccepted,
	NotificationTypeOrderPreparing,
	NotificationTypeOrderReady,
	NotificationTypeOrderPickedUp,
	NotificationTypeOrderOnTheWay,
	NotificationTypeOrderDelivered,
	NotificationTypeOrderCancelled,
	NotificationTypeOrderRejected,
	NotificationTypeCourierAssigned,
	NotificationTypeCourierArrived,
	NotificationTypeDeliveryFailed,
	NotificationTypeNewDelivery,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
