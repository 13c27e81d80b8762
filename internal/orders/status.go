package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/courier-dispatch/pkg/db/models"
	"github.com/angelmondragon/courier-dispatch/pkg/enums"
)

// ApplyOrderStatus writes next with its timestamp column and mirrors it onto
// order. Reaching DELIVERED also marks the order PAID. The edge must already
// be validated.
func ApplyOrderStatus(ctx context.Context, repo Repository, order *models.Order, next enums.OrderStatus, at time.Time) error {
	updates := map[string]any{"status": next}
	if column := models.StatusTimestampColumn(next); column != "" {
		updates[column] = at
	}
	if next == enums.OrderStatusDelivered {
		updates["payment_status"] = enums.PaymentStatusPaid
	}
	if err := repo.UpdateOrder(ctx, order, updates); err != nil {
		return err
	}
	order.StampStatus(next, at)
	return nil
}

// ApplyDeliveryStatus writes next with its timestamp column plus any extra
// columns and mirrors the status onto delivery.
func ApplyDeliveryStatus(ctx context.Context, repo Repository, delivery *models.Delivery, next enums.DeliveryStatus, at time.Time, extra map[string]any) error {
	updates := map[string]any{"status": next}
	if column := models.DeliveryTimestampColumn(next); column != "" {
		updates[column] = at
	}
	for k, v := range extra {
		updates[k] = v
	}
	if err := repo.UpdateDelivery(ctx, delivery, updates); err != nil {
		return err
	}
	delivery.StampStatus(next, at)
	return nil
}

// projectedDeliveryStatus maps an order status onto the delivery status it
// implies. ok is false when the order status carries no delivery projection.
func projectedDeliveryStatus(status enums.OrderStatus, delivery *models.Delivery) (enums.DeliveryStatus, bool) {
	switch status {
	case enums.OrderStatusReady:
		if delivery.HasCourier() {
			return enums.DeliveryStatusDriverAssigned, true
		}
		return enums.DeliveryStatusFindingDriver, true
	case enums.OrderStatusPickedUp, enums.OrderStatusOnTheWay:
		return enums.DeliveryStatusOnTheWay, true
	case enums.OrderStatusDelivered:
		return enums.DeliveryStatusDelivered, true
	case enums.OrderStatusCancelled, enums.OrderStatusRejected:
		return enums.DeliveryStatusFailed, true
	}
	return "", false
}
