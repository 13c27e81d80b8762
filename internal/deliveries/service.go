package deliveries

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/courier-dispatch/internal/couriers"
	"github.com/angelmondragon/courier-dispatch/internal/notifications"
	"github.com/angelmondragon/courier-dispatch/internal/orders"
	"github.com/angelmondragon/courier-dispatch/internal/realtime"
	"github.com/angelmondragon/courier-dispatch/pkg/db"
	"github.com/angelmondragon/courier-dispatch/pkg/db/models"
	"github.com/angelmondragon/courier-dispatch/pkg/enums"
	pkgerrors "github.com/angelmondragon/courier-dispatch/pkg/errors"
	"github.com/angelmondragon/courier-dispatch/pkg/geo"
	"github.com/angelmondragon/courier-dispatch/pkg/logger"
	"github.com/angelmondragon/courier-dispatch/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ReasonNoCourier          = "no courier available"
	ReasonCourierUnavailable = "matched courier is no longer available"
)

// Service coordinates courier assignment and courier-driven delivery updates.
type Service interface {
	Get(ctx context.Context, deliveryID uuid.UUID) (*models.Delivery, error)
	AssignCourier(ctx context.Context, input AssignInput) (*models.Delivery, error)
	AutoAssign(ctx context.Context, orderID uuid.UUID) (*AutoAssignResult, error)
	UpdateStatus(ctx context.Context, input StatusInput) (*models.Delivery, error)
	UpdateLocation(ctx context.Context, input LocationInput) (*models.Delivery, error)
}

type AssignInput struct {
	DeliveryID uuid.UUID
	CourierID  uuid.UUID
}

// AutoAssignResult reports the outcome of a matching attempt. Not finding a
// courier is a normal outcome and is not an error.
type AutoAssignResult struct {
	Assigned   bool             `json:"assigned"`
	Delivery   *models.Delivery `json:"-"`
	CourierID  *uuid.UUID       `json:"courier_id,omitempty"`
	DistanceKm *float64         `json:"distance_km,omitempty"`
	Fallback   bool             `json:"fallback"`
	Reason     string           `json:"reason,omitempty"`
}

// StatusInput asks for a delivery status change. A nil ActorID is a system call.
type StatusInput struct {
	DeliveryID uuid.UUID
	Status     string
	ActorID    uuid.UUID
}

type LocationInput struct {
	DeliveryID uuid.UUID
	CourierID  uuid.UUID
	Latitude   float64
	Longitude  float64
}

type courierMatcher interface {
	FindNearestCourier(ctx context.Context, pickupLat, pickupLon, maxDistanceKm float64) (*couriers.Match, error)
}

// ServiceParams wires the delivery coordinator.
type ServiceParams struct {
	Orders        orders.Repository
	Couriers      couriers.Repository
	Matcher       courierMatcher
	Tx            db.TxRunner
	Notifier      notifications.Notifier
	Realtime      realtime.Forwarder
	Metrics       *metrics.DispatchMetrics
	Logger        *logger.Logger
	MatchRadiusKm float64
}

type service struct {
	orders   orders.Repository
	couriers couriers.Repository
	matcher  courierMatcher
	tx       db.TxRunner
	notifier notifications.Notifier
	realtime realtime.Forwarder
	metrics  *metrics.DispatchMetrics
	logg     *logger.Logger
	radiusKm float64
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Couriers == nil {
		return nil, fmt.Errorf("couriers repository required")
	}
	if params.Matcher == nil {
		return nil, fmt.Errorf("courier matcher required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	forwarder := params.Realtime
	if forwarder == nil {
		forwarder = realtime.Nop{}
	}
	radius := params.MatchRadiusKm
	if radius <= 0 {
		radius = couriers.DefaultMatchRadiusKm
	}
	return &service{
		orders:   params.Orders,
		couriers: params.Couriers,
		matcher:  params.Matcher,
		tx:       params.Tx,
		notifier: params.Notifier,
		realtime: forwarder,
		metrics:  params.Metrics,
		logg:     params.Logger,
		radiusKm: radius,
		now:      time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, deliveryID uuid.UUID) (*models.Delivery, error) {
	if deliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	delivery, err := s.orders.FindDelivery(ctx, deliveryID)
	if err != nil {
		return nil, db.StorageError(err, "delivery not found", "load delivery")
	}
	return delivery, nil
}

// AssignCourier attaches courierID to the delivery and claims the courier in
// one transaction.
func (s *service) AssignCourier(ctx context.Context, input AssignInput) (*models.Delivery, error) {
	if input.DeliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	if input.CourierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "courier id required")
	}

	var (
		order    *models.Order
		delivery *models.Delivery
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		courierRepo := s.couriers.WithTx(tx)

		d, err := repo.FindDelivery(ctx, input.DeliveryID)
		if err != nil {
			return db.StorageError(err, "delivery not found", "load delivery")
		}
		if d.HasCourier() {
			return pkgerrors.New(pkgerrors.CodeAlreadyAssigned, "delivery already has a courier").
				WithDetails(map[string]any{"delivery_id": d.ID, "courier_id": *d.CourierID})
		}

		o, err := repo.FindOrder(ctx, d.OrderID)
		if err != nil {
			return db.StorageError(err, "order not found", "load order")
		}
		if o.Status != enums.OrderStatusReady {
			return pkgerrors.New(pkgerrors.CodeOrderNotReady, "order is not ready for pickup").
				WithDetails(map[string]any{"order_id": o.ID, "status": o.Status})
		}
		if !d.Status.CanAdvanceTo(enums.DeliveryStatusDriverAssigned) {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "delivery cannot take a courier").
				WithDetails(map[string]any{"status": d.Status})
		}

		courier, err := courierRepo.FindByID(ctx, input.CourierID)
		if err != nil {
			return db.StorageError(err, "courier not found", "load courier")
		}
		if !courier.Online || !courier.Available {
			return pkgerrors.New(pkgerrors.CodeCourierUnavailable, "courier is not available").
				WithDetails(map[string]any{"courier_id": courier.UserID, "online": courier.Online, "available": courier.Available})
		}

		now := s.now().UTC()
		courierID := courier.UserID
		if err := orders.ApplyDeliveryStatus(ctx, repo, d, enums.DeliveryStatusDriverAssigned, now, map[string]any{
			"courier_id": courierID,
		}); err != nil {
			return db.StorageError(err, "", "assign delivery")
		}
		d.CourierID = &courierID

		if err := courierRepo.Claim(ctx, courier); err != nil {
			return db.StorageError(err, "", "claim courier")
		}

		order, delivery = o, d
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithCourierID(s.logg.WithDeliveryID(s.logg.WithOrderID(ctx, order.ID), delivery.ID), input.CourierID)
	s.logg.Info(logCtx, "courier assigned")
	s.metrics.IncTransition("delivery", string(delivery.Status))

	s.notifier.Notify(ctx, order.CustomerID, notifications.CourierAssigned.Render(order.ID))
	s.notifier.Notify(ctx, input.CourierID, notifications.NewDelivery.Render(order.ID))
	s.realtime.PublishOrderEvent(ctx, order.ID, string(order.Status), orders.NewStatusEvent(order, delivery))
	return delivery, nil
}

// AutoAssign matches the nearest available courier to a READY order and assigns it.
func (s *service) AutoAssign(ctx context.Context, orderID uuid.UUID) (*AutoAssignResult, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.orders.FindOrder(ctx, orderID)
	if err != nil {
		return nil, db.StorageError(err, "order not found", "load order")
	}
	delivery, err := s.orders.FindDeliveryByOrder(ctx, orderID)
	if err != nil {
		return nil, db.StorageError(err, "delivery not found", "load delivery")
	}
	if order.Status != enums.OrderStatusReady {
		return nil, pkgerrors.New(pkgerrors.CodeOrderNotReady, "order is not ready for pickup").
			WithDetails(map[string]any{"order_id": order.ID, "status": order.Status})
	}
	if delivery.HasCourier() {
		return &AutoAssignResult{Assigned: true, Delivery: delivery, CourierID: delivery.CourierID}, nil
	}

	logCtx := s.logg.WithDeliveryID(s.logg.WithOrderID(ctx, order.ID), delivery.ID)
	match, err := s.matcher.FindNearestCourier(ctx, delivery.PickupLatitude, delivery.PickupLongitude, s.radiusKm)
	if err != nil {
		return nil, err
	}
	if match == nil {
		s.logg.Info(logCtx, "no courier available, delivery stays in finding driver")
		return &AutoAssignResult{Delivery: delivery, Reason: ReasonNoCourier}, nil
	}

	assigned, err := s.AssignCourier(ctx, AssignInput{DeliveryID: delivery.ID, CourierID: match.CourierID})
	switch {
	case err == nil:
		courierID := match.CourierID
		return &AutoAssignResult{
			Assigned:   true,
			Delivery:   assigned,
			CourierID:  &courierID,
			DistanceKm: match.DistanceKm,
			Fallback:   match.Fallback,
		}, nil
	case pkgerrors.IsCode(err, pkgerrors.CodeCourierUnavailable), pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		s.logg.Warn(s.logg.WithCourierID(logCtx, match.CourierID), "matched courier was claimed first")
		return &AutoAssignResult{Delivery: delivery, Reason: ReasonCourierUnavailable}, nil
	case pkgerrors.IsCode(err, pkgerrors.CodeAlreadyAssigned):
		current, loadErr := s.orders.FindDelivery(ctx, delivery.ID)
		if loadErr != nil {
			return nil, db.StorageError(loadErr, "delivery not found", "reload delivery")
		}
		return &AutoAssignResult{Assigned: true, Delivery: current, CourierID: current.CourierID}, nil
	default:
		return nil, err
	}
}

type statusOutcome struct {
	order        *models.Order
	delivery     *models.Delivery
	orderTouched bool
	unchanged    bool
}

// UpdateStatus applies a courier-driven delivery status and its order projection.
func (s *service) UpdateStatus(ctx context.Context, input StatusInput) (*models.Delivery, error) {
	if input.DeliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	target, err := enums.ParseDeliveryStatus(strings.TrimSpace(input.Status))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidStatus, err, "unknown delivery status").
			WithDetails(map[string]any{"status": input.Status})
	}

	var out statusOutcome
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		out = statusOutcome{}
		repo := s.orders.WithTx(tx)

		delivery, err := repo.FindDelivery(ctx, input.DeliveryID)
		if err != nil {
			return db.StorageError(err, "delivery not found", "load delivery")
		}
		order, err := repo.FindOrder(ctx, delivery.OrderID)
		if err != nil {
			return db.StorageError(err, "order not found", "load order")
		}

		if input.ActorID != uuid.Nil {
			if err := authorize(ctx, repo, order, delivery, input.ActorID); err != nil {
				return err
			}
		}

		if delivery.Status == target {
			out = statusOutcome{order: order, delivery: delivery, unchanged: true}
			return nil
		}
		if !delivery.Status.CanAdvanceTo(target) {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "delivery status change not allowed").
				WithDetails(map[string]any{"from": delivery.Status, "to": target})
		}
		if target.RequiresCourier() && !delivery.HasCourier() {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "delivery has no courier").
				WithDetails(map[string]any{"to": target})
		}

		now := s.now().UTC()
		if err := orders.ApplyDeliveryStatus(ctx, repo, delivery, target, now, nil); err != nil {
			return db.StorageError(err, "", "update delivery status")
		}

		touched, err := s.projectOrder(ctx, tx, repo, order, delivery, target, now)
		if err != nil {
			return err
		}

		order.Delivery = delivery
		out = statusOutcome{order: order, delivery: delivery, orderTouched: touched}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.unchanged {
		return out.delivery, nil
	}

	s.afterStatus(ctx, out, input.ActorID)
	return out.delivery, nil
}

// projectOrder moves the order to the status the delivery status implies and
// releases the courier when the delivery ends.
func (s *service) projectOrder(ctx context.Context, tx *gorm.DB, repo orders.Repository, order *models.Order, delivery *models.Delivery, target enums.DeliveryStatus, now time.Time) (bool, error) {
	touched := false
	switch target {
	case enums.DeliveryStatusDriverArrived:
		if order.Status != enums.OrderStatusReady && order.Status.CanTransitionTo(enums.OrderStatusReady) {
			if err := orders.ApplyOrderStatus(ctx, repo, order, enums.OrderStatusReady, now); err != nil {
				return false, db.StorageError(err, "", "update order status")
			}
			touched = true
		}
	case enums.DeliveryStatusDelivered:
		if !order.Status.CanTransitionTo(enums.OrderStatusDelivered) {
			return false, pkgerrors.New(pkgerrors.CodeInvalidTransition, "order cannot be marked delivered").
				WithDetails(map[string]any{"order_status": order.Status})
		}
		if err := orders.ApplyOrderStatus(ctx, repo, order, enums.OrderStatusDelivered, now); err != nil {
			return false, db.StorageError(err, "", "update order status")
		}
		touched = true
	case enums.DeliveryStatusFailed:
		if !order.Status.IsTerminal() {
			if err := orders.ApplyOrderStatus(ctx, repo, order, enums.OrderStatusCancelled, now); err != nil {
				return false, db.StorageError(err, "", "update order status")
			}
			touched = true
		}
	}

	if target.IsTerminal() && delivery.HasCourier() {
		completed := target == enums.DeliveryStatusDelivered
		if err := s.couriers.WithTx(tx).Release(ctx, *delivery.CourierID, completed); err != nil {
			return false, db.StorageError(err, "courier not found", "release courier")
		}
	}
	return touched, nil
}

var deliveryNotifications = map[enums.DeliveryStatus]notifications.Template{
	enums.DeliveryStatusDriverArrived: notifications.CourierArrived,
	enums.DeliveryStatusFailed:        notifications.DeliveryFailed,
}

func (s *service) afterStatus(ctx context.Context, out statusOutcome, actorID uuid.UUID) {
	order, delivery := out.order, out.delivery
	logCtx := s.logg.WithFields(s.logg.WithDeliveryID(s.logg.WithOrderID(ctx, order.ID), delivery.ID), map[string]any{
		"delivery_status": string(delivery.Status),
		"order_status":    string(order.Status),
	})
	if actorID != uuid.Nil {
		logCtx = s.logg.WithActorID(logCtx, actorID)
	}
	s.logg.Info(logCtx, "delivery status updated")

	s.metrics.IncTransition("delivery", string(delivery.Status))
	if out.orderTouched {
		s.metrics.IncTransition("order", string(order.Status))
	}

	tmpl, ok := deliveryNotifications[delivery.Status]
	if delivery.Status == enums.DeliveryStatusDelivered {
		tmpl, ok = notifications.ForOrderStatus(enums.OrderStatusDelivered)
	}
	if ok {
		s.notifier.Notify(ctx, order.CustomerID, tmpl.Render(order.ID))
	}
	s.realtime.PublishOrderEvent(ctx, order.ID, string(order.Status), orders.NewStatusEvent(order, delivery))
}

// UpdateLocation records the courier's live position. It is a direct write
// outside any transaction and never projects or notifies.
func (s *service) UpdateLocation(ctx context.Context, input LocationInput) (*models.Delivery, error) {
	if input.DeliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	if input.CourierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "courier identity missing")
	}
	point := geo.Point{Lat: input.Latitude, Lon: input.Longitude}
	if !point.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coordinate out of range").
			WithDetails(map[string]any{"lat": input.Latitude, "lon": input.Longitude})
	}

	delivery, err := s.orders.FindDelivery(ctx, input.DeliveryID)
	if err != nil {
		return nil, db.StorageError(err, "delivery not found", "load delivery")
	}
	if !delivery.HasCourier() || *delivery.CourierID != input.CourierID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned courier may report location")
	}
	if delivery.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "delivery already finished").
			WithDetails(map[string]any{"status": delivery.Status})
	}

	now := s.now().UTC()
	if err := s.orders.UpdateDeliveryLocation(ctx, delivery.ID, point.Lat, point.Lon, now); err != nil {
		return nil, db.StorageError(err, "delivery not found", "update delivery location")
	}
	if err := s.couriers.UpdateLocation(ctx, input.CourierID, point.Lat, point.Lon, now); err != nil {
		return nil, db.StorageError(err, "", "update courier location")
	}

	lat, lon := point.Lat, point.Lon
	delivery.LastKnownLatitude = &lat
	delivery.LastKnownLongitude = &lon
	delivery.LocationUpdatedAt = &now

	s.realtime.PublishLocationEvent(ctx, delivery.OrderID, point)
	return delivery, nil
}

func authorize(ctx context.Context, repo orders.Repository, order *models.Order, delivery *models.Delivery, actorID uuid.UUID) error {
	if delivery.HasCourier() && *delivery.CourierID == actorID {
		return nil
	}
	restaurant, err := repo.FindRestaurant(ctx, order.RestaurantID)
	if err != nil {
		return db.StorageError(err, "restaurant not found", "load restaurant")
	}
	if restaurant.OwnerUserID == actorID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "actor may not change this delivery")
}
