package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/courier-dispatch/internal/couriers"
	"github.com/angelmondragon/courier-dispatch/internal/notifications"
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

const placeAttempts = 3

// Amount limits keep every stored cents column inside a Postgres integer.
const (
	maxOrderItems      = 100
	maxItemQuantity    = 999
	maxUnitPriceCents  = 1_000_000
	maxOrderTotalCents = 100_000_000
)

// Service defines the order lifecycle operations.
type Service interface {
	Place(ctx context.Context, input PlaceInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
}

// PlaceInput captures a checkout.
type PlaceInput struct {
	CustomerID        uuid.UUID
	RestaurantID      uuid.UUID
	DeliveryAddressID *uuid.UUID
	Dropoff           geo.Point
	DeliveryFeeCents  int
	Notes             *string
	Items             []PlaceItemInput
}

type PlaceItemInput struct {
	MenuItemID     *uuid.UUID
	Name           string
	Quantity       int
	UnitPriceCents int
}

// TransitionInput asks for an order status change. A nil ActorID is a system
// call and skips the actor check.
type TransitionInput struct {
	OrderID uuid.UUID
	Status  string
	ActorID uuid.UUID
}

// ServiceParams wires the order service.
type ServiceParams struct {
	Repo     Repository
	Couriers couriers.Repository
	Tx       db.TxRunner
	Notifier notifications.Notifier
	Realtime realtime.Forwarder
	Numbers  NumberGenerator
	Metrics  *metrics.DispatchMetrics
	Logger   *logger.Logger
	OnReady  ReadyHook
}

type service struct {
	repo     Repository
	couriers couriers.Repository
	tx       db.TxRunner
	notifier notifications.Notifier
	realtime realtime.Forwarder
	numbers  NumberGenerator
	metrics  *metrics.DispatchMetrics
	logg     *logger.Logger
	onReady  ReadyHook
	now      func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Couriers == nil {
		return nil, fmt.Errorf("couriers repository required")
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
	numbers := params.Numbers
	if numbers == nil {
		numbers = RandomSequencer{}
	}
	return &service{
		repo:     params.Repo,
		couriers: params.Couriers,
		tx:       params.Tx,
		notifier: params.Notifier,
		realtime: forwarder,
		numbers:  numbers,
		metrics:  params.Metrics,
		logg:     params.Logger,
		onReady:  params.OnReady,
		now:      time.Now,
	}, nil
}

func (s *service) Place(ctx context.Context, input PlaceInput) (*models.Order, error) {
	subtotal, err := validatePlaceInput(input)
	if err != nil {
		return nil, err
	}

	restaurant, err := s.repo.FindRestaurant(ctx, input.RestaurantID)
	if err != nil {
		return nil, db.StorageError(err, "restaurant not found", "load restaurant")
	}

	var placed *models.Order
	for attempt := 1; attempt <= placeAttempts; attempt++ {
		now := s.now().UTC()
		number, err := s.numbers.Next(ctx, now)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate order number")
		}

		order := &models.Order{
			OrderNumber:       number,
			CustomerID:        input.CustomerID,
			RestaurantID:      restaurant.ID,
			DeliveryAddressID: input.DeliveryAddressID,
			Status:            enums.OrderStatusPending,
			PaymentStatus:     enums.PaymentStatusPending,
			SubtotalCents:     subtotal,
			DeliveryFeeCents:  input.DeliveryFeeCents,
			TotalCents:        subtotal + input.DeliveryFeeCents,
			Notes:             input.Notes,
		}
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			if err := repo.CreateOrder(ctx, order); err != nil {
				return err
			}

			items := make([]models.OrderItem, 0, len(input.Items))
			for _, item := range input.Items {
				items = append(items, models.OrderItem{
					OrderID:        order.ID,
					MenuItemID:     item.MenuItemID,
					Name:           strings.TrimSpace(item.Name),
					Quantity:       item.Quantity,
					UnitPriceCents: item.UnitPriceCents,
					TotalCents:     item.Quantity * item.UnitPriceCents,
				})
			}
			if err := repo.CreateItems(ctx, items); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
			}

			delivery := &models.Delivery{
				OrderID:          order.ID,
				Status:           enums.DeliveryStatusFindingDriver,
				PickupLatitude:   restaurant.Latitude,
				PickupLongitude:  restaurant.Longitude,
				DropoffLatitude:  input.Dropoff.Lat,
				DropoffLongitude: input.Dropoff.Lon,
			}
			if err := repo.CreateDelivery(ctx, delivery); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create delivery")
			}

			order.Items = items
			order.Delivery = delivery
			return nil
		})
		if err == nil {
			placed = order
			break
		}
		if db.IsUniqueViolation(err, "") && attempt < placeAttempts {
			s.logg.Warn(s.logg.WithField(ctx, "order_number", number), "order number taken, drawing another")
			continue
		}
		return nil, db.StorageError(err, "", "create order")
	}

	logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, placed.ID), map[string]any{
		"order_number":  placed.OrderNumber,
		"restaurant_id": placed.RestaurantID.String(),
	})
	s.logg.Info(logCtx, "order placed")
	s.metrics.IncTransition("order", string(enums.OrderStatusPending))
	s.realtime.PublishOrderEvent(ctx, placed.ID, string(placed.Status), NewStatusEvent(placed, placed.Delivery))
	return placed, nil
}

// validatePlaceInput returns the order subtotal in cents.
func validatePlaceInput(input PlaceInput) (int, error) {
	switch {
	case input.CustomerID == uuid.Nil:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	case input.RestaurantID == uuid.Nil:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "restaurant id required")
	case len(input.Items) == 0:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "at least one item required")
	case len(input.Items) > maxOrderItems:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "too many items").
			WithDetails(map[string]any{"max": maxOrderItems})
	case input.DeliveryFeeCents < 0 || input.DeliveryFeeCents > maxOrderTotalCents:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "delivery fee out of range").
			WithDetails(map[string]any{"min": 0, "max": maxOrderTotalCents})
	case !input.Dropoff.Valid():
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "drop-off coordinate out of range").
			WithDetails(map[string]any{"lat": input.Dropoff.Lat, "lon": input.Dropoff.Lon})
	}

	subtotal := 0
	for i, item := range input.Items {
		switch {
		case strings.TrimSpace(item.Name) == "":
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "item name required").
				WithDetails(map[string]any{"index": i})
		case item.Quantity <= 0 || item.Quantity > maxItemQuantity:
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "item quantity out of range").
				WithDetails(map[string]any{"index": i, "min": 1, "max": maxItemQuantity})
		case item.UnitPriceCents < 0 || item.UnitPriceCents > maxUnitPriceCents:
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "item price out of range").
				WithDetails(map[string]any{"index": i, "min": 0, "max": maxUnitPriceCents})
		}
		subtotal += item.Quantity * item.UnitPriceCents
		if subtotal+input.DeliveryFeeCents > maxOrderTotalCents {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "order total too large").
				WithDetails(map[string]any{"max_cents": maxOrderTotalCents})
		}
	}
	return subtotal, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrderDetail(ctx, orderID)
	if err != nil {
		return nil, db.StorageError(err, "order not found", "load order")
	}
	return order, nil
}

type transitionOutcome struct {
	order           *models.Order
	delivery        *models.Delivery
	deliveryTouched bool
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	target, err := enums.ParseOrderStatus(strings.TrimSpace(input.Status))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidStatus, err, "unknown order status").
			WithDetails(map[string]any{"status": input.Status})
	}

	var out transitionOutcome
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		out = transitionOutcome{}
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			return db.StorageError(err, "order not found", "load order")
		}
		delivery, err := repo.FindDeliveryByOrder(ctx, order.ID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return db.StorageError(err, "", "load delivery")
			}
			delivery = nil
		}

		if input.ActorID != uuid.Nil {
			if err := s.authorize(ctx, repo, order, delivery, input.ActorID); err != nil {
				return err
			}
		}

		if !order.Status.CanTransitionTo(target) {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order status change not allowed").
				WithDetails(map[string]any{"from": order.Status, "to": target})
		}

		now := s.now().UTC()
		if err := ApplyOrderStatus(ctx, repo, order, target, now); err != nil {
			return db.StorageError(err, "", "update order status")
		}

		touched, err := s.projectDelivery(ctx, tx, repo, delivery, target, now)
		if err != nil {
			return err
		}

		order.Delivery = delivery
		out = transitionOutcome{order: order, delivery: delivery, deliveryTouched: touched}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, out, input.ActorID)
	return out.order, nil
}

func (s *service) authorize(ctx context.Context, repo Repository, order *models.Order, delivery *models.Delivery, actorID uuid.UUID) error {
	if delivery != nil && delivery.HasCourier() && *delivery.CourierID == actorID {
		return nil
	}
	restaurant, err := repo.FindRestaurant(ctx, order.RestaurantID)
	if err != nil {
		return db.StorageError(err, "restaurant not found", "load restaurant")
	}
	if restaurant.OwnerUserID == actorID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "actor may not change this order")
}

// projectDelivery moves the delivery to the status the new order status implies
// and releases an attached courier when the delivery ends. A projection that
// needs a courier fails the whole transition when none is attached.
func (s *service) projectDelivery(ctx context.Context, tx *gorm.DB, repo Repository, delivery *models.Delivery, target enums.OrderStatus, now time.Time) (bool, error) {
	if delivery == nil || delivery.Status.IsTerminal() {
		return false, nil
	}
	next, ok := projectedDeliveryStatus(target, delivery)
	if !ok || next == delivery.Status || !delivery.Status.CanAdvanceTo(next) {
		return false, nil
	}
	if next.RequiresCourier() && !delivery.HasCourier() {
		return false, pkgerrors.New(pkgerrors.CodeInvalidTransition, "order has no courier assigned").
			WithDetails(map[string]any{"to": target, "delivery_status": delivery.Status})
	}

	if err := ApplyDeliveryStatus(ctx, repo, delivery, next, now, nil); err != nil {
		return false, db.StorageError(err, "", "update delivery status")
	}

	if next.IsTerminal() && delivery.HasCourier() {
		completed := next == enums.DeliveryStatusDelivered
		if err := s.couriers.WithTx(tx).Release(ctx, *delivery.CourierID, completed); err != nil {
			return false, db.StorageError(err, "courier not found", "release courier")
		}
	}
	return true, nil
}

func (s *service) afterTransition(ctx context.Context, out transitionOutcome, actorID uuid.UUID) {
	order := out.order
	logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID), map[string]any{
		"status":  string(order.Status),
		"version": order.Version,
	})
	if actorID != uuid.Nil {
		logCtx = s.logg.WithActorID(logCtx, actorID)
	}
	s.logg.Info(logCtx, "order status updated")

	s.metrics.IncTransition("order", string(order.Status))
	var touched *models.Delivery
	if out.deliveryTouched {
		touched = out.delivery
		s.metrics.IncTransition("delivery", string(out.delivery.Status))
	}

	if tmpl, ok := notifications.ForOrderStatus(order.Status); ok {
		s.notifier.Notify(ctx, order.CustomerID, tmpl.Render(order.ID))
	}
	s.realtime.PublishOrderEvent(ctx, order.ID, string(order.Status), NewStatusEvent(order, touched))

	if order.Status == enums.OrderStatusReady && s.onReady != nil {
		s.onReady(ctx, order.ID)
	}
}
