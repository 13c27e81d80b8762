package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/courier-dispatch/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for orders, their items and deliveries.
// Update* methods are versioned and return db.ErrWriteConflict when the row moved on.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	CreateDelivery(ctx context.Context, delivery *models.Delivery) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderDetail(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindDelivery(ctx context.Context, deliveryID uuid.UUID) (*models.Delivery, error)
	FindDeliveryByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error)
	FindRestaurant(ctx context.Context, restaurantID uuid.UUID) (*models.Restaurant, error)
	UpdateOrder(ctx context.Context, order *models.Order, updates map[string]any) error
	UpdateDelivery(ctx context.Context, delivery *models.Delivery, updates map[string]any) error
	UpdateDeliveryLocation(ctx context.Context, deliveryID uuid.UUID, lat, lon float64, at time.Time) error
	ListReadyAwaitingCourier(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// NumberGenerator produces human readable order numbers.
type NumberGenerator interface {
	Next(ctx context.Context, at time.Time) (string, error)
}

// ReadyHook runs after an order commits in READY.
type ReadyHook func(ctx context.Context, orderID uuid.UUID)
