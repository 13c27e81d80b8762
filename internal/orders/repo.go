package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/courier-dispatch/pkg/db"
	"github.com/angelmondragon/courier-dispatch/pkg/db/models"
	"github.com/angelmondragon/courier-dispatch/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Items", "Delivery").Create(order).Error
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) CreateDelivery(ctx context.Context, delivery *models.Delivery) error {
	return r.db.WithContext(ctx).Create(delivery).Error
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderDetail(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("created_at ASC") }).
		Preload("Delivery").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindDelivery(ctx context.Context, deliveryID uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := r.db.WithContext(ctx).Where("id = ?", deliveryID).First(&delivery).Error; err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) FindDeliveryByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&delivery).Error; err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) FindRestaurant(ctx context.Context, restaurantID uuid.UUID) (*models.Restaurant, error) {
	var restaurant models.Restaurant
	if err := r.db.WithContext(ctx).Where("id = ?", restaurantID).First(&restaurant).Error; err != nil {
		return nil, err
	}
	return &restaurant, nil
}

// UpdateOrder applies updates only if the row still carries order.Version.
func (r *repository) UpdateOrder(ctx context.Context, order *models.Order, updates map[string]any) error {
	if err := r.updateVersioned(ctx, &models.Order{}, order.ID, order.Version, updates); err != nil {
		return err
	}
	order.Version++
	return nil
}

// UpdateDelivery applies updates only if the row still carries delivery.Version.
func (r *repository) UpdateDelivery(ctx context.Context, delivery *models.Delivery, updates map[string]any) error {
	if err := r.updateVersioned(ctx, &models.Delivery{}, delivery.ID, delivery.Version, updates); err != nil {
		return err
	}
	delivery.Version++
	return nil
}

func (r *repository) updateVersioned(ctx context.Context, model any, id uuid.UUID, version int64, updates map[string]any) error {
	values := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		values[k] = v
	}
	values["version"] = gorm.Expr("version + 1")

	res := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", id, version).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return db.ErrWriteConflict
	}
	return nil
}

// UpdateDeliveryLocation writes the live coordinate without touching version.
func (r *repository) UpdateDeliveryLocation(ctx context.Context, deliveryID uuid.UUID, lat, lon float64, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("id = ?", deliveryID).
		UpdateColumns(map[string]any{
			"last_known_latitude":  lat,
			"last_known_longitude": lon,
			"location_updated_at":  at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListReadyAwaitingCourier returns READY orders whose delivery is still unassigned, oldest first.
func (r *repository) ListReadyAwaitingCourier(ctx context.Context, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Joins("JOIN deliveries ON deliveries.order_id = orders.id").
		Where("orders.status = ?", enums.OrderStatusReady).
		Where("deliveries.status = ? AND deliveries.courier_id IS NULL", enums.DeliveryStatusFindingDriver).
		Order("orders.ready_at ASC").
		Order("orders.id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("orders.id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
