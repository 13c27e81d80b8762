package couriers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/courier-dispatch/pkg/db"
	"github.com/angelmondragon/courier-dispatch/pkg/db/models"
)

// Repository defines persistence operations for courier profiles.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, courierID uuid.UUID) (*models.CourierProfile, error)
	ListAvailable(ctx context.Context) ([]models.CourierProfile, error)
	Create(ctx context.Context, courier *models.CourierProfile) error
	Claim(ctx context.Context, courier *models.CourierProfile) error
	Release(ctx context.Context, courierID uuid.UUID, completed bool) error
	UpdateLocation(ctx context.Context, courierID uuid.UUID, lat, lon float64, at time.Time) error
	UpdatePresence(ctx context.Context, courierID uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a courier repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, courierID uuid.UUID) (*models.CourierProfile, error) {
	var courier models.CourierProfile
	if err := r.db.WithContext(ctx).Where("user_id = ?", courierID).First(&courier).Error; err != nil {
		return nil, err
	}
	return &courier, nil
}

// ListAvailable returns online and available couriers in a stable order.
func (r *repository) ListAvailable(ctx context.Context) ([]models.CourierProfile, error) {
	var couriers []models.CourierProfile
	err := r.db.WithContext(ctx).
		Where("online = ? AND available = ?", true, true).
		Order("created_at ASC").
		Order("user_id ASC").
		Find(&couriers).Error
	if err != nil {
		return nil, err
	}
	return couriers, nil
}

func (r *repository) Create(ctx context.Context, courier *models.CourierProfile) error {
	return r.db.WithContext(ctx).Create(courier).Error
}

// Claim flips available to false if the row still matches the read version and is claimable.
func (r *repository) Claim(ctx context.Context, courier *models.CourierProfile) error {
	res := r.db.WithContext(ctx).
		Model(&models.CourierProfile{}).
		Where("user_id = ? AND version = ? AND online = ? AND available = ?", courier.UserID, courier.Version, true, true).
		Updates(map[string]any{
			"available": false,
			"version":   gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return db.ErrWriteConflict
	}
	courier.Available = false
	courier.Version++
	return nil
}

// Release returns the courier to the pool. completed also bumps the delivery count.
func (r *repository) Release(ctx context.Context, courierID uuid.UUID, completed bool) error {
	updates := map[string]any{
		"available": true,
		"version":   gorm.Expr("version + 1"),
	}
	if completed {
		updates["total_deliveries"] = gorm.Expr("total_deliveries + 1")
	}
	res := r.db.WithContext(ctx).
		Model(&models.CourierProfile{}).
		Where("user_id = ?", courierID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateLocation writes the live coordinate without touching version.
func (r *repository) UpdateLocation(ctx context.Context, courierID uuid.UUID, lat, lon float64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.CourierProfile{}).
		Where("user_id = ?", courierID).
		UpdateColumns(map[string]any{
			"current_latitude":  lat,
			"current_longitude": lon,
			"last_seen_at":      at,
		}).Error
}

func (r *repository) UpdatePresence(ctx context.Context, courierID uuid.UUID, updates map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&models.CourierProfile{}).
		Where("user_id = ?", courierID).
		UpdateColumns(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
