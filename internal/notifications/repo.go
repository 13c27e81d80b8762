package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/courier-dispatch/pkg/db/models"
	"github.com/angelmondragon/courier-dispatch/pkg/pagination"
)

// Repository persists notification rows. Every read and write is scoped to
// the recipient.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, filter inboxFilter, cursor *pagination.Cursor, limit int) ([]models.Notification, *pagination.Cursor, error)
	CountUnread(ctx context.Context, filter inboxFilter) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (bool, error)
	MarkAllRead(ctx context.Context, filter inboxFilter, now time.Time) (int64, error)
	Delete(ctx context.Context, userID, notificationID uuid.UUID) (bool, error)
	DeleteReadOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
}

// inboxFilter narrows a recipient's inbox.
type inboxFilter struct {
	UserID     uuid.UUID
	OrderID    *uuid.UUID
	UnreadOnly bool
}

func (f inboxFilter) scope(db *gorm.DB) *gorm.DB {
	db = db.Where("user_id = ?", f.UserID)
	if f.OrderID != nil {
		db = db.Where("order_id = ?", *f.OrderID)
	}
	if f.UnreadOnly {
		db = db.Where("read = ?", false)
	}
	return db
}

func olderThan(cursor *pagination.Cursor) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if cursor == nil {
			return db
		}
		return db.Where("created_at < ? OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository returns a gorm-backed notification repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{db: tx}
}

func (r *gormRepository) inbox(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Notification{})
}

func (r *gormRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *gormRepository) List(ctx context.Context, filter inboxFilter, cursor *pagination.Cursor, limit int) ([]models.Notification, *pagination.Cursor, error) {
	var rows []models.Notification
	err := r.inbox(ctx).
		Scopes(filter.scope, olderThan(cursor)).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}

	page, next := pagination.Trim(rows, limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return page, next, nil
}

func (r *gormRepository) CountUnread(ctx context.Context, filter inboxFilter) (int64, error) {
	filter.UnreadOnly = true
	var count int64
	err := r.inbox(ctx).Scopes(filter.scope).Count(&count).Error
	return count, err
}

// MarkRead reports whether the notification exists for userID. Marking an
// already read row keeps its original read_at.
func (r *gormRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (bool, error) {
	var row models.Notification
	err := r.inbox(ctx).
		Select("id", "read").
		Where("id = ? AND user_id = ?", notificationID, userID).
		Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return false, nil
	case err != nil:
		return false, err
	case row.Read:
		return true, nil
	}

	err = r.inbox(ctx).
		Where("id = ? AND read = ?", notificationID, false).
		UpdateColumns(map[string]any{"read": true, "read_at": now}).Error
	return err == nil, err
}

func (r *gormRepository) MarkAllRead(ctx context.Context, filter inboxFilter, now time.Time) (int64, error) {
	filter.UnreadOnly = true
	result := r.inbox(ctx).
		Scopes(filter.scope).
		UpdateColumns(map[string]any{"read": true, "read_at": now})
	return result.RowsAffected, result.Error
}

func (r *gormRepository) Delete(ctx context.Context, userID, notificationID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Delete(&models.Notification{})
	return result.RowsAffected > 0, result.Error
}

// DeleteReadOlderThan removes up to limit read notifications created before
// cutoff, oldest first. A non-positive limit removes all of them.
func (r *gormRepository) DeleteReadOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) (int64, error) {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	conn = conn.WithContext(ctx)

	expired := conn.Model(&models.Notification{}).Where("read = ? AND created_at < ?", true, cutoff)
	if limit > 0 {
		batch := expired.Select("id").Order("created_at ASC").Limit(limit)
		expired = conn.Where("id IN (?)", batch)
	}
	result := expired.Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}
