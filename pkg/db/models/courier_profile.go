package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CourierProfile holds a courier's dispatch state. Available is the claim flag
// flipped inside assignment and release transactions.
type CourierProfile struct {
	UserID           uuid.UUID  `gorm:"column:user_id;type:uuid;primaryKey"`
	Online           bool       `gorm:"column:online;not null"`
	Available        bool       `gorm:"column:available;not null"`
	CurrentLatitude  *float64   `gorm:"column:current_latitude"`
	CurrentLongitude *float64   `gorm:"column:current_longitude"`
	TotalDeliveries  int        `gorm:"column:total_deliveries;not null"`
	Version          int64      `gorm:"column:version;not null"`
	LastSeenAt       *time.Time `gorm:"column:last_seen_at"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *CourierProfile) BeforeCreate(*gorm.DB) error {
	if c.Version == 0 {
		c.Version = 1
	}
	return nil
}

// HasLocation reports whether both coordinates are known.
func (c *CourierProfile) HasLocation() bool {
	return c.CurrentLatitude != nil && c.CurrentLongitude != nil
}
