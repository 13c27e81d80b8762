package testutil

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/courier-dispatch/pkg/db"
	"github.com/angelmondragon/courier-dispatch/pkg/db/models"
	"github.com/angelmondragon/courier-dispatch/pkg/enums"
	"github.com/angelmondragon/courier-dispatch/pkg/geo"
)

// OpenDB opens a file-backed SQLite database with the dispatch schema. The pool
// is capped at one connection so concurrent transactions run one after another.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dispatch.db")
	conn, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(
		&models.Restaurant{},
		&models.Order{},
		&models.OrderItem{},
		&models.Delivery{},
		&models.CourierProfile{},
		&models.Notification{},
	); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

// Client wraps conn in the production transaction client.
func Client(conn *gorm.DB) *db.Client {
	return db.NewFromGorm(conn)
}

// CountingTx records how many transactions were opened through it.
type CountingTx struct {
	Runner db.TxRunner
	calls  atomic.Int64
}

func (c *CountingTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	c.calls.Add(1)
	return c.Runner.WithTx(ctx, fn)
}

func (c *CountingTx) Calls() int64 {
	return c.calls.Load()
}

func SeedRestaurant(t *testing.T, conn *gorm.DB, lat, lon float64) *models.Restaurant {
	t.Helper()
	restaurant := &models.Restaurant{
		OwnerUserID: uuid.New(),
		Name:        "Test Kitchen",
		Latitude:    lat,
		Longitude:   lon,
	}
	if err := conn.Create(restaurant).Error; err != nil {
		t.Fatalf("seed restaurant: %v", err)
	}
	return restaurant
}

// SeedCourier creates a courier profile. A nil coordinate leaves the location unknown.
func SeedCourier(t *testing.T, conn *gorm.DB, lat, lon *float64, online, available bool) *models.CourierProfile {
	t.Helper()
	courier := &models.CourierProfile{
		UserID:           uuid.New(),
		Online:           online,
		Available:        available,
		CurrentLatitude:  lat,
		CurrentLongitude: lon,
	}
	if err := conn.Create(courier).Error; err != nil {
		t.Fatalf("seed courier: %v", err)
	}
	// created_at orders the candidate list; keep seeds strictly increasing.
	time.Sleep(2 * time.Millisecond)
	return courier
}

// SeedOrder creates an order in status with its delivery in FINDING_DRIVER.
func SeedOrder(t *testing.T, conn *gorm.DB, restaurant *models.Restaurant, status enums.OrderStatus) (*models.Order, *models.Delivery) {
	t.Helper()
	order := &models.Order{
		OrderNumber:      "FD-TEST-" + uuid.NewString()[:8],
		CustomerID:       uuid.New(),
		RestaurantID:     restaurant.ID,
		Status:           status,
		PaymentStatus:    enums.PaymentStatusPending,
		SubtotalCents:    2500,
		DeliveryFeeCents: 300,
		TotalCents:       2800,
	}
	if err := conn.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	delivery := &models.Delivery{
		OrderID:          order.ID,
		Status:           enums.DeliveryStatusFindingDriver,
		PickupLatitude:   restaurant.Latitude,
		PickupLongitude:  restaurant.Longitude,
		DropoffLatitude:  restaurant.Latitude + 0.01,
		DropoffLongitude: restaurant.Longitude + 0.01,
	}
	if err := conn.Create(delivery).Error; err != nil {
		t.Fatalf("seed delivery: %v", err)
	}
	return order, delivery
}

func Float(v float64) *float64 {
	return &v
}

func ReloadOrder(t *testing.T, conn *gorm.DB, id uuid.UUID) *models.Order {
	t.Helper()
	var order models.Order
	if err := conn.Where("id = ?", id).First(&order).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	return &order
}

func ReloadDelivery(t *testing.T, conn *gorm.DB, id uuid.UUID) *models.Delivery {
	t.Helper()
	var delivery models.Delivery
	if err := conn.Where("id = ?", id).First(&delivery).Error; err != nil {
		t.Fatalf("reload delivery: %v", err)
	}
	return &delivery
}

func ReloadCourier(t *testing.T, conn *gorm.DB, id uuid.UUID) *models.CourierProfile {
	t.Helper()
	var courier models.CourierProfile
	if err := conn.Where("user_id = ?", id).First(&courier).Error; err != nil {
		t.Fatalf("reload courier: %v", err)
	}
	return &courier
}

// Notifications returns the rows addressed to userID, oldest first.
func Notifications(t *testing.T, conn *gorm.DB, userID uuid.UUID) []models.Notification {
	t.Helper()
	var rows []models.Notification
	if err := conn.Where("user_id = ?", userID).Order("created_at ASC").Find(&rows).Error; err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	return rows
}

// Retrier wraps conn in a TxRetrier that does not sleep between attempts.
func Retrier(conn *gorm.DB) *db.TxRetrier {
	return db.NewTxRetrier(Client(conn), db.DefaultRetryPolicy(), db.WithSleep(func(ctx context.Context, _ time.Duration) error {
		return ctx.Err()
	}))
}

type OrderEvent struct {
	OrderID uuid.UUID
	Status  string
	Payload any
}

type LocationEvent struct {
	OrderID  uuid.UUID
	Location geo.Point
}

// RecordingForwarder keeps every realtime event in memory.
type RecordingForwarder struct {
	mu        sync.Mutex
	orders    []OrderEvent
	locations []LocationEvent
}

func (r *RecordingForwarder) PublishOrderEvent(_ context.Context, orderID uuid.UUID, status string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, OrderEvent{OrderID: orderID, Status: status, Payload: payload})
}

func (r *RecordingForwarder) PublishLocationEvent(_ context.Context, orderID uuid.UUID, location geo.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locations = append(r.locations, LocationEvent{OrderID: orderID, Location: location})
}

func (r *RecordingForwarder) OrderEvents() []OrderEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]OrderEvent(nil), r.orders...)
}

func (r *RecordingForwarder) LocationEvents() []LocationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LocationEvent(nil), r.locations...)
}

// AttachCourier puts courier on delivery as if an assignment had committed.
func AttachCourier(t *testing.T, conn *gorm.DB, delivery *models.Delivery, courier *models.CourierProfile) {
	t.Helper()
	now := time.Now().UTC()
	err := conn.Model(&models.Delivery{}).Where("id = ?", delivery.ID).Updates(map[string]any{
		"courier_id":  courier.UserID,
		"status":      enums.DeliveryStatusDriverAssigned,
		"assigned_at": now,
	}).Error
	if err != nil {
		t.Fatalf("attach courier: %v", err)
	}
	if err := conn.Model(&models.CourierProfile{}).Where("user_id = ?", courier.UserID).Update("available", false).Error; err != nil {
		t.Fatalf("claim courier: %v", err)
	}
	id := courier.UserID
	delivery.CourierID = &id
	delivery.Status = enums.DeliveryStatusDriverAssigned
	delivery.AssignedAt = &now
	courier.Available = false
}
