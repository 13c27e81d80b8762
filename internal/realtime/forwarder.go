package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/courier-dispatch/pkg/geo"
	"github.com/angelmondragon/courier-dispatch/pkg/logger"
	"github.com/angelmondragon/courier-dispatch/pkg/metrics"
	"github.com/google/uuid"
)

const (
	EventOrderStatus      = "order.status"
	EventDeliveryLocation = "delivery.location"

	defaultChannelPrefix = "dispatch"
)

// Forwarder relays order events to connected clients. Delivery is best-effort.
type Forwarder interface {
	PublishOrderEvent(ctx context.Context, orderID uuid.UUID, status string, payload any)
	PublishLocationEvent(ctx context.Context, orderID uuid.UUID, location geo.Point)
}

// Event is the JSON body published on an order channel.
type Event struct {
	Type       string     `json:"type"`
	OrderID    uuid.UUID  `json:"order_id"`
	Status     string     `json:"status,omitempty"`
	Payload    any        `json:"payload,omitempty"`
	Location   *geo.Point `json:"location,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

type channelPublisher interface {
	Publish(ctx context.Context, channel string, payload any) (int64, error)
}

// RedisForwarder publishes events on per-order Redis channels.
type RedisForwarder struct {
	publisher channelPublisher
	prefix    string
	logg      *logger.Logger
	metrics   *metrics.DispatchMetrics
	now       func() time.Time
}

func NewRedisForwarder(publisher channelPublisher, prefix string, logg *logger.Logger, m *metrics.DispatchMetrics) (*RedisForwarder, error) {
	if publisher == nil {
		return nil, fmt.Errorf("redis publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultChannelPrefix
	}
	return &RedisForwarder{
		publisher: publisher,
		prefix:    prefix,
		logg:      logg,
		metrics:   m,
		now:       time.Now,
	}, nil
}

// Channel returns the channel name clients subscribe to for orderID.
func (f *RedisForwarder) Channel(orderID uuid.UUID) string {
	return fmt.Sprintf("%s:orders:%s", f.prefix, orderID)
}

func (f *RedisForwarder) PublishOrderEvent(ctx context.Context, orderID uuid.UUID, status string, payload any) {
	f.publish(ctx, Event{
		Type:       EventOrderStatus,
		OrderID:    orderID,
		Status:     status,
		Payload:    payload,
		OccurredAt: f.now().UTC(),
	})
}

func (f *RedisForwarder) PublishLocationEvent(ctx context.Context, orderID uuid.UUID, location geo.Point) {
	loc := location
	f.publish(ctx, Event{
		Type:       EventDeliveryLocation,
		OrderID:    orderID,
		Location:   &loc,
		OccurredAt: f.now().UTC(),
	})
}

func (f *RedisForwarder) publish(ctx context.Context, event Event) {
	logCtx := f.logg.WithFields(f.logg.WithOrderID(ctx, event.OrderID), map[string]any{
		"event_type": event.Type,
	})
	body, err := json.Marshal(event)
	if err != nil {
		f.metrics.IncSideEffectFailure("realtime")
		f.logg.Error(logCtx, "failed to encode realtime event", err)
		return
	}
	// zero receivers is normal when nobody is watching the order
	if _, err := f.publisher.Publish(ctx, f.Channel(event.OrderID), body); err != nil {
		f.metrics.IncSideEffectFailure("realtime")
		f.logg.Error(logCtx, "failed to publish realtime event", err)
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) PublishOrderEvent(context.Context, uuid.UUID, string, any) {}
func (Nop) PublishLocationEvent(context.Context, uuid.UUID, geo.Point) {}
