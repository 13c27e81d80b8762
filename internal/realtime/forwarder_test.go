package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/courier-dispatch/pkg/geo"
	"github.com/angelmondragon/courier-dispatch/pkg/logger"
	"github.com/angelmondragon/courier-dispatch/pkg/metrics"
)

type published struct {
	channel string
	body    []byte
}

type fakePublisher struct {
	messages  []published
	receivers int64
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, payload any) (int64, error) {
	body, _ := payload.([]byte)
	f.messages = append(f.messages, published{channel: channel, body: body})
	return f.receivers, f.err
}

func newTestForwarder(t *testing.T, pub channelPublisher, m *metrics.DispatchMetrics) *RedisForwarder {
	t.Helper()
	fwd, err := NewRedisForwarder(pub, "dispatch:", logger.Nop(), m)
	require.NoError(t, err)
	fixed := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	fwd.now = func() time.Time { return fixed }
	return fwd
}

func TestPublishOrderEventUsesOrderChannel(t *testing.T) {
	pub := &fakePublisher{}
	fwd := newTestForwarder(t, pub, nil)
	orderID := uuid.New()

	fwd.PublishOrderEvent(context.Background(), orderID, "READY", map[string]string{"delivery_status": "FINDING_DRIVER"})

	require.Len(t, pub.messages, 1)
	assert.Equal(t, "dispatch:orders:"+orderID.String(), pub.messages[0].channel)

	var event map[string]any
	require.NoError(t, json.Unmarshal(pub.messages[0].body, &event))
	assert.Equal(t, EventOrderStatus, event["type"])
	assert.Equal(t, "READY", event["status"])
	assert.Equal(t, orderID.String(), event["order_id"])
	assert.NotContains(t, event, "location")
}

func TestPublishLocationEventCarriesPoint(t *testing.T) {
	pub := &fakePublisher{}
	fwd := newTestForwarder(t, pub, nil)
	orderID := uuid.New()

	fwd.PublishLocationEvent(context.Background(), orderID, geo.Point{Lat: 19.43, Lon: -99.13})

	require.Len(t, pub.messages, 1)
	var event Event
	require.NoError(t, json.Unmarshal(pub.messages[0].body, &event))
	assert.Equal(t, EventDeliveryLocation, event.Type)
	require.NotNil(t, event.Location)
	assert.InDelta(t, 19.43, event.Location.Lat, 1e-9)
	assert.InDelta(t, -99.13, event.Location.Lon, 1e-9)
}

func TestPublishFailureIsCountedNotReturned(t *testing.T) {
	reg := prometheus.NewRegistry()
	pub := &fakePublisher{err: errors.New("connection refused")}
	fwd := newTestForwarder(t, pub, metrics.NewDispatchMetrics(reg))

	fwd.PublishOrderEvent(context.Background(), uuid.New(), "DELIVERED", nil)

	count, err := testutil.GatherAndCount(reg, "dispatch_side_effect_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewRedisForwarderDefaults(t *testing.T) {
	fwd, err := NewRedisForwarder(&fakePublisher{}, "  ", logger.Nop(), nil)
	require.NoError(t, err)
	id := uuid.New()
	assert.Equal(t, "dispatch:orders:"+id.String(), fwd.Channel(id))

	_, err = NewRedisForwarder(nil, "x", logger.Nop(), nil)
	assert.Error(t, err)
}
