package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/courier-dispatch/pkg/db/models"
	"github.com/angelmondragon/courier-dispatch/pkg/enums"
)

type fakeTopic struct {
	topic string
	data  []byte
	attrs map[string]string
	err   error
}

func (f *fakeTopic) Publish(_ context.Context, topic string, data []byte, attrs map[string]string) (string, error) {
	f.topic = topic
	f.data = data
	f.attrs = attrs
	return "msg-1", f.err
}

type fakeExchange struct {
	routingKey string
	payload    any
	headers    map[string]any
}

func (f *fakeExchange) PublishJSON(_ context.Context, routingKey string, payload any, headers map[string]any) error {
	f.routingKey = routingKey
	f.payload = payload
	f.headers = headers
	return nil
}

func sampleNotification() models.Notification {
	orderID := uuid.New()
	return models.Notification{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		OrderID:   &orderID,
		Type:      enums.NotificationTypeCourierAssigned,
		Title:     CourierAssigned.Title,
		Message:   CourierAssigned.Message,
		CreatedAt: time.Now().UTC(),
	}
}

func TestPubSubPusherPublishesEnvelope(t *testing.T) {
	topic := &fakeTopic{}
	pusher, err := NewPubSubPusher(topic, "push-topic")
	require.NoError(t, err)

	n := sampleNotification()
	require.NoError(t, pusher.Push(context.Background(), n))

	assert.Equal(t, "push-topic", topic.topic)
	assert.Equal(t, string(enums.NotificationTypeCourierAssigned), topic.attrs["notification_type"])

	var env PushEnvelope
	require.NoError(t, json.Unmarshal(topic.data, &env))
	assert.Equal(t, n.ID, env.NotificationID)
	assert.Equal(t, n.UserID, env.UserID)
	require.NotNil(t, env.OrderID)
	assert.Equal(t, *n.OrderID, *env.OrderID)
}

func TestPubSubPusherPropagatesError(t *testing.T) {
	pusher, err := NewPubSubPusher(&fakeTopic{err: errors.New("unavailable")}, "push-topic")
	require.NoError(t, err)
	assert.Error(t, pusher.Push(context.Background(), sampleNotification()))

	_, err = NewPubSubPusher(nil, "push-topic")
	assert.Error(t, err)
	_, err = NewPubSubPusher(&fakeTopic{}, "")
	assert.Error(t, err)
}

func TestAMQPPusherRoutesByUser(t *testing.T) {
	exchange := &fakeExchange{}
	pusher, err := NewAMQPPusher(exchange)
	require.NoError(t, err)

	n := sampleNotification()
	require.NoError(t, pusher.Push(context.Background(), n))

	assert.Equal(t, n.UserID.String(), exchange.routingKey)
	assert.Equal(t, string(n.Type), exchange.headers["notification_type"])
	env, ok := exchange.payload.(PushEnvelope)
	require.True(t, ok)
	assert.Equal(t, n.ID, env.NotificationID)
}
