package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	declared   []string
	published  []amqp.Publishing
	keys       []string
	closed     bool
	publishErr error
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.declared = append(f.declared, name+":"+kind)
	return nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

type fakeConnection struct {
	ch  *fakeChannel
	err error
}

func (f *fakeConnection) Channel() (Channel, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ch, nil
}

func (f *fakeConnection) Close() error   { return nil }
func (f *fakeConnection) IsClosed() bool { return false }

func TestPublishJSONDeclaresFanoutAndPublishes(t *testing.T) {
	ch := &fakeChannel{}
	pub := NewPublisher(&fakeConnection{ch: ch}, "notifications_fanout")

	err := pub.PublishJSON(context.Background(), "ORDER_READY", map[string]string{"title": "Ready"}, map[string]any{"user_id": "u-1"})
	require.NoError(t, err)

	require.Equal(t, []string{"notifications_fanout:fanout"}, ch.declared)
	require.Equal(t, []string{"ORDER_READY"}, ch.keys)
	require.Len(t, ch.published, 1)
	require.Equal(t, "application/json", ch.published[0].ContentType)
	require.Equal(t, "u-1", ch.published[0].Headers["user_id"])

	var body map[string]string
	require.NoError(t, json.Unmarshal(ch.published[0].Body, &body))
	require.Equal(t, "Ready", body["title"])
	require.True(t, ch.closed)
}

func TestPublishJSONPropagatesErrors(t *testing.T) {
	pub := NewPublisher(&fakeConnection{err: errors.New("dial")}, "x")
	require.Error(t, pub.PublishJSON(context.Background(), "", struct{}{}, nil))

	ch := &fakeChannel{publishErr: errors.New("nack")}
	pub = NewPublisher(&fakeConnection{ch: ch}, "x")
	require.Error(t, pub.PublishJSON(context.Background(), "", struct{}{}, nil))
	require.True(t, ch.closed)

	var nilPub *Publisher
	require.Error(t, nilPub.PublishJSON(context.Background(), "", struct{}{}, nil))
}
