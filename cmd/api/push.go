package main

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/courier-dispatch/internal/notifications"
	"github.com/angelmondragon/courier-dispatch/pkg/config"
	"github.com/angelmondragon/courier-dispatch/pkg/logger"
	"github.com/angelmondragon/courier-dispatch/pkg/pubsub"
	"github.com/angelmondragon/courier-dispatch/pkg/rabbitmq"
)

// newPusher builds the push transport selected by config along with its closer.
func newPusher(ctx context.Context, cfg *config.Config, logg *logger.Logger) (notifications.Pusher, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Push.Kind() {
	case config.PushTransportPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return nil, noop, fmt.Errorf("pubsub client: %w", err)
		}
		pusher, err := notifications.NewPubSubPusher(client, cfg.PubSub.NotificationTopic)
		if err != nil {
			return nil, noop, multierr.Append(err, client.Close())
		}
		return pusher, client.Close, nil
	case config.PushTransportRabbitMQ:
		conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ, logg)
		if err != nil {
			return nil, noop, fmt.Errorf("rabbitmq connect: %w", err)
		}
		pusher, err := notifications.NewAMQPPusher(rabbitmq.NewPublisher(conn, cfg.RabbitMQ.Exchange))
		if err != nil {
			return nil, noop, multierr.Append(err, conn.Close())
		}
		return pusher, conn.Close, nil
	default:
		return notifications.NopPusher{}, noop, nil
	}
}
