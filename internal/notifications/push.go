package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/courier-dispatch/pkg/db/models"
	"github.com/angelmondragon/courier-dispatch/pkg/enums"
	"github.com/google/uuid"
)

// Pusher forwards a stored notification to a push-delivery transport.
type Pusher interface {
	Push(ctx context.Context, notification models.Notification) error
}

// PushEnvelope is the payload handed to push transports.
type PushEnvelope struct {
	NotificationID uuid.UUID              `json:"notification_id"`
	UserID         uuid.UUID              `json:"user_id"`
	OrderID        *uuid.UUID             `json:"order_id,omitempty"`
	Type           enums.NotificationType `json:"type"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	CreatedAt      time.Time              `json:"created_at"`
}

func envelopeFor(n models.Notification) PushEnvelope {
	return PushEnvelope{
		NotificationID: n.ID,
		UserID:         n.UserID,
		OrderID:        n.OrderID,
		Type:           n.Type,
		Title:          n.Title,
		Message:        n.Message,
		CreatedAt:      n.CreatedAt,
	}
}

type topicPublisher interface {
	Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
}

// PubSubPusher publishes envelopes to a Google Cloud Pub/Sub topic.
type PubSubPusher struct {
	client topicPublisher
	topic  string
}

func NewPubSubPusher(client topicPublisher, topic string) (*PubSubPusher, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client required")
	}
	if topic == "" {
		return nil, fmt.Errorf("pubsub topic required")
	}
	return &PubSubPusher{client: client, topic: topic}, nil
}

func (p *PubSubPusher) Push(ctx context.Context, notification models.Notification) error {
	data, err := json.Marshal(envelopeFor(notification))
	if err != nil {
		return fmt.Errorf("marshal push envelope: %w", err)
	}
	attrs := map[string]string{
		"notification_type": string(notification.Type),
		"user_id":           notification.UserID.String(),
	}
	if _, err := p.client.Publish(ctx, p.topic, data, attrs); err != nil {
		return err
	}
	return nil
}

type jsonPublisher interface {
	PublishJSON(ctx context.Context, routingKey string, payload any, headers map[string]any) error
}

// AMQPPusher publishes envelopes to a RabbitMQ exchange.
type AMQPPusher struct {
	publisher jsonPublisher
}

func NewAMQPPusher(publisher jsonPublisher) (*AMQPPusher, error) {
	if publisher == nil {
		return nil, fmt.Errorf("amqp publisher required")
	}
	return &AMQPPusher{publisher: publisher}, nil
}

func (p *AMQPPusher) Push(ctx context.Context, notification models.Notification) error {
	headers := map[string]any{
		"notification_type": string(notification.Type),
	}
	return p.publisher.PublishJSON(ctx, notification.UserID.String(), envelopeFor(notification), headers)
}

// NopPusher drops every notification.
type NopPusher struct{}

func (NopPusher) Push(context.Context, models.Notification) error { return nil }
