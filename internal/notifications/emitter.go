package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/courier-dispatch/pkg/db/models"
	"github.com/angelmondragon/courier-dispatch/pkg/logger"
	"github.com/angelmondragon/courier-dispatch/pkg/metrics"
	"github.com/google/uuid"
)

const defaultAsyncTimeout = 10 * time.Second

// Notifier records a notification for a user. It never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, msg Message)
}

// Emitter stores the notification row and then forwards it to the push transport.
type Emitter struct {
	repo    Repository
	pusher  Pusher
	logg    *logger.Logger
	metrics *metrics.DispatchMetrics
	async   bool
	timeout time.Duration

	mu       sync.Mutex
	draining bool
	inflight sync.WaitGroup
}

type EmitterOption func(*Emitter)

// WithAsync detaches delivery from the caller's goroutine and context.
func WithAsync(timeout time.Duration) EmitterOption {
	return func(e *Emitter) {
		e.async = true
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

func WithMetrics(m *metrics.DispatchMetrics) EmitterOption {
	return func(e *Emitter) { e.metrics = m }
}

func NewEmitter(repo Repository, pusher Pusher, logg *logger.Logger, opts ...EmitterOption) (*Emitter, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if pusher == nil {
		pusher = NopPusher{}
	}
	e := &Emitter{repo: repo, pusher: pusher, logg: logg, timeout: defaultAsyncTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Emitter) Notify(ctx context.Context, userID uuid.UUID, msg Message) {
	if !e.async {
		e.deliver(ctx, userID, msg)
		return
	}
	e.mu.Lock()
	if e.draining {
		e.mu.Unlock()
		e.deliver(ctx, userID, msg)
		return
	}
	e.inflight.Add(1)
	e.mu.Unlock()

	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	go func() {
		defer e.inflight.Done()
		defer cancel()
		e.deliver(detached, userID, msg)
	}()
}

// Drain waits for in-flight async deliveries. Notifications arriving after
// Drain is called are delivered on the caller's goroutine.
func (e *Emitter) Drain(ctx context.Context) error {
	e.mu.Lock()
	e.draining = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain notifications: %w", ctx.Err())
	}
}

func (e *Emitter) deliver(ctx context.Context, userID uuid.UUID, msg Message) {
	logCtx := e.logg.WithFields(ctx, map[string]any{
		"user_id":           userID.String(),
		"notification_type": string(msg.Type),
	})
	if msg.OrderID != nil {
		logCtx = e.logg.WithOrderID(logCtx, *msg.OrderID)
	}
	if userID == uuid.Nil {
		e.logg.Warn(logCtx, "notification dropped: missing recipient")
		return
	}

	row := models.Notification{
		UserID:  userID,
		OrderID: msg.OrderID,
		Type:    msg.Type,
		Title:   msg.Title,
		Message: msg.Message,
	}
	if err := e.repo.Create(ctx, &row); err != nil {
		e.metrics.IncSideEffectFailure("notification_store")
		e.logg.Error(logCtx, "failed to store notification", err)
		return
	}
	if err := e.pusher.Push(ctx, row); err != nil {
		e.metrics.IncSideEffectFailure("notification_push")
		e.logg.Error(e.logg.WithField(logCtx, "notification_id", row.ID.String()), "failed to push notification", err)
	}
}
