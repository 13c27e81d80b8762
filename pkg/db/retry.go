package db

import (
	"context"
	"time"

	pkgerrors "github.com/angelmondragon/courier-dispatch/pkg/errors"
	"github.com/angelmondragon/courier-dispatch/pkg/logger"
	"gorm.io/gorm"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseBackoff = 150 * time.Millisecond
)

// TxRunner is satisfied by *Client and by *TxRetrier.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RetryPolicy bounds the retry loop. Backoff grows linearly with the attempt number.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, BaseBackoff: DefaultBaseBackoff}
}

// Backoff returns the wait that follows the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 || p.BaseBackoff <= 0 {
		return 0
	}
	return p.BaseBackoff * time.Duration(attempt)
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseBackoff < 0 {
		p.BaseBackoff = 0
	}
	return p
}

// RetryObserver receives retry telemetry.
type RetryObserver interface {
	ObserveTxRetry(attempt int)
	ObserveTxExhausted()
	ObserveTxDuration(outcome string, d time.Duration)
}

// TxRetrier runs transactions and replays them on write conflicts.
type TxRetrier struct {
	runner   TxRunner
	policy   RetryPolicy
	sleep    func(ctx context.Context, d time.Duration) error
	logg     *logger.Logger
	observer RetryObserver
}

type RetrierOption func(*TxRetrier)

// WithSleep replaces the backoff sleeper. Tests use it to record waits.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) RetrierOption {
	return func(r *TxRetrier) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

func WithRetryLogger(logg *logger.Logger) RetrierOption {
	return func(r *TxRetrier) { r.logg = logg }
}

func WithRetryObserver(observer RetryObserver) RetrierOption {
	return func(r *TxRetrier) { r.observer = observer }
}

func NewTxRetrier(runner TxRunner, policy RetryPolicy, opts ...RetrierOption) *TxRetrier {
	r := &TxRetrier{
		runner: runner,
		policy: policy.normalized(),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *TxRetrier) Policy() RetryPolicy {
	return r.policy
}

// WithTx satisfies TxRunner so services can take a retrier wherever they take a client.
func (r *TxRetrier) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	_, err := WithRetry(ctx, r, func(tx *gorm.DB) (struct{}, error) {
		return struct{}{}, fn(tx)
	})
	return err
}

// WithRetry executes fn in a transaction up to MaxAttempts times. Only write
// conflicts are retried; any other error is returned as is. When every attempt
// conflicts the last conflict is returned wrapped as CodeConflict.
func WithRetry[T any](ctx context.Context, r *TxRetrier, fn func(tx *gorm.DB) (T, error)) (T, error) {
	var zero T
	var lastErr error
	started := time.Now()

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		var result T
		err := r.runner.WithTx(ctx, func(tx *gorm.DB) error {
			out, err := fn(tx)
			if err != nil {
				return err
			}
			result = out
			return nil
		})
		if err == nil {
			r.observeDuration("committed", started)
			return result, nil
		}
		if !IsWriteConflict(err) {
			r.observeDuration("failed", started)
			return zero, err
		}

		lastErr = err
		if attempt == r.policy.MaxAttempts {
			break
		}

		wait := r.policy.Backoff(attempt)
		if r.logg != nil {
			logCtx := r.logg.WithFields(ctx, map[string]any{"attempt": attempt, "backoff_ms": wait.Milliseconds()})
			r.logg.Warn(logCtx, "write conflict, retrying transaction")
		}
		if r.observer != nil {
			r.observer.ObserveTxRetry(attempt)
		}
		if err := r.sleep(ctx, wait); err != nil {
			r.observeDuration("failed", started)
			return zero, err
		}
	}

	if r.observer != nil {
		r.observer.ObserveTxExhausted()
	}
	r.observeDuration("conflict", started)
	return zero, pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr, "transaction retries exhausted")
}

func (r *TxRetrier) observeDuration(outcome string, started time.Time) {
	if r.observer != nil {
		r.observer.ObserveTxDuration(outcome, time.Since(started))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
