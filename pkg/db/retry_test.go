package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/courier-dispatch/pkg/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type passthroughRunner struct {
	calls int
}

func (r *passthroughRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	r.calls++
	return fn(nil)
}

type recordingObserver struct {
	retries   []int
	exhausted int
	outcomes  []string
}

func (o *recordingObserver) ObserveTxRetry(attempt int) { o.retries = append(o.retries, attempt) }
func (o *recordingObserver) ObserveTxExhausted() { o.exhausted++ }
func (o *recordingObserver) ObserveTxDuration(outcome string, _ time.Duration) {
	o.outcomes = append(o.outcomes, outcome)
}

func newTestRetrier(runner TxRunner, waits *[]time.Duration, observer RetryObserver) *TxRetrier {
	return NewTxRetrier(runner, DefaultRetryPolicy(),
		WithSleep(func(_ context.Context, d time.Duration) error {
			*waits = append(*waits, d)
			return nil
		}),
		WithRetryObserver(observer),
	)
}

func TestWithRetry_SucceedsOnThirdAttempt(t *testing.T) {
	runner := &passthroughRunner{}
	observer := &recordingObserver{}
	var waits []time.Duration
	retrier := newTestRetrier(runner, &waits, observer)

	calls := 0
	result, err := WithRetry(context.Background(), retrier, func(tx *gorm.DB) (string, error) {
		calls++
		if calls < 3 {
			return "", ErrWriteConflict
		}
		return "ok", nil
	})

	require.NoError(t, err)
	require.Equal(t, "ok", result)
	require.Equal(t, 3, calls)
	require.Equal(t, 3, runner.calls)
	require.Equal(t, []time.Duration{150 * time.Millisecond, 300 * time.Millisecond}, waits)
	require.Equal(t, []int{1, 2}, observer.retries)
	require.Equal(t, []string{"committed"}, observer.outcomes)
}

func TestWithRetry_ExhaustionReturnsConflict(t *testing.T) {
	runner := &passthroughRunner{}
	observer := &recordingObserver{}
	var waits []time.Duration
	retrier := newTestRetrier(runner, &waits, observer)

	calls := 0
	_, err := WithRetry(context.Background(), retrier, func(tx *gorm.DB) (int, error) {
		calls++
		return 0, fmt.Errorf("update delivery: %w", ErrWriteConflict)
	})

	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
	require.ErrorIs(t, err, ErrWriteConflict)
	require.Equal(t, 3, calls)
	require.Len(t, waits, 2)
	require.Equal(t, 1, observer.exhausted)
	require.Equal(t, []string{"conflict"}, observer.outcomes)
}

func TestWithRetry_NonConflictReturnsImmediately(t *testing.T) {
	runner := &passthroughRunner{}
	var waits []time.Duration
	retrier := newTestRetrier(runner, &waits, nil)

	domainErr := pkgerrors.New(pkgerrors.CodeAlreadyAssigned, "delivery already has a courier")
	calls := 0
	err := retrier.WithTx(context.Background(), func(tx *gorm.DB) error {
		calls++
		return domainErr
	})

	require.ErrorIs(t, err, domainErr)
	require.Equal(t, 1, calls)
	require.Empty(t, waits)
}

func TestWithRetry_PostgresSerializationFailureIsRetried(t *testing.T) {
	runner := &passthroughRunner{}
	var waits []time.Duration
	retrier := newTestRetrier(runner, &waits, nil)

	calls := 0
	err := retrier.WithTx(context.Background(), func(tx *gorm.DB) error {
		calls++
		if calls == 1 {
			return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Equal(t, []time.Duration{150 * time.Millisecond}, waits)
}

func TestWithRetry_StopsWhenContextCancelled(t *testing.T) {
	runner := &passthroughRunner{}
	retrier := NewTxRetrier(runner, RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retrier.WithTx(ctx, func(tx *gorm.DB) error {
		calls++
		return ErrWriteConflict
	})

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestRetryPolicyBackoffIsLinear(t *testing.T) {
	policy := DefaultRetryPolicy()
	require.Equal(t, 150*time.Millisecond, policy.Backoff(1))
	require.Equal(t, 300*time.Millisecond, policy.Backoff(2))
	require.Equal(t, 450*time.Millisecond, policy.Backoff(3))
	require.Equal(t, time.Duration(0), policy.Backoff(0))

	normalized := NewTxRetrier(&passthroughRunner{}, RetryPolicy{}).Policy()
	require.Equal(t, DefaultMaxAttempts, normalized.MaxAttempts)
}

func TestIsWriteConflict(t *testing.T) {
	require.True(t, IsWriteConflict(ErrWriteConflict))
	require.True(t, IsWriteConflict(fmt.Errorf("wrapped: %w", ErrWriteConflict)))
	require.True(t, IsWriteConflict(&pgconn.PgError{Code: "40P01"}))
	require.False(t, IsWriteConflict(&pgconn.PgError{Code: "23505"}))
	require.False(t, IsWriteConflict(errors.New("boom")))
	require.False(t, IsWriteConflict(nil))
}
