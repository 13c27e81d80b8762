package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/courier-dispatch/internal/deliveries"
	pkgerrors "github.com/angelmondragon/courier-dispatch/pkg/errors"
	"github.com/angelmondragon/courier-dispatch/pkg/logger"
)

type fakeLister struct {
	ids   []uuid.UUID
	limit int
	err   error
}

func (f *fakeLister) ListReadyAwaitingCourier(_ context.Context, limit int) ([]uuid.UUID, error) {
	f.limit = limit
	return f.ids, f.err
}

type scriptedAssigner struct {
	results map[uuid.UUID]*deliveries.AutoAssignResult
	errs    map[uuid.UUID]error
	calls   []uuid.UUID
}

func (s *scriptedAssigner) AutoAssign(_ context.Context, orderID uuid.UUID) (*deliveries.AutoAssignResult, error) {
	s.calls = append(s.calls, orderID)
	if err := s.errs[orderID]; err != nil {
		return nil, err
	}
	if result, ok := s.results[orderID]; ok {
		return result, nil
	}
	return &deliveries.AutoAssignResult{Reason: deliveries.ReasonNoCourier}, nil
}

func TestDispatchSweepAttemptsEveryOrder(t *testing.T) {
	assignedID, idleID, raced, broken := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	lister := &fakeLister{ids: []uuid.UUID{assignedID, idleID, raced, broken}}
	assigner := &scriptedAssigner{
		results: map[uuid.UUID]*deliveries.AutoAssignResult{assignedID: {Assigned: true}},
		errs: map[uuid.UUID]error{
			raced:  pkgerrors.New(pkgerrors.CodeOrderNotReady, "order is not ready for pickup"),
			broken: pkgerrors.New(pkgerrors.CodeDependency, "load delivery"),
		},
	}
	job, err := NewDispatchSweepJob(DispatchSweepJobParams{Logger: logger.Nop(), Orders: lister, Assigner: assigner})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
	assert.Contains(t, err.Error(), broken.String())
	assert.Equal(t, []uuid.UUID{assignedID, idleID, raced, broken}, assigner.calls)
	assert.Equal(t, defaultSweepBatchSize, lister.limit)
}

func TestDispatchSweepListFailure(t *testing.T) {
	assigner := &scriptedAssigner{}
	job, err := NewDispatchSweepJob(DispatchSweepJobParams{
		Logger:    logger.Nop(),
		Orders:    &fakeLister{err: errors.New("timeout")},
		Assigner:  assigner,
		BatchSize: 5,
	})
	require.NoError(t, err)
	assert.Error(t, job.Run(context.Background()))
	assert.Empty(t, assigner.calls)
}

func TestDispatchSweepNothingWaiting(t *testing.T) {
	job, err := NewDispatchSweepJob(DispatchSweepJobParams{Logger: logger.Nop(), Orders: &fakeLister{}, Assigner: &scriptedAssigner{}})
	require.NoError(t, err)
	assert.NoError(t, job.Run(context.Background()))
	assert.Equal(t, "dispatch-sweep", job.Name())
}
