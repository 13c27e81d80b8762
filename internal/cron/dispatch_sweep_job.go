package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/courier-dispatch/internal/deliveries"
	pkgerrors "github.com/angelmondragon/courier-dispatch/pkg/errors"
	"github.com/angelmondragon/courier-dispatch/pkg/logger"
)

const defaultSweepBatchSize = 100

type DispatchSweepJobParams struct {
	Logger    *logger.Logger
	Orders    readyOrderLister
	Assigner  autoAssigner
	BatchSize int
}

type readyOrderLister interface {
	ListReadyAwaitingCourier(ctx context.Context, limit int) ([]uuid.UUID, error)
}

type autoAssigner interface {
	AutoAssign(ctx context.Context, orderID uuid.UUID) (*deliveries.AutoAssignResult, error)
}

// NewDispatchSweepJob retries matching for READY orders whose delivery is
// still waiting on a courier, picking up orders that found nobody when they
// first became ready.
func NewDispatchSweepJob(params DispatchSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Assigner == nil {
		return nil, fmt.Errorf("delivery assigner required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatchSize
	}
	return &dispatchSweepJob{
		logg:     params.Logger,
		orders:   params.Orders,
		assigner: params.Assigner,
		batch:    batch,
	}, nil
}

type dispatchSweepJob struct {
	logg     *logger.Logger
	orders   readyOrderLister
	assigner autoAssigner
	batch    int
}

func (j *dispatchSweepJob) Name() string { return "dispatch-sweep" }

func (j *dispatchSweepJob) Run(ctx context.Context) error {
	orderIDs, err := j.orders.ListReadyAwaitingCourier(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("list waiting orders: %w", err)
	}

	var (
		errs       error
		assigned   int
		unassigned int
	)
	for _, orderID := range orderIDs {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		result, err := j.assigner.AutoAssign(ctx, orderID)
		if err != nil {
			// the order moved on between the listing and the attempt
			if pkgerrors.IsCode(err, pkgerrors.CodeOrderNotReady) {
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("auto assign order %s: %w", orderID, err))
			continue
		}
		if result.Assigned {
			assigned++
		} else {
			unassigned++
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(orderIDs),
		"assigned":   assigned,
		"unassigned": unassigned,
		"failed":     len(multierr.Errors(errs)),
	}), "dispatch sweep finished")
	return errs
}
