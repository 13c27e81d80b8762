package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/courier-dispatch/pkg/logger"
	"github.com/angelmondragon/courier-dispatch/pkg/metrics"
)

type fakeLock struct {
	held     bool
	acquires int
	releases int
	err      error
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	f.acquires++
	if f.err != nil {
		return false, f.err
	}
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.releases++
	f.held = false
	return nil
}

type testJob struct {
	name  string
	err   error
	runs  int
	onRun func()
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	if t.onRun != nil {
		t.onRun()
	}
	return t.err
}

func TestRunCycleRunsEveryJobDespiteFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	ok := &testJob{name: "dispatch-sweep"}
	failing := &testJob{name: "notification-cleanup", err: errors.New("db gone")}
	lock := &fakeLock{}
	svc, err := NewService(ServiceParams{
		Logger:  logger.Nop(),
		Jobs:    []Job{ok, nil, failing},
		Lock:    lock,
		Metrics: metrics.NewCronJobMetrics(reg),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"dispatch-sweep", "notification-cleanup"}, svc.JobNames())

	require.NoError(t, svc.runCycle(context.Background()))
	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, failing.runs)
	assert.Equal(t, 1, lock.releases)
	assert.False(t, lock.held)

	count, err := testutil.GatherAndCount(reg, "dispatch_cron_job_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	count, err = testutil.GatherAndCount(reg, "dispatch_cron_job_last_success_timestamp_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunCycleSkipsWhenLockHeld(t *testing.T) {
	reg := prometheus.NewRegistry()
	job := &testJob{name: "dispatch-sweep"}
	lock := &fakeLock{held: true}
	svc, err := NewService(ServiceParams{Logger: logger.Nop(), Jobs: []Job{job}, Lock: lock, Metrics: metrics.NewCronJobMetrics(reg)})
	require.NoError(t, err)

	require.NoError(t, svc.runCycle(context.Background()))
	assert.Zero(t, job.runs)
	assert.Zero(t, lock.releases)

	count, err := testutil.GatherAndCount(reg, "dispatch_cron_cycles_skipped_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunCycleReportsLockErrors(t *testing.T) {
	svc, err := NewService(ServiceParams{Logger: logger.Nop(), Lock: &fakeLock{err: errors.New("redis down")}})
	require.NoError(t, err)
	assert.Error(t, svc.runCycle(context.Background()))
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	job := &testJob{name: "dispatch-sweep", onRun: cancel}
	svc, err := NewService(ServiceParams{Logger: logger.Nop(), Jobs: []Job{job}, Lock: &fakeLock{}, Interval: time.Hour})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Run(ctx), context.Canceled)
	assert.Equal(t, 1, job.runs)
}

func TestNewServiceValidates(t *testing.T) {
	_, err := NewService(ServiceParams{Lock: &fakeLock{}})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Logger: logger.Nop()})
	assert.Error(t, err)
}
