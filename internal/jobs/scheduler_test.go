package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_AddValidates(t *testing.T) {
	s := NewScheduler()
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Add(Job{Name: "reconcile", Schedule: "@every 15m", Run: noop}))
	assert.Error(t, s.Add(Job{Name: "reconcile", Schedule: "@every 1m", Run: noop}))
	assert.Error(t, s.Add(Job{Name: "bad", Schedule: "every now and then", Run: noop}))
	assert.Error(t, s.Add(Job{Name: "empty", Schedule: "@every 1m"}))
}

func TestScheduler_RunOnceAppliesTimeout(t *testing.T) {
	s := NewScheduler()

	var sawDeadline atomic.Bool
	s.runOnce(Job{
		Name:    "slow",
		Timeout: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			sawDeadline.Store(ok)
			<-ctx.Done()
			return ctx.Err()
		},
	})
	assert.True(t, sawDeadline.Load())
}

func TestScheduler_StopCancelsJobs(t *testing.T) {
	s := NewScheduler()

	var runs atomic.Int32
	require.NoError(t, s.Add(Job{
		Name:     "tick",
		Schedule: "@every 1s",
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return errors.New("ignored")
		},
	}))

	s.Start()
	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()

	assert.ErrorIs(t, s.ctx.Err(), context.Canceled)
}
