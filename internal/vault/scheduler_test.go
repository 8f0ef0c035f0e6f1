package vault

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSyncer struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (c *countingSyncer) Sync(ctx context.Context) error {
	c.calls.Add(1)

	if c.started != nil {
		c.started <- struct{}{}
	}

	if c.release != nil {
		select {
		case <-c.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

func startScheduler(t *testing.T, syncer Syncer, cfg SchedulerConfig) *Scheduler {
	t.Helper()

	sched := NewScheduler(syncer, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = sched.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	return sched
}

func TestSchedulerDebounceCoalesces(t *testing.T) {
	syncer := &countingSyncer{}
	sched := startScheduler(t, syncer, SchedulerConfig{Debounce: 30 * time.Millisecond, PollInterval: time.Hour})

	for i := 0; i < 5; i++ {
		sched.Trigger(TriggerMutation)
	}

	require.Eventually(t, func() bool {
		return syncer.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	// No further triggers arrive; the burst produced exactly one pass.
	time.Sleep(3 * 30 * time.Millisecond)
	assert.Equal(t, int32(1), syncer.calls.Load())
}

func TestSchedulerRemoteTriggerResetsDebounce(t *testing.T) {
	syncer := &countingSyncer{}
	sched := startScheduler(t, syncer, SchedulerConfig{Debounce: 50 * time.Millisecond, PollInterval: time.Hour})

	sched.Trigger(TriggerMutation)
	time.Sleep(20 * time.Millisecond)
	sched.Trigger(TriggerRemote)

	require.Eventually(t, func() bool {
		return syncer.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSchedulerVisibleBypassesDebounce(t *testing.T) {
	syncer := &countingSyncer{}
	sched := startScheduler(t, syncer, SchedulerConfig{Debounce: time.Hour, PollInterval: time.Hour})

	sched.Trigger(TriggerVisible)

	require.Eventually(t, func() bool {
		return syncer.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSchedulerDropsTriggerWhilePassRuns(t *testing.T) {
	syncer := &countingSyncer{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	sched := startScheduler(t, syncer, SchedulerConfig{Debounce: time.Hour, PollInterval: time.Hour})

	sched.Trigger(TriggerVisible)
	<-syncer.started

	// A pass is in flight; this request is dropped, not queued.
	sched.Trigger(TriggerVisible)
	time.Sleep(20 * time.Millisecond)

	close(syncer.release)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, int32(1), syncer.calls.Load())
}

func TestSchedulerPollGatedOnVisibility(t *testing.T) {
	syncer := &countingSyncer{}
	sched := startScheduler(t, syncer, SchedulerConfig{Debounce: 5 * time.Millisecond, PollInterval: 15 * time.Millisecond})

	sched.SetVisible(false)
	time.Sleep(5 * 15 * time.Millisecond)
	assert.Zero(t, syncer.calls.Load())

	// Surfacing requests an immediate pass.
	sched.SetVisible(true)

	require.Eventually(t, func() bool {
		return syncer.calls.Load() >= 1
	}, time.Second, 5*time.Millisecond)
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	sched := NewScheduler(&countingSyncer{}, SchedulerConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sched.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
