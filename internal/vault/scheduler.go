package vault

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Trigger identifies what requested a reconciliation pass. Triggers
// coalesce: any number arriving within the debounce window produce one
// pass.
type Trigger int

const (
	// TriggerMutation fires after a local mutation commits.
	TriggerMutation Trigger = iota

	// TriggerRemote fires when the notify channel signals a change made by
	// another session or user.
	TriggerRemote

	// TriggerPoll fires on the periodic safety-net interval.
	TriggerPoll

	// TriggerVisible fires when the client surfaces, bypassing the
	// debounce window.
	TriggerVisible
)

func (t Trigger) String() string {
	switch t {
	case TriggerMutation:
		return "mutation"
	case TriggerRemote:
		return "remote"
	case TriggerPoll:
		return "poll"
	case TriggerVisible:
		return "visible"
	default:
		return "unknown"
	}
}

// Syncer runs one reconciliation pass.
type Syncer interface {
	Sync(ctx context.Context) error
}

const (
	defaultDebounce = 300 * time.Millisecond
	defaultPoll     = 60 * time.Second

	// triggerBuffer bounds the trigger channel. A full channel means a
	// pass is already pending, so further triggers carry no information
	// and are dropped.
	triggerBuffer = 16
)

// SchedulerConfig tunes a Scheduler. Zero values take the defaults.
type SchedulerConfig struct {
	Debounce     time.Duration
	PollInterval time.Duration
}

// Scheduler serializes reconciliation passes. Triggers from mutations,
// remote signals, and the poll ticker are debounced into a single pass;
// a trigger arriving while a pass is running is dropped, not queued,
// because a pass always reads the full authoritative state. Polling is
// gated on visibility so a backgrounded client stays quiet.
type Scheduler struct {
	syncer   Syncer
	logger   *slog.Logger
	debounce time.Duration
	poll     time.Duration

	triggers chan Trigger
	visible  atomic.Bool
	running  atomic.Bool
}

// NewScheduler creates a Scheduler driving the given Syncer. The client
// starts visible.
func NewScheduler(syncer Syncer, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPoll
	}

	s := &Scheduler{
		syncer:   syncer,
		logger:   logger,
		debounce: cfg.Debounce,
		poll:     cfg.PollInterval,
		triggers: make(chan Trigger, triggerBuffer),
	}
	s.visible.Store(true)

	return s
}

// Trigger requests a reconciliation pass. Never blocks; a full trigger
// channel already guarantees a pending pass.
func (s *Scheduler) Trigger(t Trigger) {
	select {
	case s.triggers <- t:
	default:
	}
}

// SetVisible records whether the client is surfaced. Becoming visible
// requests an immediate pass so the view catches up at once instead of
// waiting out the poll interval.
func (s *Scheduler) SetVisible(visible bool) {
	was := s.visible.Swap(visible)
	if visible && !was {
		s.Trigger(TriggerVisible)
	}
}

// Run drives the scheduler until ctx is cancelled. Passes execute on a
// separate goroutine so a slow pass never blocks trigger intake; the
// single-flight guard drops overlapping requests.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	debounce := time.NewTimer(s.debounce)
	if !debounce.Stop() {
		<-debounce.C
	}

	armed := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case t := <-s.triggers:
			s.logger.Debug("sync trigger", slog.String("trigger", t.String()))

			if t == TriggerVisible {
				if armed {
					if !debounce.Stop() {
						<-debounce.C
					}

					armed = false
				}

				s.runPass(ctx, t)

				continue
			}

			if armed && !debounce.Stop() {
				<-debounce.C
			}

			debounce.Reset(s.debounce)
			armed = true

		case <-ticker.C:
			if !s.visible.Load() {
				continue
			}

			s.Trigger(TriggerPoll)

		case <-debounce.C:
			armed = false
			s.runPass(ctx, TriggerMutation)
		}
	}
}

func (s *Scheduler) runPass(ctx context.Context, t Trigger) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug("dropping sync trigger, pass in flight",
			slog.String("trigger", t.String()),
		)

		return
	}

	go func() {
		defer s.running.Store(false)

		start := time.Now()

		if err := s.syncer.Sync(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}

			s.logger.Error("reconciliation pass failed",
				slog.String("trigger", t.String()),
				slog.String("error", err.Error()),
			)

			return
		}

		s.logger.Debug("reconciliation pass finished",
			slog.String("trigger", t.String()),
			slog.Duration("duration", time.Since(start)),
		)
	}()
}
