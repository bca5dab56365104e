package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bilancio/internal/core"
)

// Runner is the generation engine the scheduler drives.
type Runner interface {
	GenerateDue(ctx context.Context, runDate core.Date) (int, error)
}

// Scheduler fires the recurring transaction generation run once a day at a
// fixed UTC hour, and accepts manual triggers from the API. At most one run
// is in flight at any time: overlapping triggers are skipped, not queued.
type Scheduler struct {
	runner Runner
	hour   int // UTC hour of the daily run

	runMu sync.Mutex // held for the duration of a run

	now func() time.Time

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(runner Runner, hour int) *Scheduler {
	return &Scheduler{
		runner: runner,
		hour:   hour,
		now:    time.Now,
		done:   make(chan struct{}),
	}
}

// Start launches the daily loop. Call Stop to shut it down.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		defer close(s.done)
		for {
			next := s.nextRunTime()
			slog.InfoContext(ctx, "Next scheduled generation run", "at", next.Format(time.RFC3339))

			timer := time.NewTimer(next.Sub(s.now()))
			select {
			case <-ctx.Done():
				timer.Stop()
				slog.InfoContext(ctx, "Scheduler stopped", "reason", ctx.Err())
				return
			case <-timer.C:
				s.runOnce(ctx, core.DateOf(s.now().UTC()))
			}
		}
	}()
}

// Stop cancels the daily loop and waits for it to exit. A run already in
// flight is allowed to finish through its own context.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		<-s.done
	})
}

// Trigger starts a generation run for the given date in the background.
// It returns immediately; the HTTP layer answers 202 on the strength of it.
func (s *Scheduler) Trigger(runDate core.Date) {
	go s.runOnce(context.Background(), runDate)
}

// runOnce executes a single run under the single-flight lock. If a run is
// already in progress the new one is dropped.
func (s *Scheduler) runOnce(ctx context.Context, runDate core.Date) {
	if !s.runMu.TryLock() {
		slog.WarnContext(ctx, "Generation run already in progress, skipping", "run_date", runDate.String())
		return
	}
	defer s.runMu.Unlock()

	count, err := s.runner.GenerateDue(ctx, runDate)
	if err != nil {
		slog.ErrorContext(ctx, "Generation run failed", "error", err, "run_date", runDate.String())
		return
	}
	slog.InfoContext(ctx, "Generation run finished",
		"run_date", runDate.String(),
		"transactions_created", count)
}

// nextRunTime returns the next occurrence of the configured UTC hour.
func (s *Scheduler) nextRunTime() time.Time {
	now := s.now().UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
