package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bilancio/internal/core"
)

type blockingRunner struct {
	started chan struct{}
	release chan struct{}
	runs    int64
}

func (r *blockingRunner) GenerateDue(ctx context.Context, runDate core.Date) (int, error) {
	atomic.AddInt64(&r.runs, 1)
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	return 0, nil
}

func TestRunOnceSingleFlight(t *testing.T) {
	runner := &blockingRunner{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	s := New(runner, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runOnce(context.Background(), core.NewDate(2024, 3, 15))
	}()
	<-runner.started

	// While the first run holds the lock, further attempts must be dropped.
	s.runOnce(context.Background(), core.NewDate(2024, 3, 15))
	s.runOnce(context.Background(), core.NewDate(2024, 3, 15))

	close(runner.release)
	wg.Wait()

	if got := atomic.LoadInt64(&runner.runs); got != 1 {
		t.Errorf("runner invoked %d times, want 1", got)
	}
}

func TestTriggerRunsInBackground(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}, 1)}
	s := New(runner, 1)

	s.Trigger(core.NewDate(2024, 3, 15))

	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("triggered run never started")
	}
}

func TestNextRunTime(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		hour int
		want time.Time
	}{
		{
			name: "before the hour runs today",
			now:  time.Date(2024, 3, 15, 0, 30, 0, 0, time.UTC),
			hour: 1,
			want: time.Date(2024, 3, 15, 1, 0, 0, 0, time.UTC),
		},
		{
			name: "after the hour runs tomorrow",
			now:  time.Date(2024, 3, 15, 2, 0, 0, 0, time.UTC),
			hour: 1,
			want: time.Date(2024, 3, 16, 1, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly on the hour runs tomorrow",
			now:  time.Date(2024, 3, 15, 1, 0, 0, 0, time.UTC),
			hour: 1,
			want: time.Date(2024, 3, 16, 1, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&blockingRunner{}, tt.hour)
			s.now = func() time.Time { return tt.now }

			if got := s.nextRunTime(); !got.Equal(tt.want) {
				t.Errorf("nextRunTime() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStartStop(t *testing.T) {
	s := New(&blockingRunner{}, 1)
	s.Start(context.Background())
	s.Stop()

	// Stop is idempotent.
	s.Stop()
}
