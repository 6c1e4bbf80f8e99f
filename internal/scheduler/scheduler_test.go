package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type countingEngine struct {
	scheduled atomic.Int64
	recurring atomic.Int64
}

func (e *countingEngine) ProcessScheduledEmails(ctx context.Context) (int, error) {
	e.scheduled.Add(1)
	return 0, nil
}

func (e *countingEngine) ProcessRecurringMails(ctx context.Context) (int, error) {
	e.recurring.Add(1)
	return 0, nil
}

func TestSchedulerRunsBothSweeps(t *testing.T) {
	engine := &countingEngine{}
	s := New(engine, 10*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	deadline := time.After(2 * time.Second)
	for engine.scheduled.Load() < 3 || engine.recurring.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("sweeps did not run: scheduled=%d recurring=%d",
				engine.scheduled.Load(), engine.recurring.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	s.Stop()

	// No more runs after Stop returns.
	scheduled, recurring := engine.scheduled.Load(), engine.recurring.Load()
	time.Sleep(30 * time.Millisecond)
	if engine.scheduled.Load() != scheduled || engine.recurring.Load() != recurring {
		t.Fatal("sweeps ran after Stop")
	}
}

func TestSchedulerDefaultInterval(t *testing.T) {
	s := New(&countingEngine{}, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if s.interval != 15*time.Second {
		t.Fatalf("expected default interval 15s, got %v", s.interval)
	}
}
