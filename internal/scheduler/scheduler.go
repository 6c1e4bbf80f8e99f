// Package scheduler drives the periodic sweeps. Timing lives here; what a
// sweep actually does lives in the engine.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Engine is the sweep surface the scheduler drives
type Engine interface {
	ProcessScheduledEmails(ctx context.Context) (int, error)
	ProcessRecurringMails(ctx context.Context) (int, error)
}

type Scheduler struct {
	engine   Engine
	interval time.Duration
	logger   *slog.Logger
	wg       sync.WaitGroup
}

func New(engine Engine, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Scheduler{
		engine:   engine,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
	}
}

// Start launches both sweep loops. Each runs once immediately and then on
// every tick until the context is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler starting", "interval", s.interval)

	s.wg.Add(2)
	go s.loop(ctx, "scheduled", s.engine.ProcessScheduledEmails)
	go s.loop(ctx, "recurring", s.engine.ProcessRecurringMails)
}

// Stop blocks until both loops have exited. Cancel the Start context
// first.
func (s *Scheduler) Stop() {
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, kind string, sweep func(context.Context) (int, error)) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.run(ctx, kind, sweep)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx, kind, sweep)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, kind string, sweep func(context.Context) (int, error)) {
	if _, err := sweep(ctx); err != nil {
		s.logger.Error("sweep failed", "kind", kind, "error", err)
	}
}
