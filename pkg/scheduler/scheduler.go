// Package scheduler drives pending transactions forward and persists the
// ledger on a fixed cadence.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// shutdownTimeout bounds the final save after the run context ends.
const shutdownTimeout = 10 * time.Second

// Ledger is the part of the bank service the scheduler drives.
type Ledger interface {
	Tick(ctx context.Context) int
	Save(ctx context.Context) error
}

type Scheduler struct {
	ledger       Ledger
	tickInterval time.Duration
	saveInterval time.Duration
	logger       *slog.Logger
}

// New creates a scheduler. A non-positive interval disables that loop.
func New(l Ledger, tickInterval, saveInterval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		ledger:       l,
		tickInterval: tickInterval,
		saveInterval: saveInterval,
		logger:       logger,
	}
}

// Run ticks and saves until ctx is done, then saves one last time and
// returns the result of that save. Periodic save failures are logged and
// retried on the next interval.
func (s *Scheduler) Run(ctx context.Context) error {
	tick := newTicker(s.tickInterval)
	defer tick.Stop()
	save := newTicker(s.saveInterval)
	defer save.Stop()

	s.logger.Info("Scheduler started", "tick_interval", s.tickInterval, "save_interval", s.saveInterval)
	for {
		select {
		case <-ctx.Done():
			return s.shutdown(ctx)
		case <-tick.C():
			if n := s.ledger.Tick(ctx); n > 0 {
				s.logger.Debug("Transactions advanced", "changes", n)
			}
		case <-save.C():
			if err := s.ledger.Save(ctx); err != nil {
				s.logger.Error("Periodic save failed", "error", err)
			}
		}
	}
}

func (s *Scheduler) shutdown(ctx context.Context) error {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.ledger.Save(saveCtx); err != nil {
		s.logger.Error("Final save failed", "error", err)
		return err
	}
	s.logger.Info("Scheduler stopped")
	return nil
}

// ticker wraps time.Ticker so a disabled loop never fires.
type ticker struct {
	t *time.Ticker
}

func newTicker(d time.Duration) ticker {
	if d <= 0 {
		return ticker{}
	}
	return ticker{t: time.NewTicker(d)}
}

func (t ticker) C() <-chan time.Time {
	if t.t == nil {
		return nil
	}
	return t.t.C
}

func (t ticker) Stop() {
	if t.t != nil {
		t.t.Stop()
	}
}
