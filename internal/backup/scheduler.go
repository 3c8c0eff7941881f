package backup

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler triggers the runner on a fixed interval. Each run only backs up
// the schedules that are due, so the interval bounds how late a backup can be.
type Scheduler struct {
	mu       sync.Mutex
	runner   *Runner
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(runner *Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
	}
}

// Serve runs until ctx is cancelled.
func (s *Scheduler) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.runner.Run(ctx); err != nil {
				s.logger.Error("scheduled backup run", "error", err)
			}
		}
	}
}

// Start runs Serve in the background.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.Serve(ctx)
	}()
}

// Stop cancels a started scheduler and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) String() string { return "backup-scheduler" }
