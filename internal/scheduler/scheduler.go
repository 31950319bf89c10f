// Package scheduler drives the periodic work: the inactivity passes, the
// notification queue drain, and the share-link expiry sweep.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mgriffe/keepsake/internal/legacy"
	"github.com/mgriffe/keepsake/internal/middleware"
	"github.com/mgriffe/keepsake/internal/notify"
	"github.com/mgriffe/keepsake/internal/share"
)

// Scheduler owns a single loop so the passes never overlap: a tick that
// runs long simply delays the next one, which keeps the idempotency
// markers the only defense against duplicates rather than the first.
type Scheduler struct {
	mu     sync.RWMutex
	cancel context.CancelFunc
	done   chan struct{}

	monitor *legacy.Monitor
	worker  *notify.Worker
	shares  *share.Service
	limiter *middleware.RateLimiter

	interval      time.Duration
	sweepInterval time.Duration
	lastSweep     time.Time
	logger        *slog.Logger
}

func New(
	monitor *legacy.Monitor,
	worker *notify.Worker,
	shares *share.Service,
	limiter *middleware.RateLimiter,
	interval, sweepInterval time.Duration,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		monitor:       monitor,
		worker:        worker,
		shares:        shares,
		limiter:       limiter,
		interval:      interval,
		sweepInterval: sweepInterval,
		logger:        logger,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// RunOnce executes one full cycle immediately. The CLI's one-shot monitor
// command uses this; the loop uses the same path on every tick.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.tick(ctx)
	s.sweep()
}

func (s *Scheduler) tick(ctx context.Context) {
	// Warnings before transitions: an account crossing both boundaries in
	// one tick still gets its warning logged ahead of the grant issue.
	if _, err := s.monitor.CheckInactivityWarnings(ctx); err != nil {
		s.logger.Error("inactivity warning pass", "error", err)
	}
	if _, err := s.monitor.CheckInactiveAccounts(ctx); err != nil {
		s.logger.Error("inactivity transition pass", "error", err)
	}
	if s.worker != nil {
		if _, err := s.worker.Drain(ctx); err != nil {
			s.logger.Error("notification queue drain", "error", err)
		}
	}
	if s.limiter != nil {
		s.limiter.Cleanup()
	}

	if s.sweepInterval > 0 && time.Since(s.lastSweep) >= s.sweepInterval {
		s.sweep()
	}
}

func (s *Scheduler) sweep() {
	if s.shares == nil {
		return
	}
	if _, err := s.shares.CleanupExpired(); err != nil {
		s.logger.Error("share link expiry sweep", "error", err)
		return
	}
	s.lastSweep = time.Now()
}
