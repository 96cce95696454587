/*
scheduler.go - Daily maintenance scheduler

PURPOSE:
  Runs the time-driven jobs on a fixed interval: the recurring transaction
  processor, loan payment reminders, and notification cleanup. Budget
  alerts are not scheduled; they fire on expense writes.

DESIGN:
  - Background goroutine on a ticker, stopped via channel + WaitGroup
  - Every job is idempotent, so the interval can be shorter than a day
    without double-posting anything
  - RunNow triggers an immediate pass for tests and admin endpoints

USAGE:
  scheduler := NewScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - jobs/: The job implementations and their idempotency mechanisms
  - handlers.go: Manual trigger endpoints
*/
package api

import (
	"context"
	"sync"
	"time"
)

// Scheduler drives the daily jobs.
type Scheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewScheduler creates a scheduler over the handler's jobs.
func NewScheduler(h *Handler) *Scheduler {
	return &Scheduler{
		Handler:       h,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Handler.Log.Info().Msg("scheduler disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)
	go s.run()

	s.Handler.Log.Info().
		Dur("interval", s.CheckInterval).
		Msg("scheduler started")
}

// Stop stops the scheduler and waits for any in-flight pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.Handler.Log.Info().Msg("scheduler stopped")
	}
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.RunNow()

	for {
		select {
		case <-s.ticker.C:
			s.RunNow()
		case <-s.stop:
			return
		}
	}
}

// RunNow executes one pass of every scheduled job.
func (s *Scheduler) RunNow() {
	ctx := context.Background()
	now := time.Now()

	s.Handler.Recurring.Run(ctx, now)
	s.Handler.Reminders.Run(ctx, now)
	if _, err := s.Handler.Cleanup.Run(ctx, now); err != nil {
		s.Handler.Log.Error().Err(err).Msg("scheduled cleanup failed")
	}
}

// NextRunTime returns when the next scheduled pass will occur.
func (s *Scheduler) NextRunTime() time.Time {
	return time.Now().Add(s.CheckInterval)
}
