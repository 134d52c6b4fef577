/*
scheduler.go - Automated delinquency sweep scheduler

PURPOSE:
  Periodically re-derives span statuses across all accounts so spans
  whose claim-paid-through date has passed move out of their grace
  period (DELINQUENT to SUSPENDED) without waiting for the next inbound
  transaction.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Each pass delegates to Processor.SweepDelinquency, which only
    persists spans whose status actually changed
  - Stop blocks until an in-flight pass finishes

USAGE:
  scheduler := NewSweepScheduler(processor, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerSweep endpoint (manual sweep)
  - account/processor.go: SweepDelinquency
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zeus-health/account-processor/account"
)

// SweepScheduler runs the delinquency sweep on an interval.
type SweepScheduler struct {
	Processor *account.Processor
	Interval  time.Duration
	Enabled   bool
	Log       *zap.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSweepScheduler creates a scheduler with a daily default interval.
func NewSweepScheduler(p *account.Processor, log *zap.Logger) *SweepScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SweepScheduler{
		Processor: p,
		Interval:  24 * time.Hour,
		Enabled:   true,
		Log:       log,
		stop:      make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *SweepScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Log.Info("sweep scheduler disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.wg.Add(1)

	go s.run()

	s.Log.Info("sweep scheduler started", zap.Duration("interval", s.Interval))
}

// Stop stops the scheduler and waits for an in-flight pass.
func (s *SweepScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.Log.Info("sweep scheduler stopped")
	}
}

func (s *SweepScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.sweep()

	for {
		select {
		case <-s.ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *SweepScheduler) sweep() {
	changed, err := s.Processor.SweepDelinquency(context.Background())
	if err != nil {
		s.Log.Error("delinquency sweep failed", zap.Error(err))
		return
	}
	if changed > 0 {
		s.Log.Info("delinquency sweep completed", zap.Int("spans_changed", changed))
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (s *SweepScheduler) RunNow() {
	s.sweep()
}
