// Package scheduler wires up the cron job that periodically runs a
// reconciliation pass.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/joshslade/upwork-analysis-project/internal/reconcile"
)

// Scheduler wraps robfig/cron around the reconciler. Runs are serialised:
// reconciliation assumes a single writer, so a tick that fires while a run is
// still in flight is skipped, not queued.
type Scheduler struct {
	cron       *cron.Cron
	reconciler *reconcile.Reconciler
	spec       string // cron spec, e.g. "@every 6h"

	mu      sync.Mutex
	running bool
	last    *reconcile.RunReport
}

// New creates a Scheduler that fires every intervalHours hours.
func New(r *reconcile.Reconciler, intervalHours int) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithLogger(cron.DefaultLogger)),
		reconciler: r,
		spec:       fmt.Sprintf("@every %dh", intervalHours),
	}
}

// Start registers the job and starts the scheduler. Also runs one pass
// immediately so the triage view is fresh without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.RunNow(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	log.Printf("[scheduler] cron started, schedule %s", s.spec)

	// Run immediately on startup (non-blocking)
	go s.RunNow(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[scheduler] Cron stopped")
}

// RunNow executes one reconciliation pass unless one is already in flight.
// Returns false when the run was skipped.
func (s *Scheduler) RunNow(ctx context.Context) bool {
	if !s.acquire() {
		return false
	}

	report, err := s.reconciler.Run(ctx)
	if err != nil {
		log.Printf("[scheduler] Reconciliation error: %v", err)
	}

	s.mu.Lock()
	s.running = false
	s.last = report
	s.mu.Unlock()
	return true
}

// Trigger starts a run in the background unless one is already in flight.
// The decision is immediate; the run itself is not awaited.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	if !s.acquire() {
		return false
	}
	go func() {
		report, err := s.reconciler.Run(ctx)
		if err != nil {
			log.Printf("[scheduler] Reconciliation error: %v", err)
		}
		s.mu.Lock()
		s.running = false
		s.last = report
		s.mu.Unlock()
	}()
	return true
}

func (s *Scheduler) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		log.Println("[scheduler] Reconciliation already in flight, skipping this trigger")
		return false
	}
	s.running = true
	return true
}

// LastReport returns the most recent run report, or nil before the first run
// completes.
func (s *Scheduler) LastReport() *reconcile.RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
