// Package scheduler runs the indexer fleet and the ambient periodic jobs
// (deposit/garden expiry sweeps, marketplace snapshots, daily rollups)
// under one cooperative-shutdown supervisor (spec §4.L). Grounded on the
// teacher's cmd/main.go top-level loop (dial, construct, loop until
// SIGINT), generalized from one polling loop into a fleet of independent
// goroutines sharing a cancellation context.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/hedgeledger/core/internal/applog"
)

// IndexerJob is one checkpointed worker loop (spec §4.E), run until ctx is
// cancelled.
type IndexerJob struct {
	Name         string
	Run          func(ctx context.Context, idleBackoff, errorBackoff time.Duration)
	IdleBackoff  time.Duration
	ErrorBackoff time.Duration
}

// PeriodicJob runs Task every Interval until ctx is cancelled. A Task
// returning an error is logged and retried at the next tick rather than
// crashing the supervisor (spec §5: "a single domain's failure must not
// take down the fleet").
type PeriodicJob struct {
	Name     string
	Interval time.Duration
	Task     func(ctx context.Context) error
}

// Supervisor owns the lifetime of every background goroutine the process
// runs (spec §4.L).
type Supervisor struct {
	Indexers  []IndexerJob
	Periodics []PeriodicJob

	wg sync.WaitGroup
}

// Start launches every registered job in its own goroutine. It returns
// immediately; call Wait to block until ctx is cancelled and every job has
// exited.
func (s *Supervisor) Start(ctx context.Context) {
	log := applog.For("scheduler")

	for _, job := range s.Indexers {
		job := job
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			log.WithField("job", job.Name).Info("indexer job starting")
			job.Run(ctx, job.IdleBackoff, job.ErrorBackoff)
			log.WithField("job", job.Name).Info("indexer job stopped")
		}()
	}

	for _, job := range s.Periodics {
		job := job
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			runPeriodic(ctx, job)
		}()
	}
}

// runPeriodic fires job.Task once immediately, then on every tick of
// job.Interval, until ctx is done.
func runPeriodic(ctx context.Context, job PeriodicJob) {
	log := applog.For("scheduler").WithField("job", job.Name)

	runOnce := func() {
		if err := job.Task(ctx); err != nil {
			log.WithError(err).Warn("periodic job failed, will retry next tick")
		}
	}

	runOnce()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("periodic job stopped")
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

// Wait blocks until every job started by Start has returned. Callers
// typically cancel the context that was passed to Start and then call
// Wait with a bounded grace period of their own (e.g. via context.WithTimeout).
func (s *Supervisor) Wait() {
	s.wg.Wait()
}
