package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSupervisorRunsIndexerJobUntilCancel(t *testing.T) {
	var ticks int32
	ctx, cancel := context.WithCancel(context.Background())

	sup := &Supervisor{
		Indexers: []IndexerJob{{
			Name: "test-indexer",
			Run: func(ctx context.Context, idleBackoff, errorBackoff time.Duration) {
				for {
					select {
					case <-ctx.Done():
						return
					default:
						atomic.AddInt32(&ticks, 1)
						time.Sleep(time.Millisecond)
					}
				}
			},
		}},
	}

	sup.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()
	sup.Wait()

	assert.Greater(t, int(atomic.LoadInt32(&ticks)), 0)
}

func TestSupervisorRunsPeriodicJobImmediatelyAndOnTick(t *testing.T) {
	var runs int32
	ctx, cancel := context.WithCancel(context.Background())

	sup := &Supervisor{
		Periodics: []PeriodicJob{{
			Name:     "test-periodic",
			Interval: 5 * time.Millisecond,
			Task: func(ctx context.Context) error {
				atomic.AddInt32(&runs, 1)
				return nil
			},
		}},
	}

	sup.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	cancel()
	sup.Wait()

	assert.GreaterOrEqual(t, int(atomic.LoadInt32(&runs)), 2)
}

func TestSupervisorPeriodicJobErrorDoesNotStopLoop(t *testing.T) {
	var runs int32
	ctx, cancel := context.WithCancel(context.Background())

	sup := &Supervisor{
		Periodics: []PeriodicJob{{
			Name:     "failing-periodic",
			Interval: 5 * time.Millisecond,
			Task: func(ctx context.Context) error {
				n := atomic.AddInt32(&runs, 1)
				if n < 3 {
					return assert.AnError
				}
				return nil
			},
		}},
	}

	sup.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	cancel()
	sup.Wait()

	assert.GreaterOrEqual(t, int(atomic.LoadInt32(&runs)), 3)
}
