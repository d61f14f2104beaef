package scheduler

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hedgeledger/core/internal/applog"
)

// RunUntilSignal starts sup, blocks until SIGINT/SIGTERM, cancels every
// job, and waits up to gracePeriod for them to exit cleanly before
// returning (spec §4.L: "cooperative shutdown with a bounded grace
// period").
func RunUntilSignal(sup *Supervisor, gracePeriod time.Duration) {
	log := applog.For("scheduler")

	ctx, cancel := context.WithCancel(context.Background())
	sup.Start(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutdown signal received, stopping fleet")
	cancel()

	done := make(chan struct{})
	go func() {
		sup.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("fleet stopped cleanly")
	case <-time.After(gracePeriod):
		log.Warn("grace period elapsed, exiting with jobs still stopping")
	}
}
