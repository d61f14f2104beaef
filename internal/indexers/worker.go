// Package indexers implements the shared worker contract every event
// indexer follows (spec §4.E) and the per-domain indexers built on top of
// it. Grounded on the teacher's cmd/main.go polling loop (dial client,
// build a txlistener, loop reading + processing) generalized from a
// single-purpose DEX bot loop into a checkpointed, resumable, multi-domain
// fleet.
package indexers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/hedgeledger/core/internal/apperr"
	"github.com/hedgeledger/core/internal/applog"
	"github.com/hedgeledger/core/internal/checkpoint"
	"github.com/hedgeledger/core/internal/store"
)

// LogFetcher is the narrow internal/chainclient surface a worker needs.
type LogFetcher interface {
	HeadBlock(ctx context.Context) (uint64, error)
	Logs(ctx context.Context, filter ethereum.FilterQuery, from, to uint64) ([]types.Log, error)
}

// ErrNothingToDo signals the worker's slice would be empty (cursor > end);
// the caller should sleep and retry rather than treat this as a failure.
var ErrNothingToDo = errors.New("indexers: no new blocks to scan")

// sliceSize is the per-tick window size a worker requests (spec §4.E step
// 3: "[cursor, cursor+chunkSize-1]"). internal/chainclient re-chunks
// internally regardless, so this bounds how much one tick processes
// rather than how many raw RPC calls it issues.
const sliceSize = 2048

// Worker runs one checkpointed indexer tick at a time. FilterBuilder
// produces the domain-specific log filter for a block range; Process
// decodes and upserts the fetched logs.
type Worker struct {
	Name           string
	Kind           string
	Chain          LogFetcher
	Checkpoints    *checkpoint.Store
	Confirmations  uint64
	FilterBuilder  func(from, to uint64) ethereum.FilterQuery
	Process        func(ctx context.Context, logs []types.Log) error
}

// Tick runs one worker-contract step (spec §4.E):
//  1. load checkpoint -> cursor = lastIndexedBlock+1, end = min(head-confirmations, shardEnd)
//  2. if cursor > end, return ErrNothingToDo
//  3. request logs for [cursor, cursor+chunkSize-1]
//  4. decode/normalize/upsert (via Process, which must itself be idempotent)
//  5. advance checkpoint to the slice's end
//  6. on error: record status=error, lastError; caller decides the backoff
func (w *Worker) Tick(ctx context.Context) error {
	log := applog.For("indexers").WithField("worker", w.Name)

	cp, err := w.Checkpoints.Get(w.Name)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint %s: %w", w.Name, err)
	}
	if cp == nil {
		return fmt.Errorf("checkpoint %s has not been seeded", w.Name)
	}

	head, err := w.Chain.HeadBlock(ctx)
	if err != nil {
		return fmt.Errorf("failed to read head block for %s: %w", w.Name, err)
	}
	if head < w.Confirmations {
		return ErrNothingToDo
	}

	safeHead := head - w.Confirmations
	end := safeHead
	if cp.ShardEnd != nil && *cp.ShardEnd < end {
		end = *cp.ShardEnd
	}

	cursor := cp.LastIndexedBlock + 1
	if cursor > end {
		return ErrNothingToDo
	}
	sliceEnd := cursor + sliceSize - 1
	if sliceEnd > end {
		sliceEnd = end
	}

	filter := w.FilterBuilder(cursor, sliceEnd)
	logs, err := w.Chain.Logs(ctx, filter, cursor, sliceEnd)
	if err != nil {
		w.recordError(w.Name, err)
		var rpcErr *apperr.RpcError
		if errors.As(err, &rpcErr) {
			return fmt.Errorf("failed to fetch logs for %s at [%d,%d]: %w", w.Name, rpcErr.FromBlock, rpcErr.ToBlock, err)
		}
		return fmt.Errorf("failed to fetch logs for %s: %w", w.Name, err)
	}

	if ctx.Err() != nil {
		// Cancelled mid-slice: spec §5 "must not commit a partial slice,
		// must persist status=idle with the unchanged lastIndexedBlock."
		idle := store.StatusIdle
		_ = w.Checkpoints.Upsert(w.Name, checkpoint.Delta{Status: &idle})
		return ctx.Err()
	}

	if err := w.Process(ctx, logs); err != nil {
		w.recordError(w.Name, err)
		return fmt.Errorf("failed to process logs for %s: %w", w.Name, err)
	}

	running := store.StatusRunning
	if err := w.Checkpoints.Upsert(w.Name, checkpoint.Delta{LastIndexedBlock: &sliceEnd, Status: &running}); err != nil {
		return fmt.Errorf("failed to advance checkpoint %s: %w", w.Name, err)
	}

	log.WithField("cursor", cursor).WithField("end", sliceEnd).WithField("logCount", len(logs)).Debug("indexer tick complete")
	return nil
}

func (w *Worker) recordError(name string, cause error) {
	errored := store.StatusError
	msg := cause.Error()
	_ = w.Checkpoints.Upsert(name, checkpoint.Delta{Status: &errored, LastError: &msg})
}

// Run loops Tick until ctx is cancelled, sleeping idleBackoff between
// no-op ticks and errorBackoff after a failed one.
func (w *Worker) Run(ctx context.Context, idleBackoff, errorBackoff time.Duration) {
	log := applog.For("indexers").WithField("worker", w.Name)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := w.Tick(ctx)
		switch {
		case err == nil:
			continue
		case errors.Is(err, ErrNothingToDo):
			time.Sleep(idleBackoff)
		case ctx.Err() != nil:
			return
		default:
			log.WithError(err).Warn("indexer tick failed, backing off")
			time.Sleep(errorBackoff)
		}
	}
}
