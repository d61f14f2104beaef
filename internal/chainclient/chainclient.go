// Package chainclient wraps an *ethclient.Client with the one piece of
// behavior every indexer in internal/indexers needs and go-ethereum does
// not give for free: transparently slicing an arbitrarily large block
// range into eth_getLogs-safe windows, retrying each slice with backoff,
// and reporting an exhausted slice as a typed, resumable error. Grounded
// on the retry-around-FilterQuery pattern in
// other_examples/4de0d66c_gallery-so-go-gallery (rpc.RetryGetLogs wrapping
// ethereum.FilterQuery) and on the teacher's own ethclient.Dial usage in
// cmd/main.go.
package chainclient

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"github.com/hedgeledger/core/internal/apperr"
	"github.com/hedgeledger/core/internal/applog"
)

// DefaultChunkSize is the hard eth_getLogs window cap (spec §4.A).
const DefaultChunkSize = 2048

// blockTimeEstimate is the wall-clock fallback used by blockAtOrAfter /
// blockAtOrBefore when the binary search itself cannot reach the node.
const blockTimeEstimate = 2 * time.Second

// rpcReader is the subset of *ethclient.Client this package depends on,
// narrowed so tests can inject a fake transport.
type rpcReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type Client struct {
	rpc            rpcReader
	chunkSize      uint64
	maxRetries     int
	initialBackoff time.Duration
	log            *logrus.Entry
}

// Option configures a Client.
type Option func(*Client)

func WithChunkSize(n uint64) Option {
	return func(c *Client) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

func WithInitialBackoff(d time.Duration) Option {
	return func(c *Client) { c.initialBackoff = d }
}

// New wraps client with the chunked-log-query behavior described above.
func New(client *ethclient.Client, opts ...Option) *Client {
	return newClient(client, opts...)
}

func newClient(rpc rpcReader, opts ...Option) *Client {
	c := &Client{
		rpc:            rpc,
		chunkSize:      DefaultChunkSize,
		maxRetries:     4,
		initialBackoff: 250 * time.Millisecond,
		log:            applog.For("chainclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HeadBlock returns the current chain head.
func (c *Client) HeadBlock(ctx context.Context) (uint64, error) {
	return c.rpc.BlockNumber(ctx)
}

// Block returns the header of block n.
func (c *Client) Block(ctx context.Context, n uint64) (*types.Header, error) {
	return c.rpc.HeaderByNumber(ctx, big.NewInt(int64(n)))
}

// Receipt returns the receipt of a mined transaction.
func (c *Client) Receipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return c.rpc.TransactionReceipt(ctx, txHash)
}

// Logs slices [from,to] into windows of at most chunkSize, retries each
// slice with exponential backoff, and concatenates the results in
// block-then-logIndex order (the order eth_getLogs already returns within
// one window; windows are requested and appended in ascending order).
func (c *Client) Logs(ctx context.Context, filter ethereum.FilterQuery, from, to uint64) ([]types.Log, error) {
	if from > to {
		return nil, nil
	}

	var all []types.Log
	cursor := from
	for cursor <= to {
		sliceEnd := cursor + c.chunkSize - 1
		if sliceEnd > to {
			sliceEnd = to
		}

		logs, err := c.logsSlice(ctx, filter, cursor, sliceEnd)
		if err != nil {
			return nil, err
		}
		all = append(all, logs...)
		cursor = sliceEnd + 1
	}
	return all, nil
}

func (c *Client) logsSlice(ctx context.Context, filter ethereum.FilterQuery, from, to uint64) ([]types.Log, error) {
	q := filter
	q.FromBlock = big.NewInt(int64(from))
	q.ToBlock = big.NewInt(int64(to))

	backoff := c.initialBackoff
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		logs, err := c.rpc.FilterLogs(ctx, q)
		if err == nil {
			return logs, nil
		}
		lastErr = err
		if !errIsTransient(err) {
			break
		}
		c.log.WithError(err).WithField("from", from).WithField("to", to).
			Warn("transient failure fetching log slice, retrying")
	}

	return nil, &apperr.RpcError{FromBlock: from, ToBlock: to, Cause: lastErr}
}

// BlockAtOrAfter returns the first block number whose timestamp is >= ts,
// via binary search over [lo, hi]. Falls back to a wall-clock estimate
// (2s/block) if the search cannot complete due to repeated RPC failure.
func (c *Client) BlockAtOrAfter(ctx context.Context, ts time.Time, lo, hi uint64) (uint64, error) {
	result, err := c.binarySearchBlock(ctx, ts, lo, hi, true)
	if err != nil {
		c.log.WithError(err).Warn("binary search for blockAtOrAfter failed, falling back to wall-clock estimate")
		return c.wallClockEstimate(ctx, ts, hi)
	}
	return result, nil
}

// BlockAtOrBefore returns the last block number whose timestamp is <= ts.
func (c *Client) BlockAtOrBefore(ctx context.Context, ts time.Time, lo, hi uint64) (uint64, error) {
	after, err := c.binarySearchBlock(ctx, ts, lo, hi, false)
	if err != nil {
		c.log.WithError(err).Warn("binary search for blockAtOrBefore failed, falling back to wall-clock estimate")
		return c.wallClockEstimate(ctx, ts, hi)
	}
	return after, nil
}

// binarySearchBlock finds the boundary block for ts within [lo, hi].
// orAfter=true returns the first block with header.Time >= ts;
// orAfter=false returns the last block with header.Time <= ts.
func (c *Client) binarySearchBlock(ctx context.Context, ts time.Time, lo, hi uint64, orAfter bool) (uint64, error) {
	target := uint64(ts.Unix())
	result := hi
	for lo <= hi {
		mid := lo + (hi-lo)/2
		header, err := c.Block(ctx, mid)
		if err != nil {
			return 0, fmt.Errorf("failed to fetch header for block %d: %w", mid, err)
		}
		if header.Time >= target {
			if orAfter {
				result = mid
			}
			if mid == 0 {
				break
			}
			hi = mid - 1
		} else {
			if !orAfter {
				result = mid
			}
			lo = mid + 1
		}
	}
	return result, nil
}

func (c *Client) wallClockEstimate(ctx context.Context, ts time.Time, head uint64) (uint64, error) {
	headHeader, err := c.Block(ctx, head)
	if err != nil {
		return 0, fmt.Errorf("wall-clock fallback failed to fetch head header: %w", err)
	}
	headTime := time.Unix(int64(headHeader.Time), 0)
	delta := headTime.Sub(ts)
	if delta < 0 {
		return head, nil
	}
	blocksBack := uint64(delta / blockTimeEstimate)
	if blocksBack >= head {
		return 0, nil
	}
	return head - blocksBack, nil
}

// errIsTransient classifies an error as retryable. Only context.Canceled
// is treated as permanent; every other error (network, rate-limit,
// node-busy, and decode/ABI errors alike) is retried.
func errIsTransient(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}
