package chainclient

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedgeledger/core/internal/apperr"
)

type fakeRPC struct {
	filterCalls []ethereum.FilterQuery
	failFirstN  int
	filterErr   error
	headerErr   error
	headers     map[uint64]*types.Header
}

func (f *fakeRPC) BlockNumber(ctx context.Context) (uint64, error) { return 0, nil }

func (f *fakeRPC) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if f.headerErr != nil {
		return nil, f.headerErr
	}
	h, ok := f.headers[number.Uint64()]
	if !ok {
		return nil, errors.New("no such block")
	}
	return h, nil
}

func (f *fakeRPC) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.filterCalls = append(f.filterCalls, q)
	if len(f.filterCalls) <= f.failFirstN && f.filterErr != nil {
		return nil, f.filterErr
	}
	return []types.Log{{BlockNumber: q.FromBlock.Uint64()}}, nil
}

func (f *fakeRPC) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return nil, nil
}

func TestLogsChunksExactlyAsSpecified(t *testing.T) {
	fake := &fakeRPC{}
	c := newClient(fake, WithChunkSize(2048), WithMaxRetries(0))

	logs, err := c.Logs(context.Background(), ethereum.FilterQuery{}, 1000, 5500)
	require.NoError(t, err)
	require.Len(t, logs, 3)

	require.Len(t, fake.filterCalls, 3)
	assert.Equal(t, uint64(1000), fake.filterCalls[0].FromBlock.Uint64())
	assert.Equal(t, uint64(3047), fake.filterCalls[0].ToBlock.Uint64())
	assert.Equal(t, uint64(3048), fake.filterCalls[1].FromBlock.Uint64())
	assert.Equal(t, uint64(5095), fake.filterCalls[1].ToBlock.Uint64())
	assert.Equal(t, uint64(5096), fake.filterCalls[2].FromBlock.Uint64())
	assert.Equal(t, uint64(5500), fake.filterCalls[2].ToBlock.Uint64())
}

func TestLogsExactMultipleOfChunkSize(t *testing.T) {
	fake := &fakeRPC{}
	c := newClient(fake, WithChunkSize(2048), WithMaxRetries(0))

	_, err := c.Logs(context.Background(), ethereum.FilterQuery{}, 0, 2047)
	require.NoError(t, err)
	assert.Len(t, fake.filterCalls, 1)

	fake.filterCalls = nil
	_, err = c.Logs(context.Background(), ethereum.FilterQuery{}, 0, 2048)
	require.NoError(t, err)
	assert.Len(t, fake.filterCalls, 2)
}

func TestLogsRetriesThenSucceeds(t *testing.T) {
	fake := &fakeRPC{failFirstN: 2, filterErr: errors.New("node busy")}
	c := newClient(fake, WithChunkSize(2048), WithMaxRetries(3), WithInitialBackoff(time.Millisecond))

	logs, err := c.Logs(context.Background(), ethereum.FilterQuery{}, 0, 100)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	assert.Len(t, fake.filterCalls, 3)
}

func TestLogsExhaustsRetriesAndReturnsRpcError(t *testing.T) {
	fake := &fakeRPC{failFirstN: 100, filterErr: errors.New("node busy")}
	c := newClient(fake, WithChunkSize(2048), WithMaxRetries(2), WithInitialBackoff(time.Millisecond))

	_, err := c.Logs(context.Background(), ethereum.FilterQuery{}, 0, 100)
	require.Error(t, err)
	var rpcErr *apperr.RpcError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, uint64(0), rpcErr.FromBlock)
	assert.Equal(t, uint64(100), rpcErr.ToBlock)
}

func TestBlockAtOrAfterBinarySearch(t *testing.T) {
	headers := map[uint64]*types.Header{}
	for i := uint64(0); i <= 10; i++ {
		headers[i] = &types.Header{Time: i * 10}
	}
	fake := &fakeRPC{headers: headers}
	c := newClient(fake, WithMaxRetries(0))

	got, err := c.BlockAtOrAfter(context.Background(), time.Unix(55, 0), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), got)
}

func TestBlockAtOrBeforeBinarySearch(t *testing.T) {
	headers := map[uint64]*types.Header{}
	for i := uint64(0); i <= 10; i++ {
		headers[i] = &types.Header{Time: i * 10}
	}
	fake := &fakeRPC{headers: headers}
	c := newClient(fake, WithMaxRetries(0))

	got, err := c.BlockAtOrBefore(context.Background(), time.Unix(55, 0), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got)
}

func TestBlockAtOrAfterFallsBackToWallClockOnRepeatedFailure(t *testing.T) {
	fake := &fakeRPC{headerErr: errors.New("node unreachable")}
	c := newClient(fake, WithMaxRetries(0))

	_, err := c.BlockAtOrAfter(context.Background(), time.Unix(55, 0), 0, 10)
	// wallClockEstimate also calls Block(), which fails the same way, so this
	// surfaces an error rather than silently returning a wrong block number.
	assert.Error(t, err)
}
