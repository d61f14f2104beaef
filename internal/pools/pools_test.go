package pools

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedgeledger/core/internal/contractclient"
)

type fakeStaking struct {
	calls      int
	poolLength *big.Int
	lpToken    common.Address
	allocPoint *big.Int
}

func (f *fakeStaking) ContractAddress() common.Address { return common.Address{} }
func (f *fakeStaking) Abi() abi.ABI                     { return abi.ABI{} }

func (f *fakeStaking) Call(ctx context.Context, caller *common.Address, method string, args ...interface{}) ([]interface{}, error) {
	f.calls++
	switch method {
	case "poolLength":
		return []interface{}{f.poolLength}, nil
	case "poolInfo":
		return []interface{}{f.lpToken, f.allocPoint, big.NewInt(0)}, nil
	default:
		return nil, nil
	}
}

func (f *fakeStaking) DecodeLog(eventName string, data []byte) ([]interface{}, error) { return nil, nil }
func (f *fakeStaking) DecodeTransaction(data []byte) (*contractclient.DecodedTx, error) {
	return nil, nil
}
func (f *fakeStaking) TransactionData(ctx context.Context, txHash common.Hash) ([]byte, error) {
	return nil, nil
}

func TestPoolCount(t *testing.T) {
	fake := &fakeStaking{poolLength: big.NewInt(12)}
	d := New(fake)

	n, err := d.PoolCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
}

func TestMetadataCachesAfterFirstFetch(t *testing.T) {
	fake := &fakeStaking{lpToken: common.HexToAddress("0xaa"), allocPoint: big.NewInt(100)}
	d := New(fake)

	m1, err := d.Metadata(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), m1.Pid)
	assert.Equal(t, 1, fake.calls)

	_, err = d.Metadata(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls, "second call should be served from cache")
}

func TestInvalidateForcesRefetch(t *testing.T) {
	fake := &fakeStaking{lpToken: common.HexToAddress("0xaa"), allocPoint: big.NewInt(100)}
	d := New(fake)

	_, err := d.Metadata(context.Background(), 7)
	require.NoError(t, err)
	d.Invalidate(7)

	_, err = d.Metadata(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.calls)
}
