package indexers

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedgeledger/core/internal/store"
)

func depositLog(t *testing.T, contractABI abi.ABI, wallet common.Address, pid, amount int64, txHash string, logIndex uint) types.Log {
	t.Helper()
	event := contractABI.Events["Deposit"]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(amount))
	require.NoError(t, err)

	return types.Log{
		Address: common.HexToAddress("0xstaking"),
		Topics: []common.Hash{
			event.ID,
			common.BytesToHash(wallet.Bytes()),
			common.BigToHash(big.NewInt(pid)),
		},
		Data:     data,
		TxHash:   common.HexToHash(txHash),
		Index:    logIndex,
		BlockNumber: 100,
	}
}

func TestStakeIndexerInsertsPositionFromDeposit(t *testing.T) {
	db, err := store.Open("sqlite", ":memory:")
	require.NoError(t, err)
	contractABI := mustParseABI(t, stakingABIJSON)
	wallet := common.HexToAddress("0xW")

	staking := &fakeContract{
		address: common.HexToAddress("0xstaking"), contractABI: contractABI,
		callFn: func(ctx context.Context, caller *common.Address, method string, args ...interface{}) ([]interface{}, error) {
			return []interface{}{big.NewInt(10)}, nil
		},
	}
	si := NewStakeIndexer(db, staking, 1)

	log := depositLog(t, contractABI, wallet, 7, 10, "0xT", 2)
	require.NoError(t, si.Process(context.Background(), []types.Log{log}))

	var pos store.StakerPosition
	require.NoError(t, db.Where("wallet = ? AND pid = ?", wallet.Hex(), 7).First(&pos).Error)
	assert.Equal(t, "10", pos.StakedLp)
}

func TestStakeIndexerIdempotentOnReplay(t *testing.T) {
	// spec §8 scenario 6: Deposit(wallet=0xW, pid=7, amount=10) at
	// (tx=0xT, log=2); re-running the same slice leaves exactly one
	// StakerPosition(0xW,7) row with stakedLp=10.
	db, err := store.Open("sqlite", ":memory:")
	require.NoError(t, err)
	contractABI := mustParseABI(t, stakingABIJSON)
	wallet := common.HexToAddress("0xW")

	staking := &fakeContract{
		address: common.HexToAddress("0xstaking"), contractABI: contractABI,
		callFn: func(ctx context.Context, caller *common.Address, method string, args ...interface{}) ([]interface{}, error) {
			return []interface{}{big.NewInt(10)}, nil
		},
	}
	si := NewStakeIndexer(db, staking, 1)
	log := depositLog(t, contractABI, wallet, 7, 10, "0xT", 2)

	require.NoError(t, si.Process(context.Background(), []types.Log{log}))
	require.NoError(t, si.Process(context.Background(), []types.Log{log}))

	var count int64
	db.Model(&store.StakerPosition{}).Where("wallet = ? AND pid = ?", wallet.Hex(), 7).Count(&count)
	assert.Equal(t, int64(1), count)

	var pos store.StakerPosition
	require.NoError(t, db.Where("wallet = ? AND pid = ?", wallet.Hex(), 7).First(&pos).Error)
	assert.Equal(t, "10", pos.StakedLp)

	var eventCount int64
	db.Model(&store.PoolStakeEvent{}).Where("wallet = ? AND pid = ?", wallet.Hex(), 7).Count(&eventCount)
	assert.Equal(t, int64(1), eventCount, "replaying the same (txHash,logIndex) must leave exactly one raw stake event row")
}
