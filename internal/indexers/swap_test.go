package indexers

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedgeledger/core/internal/store"
)

func TestSwapIndexerDecodesAndUpsertsEvent(t *testing.T) {
	db, err := store.Open("sqlite", ":memory:")
	require.NoError(t, err)
	contractABI := mustParseABI(t, pairABIJSON)
	event := contractABI.Events["Swap"]
	sender := common.HexToAddress("0xSender")
	to := common.HexToAddress("0xTo")

	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(100), big.NewInt(0), big.NewInt(0), big.NewInt(98))
	require.NoError(t, err)
	log := types.Log{
		Address: common.HexToAddress("0xpair"),
		Topics:  []common.Hash{event.ID, common.BytesToHash(sender.Bytes()), common.BytesToHash(to.Bytes())},
		Data:    data,
		TxHash:  common.HexToHash("0xSwapTx"),
		Index:   1,
		BlockNumber: 50,
	}

	pair := &fakeContract{address: common.HexToAddress("0xpair"), contractABI: contractABI}
	fixedTS := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	si := NewSwapIndexer(db, pair, 1, 3, func(ctx context.Context, blockNumber uint64) (time.Time, error) {
		return fixedTS, nil
	})

	require.NoError(t, si.Process(context.Background(), []types.Log{log}))

	var row store.SwapEvent
	require.NoError(t, db.Where("tx_hash = ? AND log_index = ?", common.HexToHash("0xSwapTx").Hex(), 1).First(&row).Error)
	assert.Equal(t, "100", row.Amount0In)
	assert.Equal(t, "0", row.Amount1In)
	assert.Equal(t, "0", row.Amount0Out)
	assert.Equal(t, "98", row.Amount1Out)
	assert.Equal(t, int64(3), row.Pid)
	assert.True(t, fixedTS.Equal(row.Timestamp))
}

func TestSwapIndexerIdempotentOnReplay(t *testing.T) {
	db, err := store.Open("sqlite", ":memory:")
	require.NoError(t, err)
	contractABI := mustParseABI(t, pairABIJSON)
	event := contractABI.Events["Swap"]
	sender := common.HexToAddress("0xSender")
	to := common.HexToAddress("0xTo")

	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(1), big.NewInt(0), big.NewInt(0), big.NewInt(1))
	require.NoError(t, err)
	log := types.Log{
		Address: common.HexToAddress("0xpair"),
		Topics:  []common.Hash{event.ID, common.BytesToHash(sender.Bytes()), common.BytesToHash(to.Bytes())},
		Data:    data,
		TxHash:  common.HexToHash("0xReplay"),
		Index:   0,
		BlockNumber: 10,
	}

	pair := &fakeContract{address: common.HexToAddress("0xpair"), contractABI: contractABI}
	si := NewSwapIndexer(db, pair, 1, 3, func(ctx context.Context, blockNumber uint64) (time.Time, error) {
		return time.Now().UTC(), nil
	})

	require.NoError(t, si.Process(context.Background(), []types.Log{log}))
	require.NoError(t, si.Process(context.Background(), []types.Log{log}))

	var count int64
	db.Model(&store.SwapEvent{}).Where("tx_hash = ? AND log_index = ?", common.HexToHash("0xReplay").Hex(), 0).Count(&count)
	assert.Equal(t, int64(1), count)
}
