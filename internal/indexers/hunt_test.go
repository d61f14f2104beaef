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

func TestHuntIndexerRecordsDropWithPartyLuck(t *testing.T) {
	db, err := store.Open("sqlite", ":memory:")
	require.NoError(t, err)
	contractABI := mustParseABI(t, huntABIJSON)
	event := contractABI.Events["HuntDrop"]
	wallet := common.HexToAddress("0xW")
	item := common.HexToAddress("0xItem")

	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(99), big.NewInt(1200), item, big.NewInt(3))
	require.NoError(t, err)
	log := types.Log{
		Address:     common.HexToAddress("0xhunting"),
		Topics:      []common.Hash{event.ID, common.BytesToHash(wallet.Bytes())},
		Data:        data,
		TxHash:      common.HexToHash("0xHuntTx"),
		Index:       0,
		BlockNumber: 30,
	}

	hunting := &fakeContract{address: common.HexToAddress("0xhunting"), contractABI: contractABI}
	fixedTS := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	hi := NewHuntIndexer(db, hunting, 1, func(ctx context.Context, blockNumber uint64) (time.Time, error) {
		return fixedTS, nil
	})

	require.NoError(t, hi.Process(context.Background(), []types.Log{log}))

	var row store.HuntingEncounter
	require.NoError(t, db.Where("tx_hash = ? AND log_index = ?", common.HexToHash("0xHuntTx").Hex(), 0).First(&row).Error)
	assert.Equal(t, int64(99), row.HeroID)
	assert.Equal(t, 1200, row.PartyLuck)
	assert.Equal(t, "3", row.DroppedAmount)
}

func TestHuntIndexerIdempotentOnReplay(t *testing.T) {
	db, err := store.Open("sqlite", ":memory:")
	require.NoError(t, err)
	contractABI := mustParseABI(t, huntABIJSON)
	event := contractABI.Events["HuntDrop"]
	wallet := common.HexToAddress("0xW")
	item := common.HexToAddress("0xItem")

	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(1), big.NewInt(500), item, big.NewInt(1))
	require.NoError(t, err)
	log := types.Log{
		Address:     common.HexToAddress("0xhunting"),
		Topics:      []common.Hash{event.ID, common.BytesToHash(wallet.Bytes())},
		Data:        data,
		TxHash:      common.HexToHash("0xHuntReplay"),
		Index:       4,
		BlockNumber: 31,
	}

	hunting := &fakeContract{address: common.HexToAddress("0xhunting"), contractABI: contractABI}
	hi := NewHuntIndexer(db, hunting, 1, func(ctx context.Context, blockNumber uint64) (time.Time, error) {
		return time.Now().UTC(), nil
	})

	require.NoError(t, hi.Process(context.Background(), []types.Log{log}))
	require.NoError(t, hi.Process(context.Background(), []types.Log{log}))

	var count int64
	db.Model(&store.HuntingEncounter{}).Where("tx_hash = ? AND log_index = ?", common.HexToHash("0xHuntReplay").Hex(), 4).Count(&count)
	assert.Equal(t, int64(1), count)
}
