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

func TestSummonIndexerCreatesSessionAndOffspring(t *testing.T) {
	db, err := store.Open("sqlite", ":memory:")
	require.NoError(t, err)
	contractABI := mustParseABI(t, nurseryABIJSON)
	event := contractABI.Events["SummonCompleted"]
	owner := common.HexToAddress("0xOwner")

	data, err := event.Inputs.NonIndexed().Pack(owner, big.NewInt(500), big.NewInt(999), "{\"gen\":1}")
	require.NoError(t, err)
	log := types.Log{
		Address: common.HexToAddress("0xnursery"),
		Topics: []common.Hash{
			event.ID, common.BigToHash(big.NewInt(10)), common.BigToHash(big.NewInt(20)),
		},
		Data:        data,
		TxHash:      common.HexToHash("0xSummonTx"),
		Index:       0,
		BlockNumber: 40,
	}

	nursery := &fakeContract{address: common.HexToAddress("0xnursery"), contractABI: contractABI}
	fixedTS := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	si := NewSummonIndexer(db, nursery, 1, func(ctx context.Context, blockNumber uint64) (time.Time, error) {
		return fixedTS, nil
	})

	require.NoError(t, si.Process(context.Background(), []types.Log{log}))

	var session store.SummonSession
	require.NoError(t, db.Where("tx_hash = ? AND log_index = ?", common.HexToHash("0xSummonTx").Hex(), 0).First(&session).Error)
	assert.Equal(t, int64(10), session.SummonerHeroID)
	assert.Equal(t, int64(20), session.AssistantHeroID)
	assert.Equal(t, "500", session.Cost)

	var offspring store.SummonOffspring
	require.NoError(t, db.Where("offspring_hero_id = ?", 999).First(&offspring).Error)
	assert.Equal(t, session.ID, offspring.SummonSessionID)
	assert.Equal(t, "{\"gen\":1}", offspring.GenesSummary)
}

func TestSummonIndexerIdempotentOnReplay(t *testing.T) {
	db, err := store.Open("sqlite", ":memory:")
	require.NoError(t, err)
	contractABI := mustParseABI(t, nurseryABIJSON)
	event := contractABI.Events["SummonCompleted"]
	owner := common.HexToAddress("0xOwner")

	data, err := event.Inputs.NonIndexed().Pack(owner, big.NewInt(1), big.NewInt(1001), "{}")
	require.NoError(t, err)
	log := types.Log{
		Address: common.HexToAddress("0xnursery"),
		Topics: []common.Hash{
			event.ID, common.BigToHash(big.NewInt(1)), common.BigToHash(big.NewInt(2)),
		},
		Data:        data,
		TxHash:      common.HexToHash("0xSummonReplay"),
		Index:       5,
		BlockNumber: 41,
	}

	nursery := &fakeContract{address: common.HexToAddress("0xnursery"), contractABI: contractABI}
	si := NewSummonIndexer(db, nursery, 1, func(ctx context.Context, blockNumber uint64) (time.Time, error) {
		return time.Now().UTC(), nil
	})

	require.NoError(t, si.Process(context.Background(), []types.Log{log}))
	require.NoError(t, si.Process(context.Background(), []types.Log{log}))

	var sessionCount, offspringCount int64
	db.Model(&store.SummonSession{}).Where("tx_hash = ? AND log_index = ?", common.HexToHash("0xSummonReplay").Hex(), 5).Count(&sessionCount)
	db.Model(&store.SummonOffspring{}).Where("offspring_hero_id = ?", 1001).Count(&offspringCount)
	assert.Equal(t, int64(1), sessionCount)
	assert.Equal(t, int64(1), offspringCount)
}

func TestRunDailyConversionComputesFunnelRollup(t *testing.T) {
	db, err := store.Open("sqlite", ":memory:")
	require.NoError(t, err)
	day := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, db.Create(&store.SummonSession{
		ChainID: 1, TxHash: "0xA", LogIndex: 0, SummonerHeroID: 1, AssistantHeroID: 2,
		Owner: "0xOwner", Cost: "10", BlockNumber: 1, Timestamp: day.Add(time.Hour),
	}).Error)
	require.NoError(t, db.Create(&store.SummonSession{
		ChainID: 1, TxHash: "0xB", LogIndex: 0, SummonerHeroID: 3, AssistantHeroID: 4,
		Owner: "0xOwner", Cost: "10", BlockNumber: 2, Timestamp: day.Add(2 * time.Hour),
	}).Error)

	soldAt := day.Add(3 * time.Hour)
	require.NoError(t, db.Create(&store.SummonSalesOutcome{
		OffspringHeroID: 500, Sold: true, SalePriceUsd: 40, SoldAt: &soldAt,
	}).Error)

	require.NoError(t, RunDailyConversion(db, day))

	var metrics store.SummonConversionMetrics
	require.NoError(t, db.Where("date = ?", day).First(&metrics).Error)
	assert.Equal(t, 2, metrics.SummonsStarted)
	assert.Equal(t, 1, metrics.OffspringSold)
	assert.InDelta(t, 0.5, metrics.ConversionRate, 1e-9)
	assert.InDelta(t, 40.0, metrics.AvgSalePriceUsd, 1e-9)
}
