package indexers

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedgeledger/core/internal/store"
)

func TestTournamentIndexerFullLifecycle(t *testing.T) {
	db, err := store.Open("sqlite", ":memory:")
	require.NoError(t, err)
	contractABI := mustParseABI(t, arenaABIJSON)
	arena := &fakeContract{address: common.HexToAddress("0xarena"), contractABI: contractABI}
	ti := NewTournamentIndexer(db, arena, 1)

	startedEvent := contractABI.Events["TournamentStarted"]
	startedLog := types.Log{
		Topics:      []common.Hash{startedEvent.ID, common.BigToHash(big.NewInt(5))},
		BlockNumber: 100,
	}
	require.NoError(t, ti.Process(context.Background(), []types.Log{startedLog}))

	var tournament store.PvPTournament
	require.NoError(t, db.Where("tournament_id = ?", 5).First(&tournament).Error)
	assert.Equal(t, "active", tournament.Status)
	assert.Equal(t, uint64(100), tournament.StartBlock)

	entryEvent := contractABI.Events["TournamentEntry"]
	entryData, err := entryEvent.Inputs.NonIndexed().Pack("{\"atk\":10}")
	require.NoError(t, err)
	entryLog := types.Log{
		Topics: []common.Hash{entryEvent.ID, common.BigToHash(big.NewInt(5)), common.BigToHash(big.NewInt(77))},
		Data:   entryData,
	}
	require.NoError(t, ti.Process(context.Background(), []types.Log{entryLog}))

	var snapshot store.HeroTournamentSnapshot
	require.NoError(t, db.Where("tournament_id = ? AND hero_id = ?", 5, 77).First(&snapshot).Error)
	assert.Equal(t, "{\"atk\":10}", snapshot.StatBlock)

	matchEvent := contractABI.Events["MatchResolved"]
	matchData, err := matchEvent.Inputs.NonIndexed().Pack(big.NewInt(88), big.NewInt(77))
	require.NoError(t, err)
	matchLog := types.Log{
		Topics: []common.Hash{matchEvent.ID, common.BigToHash(big.NewInt(77))},
		Data:   matchData,
		TxHash: common.HexToHash("0xMatch"),
		Index:  0,
	}
	require.NoError(t, ti.Process(context.Background(), []types.Log{matchLog}))

	var match store.PvPMatch
	require.NoError(t, db.Where("tx_hash = ? AND log_index = ?", common.HexToHash("0xMatch").Hex(), 0).First(&match).Error)
	assert.Equal(t, int64(77), match.AttackerHero)
	assert.Equal(t, int64(88), match.DefenderHero)
	assert.Equal(t, int64(77), match.WinnerHero)

	placementEvent := contractABI.Events["TournamentPlacement"]
	wallet := common.HexToAddress("0xW")
	placementData, err := placementEvent.Inputs.NonIndexed().Pack(wallet, big.NewInt(1), big.NewInt(2500))
	require.NoError(t, err)
	placementLog := types.Log{
		Topics: []common.Hash{placementEvent.ID, common.BigToHash(big.NewInt(5)), common.BigToHash(big.NewInt(77))},
		Data:   placementData,
	}
	require.NoError(t, ti.Process(context.Background(), []types.Log{placementLog}))

	var placement store.TournamentPlacement
	require.NoError(t, db.Where("tournament_id = ? AND hero_id = ?", 5, 77).First(&placement).Error)
	assert.Equal(t, 1, placement.Placement)
	assert.InDelta(t, 25.0, placement.RewardUsd, 1e-9)
}

func TestTournamentIndexerPlacementIdempotentOnReplay(t *testing.T) {
	db, err := store.Open("sqlite", ":memory:")
	require.NoError(t, err)
	contractABI := mustParseABI(t, arenaABIJSON)
	arena := &fakeContract{address: common.HexToAddress("0xarena"), contractABI: contractABI}
	ti := NewTournamentIndexer(db, arena, 1)

	placementEvent := contractABI.Events["TournamentPlacement"]
	wallet := common.HexToAddress("0xW")
	placementData, err := placementEvent.Inputs.NonIndexed().Pack(wallet, big.NewInt(3), big.NewInt(100))
	require.NoError(t, err)
	log := types.Log{
		Topics: []common.Hash{placementEvent.ID, common.BigToHash(big.NewInt(9)), common.BigToHash(big.NewInt(44))},
		Data:   placementData,
	}

	require.NoError(t, ti.Process(context.Background(), []types.Log{log}))
	require.NoError(t, ti.Process(context.Background(), []types.Log{log}))

	var count int64
	db.Model(&store.TournamentPlacement{}).Where("tournament_id = ? AND hero_id = ?", 9, 44).Count(&count)
	assert.Equal(t, int64(1), count)
}
