package indexers

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"gorm.io/gorm"

	"github.com/hedgeledger/core/internal/applog"
	"github.com/hedgeledger/core/internal/contractclient"
	"github.com/hedgeledger/core/internal/store"
)

// TournamentIndexer parses PvP tournament lifecycle events: a
// TournamentStarted event opens a PvPTournament row, a TournamentEntry
// event snapshots a hero's full stat block at participation time, a
// MatchResolved event records one bout, and a TournamentPlacement event
// records a hero's final standing (spec §4.E).
type TournamentIndexer struct {
	db      *gorm.DB
	arena   contractclient.ContractClient
	chainID int64
}

func NewTournamentIndexer(db *store.DB, arena contractclient.ContractClient, chainID int64) *TournamentIndexer {
	return &TournamentIndexer{db: db.DB, arena: arena, chainID: chainID}
}

func (ti *TournamentIndexer) FilterBuilder(from, to uint64) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{ti.arena.ContractAddress()},
	}
}

func (ti *TournamentIndexer) Process(ctx context.Context, logs []types.Log) error {
	for _, l := range logs {
		eventName, ok := eventNameForTopic(ti.arena.Abi(), topic0(l))
		if !ok {
			continue
		}

		var err error
		switch eventName {
		case "TournamentStarted":
			err = ti.processTournamentStarted(l)
		case "TournamentEntry":
			err = ti.processTournamentEntry(l)
		case "MatchResolved":
			err = ti.processMatchResolved(l)
		case "TournamentPlacement":
			err = ti.processPlacement(l)
		default:
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (ti *TournamentIndexer) processTournamentStarted(l types.Log) error {
	if len(l.Topics) < 2 {
		return nil
	}
	_, err := ti.arena.DecodeLog("TournamentStarted", l.Data)
	if err != nil {
		applog.For("indexers.tournament").WithError(err).Warn("failed to decode TournamentStarted log, skipping")
		return nil
	}
	tournamentID := new(big.Int).SetBytes(l.Topics[1].Bytes()).Int64()

	row := store.PvPTournament{
		ChainID: ti.chainID, TournamentID: tournamentID,
		StartBlock: l.BlockNumber, Status: "active",
	}
	err = ti.db.Where(store.PvPTournament{TournamentID: tournamentID}).
		Assign(row).FirstOrCreate(&store.PvPTournament{}).Error
	if err != nil {
		return fmt.Errorf("failed to upsert tournament %d: %w", tournamentID, err)
	}
	return nil
}

func (ti *TournamentIndexer) processTournamentEntry(l types.Log) error {
	if len(l.Topics) < 3 {
		return nil
	}
	out, err := ti.arena.DecodeLog("TournamentEntry", l.Data)
	if err != nil || len(out) < 1 {
		applog.For("indexers.tournament").WithError(err).Warn("failed to decode TournamentEntry log, skipping")
		return nil
	}
	tournamentID := new(big.Int).SetBytes(l.Topics[1].Bytes()).Int64()
	heroID := new(big.Int).SetBytes(l.Topics[2].Bytes()).Int64()
	statBlock, _ := out[0].(string)

	row := store.HeroTournamentSnapshot{TournamentID: tournamentID, HeroID: heroID, StatBlock: statBlock}
	err = ti.db.Clauses(onConflictDoNothing("idx_snapshot_tourn_hero")).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to record tournament entry snapshot %d/%d: %w", tournamentID, heroID, err)
	}
	return nil
}

func (ti *TournamentIndexer) processMatchResolved(l types.Log) error {
	if len(l.Topics) < 2 {
		return nil
	}
	out, err := ti.arena.DecodeLog("MatchResolved", l.Data)
	if err != nil || len(out) < 2 {
		applog.For("indexers.tournament").WithError(err).Warn("failed to decode MatchResolved log, skipping")
		return nil
	}
	attackerHero := new(big.Int).SetBytes(l.Topics[1].Bytes()).Int64()
	defenderHero := zeroIfNilInt(asBigInt(out[0]))
	winnerHero := zeroIfNilInt(asBigInt(out[1]))

	row := store.PvPMatch{
		ChainID: ti.chainID, TxHash: l.TxHash.Hex(), LogIndex: uint(l.Index),
		AttackerHero: attackerHero, DefenderHero: defenderHero, WinnerHero: winnerHero,
		BlockNumber: l.BlockNumber,
	}
	err = ti.db.Clauses(onConflictDoNothing("idx_pvp_tx_log")).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert match %s/%d: %w", row.TxHash, row.LogIndex, err)
	}
	return nil
}

func (ti *TournamentIndexer) processPlacement(l types.Log) error {
	if len(l.Topics) < 3 {
		return nil
	}
	out, err := ti.arena.DecodeLog("TournamentPlacement", l.Data)
	if err != nil || len(out) < 3 {
		applog.For("indexers.tournament").WithError(err).Warn("failed to decode TournamentPlacement log, skipping")
		return nil
	}
	tournamentID := new(big.Int).SetBytes(l.Topics[1].Bytes()).Int64()
	heroID := new(big.Int).SetBytes(l.Topics[2].Bytes()).Int64()
	wallet, _ := out[0].(common.Address)
	placement := zeroIfNilInt(asBigInt(out[1]))
	rewardCents := asBigInt(out[2])
	rewardUsd := 0.0
	if rewardCents != nil {
		rewardUsd = float64(rewardCents.Int64()) / 100.0
	}

	row := store.TournamentPlacement{
		TournamentID: tournamentID, HeroID: heroID, Wallet: wallet.Hex(),
		Placement: int(placement), RewardUsd: rewardUsd,
	}
	err = ti.db.Clauses(onConflictDoNothing("idx_placement_tourn_hero")).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to record placement %d/%d: %w", tournamentID, heroID, err)
	}
	return nil
}
