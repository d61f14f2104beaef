package indexers

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"gorm.io/gorm"

	"github.com/hedgeledger/core/internal/applog"
	"github.com/hedgeledger/core/internal/contractclient"
	"github.com/hedgeledger/core/internal/store"
)

// SummonIndexer parses hero-breeding events into a SummonSession and its
// resulting SummonOffspring (SPEC_FULL.md supplemented feature). It
// follows the worker contract of spec §4.E exactly: checkpointed,
// chunked, idempotent on (TxHash, LogIndex).
type SummonIndexer struct {
	db      *gorm.DB
	nursery contractclient.ContractClient
	chainID int64
	blockTS func(ctx context.Context, blockNumber uint64) (time.Time, error)
}

func NewSummonIndexer(db *store.DB, nursery contractclient.ContractClient, chainID int64, blockTS func(ctx context.Context, blockNumber uint64) (time.Time, error)) *SummonIndexer {
	return &SummonIndexer{db: db.DB, nursery: nursery, chainID: chainID, blockTS: blockTS}
}

func (si *SummonIndexer) FilterBuilder(from, to uint64) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{si.nursery.ContractAddress()},
	}
}

func (si *SummonIndexer) Process(ctx context.Context, logs []types.Log) error {
	for _, l := range logs {
		eventName, ok := eventNameForTopic(si.nursery.Abi(), topic0(l))
		if !ok || eventName != "SummonCompleted" {
			continue
		}

		out, err := si.nursery.DecodeLog(eventName, l.Data)
		if err != nil {
			applog.For("indexers.summon").WithError(err).WithField("txHash", l.TxHash.Hex()).Warn("failed to decode summon log, skipping")
			continue
		}
		if len(out) < 4 || len(l.Topics) < 3 {
			continue
		}

		ts, err := si.blockTS(ctx, l.BlockNumber)
		if err != nil {
			return fmt.Errorf("failed to resolve timestamp for block %d: %w", l.BlockNumber, err)
		}

		summonerHero := new(big.Int).SetBytes(l.Topics[1].Bytes()).Int64()
		assistantHero := new(big.Int).SetBytes(l.Topics[2].Bytes()).Int64()
		owner, _ := out[0].(common.Address)
		cost := asBigInt(out[1])
		offspringHeroID := zeroIfNilInt(asBigInt(out[2]))
		genesSummary, _ := out[3].(string)

		session := store.SummonSession{
			ChainID: si.chainID, TxHash: l.TxHash.Hex(), LogIndex: uint(l.Index),
			SummonerHeroID: summonerHero, AssistantHeroID: assistantHero,
			Owner: owner.Hex(), Cost: zeroString(cost),
			BlockNumber: l.BlockNumber, Timestamp: ts,
		}
		if err := si.db.Clauses(onConflictDoNothing("idx_summon_tx_log")).Create(&session).Error; err != nil {
			return fmt.Errorf("failed to upsert summon session %s/%d: %w", session.TxHash, session.LogIndex, err)
		}
		if session.ID == 0 {
			// Row already existed (conflict was discarded); re-fetch so the
			// offspring row below can reference its SummonSessionID.
			if err := si.db.Where("tx_hash = ? AND log_index = ?", session.TxHash, session.LogIndex).First(&session).Error; err != nil {
				return fmt.Errorf("failed to reload summon session %s/%d: %w", session.TxHash, session.LogIndex, err)
			}
		}

		offspring := store.SummonOffspring{
			SummonSessionID: session.ID, OffspringHeroID: offspringHeroID, GenesSummary: genesSummary,
		}
		err = si.db.Where(store.SummonOffspring{OffspringHeroID: offspringHeroID}).
			Assign(offspring).FirstOrCreate(&store.SummonOffspring{}).Error
		if err != nil {
			return fmt.Errorf("failed to upsert summon offspring %d: %w", offspringHeroID, err)
		}
	}
	return nil
}

// RunDailyConversion rolls SummonSessions and SummonSalesOutcomes for one
// UTC day into a SummonConversionMetrics row, the summon-funnel analogue
// of aggregate.RunDay (SPEC_FULL.md supplemented feature).
func RunDailyConversion(dbHandle *store.DB, day time.Time) error {
	db := dbHandle.DB
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	var started int64
	if err := db.Model(&store.SummonSession{}).
		Where("timestamp >= ? AND timestamp < ?", start, end).Count(&started).Error; err != nil {
		return fmt.Errorf("failed to count summon sessions for %s: %w", start, err)
	}

	var sold []store.SummonSalesOutcome
	if err := db.Where("sold = ? AND sold_at >= ? AND sold_at < ?", true, start, end).Find(&sold).Error; err != nil {
		return fmt.Errorf("failed to load summon sales outcomes for %s: %w", start, err)
	}

	var totalSale float64
	for _, s := range sold {
		totalSale += s.SalePriceUsd
	}
	avgSale := 0.0
	conversionRate := 0.0
	if len(sold) > 0 {
		avgSale = totalSale / float64(len(sold))
	}
	if started > 0 {
		conversionRate = float64(len(sold)) / float64(started)
	}

	row := store.SummonConversionMetrics{
		Date: start, SummonsStarted: int(started), OffspringSold: len(sold),
		ConversionRate: conversionRate, AvgSalePriceUsd: avgSale,
	}
	return db.Where(store.SummonConversionMetrics{Date: start}).Assign(row).
		FirstOrCreate(&store.SummonConversionMetrics{}).Error
}
