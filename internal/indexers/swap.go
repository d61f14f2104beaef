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

// SwapIndexer parses Swap events from one LP pair (spec §4.E). USD
// volume derivation happens in internal/aggregate from these raw rows at
// the event's block-day, not here — the indexer's job is strictly
// decode-normalize-upsert.
type SwapIndexer struct {
	db      *gorm.DB
	pair    contractclient.ContractClient
	chainID int64
	pid     int64
	blockTS func(ctx context.Context, blockNumber uint64) (time.Time, error)
}

func NewSwapIndexer(db *store.DB, pair contractclient.ContractClient, chainID, pid int64, blockTS func(ctx context.Context, blockNumber uint64) (time.Time, error)) *SwapIndexer {
	return &SwapIndexer{db: db.DB, pair: pair, chainID: chainID, pid: pid, blockTS: blockTS}
}

func (si *SwapIndexer) FilterBuilder(from, to uint64) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{si.pair.ContractAddress()},
	}
}

func (si *SwapIndexer) Process(ctx context.Context, logs []types.Log) error {
	for _, l := range logs {
		eventName, ok := eventNameForTopic(si.pair.Abi(), topic0(l))
		if !ok || eventName != "Swap" {
			continue
		}

		out, err := si.pair.DecodeLog(eventName, l.Data)
		if err != nil {
			applog.For("indexers.swap").WithError(err).WithField("txHash", l.TxHash.Hex()).Warn("failed to decode swap log, skipping")
			continue
		}
		if len(out) < 4 {
			continue
		}

		ts, err := si.blockTS(ctx, l.BlockNumber)
		if err != nil {
			return fmt.Errorf("failed to resolve timestamp for block %d: %w", l.BlockNumber, err)
		}

		row := store.SwapEvent{
			ChainID:     si.chainID,
			Pid:         si.pid,
			BlockNumber: l.BlockNumber,
			TxHash:      l.TxHash.Hex(),
			LogIndex:    uint(l.Index),
			Amount0In:   zeroString(asBigInt(out[0])),
			Amount1In:   zeroString(asBigInt(out[1])),
			Amount0Out:  zeroString(asBigInt(out[2])),
			Amount1Out:  zeroString(asBigInt(out[3])),
			Timestamp:   ts,
		}

		err = si.db.Clauses(onConflictDoNothing("idx_swap_tx_log")).Create(&row).Error
		if err != nil {
			return fmt.Errorf("failed to upsert swap event %s/%d: %w", row.TxHash, row.LogIndex, err)
		}
	}
	return nil
}

func asBigInt(v interface{}) *big.Int {
	n, _ := v.(*big.Int)
	return n
}
