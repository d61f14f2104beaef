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

// HuntIndexer parses hunt/patrol drop events, capturing a party-luck
// snapshot at the moment of the drop (spec §4.E).
type HuntIndexer struct {
	db      *gorm.DB
	hunting contractclient.ContractClient
	chainID int64
	blockTS func(ctx context.Context, blockNumber uint64) (time.Time, error)
}

func NewHuntIndexer(db *store.DB, hunting contractclient.ContractClient, chainID int64, blockTS func(ctx context.Context, blockNumber uint64) (time.Time, error)) *HuntIndexer {
	return &HuntIndexer{db: db.DB, hunting: hunting, chainID: chainID, blockTS: blockTS}
}

func (hi *HuntIndexer) FilterBuilder(from, to uint64) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{hi.hunting.ContractAddress()},
	}
}

func (hi *HuntIndexer) Process(ctx context.Context, logs []types.Log) error {
	for _, l := range logs {
		eventName, ok := eventNameForTopic(hi.hunting.Abi(), topic0(l))
		if !ok || eventName != "HuntDrop" {
			continue
		}

		out, err := hi.hunting.DecodeLog(eventName, l.Data)
		if err != nil {
			applog.For("indexers.hunt").WithError(err).WithField("txHash", l.TxHash.Hex()).Warn("failed to decode hunt log, skipping")
			continue
		}
		if len(out) < 4 || len(l.Topics) < 2 {
			continue
		}

		ts, err := hi.blockTS(ctx, l.BlockNumber)
		if err != nil {
			return fmt.Errorf("failed to resolve timestamp for block %d: %w", l.BlockNumber, err)
		}

		wallet := common.HexToAddress(l.Topics[1].Hex()).Hex()
		heroID := asBigInt(out[0])
		partyLuck := asBigInt(out[1])
		droppedItem, _ := out[2].(common.Address)
		droppedAmount := asBigInt(out[3])

		row := store.HuntingEncounter{
			ChainID:       hi.chainID,
			Wallet:        wallet,
			TxHash:        l.TxHash.Hex(),
			LogIndex:      uint(l.Index),
			HeroID:        zeroIfNilInt(heroID),
			PartyLuck:     int(zeroIfNilInt(partyLuck)),
			DroppedItem:   droppedItem.Hex(),
			DroppedAmount: zeroString(droppedAmount),
			BlockNumber:   l.BlockNumber,
			Timestamp:     ts,
		}

		err = hi.db.Clauses(onConflictDoNothing("idx_hunt_tx_log")).Create(&row).Error
		if err != nil {
			return fmt.Errorf("failed to upsert hunting encounter %s/%d: %w", row.TxHash, row.LogIndex, err)
		}
	}
	return nil
}
