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

// RewardIndexer parses RewardCollected events for one pid on the staking
// contract (spec §4.E).
type RewardIndexer struct {
	db      *gorm.DB
	staking contractclient.ContractClient
	chainID int64
	pid     int64
	blockTS func(ctx context.Context, blockNumber uint64) (time.Time, error)
}

func NewRewardIndexer(db *store.DB, staking contractclient.ContractClient, chainID, pid int64, blockTS func(ctx context.Context, blockNumber uint64) (time.Time, error)) *RewardIndexer {
	return &RewardIndexer{db: db.DB, staking: staking, chainID: chainID, pid: pid, blockTS: blockTS}
}

func (ri *RewardIndexer) FilterBuilder(from, to uint64) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{ri.staking.ContractAddress()},
	}
}

func (ri *RewardIndexer) Process(ctx context.Context, logs []types.Log) error {
	for _, l := range logs {
		eventName, ok := eventNameForTopic(ri.staking.Abi(), topic0(l))
		if !ok || eventName != "RewardCollected" {
			continue
		}

		out, err := ri.staking.DecodeLog(eventName, l.Data)
		if err != nil {
			applog.For("indexers.reward").WithError(err).WithField("txHash", l.TxHash.Hex()).Warn("failed to decode reward log, skipping")
			continue
		}
		if len(out) < 2 || len(l.Topics) < 2 {
			continue
		}

		ts, err := ri.blockTS(ctx, l.BlockNumber)
		if err != nil {
			return fmt.Errorf("failed to resolve timestamp for block %d: %w", l.BlockNumber, err)
		}

		wallet := common.HexToAddress(l.Topics[1].Hex()).Hex()
		rewardToken, _ := out[0].(common.Address)
		amount := asBigInt(out[1])

		row := store.RewardEvent{
			ChainID:     ri.chainID,
			Pid:         ri.pid,
			BlockNumber: l.BlockNumber,
			TxHash:      l.TxHash.Hex(),
			LogIndex:    uint(l.Index),
			Wallet:      wallet,
			RewardToken: rewardToken.Hex(),
			Amount:      zeroString(amount),
			Timestamp:   ts,
		}

		err = ri.db.Clauses(onConflictDoNothing("idx_reward_tx_log")).Create(&row).Error
		if err != nil {
			return fmt.Errorf("failed to upsert reward event %s/%d: %w", row.TxHash, row.LogIndex, err)
		}
	}
	return nil
}
