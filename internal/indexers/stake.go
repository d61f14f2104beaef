package indexers

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/hedgeledger/core/internal/applog"
	"github.com/hedgeledger/core/internal/contractclient"
	"github.com/hedgeledger/core/internal/store"
)

// reconcileBatch bounds the bounded-parallel userInfo reconciliation spec
// §4.E names ("~10").
const reconcileBatch = 10

// StakeIndexer consumes Deposit/Withdraw logs from the staking contract,
// upserts StakerPosition last-writer-wins by (wallet,pid), then
// authoritatively re-reads userInfo for every wallet touched in the tick
// to correct for events missed at a slice boundary (spec §4.E).
type StakeIndexer struct {
	db      *gorm.DB
	staking contractclient.ContractClient
	chainID int64
}

func NewStakeIndexer(db *store.DB, staking contractclient.ContractClient, chainID int64) *StakeIndexer {
	return &StakeIndexer{db: db.DB, staking: staking, chainID: chainID}
}

// FilterBuilder returns the Deposit/Withdraw log filter for [from,to].
func (si *StakeIndexer) FilterBuilder(from, to uint64) ethereum.FilterQuery {
	fromBig := new(big.Int).SetUint64(from)
	toBig := new(big.Int).SetUint64(to)
	addr := si.staking.ContractAddress()
	return ethereum.FilterQuery{
		FromBlock: fromBig,
		ToBlock:   toBig,
		Addresses: []common.Address{addr},
	}
}

// Process decodes each log as Deposit or Withdraw, upserts StakerPosition,
// then reconciles every touched wallet against the authoritative on-chain
// userInfo view.
func (si *StakeIndexer) Process(ctx context.Context, logs []types.Log) error {
	touched := map[stakeKey]struct{}{}

	for _, l := range logs {
		eventName, ok := eventNameForTopic(si.staking.Abi(), topic0(l))
		if !ok || (eventName != "Deposit" && eventName != "Withdraw") {
			continue
		}

		out, err := si.staking.DecodeLog(eventName, l.Data)
		if err != nil {
			applog.For("indexers.stake").WithError(err).WithField("txHash", l.TxHash.Hex()).Warn("failed to decode stake log, skipping")
			continue
		}
		if len(l.Topics) < 3 || len(out) < 1 {
			continue
		}

		wallet := common.HexToAddress(l.Topics[1].Hex()).Hex()
		pid := new(big.Int).SetBytes(l.Topics[2].Bytes()).Int64()
		amount, _ := out[0].(*big.Int)

		activityType := "deposit"
		if eventName == "Withdraw" {
			activityType = "withdraw"
		}

		event := store.PoolStakeEvent{
			ChainID:      si.chainID,
			Pid:          pid,
			BlockNumber:  l.BlockNumber,
			TxHash:       l.TxHash.Hex(),
			LogIndex:     uint(l.Index),
			Wallet:       wallet,
			ActivityType: activityType,
			Amount:       zeroString(amount),
		}
		if err := si.db.Clauses(onConflictDoNothing("idx_stake_tx_log")).Create(&event).Error; err != nil {
			return fmt.Errorf("failed to upsert stake event %s/%d: %w", event.TxHash, event.LogIndex, err)
		}

		row := store.StakerPosition{
			Wallet: wallet, Pid: pid, ChainID: si.chainID,
			StakedLp:           zeroString(amount),
			LastActivityType:   activityType,
			LastActivityBlock:  l.BlockNumber,
			LastActivityTxHash: l.TxHash.Hex(),
		}
		err = si.db.Where(store.StakerPosition{Wallet: wallet, Pid: pid}).
			Assign(row).
			FirstOrCreate(&store.StakerPosition{}).Error
		if err != nil {
			return fmt.Errorf("failed to upsert staker position %s/%d: %w", wallet, pid, err)
		}

		touched[stakeKey{wallet: wallet, pid: pid}] = struct{}{}
	}

	return si.reconcile(ctx, touched)
}

type stakeKey struct {
	wallet string
	pid    int64
}

func (si *StakeIndexer) reconcile(ctx context.Context, touched map[stakeKey]struct{}) error {
	if len(touched) == 0 {
		return nil
	}

	keys := make([]stakeKey, 0, len(touched))
	for k := range touched {
		keys = append(keys, k)
	}

	group, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, reconcileBatch)
	for _, k := range keys {
		k := k
		group.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}

			out, err := si.staking.Call(gctx, nil, "userInfo", big.NewInt(k.pid), common.HexToAddress(k.wallet))
			if err != nil {
				return fmt.Errorf("failed to read userInfo(%d,%s): %w", k.pid, k.wallet, err)
			}
			if len(out) == 0 {
				return nil
			}
			amount, ok := out[0].(*big.Int)
			if !ok {
				return nil
			}

			return si.db.Model(&store.StakerPosition{}).
				Where("wallet = ? AND pid = ?", k.wallet, k.pid).
				Updates(map[string]interface{}{"staked_lp": zeroString(amount), "updated_at": time.Now().UTC()}).Error
		})
	}
	return group.Wait()
}

func zeroString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
