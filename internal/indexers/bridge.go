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

// bridgeTypeNames maps the contract's uint8 bridgeType enum onto spec §3's
// item/hero/equipment/pet vocabulary.
var bridgeTypeNames = []string{"item", "hero", "equipment", "pet"}

// PriceResolver answers a historical, then a live, USD price lookup for a
// token (spec §4.E bridge indexer: "computing USD via historical-price
// cache, falling back to DEX-derived prices").
type PriceResolver interface {
	HistoricalPrice(ctx context.Context, chainID int64, token string, day time.Time) (float64, bool, error)
	LivePrice(ctx context.Context, token string) (float64, bool)
}

// BridgeIndexer parses Synapse-style bridge events for items, heroes,
// equipment and pets (spec §4.E). Unpriced tokens are recorded in the
// UnpricedToken catalog rather than silently defaulting to zero.
type BridgeIndexer struct {
	db       *gorm.DB
	bridge   contractclient.ContractClient
	chainID  int64
	prices   PriceResolver
	blockTS  func(ctx context.Context, blockNumber uint64) (time.Time, error)
}

func NewBridgeIndexer(db *store.DB, bridge contractclient.ContractClient, chainID int64, prices PriceResolver, blockTS func(ctx context.Context, blockNumber uint64) (time.Time, error)) *BridgeIndexer {
	return &BridgeIndexer{db: db.DB, bridge: bridge, chainID: chainID, prices: prices, blockTS: blockTS}
}

func (bi *BridgeIndexer) FilterBuilder(from, to uint64) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{bi.bridge.ContractAddress()},
	}
}

func (bi *BridgeIndexer) Process(ctx context.Context, logs []types.Log) error {
	for _, l := range logs {
		eventName, ok := eventNameForTopic(bi.bridge.Abi(), topic0(l))
		if !ok {
			continue
		}
		direction := ""
		switch eventName {
		case "BridgeOut":
			direction = "out"
		case "BridgeIn":
			direction = "in"
		default:
			continue
		}

		out, err := bi.bridge.DecodeLog(eventName, l.Data)
		if err != nil {
			applog.For("indexers.bridge").WithError(err).WithField("txHash", l.TxHash.Hex()).Warn("failed to decode bridge log, skipping")
			continue
		}
		if len(out) < 5 || len(l.Topics) < 2 {
			continue
		}

		ts, err := bi.blockTS(ctx, l.BlockNumber)
		if err != nil {
			return fmt.Errorf("failed to resolve timestamp for block %d: %w", l.BlockNumber, err)
		}

		wallet := common.HexToAddress(l.Topics[1].Hex()).Hex()
		bridgeType := bridgeTypeName(out[0])
		token, _ := out[1].(common.Address)
		amount := asBigInt(out[2])
		var assetID *int64
		if id, ok := out[3].(*big.Int); ok && id.Sign() != 0 {
			v := id.Int64()
			assetID = &v
		}
		otherChainID := asBigInt(out[4])

		row := store.BridgeEvent{
			Wallet:     wallet,
			BridgeType: bridgeType,
			Direction:  direction,
			Token:      token.Hex(),
			Amount:     zeroString(amount),
			AssetID:    assetID,
			UsdValue:   bi.resolveUsd(ctx, token.Hex(), amount, ts),
			TxHash:     l.TxHash.Hex(),
			BlockNumber: l.BlockNumber,
			Timestamp:  ts,
		}
		if direction == "out" {
			row.SrcChainID = bi.chainID
			row.DstChainID = zeroIfNilInt(otherChainID)
		} else {
			row.SrcChainID = zeroIfNilInt(otherChainID)
			row.DstChainID = bi.chainID
		}

		err = bi.db.Clauses(onConflictDoNothing("idx_bridge_tx_wallet_type")).Create(&row).Error
		if err != nil {
			return fmt.Errorf("failed to upsert bridge event %s/%s/%s: %w", row.TxHash, row.Wallet, row.BridgeType, err)
		}
	}
	return nil
}

// resolveUsd tries the historical-price cache for the event's day, then a
// live DEX-derived price; a total miss records/increments an UnpricedToken
// row rather than silently returning zero.
func (bi *BridgeIndexer) resolveUsd(ctx context.Context, token string, amount *big.Int, ts time.Time) float64 {
	if amount == nil || amount.Sign() == 0 {
		return 0
	}
	amountF := new(big.Float).SetInt(amount)
	amountF64, _ := amountF.Float64()

	if price, ok, err := bi.prices.HistoricalPrice(ctx, bi.chainID, token, ts); err == nil && ok {
		return amountF64 * price
	}
	if price, ok := bi.prices.LivePrice(ctx, token); ok {
		return amountF64 * price
	}

	bi.recordUnpriced(token, ts)
	return 0
}

func (bi *BridgeIndexer) recordUnpriced(token string, seenAt time.Time) {
	var existing store.UnpricedToken
	err := bi.db.Where("chain_id = ? AND token = ?", bi.chainID, token).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		bi.db.Create(&store.UnpricedToken{
			ChainID: bi.chainID, Token: token, Status: "unresolved",
			FirstSeen: seenAt, LastSeen: seenAt, Occurrences: 1,
		})
		return
	}
	if err != nil {
		return
	}
	bi.db.Model(&existing).Updates(map[string]interface{}{
		"last_seen":   seenAt,
		"occurrences": existing.Occurrences + 1,
	})
}

func bridgeTypeName(v interface{}) string {
	n, ok := v.(uint8)
	if !ok {
		if bi, ok2 := v.(*big.Int); ok2 {
			n = uint8(bi.Int64())
		}
	}
	if int(n) < len(bridgeTypeNames) {
		return bridgeTypeNames[n]
	}
	return "item"
}

func zeroIfNilInt(v *big.Int) int64 {
	if v == nil {
		return 0
	}
	return v.Int64()
}
