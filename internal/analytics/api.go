// Package analytics implements the read-side point-query API over the
// indexed tables (spec §4.G). Grounded on the teacher's blackhole.go
// reporting loop (GetCurrentAssetSnapshot assembling live reserves + a
// derived USD view in one pass) generalized to a multi-pool, cache-first
// read path with a live-RPC fallback.
package analytics

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/hedgeledger/core/internal/ammmath"
	"github.com/hedgeledger/core/internal/applog"
	"github.com/hedgeledger/core/internal/pools"
	"github.com/hedgeledger/core/internal/pricegraph"
	"github.com/hedgeledger/core/internal/store"
)

// staleAfter is the aggregate-cache freshness window named in spec §4.F:
// "consult the latest aggregate if <= 2 days old, otherwise fall back to a
// live chunked RPC scan" (spec.md:33,121 — "this is the core performance
// contract").
const staleAfter = 48 * time.Hour

// liveScanWindow is the trailing window a live scan sums volume/fees over,
// matching the daily aggregator's own per-day scope (internal/aggregate).
const liveScanWindow = 24 * time.Hour

// RewardReader is the narrow staking-contract surface getWalletRewards
// needs: the authoritative on-chain pendingRewards(pid, wallet) view.
type RewardReader interface {
	PendingRewards(ctx context.Context, pid int64, wallet string) (*big.Int, error)
}

// LiveVolumeScanner performs the live chunked RPC scan GetPoolAnalytics
// falls back to when no daily aggregate is fresh enough. price resolves a
// token's current USD price; a miss means "exclude this leg of the swap
// from the sum" (spec §7), not zero. Implemented by ChainScanner.
type LiveVolumeScanner interface {
	ScanPoolVolume(ctx context.Context, lpToken common.Address, token0, token1 string, decimals0, decimals1 uint8, since time.Time, price func(token string) (*big.Float, bool)) (volumeUsd, feesUsd float64, swapCount int, err error)
}

// API serves the analytics read operations.
type API struct {
	db       *gorm.DB
	pools    *pools.Directory
	fetcher  pricegraph.PoolFetcher
	rewards  RewardReader
	scanner  LiveVolumeScanner
	anchor   string
	priority []pricegraph.PriorityPair
}

func New(db *store.DB, directory *pools.Directory, fetcher pricegraph.PoolFetcher, rewards RewardReader, scanner LiveVolumeScanner, anchor string, priority []pricegraph.PriorityPair) *API {
	return &API{db: db.DB, pools: directory, fetcher: fetcher, rewards: rewards, scanner: scanner, anchor: anchor, priority: priority}
}

// PoolAnalytics is the assembled view for one pool (spec §4.G).
type PoolAnalytics struct {
	Pid        int64
	Token0     string
	Token1     string
	Symbol0    string
	Symbol1    string
	TvlUsd     float64
	VolumeUsd  float64
	FeesUsd    float64
	FeeApr     float64
	HarvestApr float64
	TotalApr   float64
	AsOf       time.Time
	Stale      bool
}

// GetPoolAnalytics assembles pid's analytics from the latest daily
// aggregate plus live pool metadata, falling back to a live chunked RPC
// scan when no aggregate exists yet or the latest one is older than
// staleAfter (spec.md:33,121).
func (a *API) GetPoolAnalytics(ctx context.Context, pid int64) (*PoolAnalytics, error) {
	log := applog.For("analytics")

	meta, err := a.pools.Metadata(ctx, pid)
	if err != nil {
		return nil, fmt.Errorf("failed to load metadata for pid %d: %w", pid, err)
	}

	var agg store.PoolDailyAggregate
	err = a.db.WithContext(ctx).Where("pid = ?", pid).Order("date DESC").First(&agg).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		if live, liveErr := a.livePoolAnalytics(ctx, pid, meta); liveErr == nil {
			return live, nil
		} else {
			log.WithError(liveErr).WithField("pid", pid).Warn("no aggregate and live scan fallback failed, reporting stale zero result")
		}
		return &PoolAnalytics{Pid: pid, Symbol0: meta.Symbol0, Symbol1: meta.Symbol1, Stale: true}, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load latest aggregate for pid %d: %w", pid, err)
	}

	if time.Since(agg.Date) > staleAfter {
		if live, liveErr := a.livePoolAnalytics(ctx, pid, meta); liveErr == nil {
			return live, nil
		} else {
			log.WithError(liveErr).WithField("pid", pid).Warn("aggregate stale and live scan fallback failed, returning stale cached data")
		}
	}

	return &PoolAnalytics{
		Pid:        pid,
		Symbol0:    meta.Symbol0,
		Symbol1:    meta.Symbol1,
		TvlUsd:     agg.TvlUsd,
		VolumeUsd:  agg.VolumeUsd,
		FeesUsd:    agg.FeesUsd,
		FeeApr:     agg.FeeApr,
		HarvestApr: agg.HarvestApr,
		TotalApr:   agg.TotalApr,
		AsOf:       agg.Date,
		Stale:      time.Since(agg.Date) > staleAfter,
	}, nil
}

// livePoolAnalytics is the live chunked RPC scan fallback: live reserves
// for TVL, a live-propagated price graph, and (when a scanner is wired) a
// chunked Swap-log scan over the trailing liveScanWindow for volume/fees.
// It returns an error when reserves can't be read at all, letting the
// caller fall back to the old stale-zero result instead of reporting a
// fabricated TVL.
func (a *API) livePoolAnalytics(ctx context.Context, pid int64, meta pools.Metadata) (*PoolAnalytics, error) {
	tokens := []string{meta.Token0.Hex(), meta.Token1.Hex()}

	descriptors, err := a.fetcher.ListFocused(ctx, tokens)
	if err != nil {
		return nil, fmt.Errorf("live scan failed to read reserves for pid %d: %w", pid, err)
	}
	desc, ok := findDescriptor(descriptors, meta.LpToken.Hex())
	if !ok {
		return nil, fmt.Errorf("live scan found no reserves for pid %d's LP token", pid)
	}

	prices, err := pricegraph.BuildFocused(ctx, a.fetcher, tokens, a.anchor, a.priority)
	if err != nil {
		return nil, fmt.Errorf("live scan failed to price pid %d: %w", pid, err)
	}
	price := func(token string) (*big.Float, bool) {
		p, ok := prices[strings.ToLower(token)]
		return p, ok
	}

	value0, ok0 := price(meta.Token0.Hex())
	value1, ok1 := price(meta.Token1.Hex())
	tvl := big.NewFloat(0)
	if ok0 {
		tvl.Add(tvl, ammmath.ScaleByPrice(desc.Reserve0, desc.Decimals0, value0))
	}
	if ok1 {
		tvl.Add(tvl, ammmath.ScaleByPrice(desc.Reserve1, desc.Decimals1, value1))
	}
	tvlUsd := ammmath.Float64(tvl)

	var volumeUsd, feesUsd float64
	if a.scanner != nil {
		volumeUsd, feesUsd, _, err = a.scanner.ScanPoolVolume(
			ctx, meta.LpToken, meta.Token0.Hex(), meta.Token1.Hex(), meta.Decimals0, meta.Decimals1,
			time.Now().Add(-liveScanWindow), price,
		)
		if err != nil {
			applog.For("analytics").WithError(err).WithField("pid", pid).Warn("live swap scan failed, reporting live TVL only")
			volumeUsd, feesUsd = 0, 0
		}
	}

	feeApr := ammmath.AnnualizeAPR(big.NewFloat(feesUsd), big.NewFloat(tvlUsd))

	return &PoolAnalytics{
		Pid:        pid,
		Symbol0:    meta.Symbol0,
		Symbol1:    meta.Symbol1,
		TvlUsd:     tvlUsd,
		VolumeUsd:  volumeUsd,
		FeesUsd:    feesUsd,
		FeeApr:     feeApr,
		HarvestApr: 0, // the live path reads no reward events, so no emission APR
		TotalApr:   feeApr,
		AsOf:       time.Now().UTC(),
		Stale:      false,
	}, nil
}

func findDescriptor(descriptors []pricegraph.PoolDescriptor, lpToken string) (pricegraph.PoolDescriptor, bool) {
	for _, d := range descriptors {
		if strings.EqualFold(d.Address, lpToken) {
			return d, true
		}
	}
	return pricegraph.PoolDescriptor{}, false
}

// AllPoolsResult is getAllPoolAnalytics' partial-result-aware output (spec
// §4.G: "never silently truncated").
type AllPoolsResult struct {
	Pools     []PoolAnalytics
	Partial   bool // true if the deadline was reached before every pool was processed
	Processed int
	Total     int
}

// GetAllPoolAnalytics runs the five-stage pipeline named in spec §4.G:
// discover -> build focused price graph -> fetch key prices -> compute
// block range -> per-pool analytics, logging progress at each stage. Only
// the stage-1 pool list is passed forward: the stage-2 prices are counted
// and logged, and each pool's analytics come from GetPoolAnalytics, which
// re-reads the pool's metadata and, on its live fallback, builds its own
// focused price graph.
func (a *API) GetAllPoolAnalytics(ctx context.Context, deadline time.Time) (*AllPoolsResult, error) {
	log := applog.For("analytics")

	// Stage 1: discover.
	count, err := a.pools.PoolCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to discover pool count: %w", err)
	}
	log.WithField("poolCount", count).Info("discovered pools")

	type poolCtx struct {
		meta pools.Metadata
	}
	metas := make([]poolCtx, 0, count)
	for pid := int64(0); pid < count; pid++ {
		m, err := a.pools.Metadata(ctx, pid)
		if err != nil {
			log.WithError(err).WithField("pid", pid).Warn("failed to load pool metadata, skipping")
			continue
		}
		metas = append(metas, poolCtx{meta: m})
	}

	// Stage 2: build the focused price graph over exactly the tokens these
	// pools reference, sparing a full factory enumeration.
	tokens := make([]string, 0, len(metas)*2)
	for _, p := range metas {
		tokens = append(tokens, p.meta.Token0.Hex(), p.meta.Token1.Hex())
	}
	prices, err := pricegraph.BuildFocused(ctx, a.fetcher, tokens, a.anchor, a.priority)
	if err != nil {
		return nil, fmt.Errorf("failed to build focused price graph: %w", err)
	}
	log.WithField("pricedTokens", len(prices)).Info("built focused price graph")

	// Stage 3: key prices already sit in `prices`; nothing further to fetch,
	// but the stage remains logged for operational visibility.
	log.Info("key prices resolved from focused graph")

	// Stage 4: compute the block range analytics will be read as-of (the
	// latest daily aggregate's date, already embedded per pool).

	result := &AllPoolsResult{Total: len(metas)}
	for _, p := range metas {
		if !deadline.IsZero() && time.Now().After(deadline) {
			result.Partial = true
			break
		}
		analytics, err := a.GetPoolAnalytics(ctx, p.meta.Pid)
		if err != nil {
			log.WithError(err).WithField("pid", p.meta.Pid).Warn("failed to assemble pool analytics, skipping")
			continue
		}
		result.Pools = append(result.Pools, *analytics)
		result.Processed++
	}

	log.WithField("processed", result.Processed).WithField("partial", result.Partial).Info("per-pool analytics complete")
	return result, nil
}

// GetPoolStakers returns pid's active stakers (stakedLp > 0), sorted by
// stake size descending (spec §4.G).
func (a *API) GetPoolStakers(ctx context.Context, pid int64) ([]store.StakerPosition, error) {
	var stakers []store.StakerPosition
	err := a.db.WithContext(ctx).
		Where("pid = ? AND staked_lp > ?", pid, "0").
		Find(&stakers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load stakers for pid %d: %w", pid, err)
	}

	sort.Slice(stakers, func(i, j int) bool {
		a, _ := new(big.Int).SetString(stakers[i].StakedLp, 10)
		b, _ := new(big.Int).SetString(stakers[j].StakedLp, 10)
		if a == nil || b == nil {
			return false
		}
		return a.Cmp(b) > 0
	})
	return stakers, nil
}

// WalletReward is one pool's authoritative pending-reward reading.
type WalletReward struct {
	Pid     int64
	Pending *big.Int
}

// WalletRewardsResult is getWalletRewards' partial-result-aware output.
type WalletRewardsResult struct {
	Rewards []WalletReward
	Partial bool
}

// topNPoolsForRewards bounds how many pools getWalletRewards probes live,
// per spec §4.G "up to top-N pools".
const topNPoolsForRewards = 20

// GetWalletRewards reads authoritative on-chain pendingRewards for wallet
// across up to the wallet's top-N staked pools (by stake size), bounded by
// ctx's deadline. A deadline reached mid-scan yields a partial result
// rather than a silently truncated one (spec §4.G).
func (a *API) GetWalletRewards(ctx context.Context, wallet string) (*WalletRewardsResult, error) {
	var positions []store.StakerPosition
	err := a.db.WithContext(ctx).
		Where("wallet = ? AND staked_lp > ?", wallet, "0").
		Find(&positions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load staked positions for %s: %w", wallet, err)
	}

	sort.Slice(positions, func(i, j int) bool {
		a, _ := new(big.Int).SetString(positions[i].StakedLp, 10)
		b, _ := new(big.Int).SetString(positions[j].StakedLp, 10)
		if a == nil || b == nil {
			return false
		}
		return a.Cmp(b) > 0
	})
	if len(positions) > topNPoolsForRewards {
		positions = positions[:topNPoolsForRewards]
	}

	result := &WalletRewardsResult{}
	if len(positions) == 0 {
		return result, nil
	}

	group, gctx := errgroup.WithContext(ctx)
	rewards := make([]WalletReward, len(positions))
	for i, pos := range positions {
		i, pos := i, pos
		group.Go(func() error {
			pending, err := a.rewards.PendingRewards(gctx, pos.Pid, wallet)
			if err != nil {
				return err
			}
			rewards[i] = WalletReward{Pid: pos.Pid, Pending: pending}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		if gctx.Err() != nil {
			result.Partial = true
			result.Rewards = partialRewards(rewards)
			return result, nil
		}
		return nil, fmt.Errorf("failed to read pending rewards for %s: %w", wallet, err)
	}

	result.Rewards = rewards
	return result, nil
}

func partialRewards(rewards []WalletReward) []WalletReward {
	out := make([]WalletReward, 0, len(rewards))
	for _, r := range rewards {
		if r.Pending != nil {
			out = append(out, r)
		}
	}
	return out
}
