package aggregate

import (
	"fmt"
	"math/big"
	"time"

	"gorm.io/gorm"

	"github.com/hedgeledger/core/internal/ammmath"
	"github.com/hedgeledger/core/internal/applog"
	"github.com/hedgeledger/core/internal/store"
)

// DayBounds returns the [start, end) UTC window for the calendar day
// containing t, cut at policy.CutoffUTCHour.
func (p CutoffPolicy) DayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), p.CutoffUTCHour, 0, 0, 0, time.UTC)
	if t.Before(start) {
		start = start.AddDate(0, 0, -1)
	}
	return start, start.AddDate(0, 0, 1)
}

// PriceLookup resolves a token's USD price at a given day, as produced by
// internal/pricegraph. A missing entry means "price unknown" (spec §7):
// the amount is excluded from volumeUsd/feesUsd rather than treated as
// zero.
type PriceLookup func(token string, day time.Time) (*big.Float, bool)

// PoolSnapshot carries the day-end TVL inputs for one pool (spec §4.F:
// "tvlUsd at day-end = price graph applied to (totalStakedV2·lpUnit +
// v1LegacyBalance·lpUnit)").
type PoolSnapshot struct {
	Pid           int64
	Token0        string
	Token1        string
	Decimals0     uint8
	Decimals1     uint8
	TotalStakedV2 *big.Int // LP units staked in the V2 contract
	V1Legacy      *big.Int // LP units still held in the legacy V1 contract
	LpReserve0    *big.Int // the pool's total reserves; shareOfReserve scales them by lpUnits/LpTotalSupply
	LpReserve1    *big.Int
	LpTotalSupply *big.Int
}

// Aggregator computes and persists PoolDailyAggregate rows.
type Aggregator struct {
	db     *gorm.DB
	price  PriceLookup
	cutoff CutoffPolicy
}

func New(db *store.DB, price PriceLookup, cutoff CutoffPolicy) *Aggregator {
	return &Aggregator{db: db.DB, price: price, cutoff: cutoff}
}

// RunDay computes pid's aggregate for the UTC day containing day and
// upserts it on (pid, date) (spec §4.F).
func (a *Aggregator) RunDay(chainID int64, pid int64, day time.Time, snapshot PoolSnapshot) error {
	log := applog.For("aggregate").WithField("pid", pid)
	start, end := a.cutoff.DayBounds(day)

	var swaps []store.SwapEvent
	if err := a.db.Where("chain_id = ? AND pid = ? AND timestamp >= ? AND timestamp < ?", chainID, pid, start, end).Find(&swaps).Error; err != nil {
		return fmt.Errorf("failed to load swap events for pid %d: %w", pid, err)
	}
	var rewards []store.RewardEvent
	if err := a.db.Where("chain_id = ? AND pid = ? AND timestamp >= ? AND timestamp < ?", chainID, pid, start, end).Find(&rewards).Error; err != nil {
		return fmt.Errorf("failed to load reward events for pid %d: %w", pid, err)
	}

	volumeUsd, swapCount := a.sumSwapVolume(swaps, snapshot, start)
	feesUsd := volumeUsd * (float64(LPFeeShareBPS) / 10000.0)
	rewardsToken, rewardsUsd := a.sumRewards(rewards, snapshot, start)

	tvlUsd := a.tvl(snapshot, start)
	harvestTvl := a.harvestTvl(snapshot, start)

	feeApr := ammmath.AnnualizeAPR(big.NewFloat(feesUsd), big.NewFloat(tvlUsd))
	harvestApr := ammmath.AnnualizeAPR(big.NewFloat(rewardsUsd), big.NewFloat(harvestTvl))

	row := store.PoolDailyAggregate{
		ChainID:          chainID,
		Pid:              pid,
		Date:             start,
		VolumeUsd:        volumeUsd,
		FeesUsd:          feesUsd,
		RewardsToken:     rewardsToken,
		RewardsUsd:       rewardsUsd,
		TvlUsd:           tvlUsd,
		FeeApr:           feeApr,
		HarvestApr:       harvestApr,
		TotalApr:         feeApr + harvestApr,
		SwapCount:        swapCount,
		RewardEventCount: len(rewards),
	}

	err := a.db.Where(store.PoolDailyAggregate{ChainID: chainID, Pid: pid, Date: start}).
		Assign(row).
		FirstOrCreate(&store.PoolDailyAggregate{}).Error
	if err != nil {
		return fmt.Errorf("failed to upsert daily aggregate for pid %d: %w", pid, err)
	}

	log.WithField("volumeUsd", volumeUsd).WithField("tvlUsd", tvlUsd).Info("daily aggregate written")
	return nil
}

func (a *Aggregator) sumSwapVolume(swaps []store.SwapEvent, snapshot PoolSnapshot, day time.Time) (float64, int) {
	total := 0.0
	priced := 0
	for _, s := range swaps {
		in0, _ := new(big.Int).SetString(s.Amount0In, 10)
		in1, _ := new(big.Int).SetString(s.Amount1In, 10)
		if usd, ok := a.usdValue(snapshot.Token0, snapshot.Decimals0, in0, day); ok {
			total += usd
			priced++
		}
		if usd, ok := a.usdValue(snapshot.Token1, snapshot.Decimals1, in1, day); ok {
			total += usd
			priced++
		}
	}
	return total, len(swaps)
}

func (a *Aggregator) sumRewards(rewards []store.RewardEvent, snapshot PoolSnapshot, day time.Time) (string, float64) {
	total := new(big.Int)
	usd := 0.0
	for _, r := range rewards {
		amt, _ := new(big.Int).SetString(r.Amount, 10)
		if amt != nil {
			total.Add(total, amt)
		}
		if v, ok := a.usdValue(r.RewardToken, 18, amt, day); ok {
			usd += v
		}
	}
	return total.String(), usd
}

func (a *Aggregator) usdValue(token string, decimals uint8, amount *big.Int, day time.Time) (float64, bool) {
	if amount == nil || a.price == nil {
		return 0, false
	}
	price, ok := a.price(token, day)
	if !ok {
		return 0, false
	}
	return ammmath.Float64(ammmath.ScaleByPrice(amount, decimals, price)), true
}

// tvl computes day-end TVL over both V2 and legacy V1 staked balances.
func (a *Aggregator) tvl(s PoolSnapshot, day time.Time) float64 {
	total := new(big.Int).Set(zeroIfNil(s.TotalStakedV2))
	total.Add(total, zeroIfNil(s.V1Legacy))
	return a.lpValueUsd(s, total, day)
}

// harvestTvl is V2-only TVL, used for the emission/harvest APR (spec §4.F:
// "harvestApr uses V2-only TVL").
func (a *Aggregator) harvestTvl(s PoolSnapshot, day time.Time) float64 {
	return a.lpValueUsd(s, zeroIfNil(s.TotalStakedV2), day)
}

func (a *Aggregator) lpValueUsd(s PoolSnapshot, lpUnits *big.Int, day time.Time) float64 {
	if s.LpTotalSupply == nil || s.LpTotalSupply.Sign() == 0 {
		return 0
	}
	price0, ok0 := a.price(s.Token0, day)
	price1, ok1 := a.price(s.Token1, day)

	value0 := big.NewFloat(0)
	if ok0 {
		share0 := shareOfReserve(s.LpReserve0, lpUnits, s.LpTotalSupply)
		value0 = ammmath.ScaleByPrice(share0, s.Decimals0, price0)
	}
	value1 := big.NewFloat(0)
	if ok1 {
		share1 := shareOfReserve(s.LpReserve1, lpUnits, s.LpTotalSupply)
		value1 = ammmath.ScaleByPrice(share1, s.Decimals1, price1)
	}

	total := new(big.Float).Add(value0, value1)
	return ammmath.Float64(total)
}

// shareOfReserve returns reserve * lpUnits / totalSupply, the portion of a
// pool's reserve backing lpUnits worth of LP tokens.
func shareOfReserve(reserve, lpUnits, totalSupply *big.Int) *big.Int {
	if reserve == nil || lpUnits == nil || totalSupply == nil || totalSupply.Sign() == 0 {
		return big.NewInt(0)
	}
	numerator := new(big.Int).Mul(reserve, lpUnits)
	return numerator.Div(numerator, totalSupply)
}

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
