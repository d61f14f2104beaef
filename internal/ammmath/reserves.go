// Package ammmath holds the fixed-point arithmetic shared by the price graph
// and the daily aggregator: reserve-ratio pricing and AMM fee/volume math,
// standardized on *big.Int for on-chain amounts and converting to *big.Float
// only at the final USD/APR presentation step, per spec §9's "mixed
// BigInt/float arithmetic" redesign flag. Grounded on the teacher's
// pkg/util tick/sqrt-price helpers (TickToSqrtPriceX96, SqrtPriceToPrice),
// generalized from concentrated-liquidity tick math to plain constant-
// product reserve ratios since this engine never mints or moves a
// concentrated-liquidity position (see DESIGN.md).
package ammmath

import "math/big"

// pow10 returns 10^n as a *big.Int.
func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// NormalizeReserve converts a raw on-chain reserve (smallest unit) into a
// human-scaled *big.Float given the token's decimals.
func NormalizeReserve(reserve *big.Int, decimals uint8) *big.Float {
	if reserve == nil {
		return big.NewFloat(0)
	}
	f := new(big.Float).SetInt(reserve)
	div := new(big.Float).SetInt(pow10(decimals))
	return new(big.Float).Quo(f, div)
}

// PairRate returns the decimal-normalized rate of token A expressed in units
// of token B: rateAB = (reserveA / 10^decA) is priced relative to
// (reserveB / 10^decB), i.e. how many B one A is worth:
//
//	rateAB = reserveB_normalized / reserveA_normalized
//
// This matches spec §4.C: "the edge carries two directed rates:
// rateAB = reserveA/reserveB after decimal normalization" read as "price of
// A in terms of B equals how much B-normalized-reserve backs one
// A-normalized-reserve unit".
func PairRate(reserveA, reserveB *big.Int, decimalsA, decimalsB uint8) (*big.Float, bool) {
	normA := NormalizeReserve(reserveA, decimalsA)
	normB := NormalizeReserve(reserveB, decimalsB)
	if normA.Sign() == 0 || normB.Sign() == 0 {
		return nil, false
	}
	return new(big.Float).Quo(normB, normA), true
}

// HasLiquidity reports whether both reserves are strictly positive, i.e.
// whether this pool contributes an edge to the price graph at all (spec
// invariant: empty-reserve pools contribute no edges).
func HasLiquidity(reserveA, reserveB *big.Int) bool {
	return reserveA != nil && reserveB != nil && reserveA.Sign() > 0 && reserveB.Sign() > 0
}

// ScaleByPrice multiplies a raw token amount (smallest unit, decimals
// `decimals`) by a USD unit price, returning USD value as a *big.Float. This
// is the single place raw integer amounts become floating point, per the
// redesign flag in spec §9.
func ScaleByPrice(amount *big.Int, decimals uint8, usdPrice *big.Float) *big.Float {
	if amount == nil || usdPrice == nil {
		return big.NewFloat(0)
	}
	normalized := NormalizeReserve(amount, decimals)
	return new(big.Float).Mul(normalized, usdPrice)
}

// BasisPoints converts an integer basis-points value (e.g. 20 = 0.20%) to a
// fractional multiplier.
func BasisPoints(bps int) *big.Float {
	return new(big.Float).Quo(big.NewFloat(float64(bps)), big.NewFloat(10000))
}

// AnnualizeAPR computes apr% = (dailyUsd / tvlUsd) * 365 * 100, returning 0
// when tvlUsd is zero or non-positive rather than dividing by zero.
func AnnualizeAPR(dailyUsd, tvlUsd *big.Float) float64 {
	if tvlUsd == nil || tvlUsd.Sign() <= 0 || dailyUsd == nil {
		return 0
	}
	ratio := new(big.Float).Quo(dailyUsd, tvlUsd)
	ratio.Mul(ratio, big.NewFloat(365*100))
	f, _ := ratio.Float64()
	return f
}

// Float64 safely extracts a float64 from a possibly-nil *big.Float.
func Float64(f *big.Float) float64 {
	if f == nil {
		return 0
	}
	v, _ := f.Float64()
	return v
}
