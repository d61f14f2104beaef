// Package aggregate collapses raw swap/reward events into per-pool,
// per-UTC-day rollups (spec §4.F). Grounded on the teacher's apr-utils
// constant-style documentation (blackhole.go's gas-cost/APR-adjacent
// comments) generalized into an explicit, parameterized BoostPolicy rather
// than inlined literals, per spec §9's open-question guidance.
package aggregate

// LPFeeShareBPS is the LP's share of a swap fee, in basis points. Spec §9
// resolves the "0.20% vs 0.25%" ambiguity in favor of 0.20% (matching the
// worked arithmetic in spec §4.F: "the LP share of a 0.30% swap fee is
// 0.20%").
const LPFeeShareBPS = 20

// BoostPolicy parameterizes the gardening-quest APR boost so it can be
// retuned without a code change (spec §9).
type BoostPolicy struct {
	Multiplier float64
}

// DefaultBoostPolicy preserves the hand-calibrated value named in spec §9.
func DefaultBoostPolicy() BoostPolicy {
	return BoostPolicy{Multiplier: 0.00012}
}

// CutoffPolicy parameterizes the UTC-day boundary used to bucket events
// into a daily aggregate, resolving spec §9's "8 PM ET vs [00:00,23:59:59)
// UTC" ambiguity in favor of a plain UTC calendar day, kept as a policy so
// an operator can repin it.
type CutoffPolicy struct {
	CutoffUTCHour int
}

// DefaultCutoffPolicy cuts the day at 00:00 UTC.
func DefaultCutoffPolicy() CutoffPolicy {
	return CutoffPolicy{CutoffUTCHour: 0}
}
