package ammmath

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairRateUSDCJewel(t *testing.T) {
	// USDC-JEWEL pool, reserves (100, 50), both 18 decimals for simplicity ->
	// JEWEL should be worth $2.00 per spec §8 scenario 2.
	reserveUSDC := big.NewInt(100)
	reserveJewel := big.NewInt(50)

	rate, ok := PairRate(reserveJewel, reserveUSDC, 0, 0)
	assert.True(t, ok)
	got, _ := rate.Float64()
	assert.InDelta(t, 2.0, got, 1e-9)
}

func TestPairRateCrystal(t *testing.T) {
	// JEWEL-CRYSTAL reserves (200, 800): PairRate(crystal, jewel) is
	// jewel/crystal = 200/800 = 0.25 JEWEL per CRYSTAL, so CRYSTAL = $0.50
	// when JEWEL = $2 (price propagation is handled by the graph; here we
	// check the edge math in isolation).
	reserveJewel := big.NewInt(200)
	reserveCrystal := big.NewInt(800)

	rate, ok := PairRate(reserveCrystal, reserveJewel, 0, 0)
	assert.True(t, ok)
	got, _ := rate.Float64()
	assert.InDelta(t, 0.25, got, 1e-9)
}

func TestHasLiquidity(t *testing.T) {
	assert.True(t, HasLiquidity(big.NewInt(1), big.NewInt(1)))
	assert.False(t, HasLiquidity(big.NewInt(0), big.NewInt(1)))
	assert.False(t, HasLiquidity(big.NewInt(1), big.NewInt(0)))
	assert.False(t, HasLiquidity(nil, big.NewInt(1)))
}

func TestAnnualizeAPR(t *testing.T) {
	daily := big.NewFloat(100)
	tvl := big.NewFloat(10000)
	apr := AnnualizeAPR(daily, tvl)
	assert.InDelta(t, 365.0, apr, 1e-6)

	assert.Equal(t, float64(0), AnnualizeAPR(daily, big.NewFloat(0)))
	assert.Equal(t, float64(0), AnnualizeAPR(daily, nil))
}

func TestScaleByPrice(t *testing.T) {
	amount := big.NewInt(2_000000) // 2 tokens @ 6 decimals
	price := big.NewFloat(1.5)
	usd := ScaleByPrice(amount, 6, price)
	got, _ := usd.Float64()
	assert.InDelta(t, 3.0, got, 1e-9)
}
