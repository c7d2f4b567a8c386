package reserve

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"lendcore/address"
	"lendcore/coreerr"
	"lendcore/fixedpoint"
)

func testConfig() *Config {
	return &Config{
		Asset:      address.MustNew(address.AssetPrefix, make([]byte, 20)),
		Index:      0,
		Decimals:   7,
		CFactor:    big.NewInt(9_000_000),
		LFactor:    big.NewInt(9_000_000),
		Util:       big.NewInt(8_000_000),
		MaxUtil:    big.NewInt(9_500_000),
		RBase:      big.NewInt(50_000),
		ROne:       big.NewInt(400_000),
		RTwo:       big.NewInt(2_000_000),
		RThree:     big.NewInt(10_000_000),
		Reactivity: big.NewInt(20_000),
		SupplyCap:  big.NewInt(1_000_000_000),
		Enabled:    true,
	}
}

func TestAccrueIdempotentAtZeroDelta(t *testing.T) {
	cfg := testConfig()
	d := NewData(1000)
	d.BSupply = big.NewInt(1_000_000_000)
	d.DSupply = big.NewInt(500_000_000)

	_, err := Accrue(cfg, d, 2000, big.NewInt(1_000_000))
	require.NoError(t, err)
	snapshot := d.Clone()

	_, err = Accrue(cfg, d, 2000, big.NewInt(1_000_000))
	require.NoError(t, err)
	require.Equal(t, snapshot.DRate, d.DRate)
	require.Equal(t, snapshot.BRate, d.BRate)
	require.Equal(t, snapshot.IrMod, d.IrMod)
}

func TestAccrueMonotonicBRateAndDRate(t *testing.T) {
	cfg := testConfig()
	d := NewData(0)
	d.BSupply = big.NewInt(1_000_000_000)
	d.DSupply = big.NewInt(900_000_000)

	prevB := fixedpoint.Clone(d.BRate)
	prevD := fixedpoint.Clone(d.DRate)
	for _, ts := range []uint64{100, 500, 86400, 200000} {
		_, err := Accrue(cfg, d, ts, big.NewInt(1_000_000))
		require.NoError(t, err)
		require.True(t, d.BRate.Cmp(prevB) >= 0, "b_rate must be monotonic non-decreasing")
		require.True(t, d.DRate.Cmp(prevD) >= 0, "d_rate must be monotonic non-decreasing")
		require.True(t, d.DRate.Cmp(fixedpoint.S12) >= 0)
		require.True(t, d.BRate.Cmp(fixedpoint.S12) >= 0)
		prevB = fixedpoint.Clone(d.BRate)
		prevD = fixedpoint.Clone(d.DRate)
	}
}

func TestUtilizationCapRespectsMaxUtil(t *testing.T) {
	cfg := testConfig()
	d := NewData(0)
	d.BSupply = big.NewInt(1_000_000_000)
	d.DSupply = big.NewInt(960_000_000) // 96% > 95% max_util

	require.ErrorIs(t, CheckUtilizationCap(cfg, d), coreerr.ErrUtilizationCapExceeded)
}

func TestRoundTripConversionToleratesOneUlp(t *testing.T) {
	rate := big.NewInt(1_234_567_890_123)
	amount := big.NewInt(987_654_321)

	underlying := ToUnderlyingFloor(amount, rate)
	back := SupplyShares(underlying, rate)
	diff := new(big.Int).Sub(amount, back)
	require.True(t, diff.Sign() >= 0 && diff.Cmp(big.NewInt(1)) <= 0)
}

func TestSupplyCapBlocksOversizedSupply(t *testing.T) {
	cfg := testConfig()
	cfg.SupplyCap = big.NewInt(100)
	d := NewData(0)
	d.BRate = fixedpoint.Clone(fixedpoint.S12)

	extra := new(big.Int).Mul(big.NewInt(1000), big.NewInt(10_000_000)) // far beyond cap after decimals scaling
	require.Error(t, CheckSupplyCap(cfg, d, extra))
}

func TestGulpCreditsSurplusWithoutTouchingRates(t *testing.T) {
	d := NewData(0)
	d.BSupply = big.NewInt(1_000_000_000)
	d.DSupply = big.NewInt(0)
	prevBRate := fixedpoint.Clone(d.BRate)

	accountedUnderlying := ToUnderlyingFloor(d.BSupply, d.BRate)
	actual := new(big.Int).Add(accountedUnderlying, big.NewInt(500))

	surplus := Gulp(d, actual)
	require.Equal(t, big.NewInt(500), surplus)
	require.Equal(t, big.NewInt(500), d.BackstopCredit)
	require.Equal(t, prevBRate, d.BRate)
}
