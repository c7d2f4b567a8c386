package fixedpoint

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMulCeilFloorRounding(t *testing.T) {
	a := big.NewInt(1)
	b := big.NewInt(99)
	scale := big.NewInt(100)

	require.Equal(t, big.NewInt(1), MulCeil(a, b, scale))
	require.Equal(t, big.NewInt(0), MulFloor(a, b, scale))
}

func TestDivCeilFloorExactDivision(t *testing.T) {
	a := big.NewInt(10)
	scale := big.NewInt(100)
	b := big.NewInt(100)

	require.Equal(t, big.NewInt(10), DivCeil(a, scale, b))
	require.Equal(t, big.NewInt(10), DivFloor(a, scale, b))
}

func TestPercentScaling(t *testing.T) {
	require.Equal(t, big.NewInt(100_000), Percent(1))
	require.Equal(t, S7, Percent(100))
}

func TestScenarioS2DustRounding(t *testing.T) {
	// Base auction bid=1, lot=1. percent=99, bid_mod at Δb=300 -> decaying from
	// 100% over blocks 200-400: bid_mod = 1e7 - 100*50_000 = 5_000_000.
	bidBase := MulCeil(big.NewInt(1), Percent(99), S7)
	require.Equal(t, big.NewInt(1), bidBase)
	bidModifier := big.NewInt(5_000_000)
	scaledBid := MulCeil(bidBase, bidModifier, S7)
	require.Equal(t, big.NewInt(1), scaledBid)

	lotBase := MulFloor(big.NewInt(1), Percent(99), S7)
	require.Equal(t, big.NewInt(0), lotBase)
}
