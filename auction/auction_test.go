package auction

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	r0 uint32 = 0
	r1 uint32 = 1
	r2 uint32 = 2
)

func bi(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad literal: " + s)
	}
	return n
}

// TestScenarioS1PartialPartialFullLiquidationFill encodes spec.md §8's S1
// scenario: three successive fills of the same auction at growing block
// offsets, checking the remainder at each step.
func TestScenarioS1PartialPartialFullLiquidationFill(t *testing.T) {
	d := &Data{
		Bid:   map[uint32]*big.Int{r2: bi("1000000000")},
		Lot:   map[uint32]*big.Int{r0: bi("100000000"), r1: bi("10000000")},
		Block: 176,
	}

	toFill1, remaining1, err := Scale(d, 25, 276)
	require.NoError(t, err)
	require.NotNil(t, toFill1)
	require.NotNil(t, remaining1)
	require.Equal(t, bi("750000000"), remaining1.Bid[r2])
	require.Equal(t, bi("75000000"), remaining1.Lot[r0])
	require.Equal(t, bi("7500000"), remaining1.Lot[r1])

	toFill2, remaining2, err := Scale(remaining1, 67, 376)
	require.NoError(t, err)
	require.NotNil(t, toFill2)
	require.NotNil(t, remaining2)
	require.Equal(t, bi("247500000"), remaining2.Bid[r2])
	require.Equal(t, bi("24750000"), remaining2.Lot[r0])
	require.Equal(t, bi("2475000"), remaining2.Lot[r1])

	toFill3, remaining3, err := Scale(remaining2, 100, 476)
	require.NoError(t, err)
	require.NotNil(t, toFill3)
	require.Nil(t, remaining3)
}

// TestScenarioS2DustScalingAtNinetyNinePercent encodes spec.md §8's S2
// scenario: a 1-unit bid/lot auction filled 99% at Δb=300 (lot pinned at
// 100%, bid decayed to 50%). Ceil/floor rounding sends the single bid unit
// to the filler and leaves the lot's single unit in the remainder.
func TestScenarioS2DustScalingAtNinetyNinePercent(t *testing.T) {
	d := &Data{
		Bid:   map[uint32]*big.Int{0: big.NewInt(1)},
		Lot:   map[uint32]*big.Int{1: big.NewInt(1)},
		Block: 1000,
	}
	toFill, remaining, err := Scale(d, 99, 1300)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1), toFill.Bid[0])
	require.Empty(t, toFill.Lot)
	require.NotNil(t, remaining)
	require.Empty(t, remaining.Bid)
	require.Equal(t, big.NewInt(1), remaining.Lot[1])
}

// TestScenarioS3FullBidDecayAtFourHundredBlocks encodes spec.md §8's S3
// scenario: beyond block+400, bid_mod is zero and lot_mod is full — a
// filler receives the entire lot for free.
func TestScenarioS3FullBidDecayAtFourHundredBlocks(t *testing.T) {
	d := &Data{
		Bid:   map[uint32]*big.Int{0: big.NewInt(500)},
		Lot:   map[uint32]*big.Int{1: big.NewInt(700)},
		Block: 1000,
	}
	toFill, remaining, err := Scale(d, 100, 1400)
	require.NoError(t, err)
	require.Nil(t, remaining)
	require.Empty(t, toFill.Bid)
	require.Equal(t, big.NewInt(700), toFill.Lot[1])
}

// TestScenarioS5DeleteStaleBelowThreshold encodes spec.md §8's S5 scenario:
// an auction exactly 500 blocks old is not yet stale; staleness requires
// the age to strictly exceed 500 blocks.
func TestScenarioS5DeleteStaleBelowThreshold(t *testing.T) {
	d := &Data{Bid: map[uint32]*big.Int{}, Lot: map[uint32]*big.Int{}, Block: 1000}
	require.False(t, d.IsStale(1500))
	require.True(t, d.IsStale(1501))
}

func TestScalePercentOutOfRangeIsRejected(t *testing.T) {
	d := New(100)
	_, _, err := Scale(d, 0, 150)
	require.Error(t, err)
	_, _, err = Scale(d, 101, 150)
	require.Error(t, err)
}

func TestScaleRejectsCurrentBlockBeforeAuctionBlock(t *testing.T) {
	d := New(500)
	_, _, err := Scale(d, 50, 100)
	require.Error(t, err)
}
