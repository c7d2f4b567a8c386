// Package auction implements the Dutch-auction liquidation/recovery engine
// (spec.md §4.7): one AuctionData schema shared by three auction variants,
// a block-indexed linear scaling curve, and partial-fill/stale-delete
// semantics. Grounded on original_source/pool/src/auctions/auction.rs's
// scale_auction, expressed with fixedpoint's explicit ceil/floor helpers in
// place of the Rust SorobanFixedPoint calls.
package auction

import (
	"math/big"

	"lendcore/coreerr"
	"lendcore/fixedpoint"
)

// Type identifies one of the three auction variants (spec.md §4.7).
type Type uint32

const (
	UserLiquidation Type = 0
	BadDebtAuction  Type = 1
	InterestAuction Type = 2
)

const (
	// staleAfterBlocks is the age, in blocks, past which an auction may be
	// deleted unconditionally by anyone (spec.md §4.7).
	staleAfterBlocks = 500
	// lotRampBlocks is the block count over which the lot ramps 0% -> 100%
	// while the bid holds at 100%.
	lotRampBlocks = 200
	// bidDecayBlocks is the block count, following lotRampBlocks, over which
	// the bid decays 100% -> 0% while the lot holds at 100%.
	bidDecayBlocks = 200
	// perBlockScalarNum expresses the 0.5%-per-block modifier step as an
	// exact fraction of S7 (S7 is the denominator), avoiding the float
	// imprecision a decimal literal would introduce.
	perBlockScalarNum = 50_000 // 0.005 * 1e7
)

// Data is the auction schema shared by all three variants (spec.md §4.7).
// Bid/Lot are keyed by reserve index; the token-unit meaning of each side
// varies by Type (see the package doc and the per-variant constructors).
type Data struct {
	Bid   map[uint32]*big.Int
	Lot   map[uint32]*big.Int
	Block uint64
}

// New constructs an empty auction schema starting at the given block.
func New(block uint64) *Data {
	return &Data{Bid: make(map[uint32]*big.Int), Lot: make(map[uint32]*big.Int), Block: block}
}

// Clone deep-copies the auction.
func (d *Data) Clone() *Data {
	out := New(d.Block)
	for k, v := range d.Bid {
		out.Bid[k] = new(big.Int).Set(v)
	}
	for k, v := range d.Lot {
		out.Lot[k] = new(big.Int).Set(v)
	}
	return out
}

// IsStale reports whether the auction may be deleted unconditionally.
func (d *Data) IsStale(currentBlock uint64) bool {
	return currentBlock > d.Block+staleAfterBlocks
}

// scaleCurve returns the (bidModifier, lotModifier) pair, both S7-scaled,
// for an auction that started blockDif blocks ago (spec.md §4.7's three
// block bands: 0-200 lot ramps up, bid pinned at 100%; 200-400 lot pinned
// at 100%, bid decays; >=400 lot pinned, bid at zero).
func scaleCurve(blockDif uint64) (bidMod, lotMod *big.Int) {
	if blockDif > lotRampBlocks {
		lotMod = new(big.Int).Set(fixedpoint.S7)
		if blockDif < lotRampBlocks+bidDecayBlocks {
			step := new(big.Int).SetUint64(blockDif - lotRampBlocks)
			decay := new(big.Int).Mul(step, big.NewInt(perBlockScalarNum))
			bidMod = new(big.Int).Sub(fixedpoint.S7, decay)
			if bidMod.Sign() < 0 {
				bidMod = big.NewInt(0)
			}
		} else {
			bidMod = big.NewInt(0)
		}
		return bidMod, lotMod
	}
	step := new(big.Int).SetUint64(blockDif)
	lotMod = new(big.Int).Mul(step, big.NewInt(perBlockScalarNum))
	bidMod = new(big.Int).Set(fixedpoint.S7)
	return bidMod, lotMod
}

// Scale splits an auction into the portion being filled now and the
// remainder left on the ledger (nil if nothing remains), given the percent
// being filled (1-100) and the current block (spec.md §4.7).
//
// The bid side rounds up and the lot side rounds down at every step "to
// avoid rounding exploits" — a filler must pay at least as much as the true
// proportional share and receives no more than their true proportional
// share.
func Scale(d *Data, percentFilled uint64, currentBlock uint64) (toFill *Data, remaining *Data, err error) {
	if percentFilled == 0 || percentFilled > 100 {
		return nil, nil, coreerr.ErrBadRequest
	}
	if currentBlock < d.Block {
		return nil, nil, coreerr.ErrInvariantViolation
	}

	bidMod, lotMod := scaleCurve(currentBlock - d.Block)
	percentS7 := fixedpoint.Percent(percentFilled)

	toFill = New(d.Block)
	remaining = New(d.Block)

	for idx, amount := range d.Bid {
		base := fixedpoint.MulCeil(amount, percentS7, fixedpoint.S7)
		rest := new(big.Int).Sub(amount, base)
		if rest.Sign() > 0 {
			remaining.Bid[idx] = rest
		}
		scaled := fixedpoint.MulCeil(base, bidMod, fixedpoint.S7)
		if scaled.Sign() > 0 {
			toFill.Bid[idx] = scaled
		}
	}
	for idx, amount := range d.Lot {
		base := fixedpoint.MulFloor(amount, percentS7, fixedpoint.S7)
		rest := new(big.Int).Sub(amount, base)
		if rest.Sign() > 0 {
			remaining.Lot[idx] = rest
		}
		scaled := fixedpoint.MulFloor(base, lotMod, fixedpoint.S7)
		if scaled.Sign() > 0 {
			toFill.Lot[idx] = scaled
		}
	}

	if len(remaining.Bid) == 0 && len(remaining.Lot) == 0 {
		return toFill, nil, nil
	}
	return toFill, remaining, nil
}
