// Package position implements the per-user three-way position set (spec.md
// §3 Positions, §4.3): collateral and supply bTokens plus liability dTokens,
// keyed by reserve index, with the effective-position-count invariant.
//
// Shaped after the teacher's native/lending/types.go UserAccount, widened
// from a single fixed collateral/debt pair to per-reserve maps.
package position

import (
	"math/big"

	"lendcore/coreerr"
)

// Positions holds one user's balances across every reserve they participate
// in. A reserve index may appear in Collateral XOR Supply, plus optionally
// in Liabilities (spec.md §3).
type Positions struct {
	Collateral  map[uint32]*big.Int
	Supply      map[uint32]*big.Int
	Liabilities map[uint32]*big.Int
}

// New returns an empty position set.
func New() *Positions {
	return &Positions{
		Collateral:  make(map[uint32]*big.Int),
		Supply:      make(map[uint32]*big.Int),
		Liabilities: make(map[uint32]*big.Int),
	}
}

// Clone returns a deep copy so callers never share a user's mutable maps.
func (p *Positions) Clone() *Positions {
	if p == nil {
		return New()
	}
	clone := New()
	for k, v := range p.Collateral {
		clone.Collateral[k] = new(big.Int).Set(v)
	}
	for k, v := range p.Supply {
		clone.Supply[k] = new(big.Int).Set(v)
	}
	for k, v := range p.Liabilities {
		clone.Liabilities[k] = new(big.Int).Set(v)
	}
	return clone
}

// side identifies one of the three per-reserve slots a position may occupy.
type side int

const (
	sideCollateral side = iota
	sideSupply
	sideLiability
)

// AdjustCollateral adds delta (which may be negative) to the user's
// collateral balance on reserveIndex, removing the entry when it reaches
// zero. It is an error to hold both a collateral and a plain-supply entry on
// the same reserve simultaneously.
func (p *Positions) AdjustCollateral(reserveIndex uint32, delta *big.Int) error {
	if _, ok := p.Supply[reserveIndex]; ok {
		return coreerr.New(coreerr.BadRequest, "reserve already held as plain supply; withdraw before pledging as collateral")
	}
	return adjust(p.Collateral, reserveIndex, delta)
}

// AdjustSupply adds delta to the user's un-pledged supply balance.
func (p *Positions) AdjustSupply(reserveIndex uint32, delta *big.Int) error {
	if _, ok := p.Collateral[reserveIndex]; ok {
		return coreerr.New(coreerr.BadRequest, "reserve already held as collateral; withdraw collateral before plain supply")
	}
	return adjust(p.Supply, reserveIndex, delta)
}

// AdjustLiability adds delta to the user's dToken liability balance.
func (p *Positions) AdjustLiability(reserveIndex uint32, delta *big.Int) error {
	return adjust(p.Liabilities, reserveIndex, delta)
}

func adjust(m map[uint32]*big.Int, reserveIndex uint32, delta *big.Int) error {
	current, ok := m[reserveIndex]
	if !ok {
		current = big.NewInt(0)
	}
	next := new(big.Int).Add(current, delta)
	if next.Sign() < 0 {
		return coreerr.ErrInsufficientBalance
	}
	if next.Sign() == 0 {
		delete(m, reserveIndex)
		return nil
	}
	m[reserveIndex] = next
	return nil
}

// EffectivePositionCount returns the number of distinct (reserve, role)
// slots occupied, merging collateral and plain supply on the same reserve
// into a single slot (spec.md §3, §4.3).
func (p *Positions) EffectivePositionCount() int {
	merged := make(map[uint32]struct{}, len(p.Collateral)+len(p.Supply))
	for idx := range p.Collateral {
		merged[idx] = struct{}{}
	}
	for idx := range p.Supply {
		merged[idx] = struct{}{}
	}
	return len(merged) + len(p.Liabilities)
}

// CheckMaxPositions enforces spec.md §3's cap on effective positions.
func (p *Positions) CheckMaxPositions(maxPositions int) error {
	if p.EffectivePositionCount() > maxPositions {
		return coreerr.ErrMaxPositionsExceeded
	}
	return nil
}

// IsEmpty reports whether the user holds no balances of any kind.
func (p *Positions) IsEmpty() bool {
	return len(p.Collateral) == 0 && len(p.Supply) == 0 && len(p.Liabilities) == 0
}
