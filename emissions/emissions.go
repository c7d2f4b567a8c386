// Package emissions implements per-reserve-per-side emissions accrual and
// claiming (spec.md §4.9), grounded on the teacher's fee-accrual idiom in
// native/lending/engine.go (accrueInterest's index-advance-then-snapshot
// shape) generalized from a single fee pool to a per-(reserve,side) index.
package emissions

import (
	"math/big"

	"lendcore/coreerr"
	"lendcore/fixedpoint"
)

// Side distinguishes the supply (b) and liability (d) emission tracks of a
// reserve, which accrue independently.
type Side int

const (
	SideSupply Side = iota
	SideLiability
)

// ReserveEmissionData is the per-(reserve,side) emissions state.
type ReserveEmissionData struct {
	Expiration uint64
	Eps        *big.Int // emissions per second, 7-dec
	Index      *big.Int // cumulative index, 7-dec
	LastTime   uint64
}

// NewReserveEmissionData constructs a zeroed emission track starting now.
func NewReserveEmissionData(now uint64) *ReserveEmissionData {
	return &ReserveEmissionData{Eps: big.NewInt(0), Index: big.NewInt(0), LastTime: now}
}

// Clone deep-copies the reserve emission track.
func (r *ReserveEmissionData) Clone() *ReserveEmissionData {
	return &ReserveEmissionData{
		Expiration: r.Expiration,
		Eps:        fixedpoint.Clone(r.Eps),
		Index:      fixedpoint.Clone(r.Index),
		LastTime:   r.LastTime,
	}
}

// UserEmissionData is the per-user-per-(reserve,side) accrual state.
type UserEmissionData struct {
	Index   *big.Int // the reserve index last snapshotted against
	Accrued *big.Int // claimable emissions accumulated so far, 7-dec
}

// NewUserEmissionData constructs a zeroed user accrual snapshotted at index.
func NewUserEmissionData(index *big.Int) *UserEmissionData {
	return &UserEmissionData{Index: fixedpoint.Clone(index), Accrued: big.NewInt(0)}
}

// Clone deep-copies the user emission track.
func (u *UserEmissionData) Clone() *UserEmissionData {
	return &UserEmissionData{Index: fixedpoint.Clone(u.Index), Accrued: fixedpoint.Clone(u.Accrued)}
}

// Accrue advances a reserve-side's emission index by eps·Δt/side_supply
// (spec.md §4.9), capped at the track's expiration time. If sideSupply or
// eps is zero, or the track has already lapsed, the index is left unchanged;
// LastTime still advances to now.
func (r *ReserveEmissionData) Accrue(now uint64, sideSupply *big.Int) {
	effectiveNow := now
	if r.Expiration > 0 && effectiveNow > r.Expiration {
		effectiveNow = r.Expiration
	}
	if effectiveNow <= r.LastTime || sideSupply == nil || sideSupply.Sign() == 0 || r.Eps.Sign() == 0 {
		r.LastTime = now
		return
	}
	delta := new(big.Int).SetUint64(effectiveNow - r.LastTime)
	emitted := new(big.Int).Mul(r.Eps, delta)
	step := fixedpoint.DivFloor(emitted, fixedpoint.S7, sideSupply)
	r.Index = new(big.Int).Add(r.Index, step)
	r.LastTime = now
}

// AccrueUser advances a user's claimable accrual by
// (reserveIndex − user.Index) · userBalance and snaps user.Index forward
// (spec.md §4.9).
func (u *UserEmissionData) AccrueUser(reserveIndex *big.Int, userBalance *big.Int) {
	delta := new(big.Int).Sub(reserveIndex, u.Index)
	if delta.Sign() > 0 && userBalance.Sign() > 0 {
		gain := fixedpoint.MulFloor(delta, userBalance, fixedpoint.S7)
		u.Accrued = new(big.Int).Add(u.Accrued, gain)
	}
	u.Index = fixedpoint.Clone(reserveIndex)
}

// Claim zeroes out and returns a user's accrued emissions.
func (u *UserEmissionData) Claim() *big.Int {
	claimed := u.Accrued
	u.Accrued = big.NewInt(0)
	return claimed
}

// ValidateShares enforces spec.md §4.9's Σ shares ≤ 1e7 constraint on a
// proposed emissions configuration table.
func ValidateShares(shares []*big.Int) error {
	total := big.NewInt(0)
	for _, s := range shares {
		if s == nil || s.Sign() < 0 {
			return coreerr.ErrBadRequest
		}
		total.Add(total, s)
	}
	if total.Cmp(fixedpoint.S7) > 0 {
		return coreerr.ErrEmissionsShareExceeded
	}
	return nil
}

// EncodeTokenID derives spec.md §3's reserve_token_id = 2·reserve_index +
// side, with side 0 meaning liability (d) and side 1 meaning supply (b).
func EncodeTokenID(reserveIndex uint32, side Side) uint32 {
	bit := uint32(0)
	if side == SideSupply {
		bit = 1
	}
	return 2*reserveIndex + bit
}

// DecodeTokenID inverts EncodeTokenID.
func DecodeTokenID(tokenID uint32) (uint32, Side) {
	side := SideLiability
	if tokenID%2 == 1 {
		side = SideSupply
	}
	return tokenID / 2, side
}

// ParseSide parses the TOML-facing "supply"/"liability" side name used by
// an emissions config entry.
func ParseSide(name string) (Side, error) {
	switch name {
	case "supply":
		return SideSupply, nil
	case "liability":
		return SideLiability, nil
	default:
		return 0, coreerr.ErrBadRequest
	}
}
