package pool

import (
	"context"
	"math/big"
	"strconv"

	"lendcore/address"
	"lendcore/coreerr"
	"lendcore/emissions"
	"lendcore/fixedpoint"
)

// AccrueEmissions advances one reserve-side's emission index against its
// current side supply and persists the result (spec.md §4.9). Called
// lazily, the way the teacher's accrueInterest is invoked inline rather
// than on a timer.
func (p *Pool) AccrueEmissions(reserveIndex uint32, side emissions.Side, now uint64) (*emissions.ReserveEmissionData, error) {
	_, data, ok, err := p.Store.GetReserve(reserveIndex)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, coreerr.ErrInternalReserveNotFound
	}
	track, err := p.Store.GetReserveEmission(reserveIndex, side, now)
	if err != nil {
		return nil, err
	}
	supply := data.BSupply
	if side == emissions.SideLiability {
		supply = data.DSupply
	}
	track.Accrue(now, supply)
	if err := p.Store.PutReserveEmission(reserveIndex, side, track); err != nil {
		return nil, err
	}
	return track, nil
}

// ClaimEmissions accrues the user's snapshot against the reserve-side's
// current index, zeroes the claimable balance, and returns the claimed
// amount (spec.md §4.9). userBalance is the caller's current share balance
// on that reserve/side (bToken for SideSupply, dToken for SideLiability),
// which the orchestrating caller reads from the user's Positions before
// calling in. A user with no stored snapshot accrues from index zero.
func (p *Pool) ClaimEmissions(user address.Address, reserveIndex uint32, side emissions.Side, userBalance *big.Int, now uint64) (*big.Int, error) {
	track, err := p.AccrueEmissions(reserveIndex, side, now)
	if err != nil {
		return nil, err
	}
	userKey := user.Key()
	userTrack, err := p.Store.GetUserEmission(reserveIndex, side, userKey, big.NewInt(0))
	if err != nil {
		return nil, err
	}
	userTrack.AccrueUser(track.Index, userBalance)
	claimed := userTrack.Claim()
	if err := p.Store.PutUserEmission(reserveIndex, side, userKey, userTrack); err != nil {
		return nil, err
	}
	p.Metrics.ObserveEmissionsClaimed(strconv.FormatUint(uint64(reserveIndex), 10), sideLabel(side))
	return claimed, nil
}

// SetEmissionsConfig validates and rewrites the pool's emissions share
// table (spec.md §4.9 set_emissions_config). shares is keyed by
// emissions.EncodeTokenID and must sum to at most fixedpoint.S7 (100%).
func (p *Pool) SetEmissionsConfig(shares map[uint32]*big.Int) error {
	values := make([]*big.Int, 0, len(shares))
	for _, s := range shares {
		values = append(values, s)
	}
	if err := emissions.ValidateShares(values); err != nil {
		return err
	}
	return p.Store.PutEmissionsShares(shares)
}

// GulpEmissions requests the pool's emission allotment from the backstop
// and credits each configured reserve-side's index in proportion to its
// configured share, spread across that side's current supply (spec.md
// §4.9 gulp_emissions). Returns the total amount pulled from the backstop.
func (p *Pool) GulpEmissions(ctx context.Context, now uint64) (*big.Int, error) {
	total, err := p.Backstop.GulpEmissions(ctx, p.Addr)
	if err != nil {
		return nil, err
	}
	if total == nil || total.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	shares, err := p.Store.GetEmissionsShares()
	if err != nil {
		return nil, err
	}
	for tokenID, share := range shares {
		if share == nil || share.Sign() <= 0 {
			continue
		}
		reserveIndex, side := emissions.DecodeTokenID(tokenID)
		_, data, ok, err := p.Store.GetReserve(reserveIndex)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		sideSupply := data.DSupply
		if side == emissions.SideSupply {
			sideSupply = data.BSupply
		}
		if sideSupply == nil || sideSupply.Sign() == 0 {
			continue
		}
		allocated := fixedpoint.MulFloor(total, share, fixedpoint.S7)
		if allocated.Sign() == 0 {
			continue
		}
		track, err := p.Store.GetReserveEmission(reserveIndex, side, now)
		if err != nil {
			return nil, err
		}
		track.Index = new(big.Int).Add(track.Index, fixedpoint.DivFloor(allocated, fixedpoint.S7, sideSupply))
		track.LastTime = now
		if err := p.Store.PutReserveEmission(reserveIndex, side, track); err != nil {
			return nil, err
		}
	}
	p.logger().Info("emissions gulped", "amount", total.String())
	return total, nil
}

func sideLabel(side emissions.Side) string {
	if side == emissions.SideLiability {
		return "liability"
	}
	return "supply"
}
