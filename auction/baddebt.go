package auction

import (
	"context"
	"math/big"

	"lendcore/coreerr"
	"lendcore/external"
	"lendcore/fixedpoint"
	"lendcore/health"
	"lendcore/position"
	"lendcore/reserve"
)

// BackstopShareIndex is the sentinel reserve index used in Bid/Lot maps to
// stand in for the backstop's own deposit (LP share) token, which is not
// itself a pool reserve. BadDebtAuction's lot and InterestAuction's bid are
// both denominated in this token.
const BackstopShareIndex uint32 = ^uint32(0)

// badDebtPremiumS7 is the premium applied over the oracle-valued liability
// when sizing a bad-debt auction's lot (spec.md §4.7 names only "a premium"
// without a constant; fixed at 1.10 here — see DESIGN.md).
var badDebtPremiumS7 = big.NewInt(11_000_000)

// CreateBadDebtAuction builds a BadDebtAuction against the backstop's pure
// bad debt (liabilities with zero collateral). Bid is the backstop's full
// dToken liability per asset; lot is backstop deposit-token shares, valued
// at the oracle-priced liability plus badDebtPremiumS7 (spec.md §4.7). LP
// share value is treated as 1:1 with its underlying oracle value, since the
// backstop token carries no independent pricing model in this module.
func CreateBadDebtAuction(
	ctx context.Context,
	oracle external.Oracle,
	reserves map[uint32]health.ReserveView,
	backstopPositions *position.Positions,
	maxPositions int,
	block uint64,
) (*Data, error) {
	if len(backstopPositions.Collateral) != 0 {
		return nil, coreerr.ErrInvalidLiquidation
	}
	if len(backstopPositions.Liabilities) == 0 {
		return nil, coreerr.ErrInvalidLiquidation
	}
	if len(backstopPositions.Liabilities) > maxPositions {
		return nil, coreerr.ErrMaxPositionsExceeded
	}

	d := New(block)
	totalValue := big.NewInt(0)
	for idx, amount := range backstopPositions.Liabilities {
		view, ok := reserves[idx]
		if !ok {
			return nil, coreerr.ErrInternalReserveNotFound
		}
		d.Bid[idx] = new(big.Int).Set(amount)
		underlying := reserve.ToUnderlyingCeil(amount, view.Data.DRate)
		value, err := valueUnderlying(ctx, oracle, view.Config, underlying)
		if err != nil {
			return nil, err
		}
		totalValue.Add(totalValue, value)
	}

	lotValue := fixedpoint.MulCeil(totalValue, badDebtPremiumS7, fixedpoint.S7)
	if lotValue.Sign() > 0 {
		d.Lot[BackstopShareIndex] = lotValue
	}
	return d, nil
}
