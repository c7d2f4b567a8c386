package auction

import (
	"context"
	"math/big"

	"lendcore/coreerr"
	"lendcore/external"
	"lendcore/health"
)

// CreateInterestAuction builds an InterestAuction over the named reserves'
// accumulated backstop_credit (spec.md §4.7). Lot is the underlying credit
// per reserve; bid is backstop deposit-token shares valued at the oracle
// sum of the lot (same 1:1 share-value convention as CreateBadDebtAuction).
func CreateInterestAuction(
	ctx context.Context,
	oracle external.Oracle,
	reserves map[uint32]health.ReserveView,
	reserveIndices []uint32,
	threshold *big.Int,
	maxPositions int,
	block uint64,
) (*Data, error) {
	if len(reserveIndices) == 0 || len(reserveIndices) > maxPositions {
		return nil, coreerr.ErrMaxPositionsExceeded
	}

	d := New(block)
	totalCredit := big.NewInt(0)
	totalValue := big.NewInt(0)
	seen := make(map[uint32]bool, len(reserveIndices))
	for _, idx := range reserveIndices {
		if seen[idx] {
			return nil, coreerr.ErrBadRequest
		}
		seen[idx] = true
		view, ok := reserves[idx]
		if !ok {
			return nil, coreerr.ErrInternalReserveNotFound
		}
		credit := view.Data.BackstopCredit
		if credit == nil || credit.Sign() == 0 {
			continue
		}
		d.Lot[idx] = new(big.Int).Set(credit)
		totalCredit.Add(totalCredit, credit)
		value, err := valueUnderlying(ctx, oracle, view.Config, credit)
		if err != nil {
			return nil, err
		}
		totalValue.Add(totalValue, value)
	}
	if totalCredit.Cmp(threshold) < 0 {
		return nil, coreerr.ErrBadRequest
	}
	if len(d.Lot) == 0 {
		return nil, coreerr.ErrInvalidLiquidation
	}
	d.Bid[BackstopShareIndex] = totalValue
	return d, nil
}
