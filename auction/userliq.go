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

// targetHealthBandS7 is the ratio of lot value to bid value a user-liquidation
// auction is built with: the lot is sized at 1.05x the oracle value of the
// seized liabilities (see DESIGN.md's "liquidation target band" entry). It is
// applied to raw oracle values; collateral and liability factors are not
// applied and the user's post-fill health is not computed.
var targetHealthBandS7 = big.NewInt(10_500_000)

func valueUnderlying(ctx context.Context, oracle external.Oracle, cfg *reserve.Config, underlying *big.Int) (*big.Int, error) {
	price, _, err := oracle.GetPrice(ctx, cfg.Asset)
	if err != nil {
		return nil, err
	}
	decScale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(cfg.Decimals)), nil)
	value := new(big.Int).Mul(underlying, price)
	return value.Quo(value, decScale), nil
}

func tokensForValue(ctx context.Context, oracle external.Oracle, cfg *reserve.Config, value *big.Int) (*big.Int, error) {
	price, _, err := oracle.GetPrice(ctx, cfg.Asset)
	if err != nil {
		return nil, err
	}
	if price.Sign() == 0 {
		return big.NewInt(0), nil
	}
	decScale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(cfg.Decimals)), nil)
	underlying := new(big.Int).Mul(value, decScale)
	return underlying.Quo(underlying, price), nil
}

// CreateUserLiquidation builds a UserLiquidation auction against a
// liquidatable user (spec.md §4.7): bid is the dToken amount seized per
// liability (percentFilled of the user's liability balance), lot is the
// bToken amount drawn per collateral asset, sized so the lot's oracle value
// is targetHealthBandS7 (1.05x) of the bid's oracle value, or all of the
// user's collateral when that is worth less. Collateral is drawn
// proportionally to each reserve's oracle-valued share of the user's total
// collateral. The user's post-fill health is not computed.
func CreateUserLiquidation(
	ctx context.Context,
	oracle external.Oracle,
	reserves map[uint32]health.ReserveView,
	p *position.Positions,
	percentFilled uint64,
	maxPositions int,
	block uint64,
) (*Data, error) {
	if percentFilled == 0 || percentFilled > 100 {
		return nil, coreerr.ErrBadRequest
	}
	if len(p.Liabilities) == 0 {
		return nil, coreerr.ErrInvalidLiquidation
	}
	if len(p.Liabilities) > maxPositions || len(p.Collateral) > maxPositions {
		return nil, coreerr.ErrMaxPositionsExceeded
	}

	d := New(block)
	percentS7 := fixedpoint.Percent(percentFilled)
	bidValue := big.NewInt(0)

	for idx, amount := range p.Liabilities {
		view, ok := reserves[idx]
		if !ok {
			return nil, coreerr.ErrInternalReserveNotFound
		}
		seize := fixedpoint.MulCeil(amount, percentS7, fixedpoint.S7)
		if seize.Sign() == 0 {
			continue
		}
		d.Bid[idx] = seize
		underlying := reserve.ToUnderlyingCeil(seize, view.Data.DRate)
		value, err := valueUnderlying(ctx, oracle, view.Config, underlying)
		if err != nil {
			return nil, err
		}
		bidValue.Add(bidValue, value)
	}
	if len(d.Bid) == 0 {
		return nil, coreerr.ErrInvalidLiquidation
	}

	lotTarget := fixedpoint.MulCeil(bidValue, targetHealthBandS7, fixedpoint.S7)

	type collShare struct {
		idx   uint32
		cfg   *reserve.Config
		data  *reserve.Data
		value *big.Int
		bTok  *big.Int
	}
	shares := make([]collShare, 0, len(p.Collateral))
	totalValue := big.NewInt(0)
	for idx, amount := range p.Collateral {
		view, ok := reserves[idx]
		if !ok {
			return nil, coreerr.ErrInternalReserveNotFound
		}
		underlying := reserve.ToUnderlyingFloor(amount, view.Data.BRate)
		value, err := valueUnderlying(ctx, oracle, view.Config, underlying)
		if err != nil {
			return nil, err
		}
		shares = append(shares, collShare{idx: idx, cfg: view.Config, data: view.Data, value: value, bTok: amount})
		totalValue.Add(totalValue, value)
	}
	if totalValue.Sign() == 0 {
		return nil, coreerr.ErrInvalidLiquidation
	}

	for _, s := range shares {
		var takeValue *big.Int
		if lotTarget.Cmp(totalValue) >= 0 {
			takeValue = s.value
		} else {
			takeValue = fixedpoint.MulFloor(lotTarget, s.value, totalValue)
			if takeValue.Cmp(s.value) > 0 {
				takeValue = s.value
			}
		}
		if takeValue.Sign() == 0 {
			continue
		}
		var bTokens *big.Int
		if takeValue.Cmp(s.value) == 0 {
			bTokens = s.bTok
		} else {
			underlying, err := tokensForValue(ctx, oracle, s.cfg, takeValue)
			if err != nil {
				return nil, err
			}
			bTokens = reserve.SupplyShares(underlying, s.data.BRate)
			if bTokens.Cmp(s.bTok) > 0 {
				bTokens = s.bTok
			}
		}
		if bTokens.Sign() > 0 {
			d.Lot[s.idx] = bTokens
		}
	}
	if len(d.Lot) == 0 {
		return nil, coreerr.ErrInvalidLiquidation
	}
	if len(d.Bid) > maxPositions || len(d.Lot) > maxPositions {
		return nil, coreerr.ErrMaxPositionsExceeded
	}
	return d, nil
}
