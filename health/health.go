// Package health implements the oracle-weighted collateral/liability
// valuation and the health/liquidatability checks (spec.md §4.4).
package health

import (
	"context"
	"math/big"

	"lendcore/coreerr"
	"lendcore/external"
	"lendcore/fixedpoint"
	"lendcore/position"
	"lendcore/reserve"
)

// ReserveView bundles what the health evaluator needs to know about one
// reserve: its config/data for rate conversions, keyed by reserve index.
type ReserveView struct {
	Config *reserve.Config
	Data   *reserve.Data
}

// Report captures the valuation of one position set at a point in time.
type Report struct {
	// RawCollateral is the oracle-valued collateral before applying
	// c_factor, in oracle base units (spec.md §4.4 min-collateral check).
	RawCollateral *big.Int
	// AdjustedCollateral applies c_factor.
	AdjustedCollateral *big.Int
	// AdjustedLiability applies 1/l_factor.
	AdjustedLiability *big.Int
}

// Healthy reports whether adjusted collateral covers adjusted liability.
func (r Report) Healthy() bool {
	return r.AdjustedCollateral.Cmp(r.AdjustedLiability) >= 0
}

// Liquidatable is the strict converse of Healthy.
func (r Report) Liquidatable() bool {
	return !r.Healthy()
}

// Evaluate values a position set against current oracle prices and reserve
// rates (spec.md §4.4). maxPriceAge bounds oracle staleness in seconds.
func Evaluate(
	ctx context.Context,
	oracle external.Oracle,
	reserves map[uint32]ReserveView,
	p *position.Positions,
	now uint64,
	maxPriceAge uint64,
) (Report, error) {
	report := Report{
		RawCollateral:      big.NewInt(0),
		AdjustedCollateral: big.NewInt(0),
		AdjustedLiability:  big.NewInt(0),
	}

	valueOf := func(idx uint32, tokenAmount *big.Int, isDebt bool) (*big.Int, *reserve.Config, error) {
		view, ok := reserves[idx]
		if !ok {
			return nil, nil, coreerr.ErrInternalReserveNotFound
		}
		var underlying *big.Int
		if isDebt {
			underlying = reserve.ToUnderlyingCeil(tokenAmount, view.Data.DRate)
		} else {
			underlying = reserve.ToUnderlyingFloor(tokenAmount, view.Data.BRate)
		}
		price, ts, err := oracle.GetPrice(ctx, view.Config.Asset)
		if err != nil {
			return nil, nil, err
		}
		if maxPriceAge > 0 && now > ts && now-ts > maxPriceAge {
			return nil, nil, coreerr.ErrStalePrice
		}
		decScale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(view.Config.Decimals)), nil)
		value := new(big.Int).Mul(underlying, price)
		value.Quo(value, decScale)
		return value, view.Config, nil
	}

	for idx, amount := range p.Collateral {
		value, cfg, err := valueOf(idx, amount, false)
		if err != nil {
			return report, err
		}
		report.RawCollateral.Add(report.RawCollateral, value)
		adjusted := fixedpoint.MulFloor(value, cfg.CFactor, fixedpoint.S7)
		report.AdjustedCollateral.Add(report.AdjustedCollateral, adjusted)
	}

	for idx, amount := range p.Liabilities {
		value, cfg, err := valueOf(idx, amount, true)
		if err != nil {
			return report, err
		}
		if cfg.LFactor.Sign() == 0 {
			return report, coreerr.ErrInvalidReserveMetadata
		}
		adjusted := fixedpoint.DivCeil(value, fixedpoint.S7, cfg.LFactor)
		report.AdjustedLiability.Add(report.AdjustedLiability, adjusted)
	}

	return report, nil
}

// CheckMinCollateral enforces spec.md §4.4's minimum collateral floor for
// any user holding a nonzero liability.
func CheckMinCollateral(report Report, hasLiability bool, minCollateral *big.Int) error {
	if !hasLiability {
		return nil
	}
	if minCollateral != nil && report.RawCollateral.Cmp(minCollateral) < 0 {
		return coreerr.New(coreerr.InvalidHf, "collateral below pool minimum")
	}
	return nil
}
