// Package baddebt implements the backstop bad-debt transfer and default
// write-down described in spec.md §4.8: after a user-liquidation leaves a
// user with zero collateral and nonzero liabilities, those liabilities move
// onto the backstop actor's position; if the backstop itself cannot absorb
// them, the loss is socialized by writing down b_rate.
package baddebt

import (
	"math/big"

	"lendcore/coreerr"
	"lendcore/fixedpoint"
	"lendcore/position"
	"lendcore/reserve"
)

// IsPureBadDebt reports whether p has zero collateral and at least one
// nonzero liability — the trigger condition for TransferToBackstop.
func IsPureBadDebt(p *position.Positions) bool {
	return len(p.Collateral) == 0 && len(p.Liabilities) > 0
}

// TransferToBackstop moves every liability dToken balance from user onto
// backstop, by reserve, leaving user's liabilities empty (spec.md §4.8).
func TransferToBackstop(user, backstop *position.Positions) error {
	if !IsPureBadDebt(user) {
		return coreerr.ErrInvalidLiquidation
	}
	for idx, amount := range user.Liabilities {
		if err := backstop.AdjustLiability(idx, new(big.Int).Set(amount)); err != nil {
			return err
		}
		if err := user.AdjustLiability(idx, new(big.Int).Neg(amount)); err != nil {
			return err
		}
	}
	return nil
}

// Default writes off dTokenAmount of a reserve's liability held by the
// backstop, socializing the loss across suppliers (spec.md §4.8):
//   - d_supply drops by dTokenAmount
//   - d_rate is rewritten so d_supply·d_rate drops by exactly the defaulted
//     underlying value
//   - b_rate is written down by the same underlying value, spread across
//     the reserve's full b_supply
//
// Returns the defaulted underlying amount actually written off.
func Default(data *reserve.Data, backstop *position.Positions, reserveIndex uint32, dTokenAmount *big.Int) (*big.Int, error) {
	if dTokenAmount == nil || dTokenAmount.Sign() <= 0 {
		return nil, coreerr.ErrBadRequest
	}
	held, ok := backstop.Liabilities[reserveIndex]
	if !ok || held.Cmp(dTokenAmount) < 0 {
		return nil, coreerr.ErrInsufficientBalance
	}
	if data.DSupply.Cmp(dTokenAmount) < 0 {
		return nil, coreerr.ErrInvariantViolation
	}

	defaultedUnderlying := reserve.ToUnderlyingCeil(dTokenAmount, data.DRate)

	newDSupply := new(big.Int).Sub(data.DSupply, dTokenAmount)
	totalDebtValue := fixedpoint.MulFloor(data.DSupply, data.DRate, fixedpoint.S12)
	remainingDebtValue := new(big.Int).Sub(totalDebtValue, defaultedUnderlying)
	if remainingDebtValue.Sign() < 0 {
		remainingDebtValue = big.NewInt(0)
	}
	var newDRate *big.Int
	if newDSupply.Sign() == 0 {
		newDRate = new(big.Int).Set(fixedpoint.S12)
	} else {
		newDRate = fixedpoint.DivFloor(remainingDebtValue, fixedpoint.S12, newDSupply)
	}

	if data.BSupply.Sign() > 0 {
		totalSupplyValue := fixedpoint.MulFloor(data.BSupply, data.BRate, fixedpoint.S12)
		remainingSupplyValue := new(big.Int).Sub(totalSupplyValue, defaultedUnderlying)
		if remainingSupplyValue.Sign() < 0 {
			remainingSupplyValue = big.NewInt(0)
		}
		newBRate := fixedpoint.DivFloor(remainingSupplyValue, fixedpoint.S12, data.BSupply)
		data.BRate = newBRate
	}

	data.DSupply = newDSupply
	data.DRate = newDRate
	if err := backstop.AdjustLiability(reserveIndex, new(big.Int).Neg(dTokenAmount)); err != nil {
		return nil, err
	}
	return defaultedUnderlying, nil
}
