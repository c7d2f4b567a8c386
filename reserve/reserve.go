package reserve

import (
	"math/big"

	"lendcore/coreerr"
	"lendcore/fixedpoint"
)

// SecondsPerYear is the denominator used to convert an annualized 7-dec rate
// into a per-second accrual factor, matching the teacher's blocksPerYear
// constant in native/lending/engine.go generalized to timestamp accrual
// (spec.md's reserve engine accrues by wall-clock seconds, unlike the rest
// of the protocol which is block-indexed).
const SecondsPerYear = 365 * 24 * 60 * 60

// reactivityWindow is the time unit (seconds) over which Reactivity expresses
// its fractional ir_mod correction. Not specified bit-exactly by spec.md
// (flagged as an implicit formula, see DESIGN.md); one day is chosen so a
// Reactivity of 0.1 (7-dec: 1_000_000) nudges ir_mod by ~10% of the
// utilization error per day of sustained deviation.
const reactivityWindow = 86_400

var (
	irModFloor = new(big.Int).Div(fixedpoint.S7, big.NewInt(10)) // 0.1
	irModCeil  = new(big.Int).Mul(fixedpoint.S7, big.NewInt(10)) // 10.0
)

// Utilization returns u = d_supply*d_rate / (b_supply*b_rate), 7-dec, or
// zero when the reserve has no supply.
func Utilization(d *Data) *big.Int {
	denom := new(big.Int).Mul(d.BSupply, d.BRate)
	if denom.Sign() == 0 {
		return big.NewInt(0)
	}
	numer := new(big.Int).Mul(d.DSupply, d.DRate)
	return fixedpoint.DivFloor(numer, fixedpoint.S7, denom)
}

// rateCurve computes r_cur (7-dec) as the three-segment function of
// utilization against target Util and hard cap MaxUtil (spec.md §4.2 step 2).
func rateCurve(cfg *Config, u *big.Int) *big.Int {
	switch {
	case u.Cmp(cfg.Util) <= 0:
		term := fixedpoint.MulFloor(cfg.ROne, u, cfg.Util)
		return new(big.Int).Add(cfg.RBase, term)
	case u.Cmp(cfg.MaxUtil) <= 0:
		span := new(big.Int).Sub(cfg.MaxUtil, cfg.Util)
		excess := new(big.Int).Sub(u, cfg.Util)
		term := fixedpoint.MulFloor(cfg.RTwo, excess, span)
		base := new(big.Int).Add(cfg.RBase, cfg.ROne)
		return new(big.Int).Add(base, term)
	default:
		span := new(big.Int).Sub(fixedpoint.S7, cfg.MaxUtil)
		excess := new(big.Int).Sub(u, cfg.MaxUtil)
		var term *big.Int
		if span.Sign() <= 0 {
			term = new(big.Int)
		} else {
			term = fixedpoint.MulFloor(cfg.RThree, excess, span)
		}
		base := new(big.Int).Add(cfg.RBase, cfg.ROne)
		base.Add(base, cfg.RTwo)
		return new(big.Int).Add(base, term)
	}
}

func clampIrMod(v *big.Int) *big.Int {
	if v.Cmp(irModFloor) < 0 {
		return new(big.Int).Set(irModFloor)
	}
	if v.Cmp(irModCeil) > 0 {
		return new(big.Int).Set(irModCeil)
	}
	return v
}

// Accrue applies interest accrual for elapsed seconds between Data.LastTime
// and now, mutating d and returning the underlying-unit interest credited to
// the backstop this call (spec.md §4.2 steps 1-6). Accrue is idempotent when
// now == d.LastTime. bstopTakeRate is the pool-level backstop take rate,
// 7-dec.
func Accrue(cfg *Config, d *Data, now uint64, bstopTakeRate *big.Int) (*big.Int, error) {
	if cfg == nil || d == nil {
		return nil, coreerr.ErrInvariantViolation
	}
	if now < d.LastTime {
		return nil, coreerr.Wrap(coreerr.InvariantViolation, "accrual time moved backwards", nil)
	}
	delta := now - d.LastTime
	if delta == 0 {
		return big.NewInt(0), nil
	}

	u := Utilization(d)
	rCur := rateCurve(cfg, u)
	r := fixedpoint.MulFloor(rCur, d.IrMod, fixedpoint.S7)

	utilError := new(big.Int).Sub(u, cfg.Util)
	step := fixedpoint.MulFloor(cfg.Reactivity, utilError, fixedpoint.S7)
	step.Mul(step, big.NewInt(int64(delta)))
	step.Quo(step, big.NewInt(reactivityWindow))
	irModDelta := fixedpoint.MulFloor(d.IrMod, step, fixedpoint.S7)
	newIrMod := clampIrMod(new(big.Int).Add(d.IrMod, irModDelta))
	d.IrMod = newIrMod

	oldDRate := fixedpoint.Clone(d.DRate)
	factorDelta := fixedpoint.MulFloor(r, big.NewInt(int64(delta)), big.NewInt(SecondsPerYear))
	factor := new(big.Int).Add(fixedpoint.S7, factorDelta)
	newDRate := fixedpoint.MulFloor(oldDRate, factor, fixedpoint.S7)
	if newDRate.Cmp(oldDRate) < 0 {
		newDRate = oldDRate
	}
	d.DRate = newDRate

	deltaRate := new(big.Int).Sub(newDRate, oldDRate)
	interest := fixedpoint.MulFloor(d.DSupply, deltaRate, fixedpoint.S12)

	backstopShare := big.NewInt(0)
	if interest.Sign() > 0 {
		backstopShare = fixedpoint.MulFloor(interest, bstopTakeRate, fixedpoint.S7)
		d.BackstopCredit = new(big.Int).Add(d.BackstopCredit, backstopShare)

		remainder := new(big.Int).Sub(interest, backstopShare)
		if remainder.Sign() > 0 && d.BSupply.Sign() > 0 {
			lift := fixedpoint.DivFloor(remainder, fixedpoint.S12, d.BSupply)
			d.BRate = new(big.Int).Add(d.BRate, lift)
		}
	}

	d.LastTime = now
	return backstopShare, nil
}

// ToUnderlyingFloor converts a bToken/dToken amount to underlying, rounding
// down. Used whenever the protocol must not over-credit a user reading a
// balance (e.g. reporting existing collateral value).
func ToUnderlyingFloor(amount, rate *big.Int) *big.Int {
	return fixedpoint.MulFloor(amount, rate, fixedpoint.S12)
}

// ToUnderlyingCeil converts a bToken/dToken amount to underlying, rounding up.
func ToUnderlyingCeil(amount, rate *big.Int) *big.Int {
	return fixedpoint.MulCeil(amount, rate, fixedpoint.S12)
}

// SupplyShares computes the bToken amount minted for a supply of
// `underlying`, floored so the protocol never over-mints (spec.md §4.1
// rounding policy: "supply -> bToken floors").
func SupplyShares(underlying, bRate *big.Int) *big.Int {
	return fixedpoint.DivFloor(underlying, fixedpoint.S12, bRate)
}

// WithdrawShares computes the bToken amount that must be burned to release
// `underlying` on withdrawal, ceiled so the protocol never pays out more
// underlying per bToken burned than accounted for.
func WithdrawShares(underlying, bRate *big.Int) *big.Int {
	return fixedpoint.DivCeil(underlying, fixedpoint.S12, bRate)
}

// BorrowDebt computes the dToken amount minted for a borrow of `underlying`,
// ceiled so the borrower never owes less than the underlying drawn.
func BorrowDebt(underlying, dRate *big.Int) *big.Int {
	return fixedpoint.DivCeil(underlying, fixedpoint.S12, dRate)
}

// RepayDebt computes the dToken amount burned for a repayment of
// `underlying`, floored so the protocol never forgives more debt than repaid.
func RepayDebt(underlying, dRate *big.Int) *big.Int {
	return fixedpoint.DivFloor(underlying, fixedpoint.S12, dRate)
}

// CheckSupplyCap reports whether supplying `extraBTokens` more bTokens would
// push the reserve's accounted underlying supply past its configured cap
// (spec.md §4.2 "Supply cap").
func CheckSupplyCap(cfg *Config, d *Data, extraBTokens *big.Int) error {
	if cfg.SupplyCap == nil || cfg.SupplyCap.Sign() <= 0 {
		return nil
	}
	projected := new(big.Int).Add(d.BSupply, extraBTokens)
	underlying := ToUnderlyingFloor(projected, d.BRate)
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(cfg.Decimals)), nil)
	underlyingWhole := new(big.Int).Quo(underlying, scale)
	if underlyingWhole.Cmp(cfg.SupplyCap) > 0 {
		return coreerr.ErrSupplyCapExceeded
	}
	return nil
}

// CheckUtilizationCap reports whether the reserve's projected utilization
// (after applying a hypothetical change to supply/debt) would exceed
// MaxUtil (spec.md §4.2 "Utilization cap").
func CheckUtilizationCap(cfg *Config, d *Data) error {
	u := Utilization(d)
	if u.Cmp(cfg.MaxUtil) > 0 {
		return coreerr.ErrUtilizationCapExceeded
	}
	return nil
}

// Gulp credits any underlying held by the pool in excess of what is
// accounted for (b_supply*b_rate - d_supply*d_rate + backstop_credit) to
// BackstopCredit, without touching BRate/DRate (spec.md §4.2 "Gulp"). The
// actual on-pool token balance is read via the external Token interface by
// the caller and passed in as `actualBalance`.
func Gulp(d *Data, actualBalance *big.Int) *big.Int {
	accounted := new(big.Int).Sub(ToUnderlyingFloor(d.BSupply, d.BRate), ToUnderlyingFloor(d.DSupply, d.DRate))
	accounted.Add(accounted, d.BackstopCredit)
	surplus := new(big.Int).Sub(actualBalance, accounted)
	if surplus.Sign() <= 0 {
		return big.NewInt(0)
	}
	d.BackstopCredit = new(big.Int).Add(d.BackstopCredit, surplus)
	return surplus
}
