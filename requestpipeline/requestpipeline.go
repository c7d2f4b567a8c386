// Package requestpipeline implements the atomic multi-request batch
// executor described in spec.md §4.5: submit(from, spender, to, requests[])
// runs each request against a single transaction's worth of state,
// aggregates net per-reserve transfer deltas, and verifies health once at
// the end rather than after every request. Grounded on the teacher's
// engine.go request handlers (Supply/Withdraw/Borrow/Repay), generalized
// from single-shot calls into a batched, net-settled pipeline.
package requestpipeline

import (
	"context"
	"math/big"

	"lendcore/address"
	"lendcore/auction"
	"lendcore/coreerr"
	"lendcore/external"
	"lendcore/health"
	"lendcore/poolstatus"
	"lendcore/position"
	"lendcore/reserve"
)

// RequestType identifies one request in a submit() batch (spec.md §4.5).
type RequestType int

const (
	Supply RequestType = iota
	Withdraw
	SupplyCollateral
	WithdrawCollateral
	Borrow
	Repay
	FillUserLiquidationAuction
	FillBadDebtAuction
	FillInterestAuction
	DeleteLiquidationAuction
)

// Request is one entry in a submit() batch. Amount is repurposed as a
// fill percent (1-100) for the three Fill* types and is ignored for
// DeleteLiquidationAuction. Subject names the auction owner for the four
// auction request types and is ignored otherwise.
type Request struct {
	Type         RequestType
	ReserveIndex uint32
	Amount       *big.Int
	Subject      address.Address
}

// ReserveEntry bundles the config/data a request touches.
type ReserveEntry struct {
	Config *reserve.Config
	Data   *reserve.Data
}

// Result reports what a batch produced beyond the mutated positions: net
// per-reserve underlying transfer deltas (positive: owed to the pool from
// the caller; negative: owed from the pool to the caller) and any net
// change in the caller's backstop deposit-token shares (positive: caller
// pays shares in; negative: caller receives shares), which arises only from
// filling a BadDebtAuction or InterestAuction.
type Result struct {
	TransferDeltas map[uint32]*big.Int
	ShareDelta     *big.Int
}

// AuctionKey identifies one live auction by variant and subject.
type AuctionKey struct {
	Type    auction.Type
	Subject string
}

// Context bundles everything Submit needs for one transaction. It is built
// fresh per call by the owning pool orchestrator and discarded after
// (spec.md §9's "no global mutable state beyond the ledger").
type Context struct {
	Ctx              context.Context
	Oracle           external.Oracle
	Reserves         map[uint32]*ReserveEntry
	Status           poolstatus.Status
	Now              uint64
	Block            uint64
	MaxPositions     int
	MinCollateral    *big.Int
	MaxPriceAge      uint64
	BackstopTakeRate *big.Int

	FillerAddr address.Address
	User       *position.Positions
	Backstop   *position.Positions
	// Subjects holds the position sets of any address referenced as a Fill
	// request's Subject, keyed by address.Key(). The caller loads these
	// before calling Submit; Submit never reaches outside this map or
	// ctx.Backstop to find a subject's positions.
	Subjects map[string]*position.Positions
	Auctions map[AuctionKey]*auction.Data
}

func actionForRequest(t RequestType) poolstatus.Action {
	switch t {
	case Borrow:
		return poolstatus.ActionBorrow
	case Supply, SupplyCollateral:
		return poolstatus.ActionSupply
	case DeleteLiquidationAuction:
		return poolstatus.ActionCancelLiquidation
	default:
		return poolstatus.ActionOther
	}
}

func addDelta(m map[uint32]*big.Int, idx uint32, delta *big.Int) {
	if cur, ok := m[idx]; ok {
		m[idx] = new(big.Int).Add(cur, delta)
	} else {
		m[idx] = new(big.Int).Set(delta)
	}
}

func evaluateHealth(c *Context, p *position.Positions) (health.Report, error) {
	views := make(map[uint32]health.ReserveView, len(c.Reserves))
	for idx, e := range c.Reserves {
		views[idx] = health.ReserveView{Config: e.Config, Data: e.Data}
	}
	return health.Evaluate(c.Ctx, c.Oracle, views, p, c.Now, c.MaxPriceAge)
}

// Submit runs requests in order against ctx.User's position set, net of
// reserve accrual, then verifies the final health state (spec.md §4.5). Any
// failure aborts the whole batch: ctx.User is only mutated once every
// request and the final health check have succeeded.
func Submit(ctx *Context, requests []Request) (*Result, error) {
	working := ctx.User.Clone()
	preReport, preErr := evaluateHealth(ctx, working)

	deltas := make(map[uint32]*big.Int)
	shareDelta := big.NewInt(0)
	onlyDeleverage := true

	for _, req := range requests {
		if err := ctx.Status.Allows(actionForRequest(req.Type)); err != nil {
			return nil, err
		}

		switch req.Type {
		case Supply, SupplyCollateral, Withdraw, WithdrawCollateral, Borrow, Repay:
			if req.Amount == nil || req.Amount.Sign() <= 0 {
				return nil, coreerr.ErrBadRequest
			}
		}

		switch req.Type {
		case Supply:
			entry, err := ctx.reserveEntry(req.ReserveIndex)
			if err != nil {
				return nil, err
			}
			accrue(ctx, entry)
			shares := reserve.SupplyShares(req.Amount, entry.Data.BRate)
			if err := reserve.CheckSupplyCap(entry.Config, entry.Data, shares); err != nil {
				return nil, err
			}
			if err := working.AdjustSupply(req.ReserveIndex, shares); err != nil {
				return nil, err
			}
			entry.Data.BSupply = new(big.Int).Add(entry.Data.BSupply, shares)
			addDelta(deltas, req.ReserveIndex, req.Amount)
			onlyDeleverage = false

		case SupplyCollateral:
			entry, err := ctx.reserveEntry(req.ReserveIndex)
			if err != nil {
				return nil, err
			}
			accrue(ctx, entry)
			shares := reserve.SupplyShares(req.Amount, entry.Data.BRate)
			if err := reserve.CheckSupplyCap(entry.Config, entry.Data, shares); err != nil {
				return nil, err
			}
			if err := working.AdjustCollateral(req.ReserveIndex, shares); err != nil {
				return nil, err
			}
			entry.Data.BSupply = new(big.Int).Add(entry.Data.BSupply, shares)
			addDelta(deltas, req.ReserveIndex, req.Amount)
			onlyDeleverage = false

		case Withdraw:
			entry, err := ctx.reserveEntry(req.ReserveIndex)
			if err != nil {
				return nil, err
			}
			accrue(ctx, entry)
			shares := reserve.WithdrawShares(req.Amount, entry.Data.BRate)
			if err := working.AdjustSupply(req.ReserveIndex, new(big.Int).Neg(shares)); err != nil {
				return nil, err
			}
			entry.Data.BSupply = new(big.Int).Sub(entry.Data.BSupply, shares)
			addDelta(deltas, req.ReserveIndex, new(big.Int).Neg(req.Amount))

		case WithdrawCollateral:
			entry, err := ctx.reserveEntry(req.ReserveIndex)
			if err != nil {
				return nil, err
			}
			accrue(ctx, entry)
			shares := reserve.WithdrawShares(req.Amount, entry.Data.BRate)
			if err := working.AdjustCollateral(req.ReserveIndex, new(big.Int).Neg(shares)); err != nil {
				return nil, err
			}
			entry.Data.BSupply = new(big.Int).Sub(entry.Data.BSupply, shares)
			addDelta(deltas, req.ReserveIndex, new(big.Int).Neg(req.Amount))
			onlyDeleverage = false

		case Borrow:
			entry, err := ctx.reserveEntry(req.ReserveIndex)
			if err != nil {
				return nil, err
			}
			accrue(ctx, entry)
			debt := reserve.BorrowDebt(req.Amount, entry.Data.DRate)
			if err := working.AdjustLiability(req.ReserveIndex, debt); err != nil {
				return nil, err
			}
			entry.Data.DSupply = new(big.Int).Add(entry.Data.DSupply, debt)
			if err := reserve.CheckUtilizationCap(entry.Config, entry.Data); err != nil {
				return nil, err
			}
			addDelta(deltas, req.ReserveIndex, new(big.Int).Neg(req.Amount))
			onlyDeleverage = false

		case Repay:
			entry, err := ctx.reserveEntry(req.ReserveIndex)
			if err != nil {
				return nil, err
			}
			accrue(ctx, entry)
			held, ok := working.Liabilities[req.ReserveIndex]
			if !ok {
				return nil, coreerr.ErrInvalidReserveMetadata
			}
			debt := reserve.RepayDebt(req.Amount, entry.Data.DRate)
			actualUnderlying := req.Amount
			if debt.Cmp(held) > 0 {
				debt = new(big.Int).Set(held)
				actualUnderlying = reserve.ToUnderlyingCeil(debt, entry.Data.DRate)
			}
			if err := working.AdjustLiability(req.ReserveIndex, new(big.Int).Neg(debt)); err != nil {
				return nil, err
			}
			entry.Data.DSupply = new(big.Int).Sub(entry.Data.DSupply, debt)
			addDelta(deltas, req.ReserveIndex, actualUnderlying)

		case FillUserLiquidationAuction, FillBadDebtAuction, FillInterestAuction:
			if err := ctx.fillAuction(req, working, deltas, shareDelta); err != nil {
				return nil, err
			}
			onlyDeleverage = false

		case DeleteLiquidationAuction:
			key := AuctionKey{Type: auction.UserLiquidation, Subject: req.Subject.Key()}
			data, ok := ctx.Auctions[key]
			if !ok {
				return nil, coreerr.ErrAuctionNotFound
			}
			if !data.IsStale(ctx.Block) {
				return nil, coreerr.ErrInvariantViolation
			}
			delete(ctx.Auctions, key)

		default:
			return nil, coreerr.ErrBadRequest
		}

		if err := working.CheckMaxPositions(ctx.MaxPositions); err != nil {
			return nil, err
		}
	}

	postReport, err := evaluateHealth(ctx, working)
	if err != nil {
		return nil, err
	}

	hasLiabilities := len(working.Liabilities) > 0
	if hasLiabilities {
		if onlyDeleverage && preErr == nil {
			preMargin := new(big.Int).Sub(preReport.AdjustedCollateral, preReport.AdjustedLiability)
			postMargin := new(big.Int).Sub(postReport.AdjustedCollateral, postReport.AdjustedLiability)
			if postMargin.Cmp(preMargin) < 0 {
				return nil, coreerr.ErrInvalidHf
			}
		} else if !postReport.Healthy() {
			return nil, coreerr.ErrInvalidHf
		}
		if err := health.CheckMinCollateral(postReport, true, ctx.MinCollateral); err != nil {
			return nil, err
		}
	}

	ctx.User.Collateral = working.Collateral
	ctx.User.Supply = working.Supply
	ctx.User.Liabilities = working.Liabilities

	return &Result{TransferDeltas: deltas, ShareDelta: shareDelta}, nil
}

func (c *Context) reserveEntry(idx uint32) (*ReserveEntry, error) {
	entry, ok := c.Reserves[idx]
	if !ok {
		return nil, coreerr.ErrInternalReserveNotFound
	}
	return entry, nil
}

func accrue(c *Context, entry *ReserveEntry) {
	_, _ = reserve.Accrue(entry.Config, entry.Data, c.Now, c.BackstopTakeRate)
}

// fillAuction settles one Fill* request: it scales the named auction by the
// requested percent, applies the dToken/bToken/backstop-share effects to
// the filler's and subject's positions, and either shrinks or removes the
// stored auction. A liquidation fill against the filler's own address is
// rejected outright — a user may never liquidate themselves.
func (c *Context) fillAuction(req Request, filler *position.Positions, deltas map[uint32]*big.Int, shareDelta *big.Int) error {
	percent := req.Amount
	if percent == nil || percent.Sign() <= 0 || percent.Cmp(big.NewInt(100)) > 0 {
		return coreerr.ErrBadRequest
	}

	var kind auction.Type
	var subject *position.Positions
	switch req.Type {
	case FillUserLiquidationAuction:
		kind = auction.UserLiquidation
		if req.Subject.Key() == c.FillerAddr.Key() {
			return coreerr.ErrInvalidLiquidation
		}
		sp, ok := c.Subjects[req.Subject.Key()]
		if !ok {
			return coreerr.ErrAuctionNotFound
		}
		subject = sp
	case FillBadDebtAuction:
		kind = auction.BadDebtAuction
		subject = c.Backstop
	case FillInterestAuction:
		kind = auction.InterestAuction
		subject = c.Backstop
	}

	key := AuctionKey{Type: kind, Subject: req.Subject.Key()}
	data, ok := c.Auctions[key]
	if !ok {
		return coreerr.ErrAuctionNotFound
	}

	toFill, remaining, err := auction.Scale(data, percent.Uint64(), c.Block)
	if err != nil {
		return err
	}

	switch kind {
	case auction.UserLiquidation, auction.BadDebtAuction:
		for idx, bidAmt := range toFill.Bid {
			entry, err := c.reserveEntry(idx)
			if err != nil {
				return err
			}
			accrue(c, entry)
			if err := subject.AdjustLiability(idx, new(big.Int).Neg(bidAmt)); err != nil {
				return err
			}
			entry.Data.DSupply = new(big.Int).Sub(entry.Data.DSupply, bidAmt)
			addDelta(deltas, idx, reserve.ToUnderlyingCeil(bidAmt, entry.Data.DRate))
		}
	case auction.InterestAuction:
		if shares, ok := toFill.Bid[auction.BackstopShareIndex]; ok {
			shareDelta.Add(shareDelta, shares)
		}
	}

	switch kind {
	case auction.UserLiquidation:
		for idx, lotAmt := range toFill.Lot {
			if err := subject.AdjustCollateral(idx, new(big.Int).Neg(lotAmt)); err != nil {
				return err
			}
			if err := filler.AdjustCollateral(idx, lotAmt); err != nil {
				return err
			}
		}
	case auction.BadDebtAuction:
		if shares, ok := toFill.Lot[auction.BackstopShareIndex]; ok {
			shareDelta.Sub(shareDelta, shares)
		}
	case auction.InterestAuction:
		for idx, lotAmt := range toFill.Lot {
			entry, err := c.reserveEntry(idx)
			if err != nil {
				return err
			}
			entry.Data.BackstopCredit = new(big.Int).Sub(entry.Data.BackstopCredit, lotAmt)
			addDelta(deltas, idx, new(big.Int).Neg(lotAmt))
		}
	}

	if remaining == nil {
		delete(c.Auctions, key)
	} else {
		c.Auctions[key] = remaining
	}
	return nil
}
