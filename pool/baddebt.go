package pool

import (
	"context"
	"math/big"
	"strconv"

	"lendcore/address"
	"lendcore/baddebt"
	"lendcore/coreerr"
)

// ResolveBadDebt moves subject's liabilities onto the backstop once a
// user-liquidation has left it with zero collateral and nonzero debt
// (spec.md §4.8). Called by the same orchestration path that notices a
// liquidation emptied subject's collateral, ahead of opening a
// BadDebtAuction against the backstop's newly absorbed liability.
func (p *Pool) ResolveBadDebt(ctx context.Context, subject address.Address) error {
	if err := guardAuctions(p); err != nil {
		return err
	}
	subjectKey := subject.Key()
	subjectPositions, err := p.Store.GetPositions(subjectKey)
	if err != nil {
		return err
	}
	backstopPositions, err := p.Store.GetPositions(p.BackAddr.Key())
	if err != nil {
		return err
	}
	if err := baddebt.TransferToBackstop(subjectPositions, backstopPositions); err != nil {
		return err
	}
	if err := p.Store.PutPositions(subjectKey, subjectPositions); err != nil {
		return err
	}
	if err := p.Store.PutPositions(p.BackAddr.Key(), backstopPositions); err != nil {
		return err
	}
	p.logger().Warn("bad debt transferred to backstop", "subject", subject.String())
	return nil
}

// DefaultBadDebt writes off dTokenAmount of reserveIndex's liability held
// by the backstop when a BadDebtAuction fails to clear it, socializing the
// loss across b-token holders (spec.md §4.8). Returns the underlying
// amount actually written off.
func (p *Pool) DefaultBadDebt(ctx context.Context, reserveIndex uint32, dTokenAmount *big.Int) (*big.Int, error) {
	if err := guardAuctions(p); err != nil {
		return nil, err
	}
	cfg, data, ok, err := p.Store.GetReserve(reserveIndex)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, coreerr.ErrInternalReserveNotFound
	}
	backstopPositions, err := p.Store.GetPositions(p.BackAddr.Key())
	if err != nil {
		return nil, err
	}
	defaulted, err := baddebt.Default(data, backstopPositions, reserveIndex, dTokenAmount)
	if err != nil {
		return nil, err
	}
	if err := p.Store.PutReserve(cfg, data); err != nil {
		return nil, err
	}
	if err := p.Store.PutPositions(p.BackAddr.Key(), backstopPositions); err != nil {
		return nil, err
	}
	p.Metrics.ObserveBadDebtDefault(strconv.FormatUint(uint64(reserveIndex), 10))
	p.logger().Warn("bad debt defaulted", "reserve", reserveIndex, "amount", defaulted.String())
	return defaulted, nil
}
