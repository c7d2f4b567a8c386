package pool

import (
	"context"
	"math/big"

	"lendcore/address"
	"lendcore/auction"
	"lendcore/coreerr"
	"lendcore/health"
	"lendcore/native/common"
)

// reserveViews builds the health.ReserveView map the auction constructors
// need from every reserve registered with the pool.
func (p *Pool) reserveViews() (map[uint32]health.ReserveView, error) {
	out := make(map[uint32]health.ReserveView, len(p.ReserveIndices))
	for _, idx := range p.ReserveIndices {
		cfg, data, ok, err := p.Store.GetReserve(idx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, coreerr.ErrInternalReserveNotFound
		}
		out[idx] = health.ReserveView{Config: cfg, Data: data}
	}
	return out, nil
}

// CreateUserLiquidationAuction opens a UserLiquidation auction against
// subject if a Guard/quota-free read of its position set qualifies
// (spec.md §4.7). The caller is responsible for having already confirmed
// subject is actually liquidatable; this only sizes and persists the
// auction schema. subject must be neither the backstop actor nor the pool
// itself (spec.md §4.7).
func (p *Pool) CreateUserLiquidationAuction(ctx context.Context, subject address.Address, percentFilled uint64, block uint64) (*auction.Data, error) {
	if err := guardAuctions(p); err != nil {
		return nil, err
	}
	if subject == p.BackAddr || subject == p.Addr {
		return nil, coreerr.ErrInvalidLiquidation
	}
	views, err := p.reserveViews()
	if err != nil {
		return nil, err
	}
	subjectKey := subject.Key()
	positions, err := p.Store.GetPositions(subjectKey)
	if err != nil {
		return nil, err
	}
	key := subjectAuctionKey(auction.UserLiquidation, subjectKey)
	if _, found, err := p.Store.GetAuction(auction.UserLiquidation, subjectKey); err != nil {
		return nil, err
	} else if found {
		return nil, coreerr.ErrDuplicateAuction
	}
	data, err := auction.CreateUserLiquidation(ctx, p.Oracle, views, positions, percentFilled, p.MaxPositions, block)
	if err != nil {
		return nil, err
	}
	if err := p.Store.PutAuction(key.Type, key.Subject, data); err != nil {
		return nil, err
	}
	p.Metrics.ObserveAuctionCreated("user_liquidation")
	p.logger().Info("auction created", "kind", "user_liquidation", "subject", subject.String(), "block", block)
	return data, nil
}

// CreateBadDebtAuctionFor opens a BadDebtAuction against the backstop's
// uncollateralized liabilities (spec.md §4.7, §4.8).
func (p *Pool) CreateBadDebtAuctionFor(ctx context.Context, block uint64) (*auction.Data, error) {
	if err := guardAuctions(p); err != nil {
		return nil, err
	}
	views, err := p.reserveViews()
	if err != nil {
		return nil, err
	}
	backstopPositions, err := p.Store.GetPositions(p.BackAddr.Key())
	if err != nil {
		return nil, err
	}
	key := subjectAuctionKey(auction.BadDebtAuction, p.BackAddr.Key())
	if _, found, err := p.Store.GetAuction(auction.BadDebtAuction, p.BackAddr.Key()); err != nil {
		return nil, err
	} else if found {
		return nil, coreerr.ErrDuplicateAuction
	}
	data, err := auction.CreateBadDebtAuction(ctx, p.Oracle, views, backstopPositions, p.MaxPositions, block)
	if err != nil {
		return nil, err
	}
	if err := p.Store.PutAuction(key.Type, key.Subject, data); err != nil {
		return nil, err
	}
	p.Metrics.ObserveAuctionCreated("bad_debt")
	p.logger().Warn("auction created", "kind", "bad_debt", "subject", p.BackAddr.String(), "block", block)
	return data, nil
}

// CreateInterestAuctionFor opens an InterestAuction over reserveIndices'
// accumulated backstop credit, rejecting the attempt if the pooled credit
// has not yet cleared threshold (spec.md §4.7, §4.9).
func (p *Pool) CreateInterestAuctionFor(ctx context.Context, reserveIndices []uint32, threshold *big.Int, block uint64) (*auction.Data, error) {
	if err := guardAuctions(p); err != nil {
		return nil, err
	}
	views, err := p.reserveViews()
	if err != nil {
		return nil, err
	}
	key := subjectAuctionKey(auction.InterestAuction, p.BackAddr.Key())
	if _, found, err := p.Store.GetAuction(auction.InterestAuction, p.BackAddr.Key()); err != nil {
		return nil, err
	} else if found {
		return nil, coreerr.ErrDuplicateAuction
	}
	data, err := auction.CreateInterestAuction(ctx, p.Oracle, views, reserveIndices, threshold, p.MaxPositions, block)
	if err != nil {
		return nil, err
	}
	if err := p.Store.PutAuction(key.Type, key.Subject, data); err != nil {
		return nil, err
	}
	p.Metrics.ObserveAuctionCreated("interest")
	p.logger().Info("auction created", "kind", "interest", "reserves", reserveIndices, "block", block)
	return data, nil
}

type auctionKeyPair struct {
	Type    auction.Type
	Subject string
}

func subjectAuctionKey(kind auction.Type, subjectKey string) auctionKeyPair {
	return auctionKeyPair{Type: kind, Subject: subjectKey}
}

func guardAuctions(p *Pool) error {
	if err := common.Guard(p.Pause, "auctions"); err != nil {
		p.Metrics.ObserveRequestRejected("module_paused")
		return coreerr.Wrap(coreerr.StatusNotAllowed, "auction creation is paused", err)
	}
	return nil
}
