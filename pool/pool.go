package pool

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"strconv"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"lendcore/address"
	"lendcore/auction"
	"lendcore/baddebt"
	"lendcore/coreerr"
	"lendcore/external"
	"lendcore/native/common"
	"lendcore/observability/metrics"
	"lendcore/observability/tracing"
	"lendcore/position"
	"lendcore/poolstatus"
	"lendcore/reserve"
	"lendcore/requestpipeline"
)

// Pool is the live, in-process handle a service binds to one pool's
// persisted state (spec.md §1). Every call builds a transaction-scoped
// requestpipeline.Context from the Store, delegates to the engine/auction/
// status packages, and persists the result — mirroring the
// load-mutate-save shape of the teacher's engineState methods
// (native/lending/engine.go), generalized from one in-memory map to a
// pluggable storage.Database.
type Pool struct {
	Addr     address.Address
	Backstop external.Backstop
	BackAddr address.Address
	Oracle   external.Oracle
	Tokens   map[uint32]external.Token
	Store    *Store

	// ReserveIndices lists every reserve registered with the pool. Submit
	// loads all of them rather than trying to pre-scan a batch's touched
	// set, because a Fill* request can move underlying through reserve
	// indices drawn from an auction's Bid/Lot maps that aren't known until
	// requestpipeline.Submit itself scales the auction.
	ReserveIndices []uint32

	MaxPositions     int
	MinCollateral    *big.Int
	MaxPriceAge      uint64
	BackstopTakeRate *big.Int
	SubmitQuota      common.Quota
	// SubmitLimiter smooths burst traffic ahead of the per-epoch request
	// count enforced by SubmitQuota (nil disables it).
	SubmitLimiter *rate.Limiter

	Pause   *ModulePause
	Metrics *metrics.PoolMetrics
	Log     *slog.Logger
	Tracer  trace.Tracer
}

func (p *Pool) quota() quotaStore { return quotaStore{s: p.Store} }

func (p *Pool) logger() *slog.Logger {
	if p.Log == nil {
		return slog.Default()
	}
	return p.Log
}

// loadAllReserves loads every reserve registered with the pool.
func (p *Pool) loadAllReserves() (map[uint32]*requestpipeline.ReserveEntry, error) {
	out := make(map[uint32]*requestpipeline.ReserveEntry, len(p.ReserveIndices))
	for _, idx := range p.ReserveIndices {
		cfg, data, ok, err := p.Store.GetReserve(idx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, coreerr.ErrInternalReserveNotFound
		}
		out[idx] = &requestpipeline.ReserveEntry{Config: cfg, Data: data}
	}
	return out, nil
}

// auctionKindForRequest maps a Fill*/Delete* request to the auction variant
// it acts on.
func auctionKindForRequest(t requestpipeline.RequestType) (auction.Type, bool) {
	switch t {
	case requestpipeline.FillUserLiquidationAuction, requestpipeline.DeleteLiquidationAuction:
		return auction.UserLiquidation, true
	case requestpipeline.FillBadDebtAuction:
		return auction.BadDebtAuction, true
	case requestpipeline.FillInterestAuction:
		return auction.InterestAuction, true
	default:
		return 0, false
	}
}

// Submit runs a batch of requests on behalf of user, persists the result,
// and settles net token transfers and backstop share deltas against the
// live external.Token/Backstop collaborators (spec.md §4.5).
func (p *Pool) Submit(ctx context.Context, user address.Address, requests []requestpipeline.Request, now, block uint64) (*requestpipeline.Result, error) {
	var span trace.Span
	ctx, span = tracing.StartSpan(ctx, p.Tracer, "pool.Submit")
	defer span.End()

	// requestID correlates this batch's trace span, its one structured log
	// line, and the aggregated transfer-delta settlement it produces,
	// mirroring the teacher's use of uuid for webhook event correlation
	// (integrations/webhooks) repurposed here for a Submit call.
	requestID := uuid.New().String()
	span.SetAttributes(
		attribute.String("pool.request_id", requestID),
		attribute.String("pool.user", user.String()),
		attribute.Int("pool.request_count", len(requests)),
	)

	if err := common.Guard(p.Pause, "requestpipeline"); err != nil {
		p.Metrics.ObserveRequestRejected("module_paused")
		return nil, coreerr.Wrap(coreerr.StatusNotAllowed, "request pipeline is paused", err)
	}
	if p.SubmitLimiter != nil && !p.SubmitLimiter.Allow() {
		p.Metrics.ObserveRequestRejected("rate_limited")
		return nil, coreerr.New(coreerr.BadRequest, "submit rate limit exceeded")
	}
	epoch := now / 3600
	if _, err := common.Apply(p.quota(), "requestpipeline", epoch, user.Bytes(), p.SubmitQuota, uint32(len(requests)), 0); err != nil {
		p.Metrics.ObserveRequestRejected("quota_exceeded")
		return nil, coreerr.Wrap(coreerr.BadRequest, "submit quota exceeded", err)
	}

	adminFloor, err := p.Store.GetAdminStatus()
	if err != nil {
		return nil, err
	}
	status, err := p.CurrentStatus(ctx, adminFloor)
	if err != nil {
		return nil, err
	}

	reserves, err := p.loadAllReserves()
	if err != nil {
		return nil, err
	}
	userKey := user.Key()
	userPositions, err := p.Store.GetPositions(userKey)
	if err != nil {
		return nil, err
	}
	backstopPositions, err := p.Store.GetPositions(p.BackAddr.Key())
	if err != nil {
		return nil, err
	}

	subjects := map[string]*position.Positions{}
	subjectAddrs := map[string]address.Address{}
	auctions := map[requestpipeline.AuctionKey]*auction.Data{}
	loadedAuctionKeys := make([]requestpipeline.AuctionKey, 0, len(requests))

	for _, req := range requests {
		kind, ok := auctionKindForRequest(req.Type)
		if !ok {
			continue
		}
		subjectKey := req.Subject.Key()
		key := requestpipeline.AuctionKey{Type: kind, Subject: subjectKey}
		if _, ok := auctions[key]; !ok {
			data, found, err := p.Store.GetAuction(kind, subjectKey)
			if err != nil {
				return nil, err
			}
			if found {
				auctions[key] = data
			}
			loadedAuctionKeys = append(loadedAuctionKeys, key)
		}
		if req.Type == requestpipeline.FillUserLiquidationAuction {
			if _, ok := subjects[subjectKey]; !ok {
				sp, err := p.Store.GetPositions(subjectKey)
				if err != nil {
					return nil, err
				}
				subjects[subjectKey] = sp
				subjectAddrs[subjectKey] = req.Subject
			}
		}
	}

	rpCtx := &requestpipeline.Context{
		Ctx:              ctx,
		Oracle:           p.Oracle,
		Reserves:         reserves,
		Status:           status,
		Now:              now,
		Block:            block,
		MaxPositions:     p.MaxPositions,
		MinCollateral:    p.MinCollateral,
		MaxPriceAge:      p.MaxPriceAge,
		BackstopTakeRate: p.BackstopTakeRate,
		FillerAddr:       user,
		User:             userPositions,
		Backstop:         backstopPositions,
		Subjects:         subjects,
		Auctions:         auctions,
	}

	result, err := requestpipeline.Submit(rpCtx, requests)
	if err != nil {
		p.Metrics.ObserveRequestRejected(requestCode(err))
		return nil, err
	}

	if err := p.persistAfterSubmit(reserves, userKey, userPositions, backstopPositions, subjects, loadedAuctionKeys, auctions); err != nil {
		return nil, err
	}
	if err := p.cascadeBadDebt(ctx, subjects, subjectAddrs); err != nil {
		return nil, err
	}
	if err := p.settle(ctx, user, result); err != nil {
		return nil, err
	}
	p.logger().Info("submit applied",
		"request_id", requestID,
		"user", user.String(),
		"requests", len(requests),
		"block", block,
		"transfer_deltas", len(result.TransferDeltas),
	)
	return result, nil
}

// requestCode extracts the coreerr code name for a metrics label, falling
// back to "unknown" for errors that never passed through coreerr.New/Wrap.
func requestCode(err error) string {
	var pe *coreerr.PoolError
	if errors.As(err, &pe) {
		return strconv.Itoa(int(pe.Code()))
	}
	return "unknown"
}

// persistAfterSubmit writes back every piece of state Submit may have
// mutated: the touched reserves, the filler's and backstop's positions, any
// loaded subject positions, and the auction records — persisting survivors
// and deleting any auction that was loaded but is no longer present after
// the batch ran.
func (p *Pool) persistAfterSubmit(
	reserves map[uint32]*requestpipeline.ReserveEntry,
	userKey string,
	userPositions, backstopPositions *position.Positions,
	subjects map[string]*position.Positions,
	loadedAuctionKeys []requestpipeline.AuctionKey,
	auctions map[requestpipeline.AuctionKey]*auction.Data,
) error {
	for _, entry := range reserves {
		if err := p.Store.PutReserve(entry.Config, entry.Data); err != nil {
			return err
		}
	}
	if err := p.Store.PutPositions(userKey, userPositions); err != nil {
		return err
	}
	if err := p.Store.PutPositions(p.BackAddr.Key(), backstopPositions); err != nil {
		return err
	}
	for key, sp := range subjects {
		if err := p.Store.PutPositions(key, sp); err != nil {
			return err
		}
	}
	for _, key := range loadedAuctionKeys {
		data, ok := auctions[key]
		if !ok {
			if err := p.Store.DeleteAuction(key.Type, key.Subject); err != nil {
				return err
			}
			p.logger().Info("auction closed", "type", key.Type, "subject", key.Subject)
			continue
		}
		if err := p.Store.PutAuction(key.Type, key.Subject, data); err != nil {
			return err
		}
	}
	return nil
}

// cascadeBadDebt checks every subject touched by a liquidation fill in this
// batch and, for any left with zero collateral and nonzero liabilities,
// moves the remainder onto the backstop (spec.md §4.8). subjects holds the
// already-persisted post-fill position sets; subjectAddrs recovers the
// address.Address each entry was keyed under, since ResolveBadDebt re-reads
// from the Store by address rather than taking the in-memory pointer.
func (p *Pool) cascadeBadDebt(ctx context.Context, subjects map[string]*position.Positions, subjectAddrs map[string]address.Address) error {
	for key, sp := range subjects {
		if !baddebt.IsPureBadDebt(sp) {
			continue
		}
		subject, ok := subjectAddrs[key]
		if !ok {
			continue
		}
		if err := p.ResolveBadDebt(ctx, subject); err != nil {
			return err
		}
	}
	return nil
}

// settle moves underlying and backstop shares to match the batch's net
// result: a positive TransferDeltas entry is owed to the pool from user, a
// negative one is owed from the pool to user (spec.md §4.5); a positive
// ShareDelta means user pays backstop shares in, a negative one means user
// receives shares out.
func (p *Pool) settle(ctx context.Context, user address.Address, result *requestpipeline.Result) error {
	for idx, delta := range result.TransferDeltas {
		if delta.Sign() == 0 {
			continue
		}
		token, ok := p.Tokens[idx]
		if !ok {
			return coreerr.ErrInternalReserveNotFound
		}
		if delta.Sign() > 0 {
			if err := token.Transfer(ctx, user, p.Addr, delta); err != nil {
				return coreerr.Wrap(coreerr.TransferFailed, "settling pool-bound transfer", err)
			}
		} else {
			if err := token.Transfer(ctx, p.Addr, user, new(big.Int).Neg(delta)); err != nil {
				return coreerr.Wrap(coreerr.TransferFailed, "settling user-bound transfer", err)
			}
		}
	}
	if result.ShareDelta != nil && result.ShareDelta.Sign() != 0 {
		if result.ShareDelta.Sign() > 0 {
			if err := p.Backstop.Deposit(ctx, user, p.Addr, result.ShareDelta); err != nil {
				return coreerr.Wrap(coreerr.TransferFailed, "settling backstop share deposit", err)
			}
		} else {
			if err := p.Backstop.Draw(ctx, p.Addr, new(big.Int).Neg(result.ShareDelta), user); err != nil {
				return coreerr.Wrap(coreerr.TransferFailed, "settling backstop share draw", err)
			}
		}
	}
	return nil
}

// CurrentStatus computes the live derived status from the admin floor and
// the backstop's current health signals (spec.md §4.6). It is never
// persisted: update_status is evaluated fresh on every call, the way the
// teacher re-evaluates PauseView on every Guard call rather than caching it.
func (p *Pool) CurrentStatus(ctx context.Context, adminFloor poolstatus.Status) (poolstatus.Status, error) {
	if adminFloor == poolstatus.AdminFrozen {
		return poolstatus.AdminFrozen, nil
	}
	healthy, err := p.Backstop.IsHealthy(ctx, p.Addr)
	if err != nil {
		return 0, err
	}
	thresholdOK, err := p.Backstop.ThresholdMet(ctx, p.Addr)
	if err != nil {
		return 0, err
	}
	balance, err := p.Backstop.PoolBalanceOf(ctx, p.Addr)
	if err != nil {
		return 0, err
	}
	queuedBps := uint64(0)
	if balance.Shares != nil && balance.Shares.Sign() > 0 && balance.Q4W != nil {
		num := new(big.Int).Mul(balance.Q4W, big.NewInt(10_000))
		queuedBps = new(big.Int).Quo(num, balance.Shares).Uint64()
	}
	derived := poolstatus.Derive(adminFloor, poolstatus.Inputs{
		BackstopHealthy:     healthy,
		BackstopThresholdOK: thresholdOK,
		QueuedBps:           queuedBps,
	})
	if adminFloor.IsAdminSet() && adminFloor > derived {
		return adminFloor, nil
	}
	return derived, nil
}

// Gulp credits any underlying the pool holds in excess of its accounting to
// the named reserve's backstop credit (spec.md §4.2 "Gulp").
func (p *Pool) Gulp(ctx context.Context, reserveIndex uint32) (*big.Int, error) {
	cfg, data, ok, err := p.Store.GetReserve(reserveIndex)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, coreerr.ErrInternalReserveNotFound
	}
	token, ok := p.Tokens[reserveIndex]
	if !ok {
		return nil, coreerr.ErrInternalReserveNotFound
	}
	balance, err := token.Balance(ctx, p.Addr)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.TransferFailed, "reading pool token balance", err)
	}
	surplus := reserve.Gulp(data, balance)
	if err := p.Store.PutReserve(cfg, data); err != nil {
		return nil, err
	}
	return surplus, nil
}
