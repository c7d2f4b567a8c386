// Package external defines the collaborator interfaces the pool core
// consumes but does not implement (spec.md §1, §6): the oracle, token
// contracts, and the backstop module. Rewriting concrete implementations is
// explicitly mechanical and out of scope; only deterministic fakes for
// tests live under externaltest.
package external

import (
	"context"
	"math/big"

	"lendcore/address"
)

// Oracle exposes per-asset price reads (spec.md §6).
type Oracle interface {
	// GetPrice returns the asset's price in base-asset units at Decimals
	// precision, and the timestamp the quote was produced.
	GetPrice(ctx context.Context, asset address.Address) (price *big.Int, timestamp uint64, err error)
	Decimals(ctx context.Context) (uint32, error)
	BaseAsset(ctx context.Context) (address.Address, error)
}

// Token exposes the minimal balance/transfer surface the pool needs from an
// external token contract (spec.md §6).
type Token interface {
	Transfer(ctx context.Context, from, to address.Address, amount *big.Int) error
	Balance(ctx context.Context, addr address.Address) (*big.Int, error)
	Decimals(ctx context.Context) (uint32, error)
}

// PoolBalance is the backstop's reported position for a given pool
// (spec.md §6).
type PoolBalance struct {
	Tokens *big.Int
	Shares *big.Int
	Q4W    *big.Int // shares queued for withdrawal
}

// Backstop exposes the operations the pool calls into the backstop module
// for (spec.md §6): deposits/draws on behalf of bad-debt/default handling,
// health checks feeding the status machine, and emissions gulping.
type Backstop interface {
	Deposit(ctx context.Context, user, pool address.Address, amount *big.Int) error
	Draw(ctx context.Context, pool address.Address, amount *big.Int, to address.Address) error
	Donate(ctx context.Context, from, pool address.Address, amount *big.Int) error
	PoolBalanceOf(ctx context.Context, pool address.Address) (PoolBalance, error)
	GulpEmissions(ctx context.Context, pool address.Address) (*big.Int, error)
	IsHealthy(ctx context.Context, pool address.Address) (bool, error)
	ThresholdMet(ctx context.Context, pool address.Address) (bool, error)
}
