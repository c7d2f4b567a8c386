// Package externaltest provides deterministic in-memory fakes for the
// external.Oracle/Token/Backstop interfaces, grounded on the teacher's own
// in-memory engineState test double (native/lending/engine_accrual_test.go's
// mockEngineState) generalized from a single-market mock to per-asset maps.
package externaltest

import (
	"context"
	"math/big"

	"lendcore/address"
	"lendcore/coreerr"
	"lendcore/external"
)

// Oracle is a fixed-price, fixed-staleness-bound fake.
type Oracle struct {
	Prices    map[string]*big.Int
	Times     map[string]uint64
	OracleDec uint32
	Base      address.Address
}

// NewOracle constructs an empty fake oracle with the given decimals.
func NewOracle(decimals uint32, base address.Address) *Oracle {
	return &Oracle{
		Prices:    make(map[string]*big.Int),
		Times:     make(map[string]uint64),
		OracleDec: decimals,
		Base:      base,
	}
}

// Set records a quote for asset.
func (o *Oracle) Set(asset address.Address, price *big.Int, timestamp uint64) {
	o.Prices[asset.Key()] = price
	o.Times[asset.Key()] = timestamp
}

func (o *Oracle) GetPrice(_ context.Context, asset address.Address) (*big.Int, uint64, error) {
	price, ok := o.Prices[asset.Key()]
	if !ok {
		return nil, 0, coreerr.ErrOracleMissingAsset
	}
	return price, o.Times[asset.Key()], nil
}

func (o *Oracle) Decimals(context.Context) (uint32, error) { return o.OracleDec, nil }

func (o *Oracle) BaseAsset(context.Context) (address.Address, error) { return o.Base, nil }

// Token is an in-memory balance ledger.
type Token struct {
	Balances map[string]*big.Int
}

func NewToken() *Token { return &Token{Balances: make(map[string]*big.Int)} }

func (t *Token) Fund(addr address.Address, amount *big.Int) {
	t.Balances[addr.Key()] = new(big.Int).Add(t.balanceOf(addr), amount)
}

func (t *Token) balanceOf(addr address.Address) *big.Int {
	if b, ok := t.Balances[addr.Key()]; ok {
		return b
	}
	return big.NewInt(0)
}

func (t *Token) Transfer(_ context.Context, from, to address.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	fromBal := t.balanceOf(from)
	if fromBal.Cmp(amount) < 0 {
		return coreerr.ErrInsufficientBalance
	}
	t.Balances[from.Key()] = new(big.Int).Sub(fromBal, amount)
	t.Balances[to.Key()] = new(big.Int).Add(t.balanceOf(to), amount)
	return nil
}

func (t *Token) Balance(_ context.Context, addr address.Address) (*big.Int, error) {
	return t.balanceOf(addr), nil
}

func (t *Token) Decimals(context.Context) (uint32, error) { return 7, nil }

var _ external.Token = (*Token)(nil)
var _ external.Oracle = (*Oracle)(nil)

// Backstop is an in-memory fake of the backstop module.
type Backstop struct {
	Balances  map[string]external.PoolBalance
	Healthy   bool
	Threshold bool
	// EmissionsAmount is what GulpEmissions returns; nil behaves as zero.
	EmissionsAmount *big.Int
}

func NewBackstop() *Backstop {
	return &Backstop{Balances: make(map[string]external.PoolBalance), Healthy: true, Threshold: true}
}

func (b *Backstop) Deposit(_ context.Context, _, pool address.Address, amount *big.Int) error {
	bal := b.Balances[pool.Key()]
	if bal.Tokens == nil {
		bal.Tokens = big.NewInt(0)
	}
	bal.Tokens = new(big.Int).Add(bal.Tokens, amount)
	b.Balances[pool.Key()] = bal
	return nil
}

func (b *Backstop) Draw(_ context.Context, pool address.Address, amount *big.Int, _ address.Address) error {
	bal := b.Balances[pool.Key()]
	if bal.Tokens == nil || bal.Tokens.Cmp(amount) < 0 {
		return coreerr.ErrBackstopDrawShortfall
	}
	bal.Tokens = new(big.Int).Sub(bal.Tokens, amount)
	b.Balances[pool.Key()] = bal
	return nil
}

func (b *Backstop) Donate(_ context.Context, _, pool address.Address, amount *big.Int) error {
	return b.Deposit(nil, address.Address{}, pool, amount)
}

func (b *Backstop) PoolBalanceOf(_ context.Context, pool address.Address) (external.PoolBalance, error) {
	return b.Balances[pool.Key()], nil
}

func (b *Backstop) GulpEmissions(context.Context, address.Address) (*big.Int, error) {
	if b.EmissionsAmount == nil {
		return big.NewInt(0), nil
	}
	return b.EmissionsAmount, nil
}

func (b *Backstop) IsHealthy(context.Context, address.Address) (bool, error) { return b.Healthy, nil }

func (b *Backstop) ThresholdMet(context.Context, address.Address) (bool, error) {
	return b.Threshold, nil
}

var _ external.Backstop = (*Backstop)(nil)
