// Package reserve implements the per-asset accounting engine: interest
// accrual, the bToken/dToken conversion indices, the utilization-driven rate
// curve, supply caps, and the backstop-credit split (spec.md §4.2).
//
// The shape mirrors the teacher's native/lending/types.go + math.go split
// (a plain data record plus free functions operating on *big.Int), widened
// from the teacher's single NHB/ZNHB market to an arbitrary number of
// independently configured reserves.
package reserve

import (
	"math/big"

	"lendcore/address"
	"lendcore/fixedpoint"
)

// Config is the governance-set, rarely-changing metadata for one reserve
// (spec.md §3 ReserveConfig). Index is assigned at registration and never
// reused for the lifetime of the pool.
type Config struct {
	Asset        address.Address
	Index        uint32
	Decimals     uint32
	CFactor      *big.Int // 7-dec
	LFactor      *big.Int // 7-dec
	Util         *big.Int // 7-dec target utilization
	MaxUtil      *big.Int // 7-dec hard cap
	RBase        *big.Int // 7-dec
	ROne         *big.Int // 7-dec
	RTwo         *big.Int // 7-dec
	RThree       *big.Int // 7-dec
	Reactivity   *big.Int // 7-dec
	SupplyCap    *big.Int // underlying units
	Enabled      bool
}

// Clone returns a deep copy so callers never share mutable big.Int state.
func (c Config) Clone() Config {
	clone := c
	clone.CFactor = fixedpoint.Clone(c.CFactor)
	clone.LFactor = fixedpoint.Clone(c.LFactor)
	clone.Util = fixedpoint.Clone(c.Util)
	clone.MaxUtil = fixedpoint.Clone(c.MaxUtil)
	clone.RBase = fixedpoint.Clone(c.RBase)
	clone.ROne = fixedpoint.Clone(c.ROne)
	clone.RTwo = fixedpoint.Clone(c.RTwo)
	clone.RThree = fixedpoint.Clone(c.RThree)
	clone.Reactivity = fixedpoint.Clone(c.Reactivity)
	clone.SupplyCap = fixedpoint.Clone(c.SupplyCap)
	return clone
}

// Data is the mutable per-reserve accounting state (spec.md §3 ReserveData).
type Data struct {
	DRate          *big.Int // 12-dec
	BRate          *big.Int // 12-dec
	IrMod          *big.Int // 7-dec
	BSupply        *big.Int // token units
	DSupply        *big.Int // token units
	BackstopCredit *big.Int // underlying units
	LastTime       uint64
}

// NewData returns the initial state for a newly registered reserve.
func NewData(now uint64) *Data {
	return &Data{
		DRate:          fixedpoint.Clone(fixedpoint.S12),
		BRate:          fixedpoint.Clone(fixedpoint.S12),
		IrMod:          fixedpoint.Clone(fixedpoint.S7),
		BSupply:        big.NewInt(0),
		DSupply:        big.NewInt(0),
		BackstopCredit: big.NewInt(0),
		LastTime:       now,
	}
}

// Clone returns a deep copy of the mutable reserve state.
func (d *Data) Clone() *Data {
	if d == nil {
		return nil
	}
	return &Data{
		DRate:          fixedpoint.Clone(d.DRate),
		BRate:          fixedpoint.Clone(d.BRate),
		IrMod:          fixedpoint.Clone(d.IrMod),
		BSupply:        fixedpoint.Clone(d.BSupply),
		DSupply:        fixedpoint.Clone(d.DSupply),
		BackstopCredit: fixedpoint.Clone(d.BackstopCredit),
		LastTime:       d.LastTime,
	}
}

// QueuedInit is the timelocked reserve configuration change record carried
// over from original_source/pool/src/storage.rs's QueuedReserveInit. The
// admin surface that writes/reads it is out of scope (spec.md §1), but the
// data shape and its timelock-readiness predicate belong to the persisted
// state layout (spec.md §9).
type QueuedInit struct {
	NewConfig  Config
	UnlockTime uint64
}

// Ready reports whether the timelock on a queued reserve config change has
// elapsed as of now.
func (q QueuedInit) Ready(now uint64) bool {
	return now >= q.UnlockTime
}
