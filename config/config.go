// Package config loads the pool's governance-set parameters from a TOML
// file, grounded on the teacher's config package convention of a single
// BurntSushi/toml-decoded struct tree per service. Fixed-point fields are
// authored as plain int64 in the file (decimal literals, not big.Int) and
// converted to *big.Int at the point reserve.Config/auction parameters are
// built, since TOML has no native arbitrary-precision integer type.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// ReserveConfig is one [[reserve]] table entry (spec.md §3 ReserveConfig).
type ReserveConfig struct {
	Asset      string `toml:"asset"`
	Index      uint32 `toml:"index"`
	Decimals   uint32 `toml:"decimals"`
	CFactor    int64  `toml:"c_factor"`
	LFactor    int64  `toml:"l_factor"`
	Util       int64  `toml:"util"`
	MaxUtil    int64  `toml:"max_util"`
	RBase      int64  `toml:"r_base"`
	ROne       int64  `toml:"r_one"`
	RTwo       int64  `toml:"r_two"`
	RThree     int64  `toml:"r_three"`
	Reactivity int64  `toml:"reactivity"`
	SupplyCap  int64  `toml:"supply_cap"`
	Enabled    bool   `toml:"enabled"`
}

// BackstopConfig is the backstop's TOML table (spec.md §4.6). The
// min-threshold and queue fields are decoded but not read: update_status
// (poolstatus.Derive) uses fixed 30%/60%/75% queued-share thresholds.
type BackstopConfig struct {
	Address           string `toml:"address"`
	TakeRateBps       int64  `toml:"take_rate_bps"`
	MinThresholdBps   int64  `toml:"min_threshold_bps"`
	QueueOnIceBps     int64  `toml:"queue_on_ice_bps"`
	QueueFrozenBps    int64  `toml:"queue_frozen_bps"`
	QueueHardFrozenBp int64  `toml:"queue_hard_frozen_bps"`
}

// EmissionsConfig is one reserve-side emissions allocation entry (spec.md
// §4.9).
type EmissionsConfig struct {
	ReserveIndex uint32 `toml:"reserve_index"`
	Side         string `toml:"side"` // "supply" or "liability"
	ShareBps     int64  `toml:"share_bps"`
}

// PoolConfig is the full governance-set parameter tree for one pool
// instance.
type PoolConfig struct {
	Name          string            `toml:"name"`
	Oracle        string            `toml:"oracle"`
	MaxPositions  int               `toml:"max_positions"`
	MinCollateral int64             `toml:"min_collateral"`
	MaxPriceAge   uint64            `toml:"max_price_age_seconds"`
	Reserves      []ReserveConfig   `toml:"reserve"`
	Backstop      BackstopConfig    `toml:"backstop"`
	Emissions     []EmissionsConfig `toml:"emissions"`
	Storage       StorageConfig     `toml:"storage"`
	Log           LogConfig         `toml:"log"`
}

// StorageConfig selects and configures the pool's key-value persistence
// tier (spec.md §9).
type StorageConfig struct {
	Driver string `toml:"driver"` // "memory" or "leveldb"
	Path   string `toml:"path"`
}

// LogConfig configures the ambient structured logger.
type LogConfig struct {
	Service string `toml:"service"`
	Env     string `toml:"env"`
}

// Load decodes a PoolConfig from a TOML file at path.
func Load(path string) (*PoolConfig, error) {
	var cfg PoolConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config: %s has unrecognized keys: %v", path, undecoded)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the structural invariants Load cannot express via struct
// tags alone: unique reserve indices, a usable storage driver, and a
// non-empty oracle reference.
func (c *PoolConfig) Validate() error {
	if c.Oracle == "" {
		return fmt.Errorf("config: oracle address is required")
	}
	if c.MaxPositions <= 0 {
		return fmt.Errorf("config: max_positions must be positive")
	}
	seen := make(map[uint32]struct{}, len(c.Reserves))
	for _, r := range c.Reserves {
		if _, dup := seen[r.Index]; dup {
			return fmt.Errorf("config: duplicate reserve index %d", r.Index)
		}
		seen[r.Index] = struct{}{}
	}
	switch c.Storage.Driver {
	case "", "memory", "leveldb":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "leveldb" && c.Storage.Path == "" {
		return fmt.Errorf("config: storage.path is required for the leveldb driver")
	}
	return nil
}
