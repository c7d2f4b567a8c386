package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
name = "main-pool"
oracle = "asset1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqv9t7s0"
max_positions = 12
min_collateral = 0
max_price_age_seconds = 300

[[reserve]]
asset = "asset1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqv9t7s0"
index = 0
decimals = 7
c_factor = 9000000
l_factor = 9000000
util = 8000000
max_util = 9500000
r_base = 50000
r_one = 400000
r_two = 2000000
r_three = 10000000
reactivity = 20000
supply_cap = 0
enabled = true

[backstop]
address = "ctr1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq0vxquy"
take_rate_bps = 2000
min_threshold_bps = 5000
queue_on_ice_bps = 3000
queue_frozen_bps = 6000
queue_hard_frozen_bps = 7500

[storage]
driver = "memory"

[log]
service = "lendcore"
env = "test"
`

func writeTemp(t *testing.T, contents string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "pool.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadParsesReserveAndBackstopTables(t *testing.T) {
	path := writeTemp(t, sampleConfig)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "main-pool", cfg.Name)
	require.Len(t, cfg.Reserves, 1)
	require.Equal(t, int64(9_000_000), cfg.Reserves[0].CFactor)
	require.Equal(t, int64(2000), cfg.Backstop.TakeRateBps)
	require.Equal(t, "memory", cfg.Storage.Driver)
}

func TestLoadRejectsDuplicateReserveIndex(t *testing.T) {
	dup := sampleConfig + `
[[reserve]]
asset = "asset1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqv9t7s0"
index = 0
decimals = 7
c_factor = 9000000
l_factor = 9000000
util = 8000000
max_util = 9500000
r_base = 50000
r_one = 400000
r_two = 2000000
r_three = 10000000
reactivity = 20000
supply_cap = 0
enabled = true
`
	path := writeTemp(t, dup)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsUnknownStorageDriver(t *testing.T) {
	bad := strings.Replace(sampleConfig, `driver = "memory"`, `driver = "postgres"`, 1)
	path := writeTemp(t, bad)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsUnrecognizedKeys(t *testing.T) {
	bad := sampleConfig + "\ntypo_field = 1\n"
	path := writeTemp(t, bad)
	_, err := Load(path)
	require.Error(t, err)
}
