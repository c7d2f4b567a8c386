// Command poolnode loads a pool's governance config, opens its storage
// backend, and constructs the in-process pool.Pool handle a service binds
// request handling to. Grounded on the teacher's cmd/p2pd/main.go flag- and
// logging-setup idiom; the gRPC/HTTP surface that would drive pool.Pool's
// Submit/CreateUserLiquidationAuction/Gulp/ClaimEmissions methods in
// production is out of scope here, the same way concrete Oracle/Token/
// Backstop collaborator implementations are (external/external.go's
// package doc).
package main

import (
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"

	"golang.org/x/time/rate"

	"lendcore/address"
	"lendcore/config"
	"lendcore/emissions"
	"lendcore/observability/logging"
	"lendcore/observability/metrics"
	"lendcore/observability/tracing"
	"lendcore/pool"
	"lendcore/reserve"
	"lendcore/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the pool configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fatal(err)
	}

	env := strings.TrimSpace(os.Getenv("POOL_ENV"))
	service := cfg.Log.Service
	if service == "" {
		service = "poolnode"
	}
	logger := logging.Setup(service, cfg.Log.Env)
	if env != "" {
		logger = logger.With("runtime_env", env)
	}

	db, err := openStorage(cfg.Storage)
	if err != nil {
		logger.Error("open storage", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := pool.NewStore(db)

	indices := make([]uint32, 0, len(cfg.Reserves))
	for _, r := range cfg.Reserves {
		if !r.Enabled {
			continue
		}
		rc, err := reserveConfigFromTOML(r)
		if err != nil {
			logger.Error("invalid reserve config", "index", r.Index, "error", err)
			os.Exit(1)
		}
		_, _, ok, err := store.GetReserve(r.Index)
		if err != nil {
			logger.Error("load reserve", "index", r.Index, "error", err)
			os.Exit(1)
		}
		if !ok {
			if err := store.PutReserve(rc, reserve.NewData(0)); err != nil {
				logger.Error("seed reserve", "index", r.Index, "error", err)
				os.Exit(1)
			}
		}
		indices = append(indices, r.Index)
	}

	if len(cfg.Emissions) > 0 {
		shares, err := emissionsSharesFromTOML(cfg.Emissions)
		if err != nil {
			logger.Error("invalid emissions config", "error", err)
			os.Exit(1)
		}
		if err := store.PutEmissionsShares(shares); err != nil {
			logger.Error("seed emissions config", "error", err)
			os.Exit(1)
		}
	}

	p := &pool.Pool{
		Store:            store,
		ReserveIndices:   indices,
		MaxPositions:     cfg.MaxPositions,
		MinCollateral:    big.NewInt(cfg.MinCollateral),
		MaxPriceAge:      cfg.MaxPriceAge,
		BackstopTakeRate: big.NewInt(cfg.Backstop.TakeRateBps),
		SubmitLimiter:    rate.NewLimiter(rate.Limit(50), 100),
		Pause:            pool.NewModulePause(),
		Metrics:          metrics.Registry(),
		Log:              logger,
		Tracer:           tracing.Setup(service, cfg.Log.Env),

		// Oracle, Backstop, Tokens, Addr, and BackAddr are injected by the
		// service embedding this pool against its live collaborators; left
		// nil here since no concrete implementation belongs in this module.
	}

	logger.Info("pool node configured",
		"name", cfg.Name,
		"reserves", len(p.ReserveIndices),
		"max_positions", p.MaxPositions,
	)
}

func fatal(err error) {
	os.Stderr.WriteString(err.Error() + "\n")
	os.Exit(1)
}

func openStorage(cfg config.StorageConfig) (storage.Database, error) {
	switch cfg.Driver {
	case "", "memory":
		return storage.NewMemDB(), nil
	case "leveldb":
		return storage.NewLevelDB(cfg.Path)
	default:
		return nil, fmt.Errorf("poolnode: unknown storage driver %q", cfg.Driver)
	}
}

func emissionsSharesFromTOML(entries []config.EmissionsConfig) (map[uint32]*big.Int, error) {
	shares := make(map[uint32]*big.Int, len(entries))
	values := make([]*big.Int, 0, len(entries))
	for _, e := range entries {
		side, err := emissions.ParseSide(e.Side)
		if err != nil {
			return nil, fmt.Errorf("poolnode: emissions entry for reserve %d: %w", e.ReserveIndex, err)
		}
		share := big.NewInt(e.ShareBps)
		shares[emissions.EncodeTokenID(e.ReserveIndex, side)] = share
		values = append(values, share)
	}
	if err := emissions.ValidateShares(values); err != nil {
		return nil, fmt.Errorf("poolnode: emissions shares: %w", err)
	}
	return shares, nil
}

func reserveConfigFromTOML(r config.ReserveConfig) (*reserve.Config, error) {
	asset, err := address.Decode(r.Asset)
	if err != nil {
		return nil, err
	}
	return &reserve.Config{
		Index:      r.Index,
		Asset:      asset,
		Decimals:   r.Decimals,
		CFactor:    big.NewInt(r.CFactor),
		LFactor:    big.NewInt(r.LFactor),
		Util:       big.NewInt(r.Util),
		MaxUtil:    big.NewInt(r.MaxUtil),
		RBase:      big.NewInt(r.RBase),
		ROne:       big.NewInt(r.ROne),
		RTwo:       big.NewInt(r.RTwo),
		RThree:     big.NewInt(r.RThree),
		Reactivity: big.NewInt(r.Reactivity),
		SupplyCap:  big.NewInt(r.SupplyCap),
		Enabled:    r.Enabled,
	}, nil
}
