// Package pool is the top-level orchestrator tying the reserve engine,
// position/request pipeline, auction engine, and status machine together
// behind one persisted ledger (spec.md §1, §9). Grounded on the teacher's
// native/lending/engine.go, which plays the identical tying-together role
// for a single fixed NHB/ZNHB market; this generalizes it to an arbitrary
// reserve set plus the auction/backstop machinery the teacher never had.
package pool

import (
	"encoding/json"
	"fmt"
	"math/big"

	"lendcore/auction"
	"lendcore/emissions"
	"lendcore/position"
	"lendcore/poolstatus"
	"lendcore/reserve"
	"lendcore/storage"
)

// Store persists pool state on top of a storage.Database, the teacher's
// generic key-value interface (storage/db.go), using JSON records keyed by
// a deterministic, human-readable prefix scheme (spec.md §9's storage
// layout: reserve config/data, user positions, live auctions, and the
// admin-set status floor each get their own key namespace).
type Store struct {
	db storage.Database
}

// NewStore wraps a storage.Database as a pool Store.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

func putJSON(db storage.Database, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("pool: encode %s: %w", key, err)
	}
	return db.Put([]byte(key), data)
}

func getJSON(db storage.Database, key string, v interface{}) (bool, error) {
	data, err := db.Get([]byte(key))
	if err != nil {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("pool: decode %s: %w", key, err)
	}
	return true, nil
}

func reserveConfigKey(idx uint32) string { return fmt.Sprintf("reserve/%d/config", idx) }
func reserveDataKey(idx uint32) string   { return fmt.Sprintf("reserve/%d/data", idx) }
func positionKey(addrKey string) string  { return "position/" + addrKey }
func auctionRecordKey(kind auction.Type, subjectKey string) string {
	return fmt.Sprintf("auction/%d/%s", kind, subjectKey)
}
func reserveEmissionKey(idx uint32, side emissions.Side) string {
	return fmt.Sprintf("emissions/reserve/%d/%d", idx, side)
}
func userEmissionKey(idx uint32, side emissions.Side, addrKey string) string {
	return fmt.Sprintf("emissions/user/%d/%d/%s", idx, side, addrKey)
}

const statusKey = "status/admin_floor"
const emissionsConfigKey = "emissions/config"

// PutReserve persists one reserve's config and data.
func (s *Store) PutReserve(cfg *reserve.Config, data *reserve.Data) error {
	if err := putJSON(s.db, reserveConfigKey(cfg.Index), cfg); err != nil {
		return err
	}
	return putJSON(s.db, reserveDataKey(cfg.Index), data)
}

// GetReserve loads one reserve's config and data, reporting false if absent.
func (s *Store) GetReserve(idx uint32) (*reserve.Config, *reserve.Data, bool, error) {
	var cfg reserve.Config
	ok, err := getJSON(s.db, reserveConfigKey(idx), &cfg)
	if err != nil || !ok {
		return nil, nil, false, err
	}
	var data reserve.Data
	ok, err = getJSON(s.db, reserveDataKey(idx), &data)
	if err != nil || !ok {
		return nil, nil, false, err
	}
	return &cfg, &data, true, nil
}

// PutPositions persists the position set belonging to the address whose
// address.Key() is addrKey.
func (s *Store) PutPositions(addrKey string, p *position.Positions) error {
	return putJSON(s.db, positionKey(addrKey), p)
}

// GetPositions loads a position set by address.Key(), returning an empty
// set if none is stored yet (spec.md §3: an address with no activity has an
// implicit empty position set, not an error).
func (s *Store) GetPositions(addrKey string) (*position.Positions, error) {
	p := position.New()
	ok, err := getJSON(s.db, positionKey(addrKey), p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return position.New(), nil
	}
	return p, nil
}

// PutAuction persists one live auction, keyed by variant and subject
// address.Key().
func (s *Store) PutAuction(kind auction.Type, subjectKey string, data *auction.Data) error {
	return putJSON(s.db, auctionRecordKey(kind, subjectKey), data)
}

// DeleteAuction removes a live auction record.
func (s *Store) DeleteAuction(kind auction.Type, subjectKey string) error {
	return s.db.Delete([]byte(auctionRecordKey(kind, subjectKey)))
}

// GetAuction loads one live auction, reporting false if none is stored.
func (s *Store) GetAuction(kind auction.Type, subjectKey string) (*auction.Data, bool, error) {
	var data auction.Data
	ok, err := getJSON(s.db, auctionRecordKey(kind, subjectKey), &data)
	if err != nil || !ok {
		return nil, false, err
	}
	return &data, true, nil
}

// PutReserveEmission persists one reserve-side's emission track.
func (s *Store) PutReserveEmission(idx uint32, side emissions.Side, data *emissions.ReserveEmissionData) error {
	return putJSON(s.db, reserveEmissionKey(idx, side), data)
}

// GetReserveEmission loads one reserve-side's emission track, constructing
// a zeroed track starting at now if none is stored yet.
func (s *Store) GetReserveEmission(idx uint32, side emissions.Side, now uint64) (*emissions.ReserveEmissionData, error) {
	data := emissions.NewReserveEmissionData(now)
	ok, err := getJSON(s.db, reserveEmissionKey(idx, side), data)
	if err != nil {
		return nil, err
	}
	if !ok {
		return emissions.NewReserveEmissionData(now), nil
	}
	return data, nil
}

// PutUserEmission persists one user's per-(reserve,side) accrual snapshot.
func (s *Store) PutUserEmission(idx uint32, side emissions.Side, addrKey string, data *emissions.UserEmissionData) error {
	return putJSON(s.db, userEmissionKey(idx, side, addrKey), data)
}

// GetUserEmission loads one user's per-(reserve,side) accrual snapshot,
// constructing a zeroed snapshot at startIndex if none is stored yet.
func (s *Store) GetUserEmission(idx uint32, side emissions.Side, addrKey string, startIndex *big.Int) (*emissions.UserEmissionData, error) {
	data := emissions.NewUserEmissionData(startIndex)
	ok, err := getJSON(s.db, userEmissionKey(idx, side, addrKey), data)
	if err != nil {
		return nil, err
	}
	if !ok {
		return emissions.NewUserEmissionData(startIndex), nil
	}
	return data, nil
}

// PutEmissionsShares persists the emissions share table, keyed by
// emissions.EncodeTokenID (spec.md §4.9's set_emissions_config).
func (s *Store) PutEmissionsShares(shares map[uint32]*big.Int) error {
	return putJSON(s.db, emissionsConfigKey, shares)
}

// GetEmissionsShares loads the emissions share table, reporting an empty
// table if set_emissions_config has never been called.
func (s *Store) GetEmissionsShares() (map[uint32]*big.Int, error) {
	shares := map[uint32]*big.Int{}
	ok, err := getJSON(s.db, emissionsConfigKey, &shares)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[uint32]*big.Int{}, nil
	}
	return shares, nil
}

// PutAdminStatus persists the admin-set status floor (spec.md §4.6).
func (s *Store) PutAdminStatus(status poolstatus.Status) error {
	return putJSON(s.db, statusKey, status)
}

// GetAdminStatus loads the admin-set status floor, defaulting to AdminActive
// for a pool that has never had its status touched.
func (s *Store) GetAdminStatus() (poolstatus.Status, error) {
	var status poolstatus.Status
	ok, err := getJSON(s.db, statusKey, &status)
	if err != nil {
		return poolstatus.AdminActive, err
	}
	if !ok {
		return poolstatus.AdminActive, nil
	}
	return status, nil
}
