// Package coreerr carries the pool's dense numeric error taxonomy (spec §6,
// §7). The teacher's core/errors package is a flat set of errors.New
// sentinels (core/errors/stake.go); this generalizes that idiom to a typed
// error that still satisfies errors.Is/errors.As against the stdlib errors
// package (no error library is introduced — the teacher never uses one).
package coreerr

import (
	"errors"
	"fmt"
)

// Code is the pool's dense numeric error code, starting at the 1200 block
// spec.md reserves for this module.
type Code int

const (
	BadRequest              Code = 1200
	InvalidPoolInitArgs     Code = 1201
	InvalidReserveMetadata  Code = 1202
	InitNotUnlocked         Code = 1203
	NotAuthorized           Code = 1204
	StatusNotAllowed        Code = 1205
	InvalidHf               Code = 1206
	InvalidPoolStatus       Code = 1207
	MaxPositionsExceeded    Code = 1208
	SupplyCapExceeded       Code = 1209
	InternalReserveNotFound Code = 1210
	InvalidLiquidation      Code = 1211
	StalePrice              Code = 1212
	UtilizationCapExceeded  Code = 1213
	InsufficientBalance     Code = 1214
	InsufficientLiquidity   Code = 1215
	AuctionNotFound         Code = 1216
	AuctionNotStale         Code = 1217
	DuplicateAuction        Code = 1218
	OracleMissingAsset      Code = 1219
	BackstopDrawShortfall   Code = 1220
	EmissionsShareExceeded  Code = 1221
	TransferFailed          Code = 1222
	InvariantViolation      Code = 1223
)

// PoolError is a coded error that still composes with errors.Is/errors.As
// and fmt.Errorf's %w verb.
type PoolError struct {
	code  Code
	msg   string
	cause error
}

// New constructs a PoolError with no wrapped cause.
func New(code Code, msg string) *PoolError {
	return &PoolError{code: code, msg: msg}
}

// Wrap constructs a PoolError that chains an underlying cause, typically an
// external-interface failure (token transfer, oracle read, backstop draw).
func Wrap(code Code, msg string, cause error) *PoolError {
	return &PoolError{code: code, msg: msg, cause: cause}
}

func (e *PoolError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("pool[%d]: %s: %v", e.code, e.msg, e.cause)
	}
	return fmt.Sprintf("pool[%d]: %s", e.code, e.msg)
}

// Code returns the dense numeric error code.
func (e *PoolError) Code() Code { return e.code }

func (e *PoolError) Unwrap() error { return e.cause }

// Is matches another PoolError by code so sentinel comparisons
// (errors.Is(err, ErrBadRequest)) succeed even across distinct messages,
// e.g. a BadRequest raised for duplicate auction assets vs. one raised for
// an out-of-range fill percent.
func (e *PoolError) Is(target error) bool {
	var other *PoolError
	if errors.As(target, &other) {
		return other.code == e.code
	}
	return false
}

// Sentinel instances for the representative codes named in spec §6. Callers
// needing a distinct message should use New/Wrap directly; these exist for
// the common invariant-error paths that recur across packages.
var (
	ErrBadRequest              = New(BadRequest, "bad request")
	ErrInvalidPoolInitArgs     = New(InvalidPoolInitArgs, "invalid pool init args")
	ErrInvalidReserveMetadata  = New(InvalidReserveMetadata, "invalid reserve metadata")
	ErrInitNotUnlocked         = New(InitNotUnlocked, "queued reserve init not yet unlocked")
	ErrNotAuthorized           = New(NotAuthorized, "caller not authorized")
	ErrStatusNotAllowed        = New(StatusNotAllowed, "action not allowed in current pool status")
	ErrInvalidHf               = New(InvalidHf, "resulting position is unhealthy")
	ErrInvalidPoolStatus       = New(InvalidPoolStatus, "invalid pool status code")
	ErrMaxPositionsExceeded    = New(MaxPositionsExceeded, "max effective positions exceeded")
	ErrSupplyCapExceeded       = New(SupplyCapExceeded, "reserve supply cap exceeded")
	ErrInternalReserveNotFound = New(InternalReserveNotFound, "reserve not found in reserve list")
	ErrInvalidLiquidation      = New(InvalidLiquidation, "invalid liquidation")
	ErrStalePrice              = New(StalePrice, "oracle price is stale")
	ErrUtilizationCapExceeded  = New(UtilizationCapExceeded, "reserve utilization cap exceeded")
	ErrInsufficientBalance     = New(InsufficientBalance, "insufficient balance")
	ErrInsufficientLiquidity   = New(InsufficientLiquidity, "insufficient pool liquidity")
	ErrAuctionNotFound         = New(AuctionNotFound, "auction does not exist")
	ErrAuctionNotStale         = New(AuctionNotStale, "auction is not yet stale")
	ErrDuplicateAuction        = New(DuplicateAuction, "duplicate auction asset or concurrent auction")
	ErrOracleMissingAsset      = New(OracleMissingAsset, "oracle has no quote for asset")
	ErrBackstopDrawShortfall   = New(BackstopDrawShortfall, "backstop draw shortfall")
	ErrEmissionsShareExceeded  = New(EmissionsShareExceeded, "emissions share total exceeds 100%")
	ErrTransferFailed          = New(TransferFailed, "token transfer failed")
	ErrInvariantViolation      = New(InvariantViolation, "internal invariant violated")
)
