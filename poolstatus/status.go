// Package poolstatus implements the pool status state machine (spec.md
// §4.6): admin-set (even) and derived (odd) codes, and the action-gating
// table that the request pipeline and auction engine consult before
// executing an action.
//
// Generalizes the teacher's native/common.Guard/PauseView boolean pause
// switch into a graded status code with per-action gating, since a single
// on/off pause cannot express "blocks borrow but not repay".
package poolstatus

import "lendcore/coreerr"

// Status is one of the six pool status codes.
type Status uint32

const (
	AdminActive Status = 0
	Active      Status = 1
	AdminOnIce  Status = 2
	OnIce       Status = 3
	AdminFrozen Status = 4
	Frozen      Status = 5
)

// Action identifies a user-facing operation subject to status gating.
type Action int

const (
	ActionBorrow Action = iota
	ActionSupply
	ActionCancelLiquidation
	ActionOther // repay, withdraw, fill, delete-stale, non-liquidation auctions
)

func (s Status) valid() bool {
	return s <= Frozen
}

// IsAdminSet reports whether the code is one an admin writes directly
// (even codes), as opposed to one update_status derives (odd codes).
func (s Status) IsAdminSet() bool {
	return s%2 == 0
}

// Allows reports whether the given action may proceed while the pool is in
// status s. The gating table is taken verbatim from spec.md §4.6's status
// table, which is the more specific of the two descriptions spec.md gives
// (its §4.5 prose summary claims codes 0/1/2 uniformly "permit all user
// actions", which conflicts with the §4.6 table row for code 2 blocking
// borrow/cancel-liq; the table is treated as authoritative — see
// DESIGN.md's "pool status gating" open-question entry).
func (s Status) Allows(action Action) error {
	if !s.valid() {
		return coreerr.ErrInvalidPoolStatus
	}
	switch s {
	case AdminActive, Active:
		return nil
	case AdminOnIce, OnIce:
		if action == ActionBorrow || action == ActionCancelLiquidation {
			return coreerr.ErrStatusNotAllowed
		}
		return nil
	case Frozen:
		if action == ActionBorrow || action == ActionSupply || action == ActionCancelLiquidation {
			return coreerr.ErrStatusNotAllowed
		}
		return nil
	case AdminFrozen:
		return coreerr.ErrStatusNotAllowed
	default:
		return coreerr.ErrInvalidPoolStatus
	}
}

// Inputs bundles the signals update_status reads to derive the next status
// (spec.md §4.6). QueuedBps is the backstop's queued-for-withdrawal share
// expressed in basis points of its total shares (3000 == 30%).
type Inputs struct {
	BackstopHealthy     bool
	BackstopThresholdOK bool
	QueuedBps           uint64
}

const (
	queue30Bps = 3_000
	queue60Bps = 6_000
	queue75Bps = 7_500
)

// Derive computes the status code the permissionless update_status entry
// point would transition to, given the pool's current admin-set floor and
// live backstop signals. Derive returns AdminFrozen when adminFloor is
// AdminFrozen and never returns it otherwise.
//
// Under AdminOnIce, the pure-queued-share escalation to Frozen at 60% is
// suppressed (spec.md §4.6: that trigger only fires without admin-ice);
// only the >=75% trigger and an unhealthy backstop combined with >=60%
// queued can still escalate an admin-iced pool to Frozen.
func Derive(adminFloor Status, in Inputs) Status {
	if adminFloor == AdminFrozen {
		return AdminFrozen
	}

	backstopOK := in.BackstopHealthy && in.BackstopThresholdOK
	sixtyBpsEscalates := adminFloor != AdminOnIce

	switch {
	case in.QueuedBps >= queue75Bps:
		return Frozen
	case !backstopOK && in.QueuedBps >= queue60Bps:
		return Frozen
	case !backstopOK:
		return OnIce
	case sixtyBpsEscalates && in.QueuedBps >= queue60Bps:
		return Frozen
	case in.QueuedBps >= queue30Bps:
		return OnIce
	default:
		return Active
	}
}
