package types

import "fmt"

// Sentinel ids. Pledge and admin ids are dense 1-based integer ranges;
// id 0 always means "none" (no owning admin, or a mint when used as the
// source of a transfer).
const (
	NoAdmin  = 0
	NoPledge = 0
)

// PledgeState is the lifecycle state of an on-chain pledge.
type PledgeState int

// Pledge lifecycle states, in lifecycle order.
const (
	StatePledged PledgeState = iota
	StatePaying
	StatePaid
)

// PledgeStates lists all lifecycle states in lifecycle order, for code that
// must cover every state exhaustively.
var PledgeStates = []PledgeState{StatePledged, StatePaying, StatePaid}

// pledgeStateNames maps states to the names used by the on-chain snapshot.
var pledgeStateNames = map[PledgeState]string{
	StatePledged: "Pledged",
	StatePaying:  "Paying",
	StatePaid:    "Paid",
}

// ParsePledgeState parses the snapshot's state name ("Pledged", "Paying",
// "Paid") into a PledgeState.
func ParsePledgeState(s string) (PledgeState, error) {
	for state, name := range pledgeStateNames {
		if name == s {
			return state, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidState, s)
}

// String returns the snapshot name of the state.
func (s PledgeState) String() string {
	if name, ok := pledgeStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("PledgeState(%d)", int(s))
}

// AdminKind tags the role of an on-chain admin. Only Project admins
// aggregate pledge balances.
const (
	AdminGiver    = "Giver"
	AdminDelegate = "Delegate"
	AdminProject  = "Project"
)

// Admin is an on-chain identity referenced by pledges as owner. Immutable
// snapshot value.
type Admin struct {
	ID   int
	Kind string
	Name string
}

// Pledge is the current on-chain state of one unit of allocated funds:
// owned by one admin, in one lifecycle state, denominated in one token.
// Immutable snapshot value; it represents current state, not history.
type Pledge struct {
	ID     int
	Owner  int
	Token  string
	State  PledgeState
	Amount Amount
}
