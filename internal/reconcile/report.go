// Package reconcile checks the off-chain donation ledger against the
// on-chain pledge snapshot and Transfer event history. It detects and
// optionally repairs counter conflicts, and replays the event history to
// attribute every transfer to the stored donations that funded it.
package reconcile

import (
	"fmt"
	"sync"

	"github.com/mesh-intelligence/pledgewatch/pkg/types"
)

// ConditionKind classifies a reconciliation finding.
type ConditionKind string

// Condition kinds, ordered by severity.
const (
	// KindMissingBalanceData is informational: a stored counter references
	// a token absent from the on-chain aggregation. The counter is skipped.
	KindMissingBalanceData ConditionKind = "MissingBalanceData"

	// KindBalanceConflict is non-fatal: a stored value disagrees with the
	// computed on-chain value.
	KindBalanceConflict ConditionKind = "BalanceConflict"

	// KindAmbiguousMatch is non-fatal: more than one stored donation
	// equally matches a transfer destination. The earliest-created record
	// is selected.
	KindAmbiguousMatch ConditionKind = "AmbiguousMatch"

	// KindUnattributedTransfer is fatal: a transfer names a parent donation
	// that cannot be located among available funds.
	KindUnattributedTransfer ConditionKind = "UnattributedTransfer"

	// KindInsufficientParentFunds is fatal: available source funds ran out
	// before a transfer's amount was fully attributed.
	KindInsufficientParentFunds ConditionKind = "InsufficientParentFunds"
)

// Condition is one reconciliation finding with its identifying context.
// Fields that do not apply to the kind are left at their zero values;
// EventIndex is -1 outside replay.
type Condition struct {
	Kind       ConditionKind
	EntityID   string
	EntityKind string
	Token      string
	PledgeID   int
	EventIndex int
	Stored     string
	Computed   string
	Detail     string
}

// Report accumulates the findings of one reconciliation run. Safe for
// concurrent use; conflict detection adds findings from parallel entity
// tasks while replay adds its own.
type Report struct {
	mu         sync.Mutex
	conditions []Condition
	fixed      int
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{}
}

// Add records a finding.
func (r *Report) Add(c Condition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conditions = append(r.conditions, c)
}

// AddFixed records that n counter conflicts were repaired.
func (r *Report) AddFixed(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fixed += n
}

// Conditions returns a copy of all recorded findings.
func (r *Report) Conditions() []Condition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Condition, len(r.conditions))
	copy(out, r.conditions)
	return out
}

// ConflictCount returns the number of BalanceConflict findings.
func (r *Report) ConflictCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.conditions {
		if c.Kind == KindBalanceConflict {
			n++
		}
	}
	return n
}

// FixedCount returns the number of repaired counters.
func (r *Report) FixedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fixed
}

// Summary renders the end-of-run line for a completed run.
func (r *Report) Summary() string {
	return fmt.Sprintf("completed, %d conflicts (%d fixed)", r.ConflictCount(), r.FixedCount())
}

// UnattributedTransferError is the fatal condition raised when a transfer
// declares a parent donation that does not exist among the available funds
// of the source pledge.
type UnattributedTransferError struct {
	EventIndex int
	TxHash     string
	From       int
	To         int
	ParentID   string
}

func (e *UnattributedTransferError) Error() string {
	return fmt.Sprintf("event %d (tx %s): declared parent donation %s not found among available funds of pledge %d",
		e.EventIndex, e.TxHash, e.ParentID, e.From)
}

// InsufficientParentFundsError is the fatal condition raised when the
// available funds of the source pledge run out before the transferred
// amount is fully attributed.
type InsufficientParentFundsError struct {
	EventIndex int
	TxHash     string
	From       int
	To         int
	Deficit    types.Amount
	// Consulted lists the ids of the queue entries drawn from before the
	// funds ran out. Synthesized records without a stored id appear as "".
	Consulted []string
}

func (e *InsufficientParentFundsError) Error() string {
	return fmt.Sprintf("event %d (tx %s): pledge %d funds exhausted, deficit %s after consulting %d records",
		e.EventIndex, e.TxHash, e.From, e.Deficit, len(e.Consulted))
}
