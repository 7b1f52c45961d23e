// This file implements the transfer replay engine: the sequential state
// machine that walks the ordered Transfer event history, matches each event
// to the stored donation it produced, and attributes the transferred amount
// to the donation(s) that funded it.
package reconcile

import (
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/pledgewatch/internal/snapshot"
	"github.com/mesh-intelligence/pledgewatch/pkg/types"
)

// ledgerRecord is the engine-local attribution state for one stored or
// synthesized donation. amount is fixed; remaining is the live available
// balance, drawn down as the record funds later transfers.
type ledgerRecord struct {
	id        string // stored donation id; empty for synthesized records
	txHash    string
	amount    types.Amount
	remaining types.Amount
	parentIDs []string
	from      int
	pledgeID  int
	state     types.PledgeState
	createdAt time.Time
	synthetic bool
	inCharged bool
}

// matchable reports whether the record can still be resolved as the
// destination of an event: a stored record that has not been charged yet,
// or a synthesized record with its balance fully intact.
func (r *ledgerRecord) matchable() bool {
	if r.synthetic {
		return r.remaining.Equal(r.amount)
	}
	return r.remaining.IsZero()
}

// ExpectedDonation describes a donation record that should exist in the
// store but does not: an event reached its destination pledge without a
// matching stored record. The engine emits these; persisting them is the
// caller's decision.
type ExpectedDonation struct {
	TxHash    string
	ParentIDs []string
	From      int
	PledgeID  int
	State     types.PledgeState
	Amount    types.Amount
}

// Replayer replays the full ordered Transfer event history against the
// stored donation set. It is a strictly sequential state machine: each
// event's attribution depends on the queue state left by all prior events.
// A Replayer is exclusively owned by one run and must not be shared.
type Replayer struct {
	snap   *snapshot.Snapshot
	report *Report
	log    logrus.FieldLogger

	// pool holds, per destination pledge, the stored records not yet
	// matched as a destination, oldest first.
	pool map[int][]*ledgerRecord

	// charged holds, per pledge, the FIFO queue of records whose balance
	// is available to fund later transfers, oldest first.
	charged map[int][]*ledgerRecord
}

// NewReplayer builds a replayer over the pledge snapshot and the full
// stored donation set. Donations are bucketed by pledge in creation-time
// order; records against the sentinel pledge are ignored.
func NewReplayer(snap *snapshot.Snapshot, donations []types.DonationRecord, report *Report, log logrus.FieldLogger) *Replayer {
	sorted := append([]types.DonationRecord(nil), donations...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	pool := make(map[int][]*ledgerRecord)
	for _, d := range sorted {
		if d.PledgeID == types.NoPledge {
			continue
		}
		pool[d.PledgeID] = append(pool[d.PledgeID], &ledgerRecord{
			id:        d.ID,
			txHash:    d.TxHash,
			amount:    d.Amount,
			remaining: types.ZeroAmount(),
			parentIDs: d.ParentIDs,
			pledgeID:  d.PledgeID,
			createdAt: d.CreatedAt,
		})
	}

	return &Replayer{
		snap:    snap,
		report:  report,
		log:     log,
		pool:    pool,
		charged: make(map[int][]*ledgerRecord),
	}
}

// Run replays the events in order. On success it returns the synthesized
// should-create records. A fatal attribution failure aborts the run with a
// typed error carrying the event index; findings accumulated up to that
// point remain in the report.
func (r *Replayer) Run(events []types.TransferEvent) ([]ExpectedDonation, error) {
	var expected []ExpectedDonation

	for i, ev := range events {
		r.log.WithFields(logrus.Fields{
			"event":  i,
			"tx":     ev.TxHash,
			"from":   ev.From,
			"to":     ev.To,
			"amount": ev.Amount.String(),
		}).Debug("processing transfer")

		dest := r.resolveDestination(i, ev)

		var parents []string
		if !ev.IsMint() {
			var err error
			if dest != nil && !dest.synthetic && len(dest.parentIDs) > 0 {
				parents, err = r.drawDeclaredParents(i, ev, dest.parentIDs)
			} else {
				parents, err = r.drawFIFO(i, ev)
			}
			if err != nil {
				r.recordFatal(i, ev, err)
				return expected, err
			}
		}

		if dest != nil {
			// The matched record's balance becomes available to fund
			// subsequent transfers out of the destination pledge.
			dest.remaining = dest.remaining.Add(ev.Amount)
			r.enqueueCharged(dest)
			r.log.WithFields(logrus.Fields{
				"event":    i,
				"donation": dest.id,
				"available": dest.remaining.String(),
			}).Debug("amount charged to stored donation")
			continue
		}

		rec := &ledgerRecord{
			txHash:    ev.TxHash,
			amount:    ev.Amount,
			remaining: ev.Amount,
			parentIDs: parents,
			from:      ev.From,
			pledgeID:  ev.To,
			state:     r.snap.Pledge(ev.To).State,
			synthetic: true,
		}
		expected = append(expected, ExpectedDonation{
			TxHash:    ev.TxHash,
			ParentIDs: parents,
			From:      ev.From,
			PledgeID:  ev.To,
			State:     rec.state,
			Amount:    ev.Amount,
		})

		// A later event naming the same transaction and amount can still
		// match the synthesized record, and its balance can fund
		// subsequent transfers.
		r.pool[ev.To] = append(r.pool[ev.To], rec)
		r.enqueueCharged(rec)

		r.log.WithFields(logrus.Fields{
			"event":  i,
			"tx":     ev.TxHash,
			"pledge": ev.To,
			"amount": ev.Amount.String(),
		}).Info("donation record missing from store; should be created")
	}

	return expected, nil
}

// resolveDestination searches the destination pledge's un-matched pool for
// the record the event produced: same transaction, same amount, balance
// untouched. More than one equal match is reported as ambiguous and broken
// deterministically in favor of the earliest-created record. The selected
// record leaves the pool.
func (r *Replayer) resolveDestination(idx int, ev types.TransferEvent) *ledgerRecord {
	candidates := r.pool[ev.To]

	matchIdx := -1
	matches := 0
	for j, c := range candidates {
		if c.txHash == ev.TxHash && c.amount.Equal(ev.Amount) && c.matchable() {
			matches++
			if matchIdx == -1 {
				matchIdx = j
			}
		}
	}

	if matches > 1 {
		r.report.Add(Condition{
			Kind:       KindAmbiguousMatch,
			PledgeID:   ev.To,
			EventIndex: idx,
			Detail: fmt.Sprintf("%d stored donations match tx %s amount %s; selected earliest created",
				matches, ev.TxHash, ev.Amount),
		})
	}
	if matchIdx == -1 {
		return nil
	}

	selected := candidates[matchIdx]
	r.pool[ev.To] = append(candidates[:matchIdx:matchIdx], candidates[matchIdx+1:]...)
	return selected
}

// drawDeclaredParents attributes the event amount to the parent donations
// the matched record declares, in declared order. The declared lineage is
// authoritative: a declared parent missing from the source pledge's
// available funds is fatal, as is a lineage too small to cover the amount.
func (r *Replayer) drawDeclaredParents(idx int, ev types.TransferEvent, declared []string) ([]string, error) {
	queue := r.charged[ev.From]
	remaining := ev.Amount
	var parents []string

	for _, parentID := range declared {
		if remaining.IsZero() {
			break
		}

		pos := -1
		for j, c := range queue {
			if c.id == parentID {
				pos = j
				break
			}
		}
		if pos == -1 {
			r.charged[ev.From] = queue
			return nil, &UnattributedTransferError{
				EventIndex: idx,
				TxHash:     ev.TxHash,
				From:       ev.From,
				To:         ev.To,
				ParentID:   parentID,
			}
		}

		entry := queue[pos]
		draw := entry.remaining.Min(remaining)
		entry.remaining = entry.remaining.Sub(draw)
		remaining = remaining.Sub(draw)
		parents = append(parents, entry.id)

		if entry.remaining.IsZero() {
			entry.inCharged = false
			queue = append(queue[:pos:pos], queue[pos+1:]...)
		}
	}

	r.charged[ev.From] = queue
	if !remaining.IsZero() {
		return nil, &InsufficientParentFundsError{
			EventIndex: idx,
			TxHash:     ev.TxHash,
			From:       ev.From,
			To:         ev.To,
			Deficit:    remaining,
			Consulted:  parents,
		}
	}
	return parents, nil
}

// drawFIFO attributes the event amount to the source pledge's available
// records strictly oldest-first. Draining the queue before the amount is
// covered is fatal and reports the unmet deficit.
func (r *Replayer) drawFIFO(idx int, ev types.TransferEvent) ([]string, error) {
	queue := r.charged[ev.From]
	remaining := ev.Amount
	var parents []string
	var consulted []string
	consumed := 0

	for _, entry := range queue {
		draw := entry.remaining.Min(remaining)
		entry.remaining = entry.remaining.Sub(draw)
		remaining = remaining.Sub(draw)

		consulted = append(consulted, entry.id)
		if entry.id != "" {
			parents = append(parents, entry.id)
		}
		r.log.WithFields(logrus.Fields{
			"event":     idx,
			"donation":  entry.id,
			"drawn":     draw.String(),
			"available": entry.remaining.String(),
		}).Debug("drew from available donation")

		if entry.remaining.IsZero() {
			entry.inCharged = false
			consumed++
		}
		if remaining.IsZero() {
			break
		}
	}

	r.charged[ev.From] = queue[consumed:]
	if !remaining.IsZero() {
		return nil, &InsufficientParentFundsError{
			EventIndex: idx,
			TxHash:     ev.TxHash,
			From:       ev.From,
			To:         ev.To,
			Deficit:    remaining,
			Consulted:  consulted,
		}
	}
	return parents, nil
}

// enqueueCharged appends the record to its pledge's available queue unless
// it is already queued (a synthesized record matched by a later event keeps
// its single queue slot, with its balance topped up in place).
func (r *Replayer) enqueueCharged(rec *ledgerRecord) {
	if rec.inCharged {
		return
	}
	rec.inCharged = true
	r.charged[rec.pledgeID] = append(r.charged[rec.pledgeID], rec)
}

// recordFatal adds the fatal condition to the report so the caller sees
// the full run context up to the abort.
func (r *Replayer) recordFatal(idx int, ev types.TransferEvent, err error) {
	kind := KindInsufficientParentFunds
	if _, ok := err.(*UnattributedTransferError); ok {
		kind = KindUnattributedTransfer
	}
	r.report.Add(Condition{
		Kind:       kind,
		PledgeID:   ev.From,
		EventIndex: idx,
		Detail:     err.Error(),
	})
}
