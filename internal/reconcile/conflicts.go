// This file implements the entity conflict detector: per-entity comparison
// of stored donation counters against aggregated on-chain balances, and
// cross-checking of stored donation sums against pledge amounts.
package reconcile

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/pledgewatch/internal/snapshot"
	"github.com/mesh-intelligence/pledgewatch/pkg/types"
)

// RecordStore is the slice of the record store reconciliation depends on.
type RecordStore interface {
	EntitiesWithProject(kind string) ([]types.Entity, error)
	DonationsByOwner(ownerID, status string) ([]types.DonationRecord, error)
	AllDonations() ([]types.DonationRecord, error)
	UpdateCounters(entityID string, patches []types.DonationCounter) error
}

// ConflictChecker compares each tracked entity's stored counters against
// the aggregated on-chain balances, and each pledge's aggregated amount
// against the stored donation sums that should equal it.
//
// Entities only read the shared balance index, so they are checked in
// parallel; the index must not be mutated while a check runs.
type ConflictChecker struct {
	store  RecordStore
	snap   *snapshot.Snapshot
	index  snapshot.BalanceIndex
	tokens map[string]string // symbol -> lower-cased foreign address
	fix    bool
	report *Report
	log    logrus.FieldLogger
}

// NewConflictChecker wires a checker. tokens maps counter symbols to the
// lower-cased on-chain token addresses the index is keyed by. When fix is
// set, counter conflicts are patched in the store.
func NewConflictChecker(store RecordStore, snap *snapshot.Snapshot, index snapshot.BalanceIndex,
	tokens map[string]string, fix bool, report *Report, log logrus.FieldLogger) *ConflictChecker {
	return &ConflictChecker{
		store:  store,
		snap:   snap,
		index:  index,
		tokens: tokens,
		fix:    fix,
		report: report,
		log:    log,
	}
}

// Check runs the detector over every tracked entity kind, entities in
// parallel. Non-fatal findings accumulate in the report; only store
// failures abort.
func (c *ConflictChecker) Check(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, kind := range types.EntityKinds {
		entities, err := c.store.EntitiesWithProject(kind)
		if err != nil {
			return fmt.Errorf("loading %s entities: %w", kind, err)
		}
		for _, entity := range entities {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				return c.checkEntity(entity)
			})
		}
	}

	return g.Wait()
}

// checkEntity verifies one entity: its stored per-token counters against
// the aggregated Pledged balances, then its stored donation sums against
// the pledge amounts of every aggregation bucket.
func (c *ConflictChecker) checkEntity(entity types.Entity) error {
	balances := c.index[entity.ProjectID]

	if err := c.checkCounters(entity, balances); err != nil {
		return err
	}
	return c.checkDonationSums(entity, balances)
}

// checkCounters compares stored counters against the Pledged-state
// aggregation and applies staged patches in one update when fixing.
func (c *ConflictChecker) checkCounters(entity types.Entity, balances snapshot.ProjectBalances) error {
	var patches []types.DonationCounter

	for _, counter := range entity.Counters {
		address, ok := c.tokens[counter.Symbol]
		var tb *snapshot.TokenBalance
		if ok {
			tb = balances.Token(types.StatePledged, address)
		}
		if tb == nil {
			c.report.Add(Condition{
				Kind:       KindMissingBalanceData,
				EntityID:   entity.ID,
				EntityKind: entity.Kind,
				Token:      counter.Symbol,
				EventIndex: -1,
				Detail:     "no on-chain balance for token",
			})
			continue
		}

		if counter.CurrentBalance.Equal(tb.Amount) {
			continue
		}

		c.log.WithFields(logrus.Fields{
			"kind":    entity.Kind,
			"entity":  entity.ID,
			"title":   entity.Title,
			"token":   counter.Symbol,
			"stored":  counter.CurrentBalance.String(),
			"chain":   tb.Amount.String(),
			"pledges": tb.PledgeIDs,
		}).Warn("donation counter disagrees with chain")

		c.report.Add(Condition{
			Kind:       KindBalanceConflict,
			EntityID:   entity.ID,
			EntityKind: entity.Kind,
			Token:      counter.Symbol,
			EventIndex: -1,
			Stored:     counter.CurrentBalance.String(),
			Computed:   tb.Amount.String(),
		})

		if c.fix {
			patches = append(patches, types.DonationCounter{
				Symbol:         counter.Symbol,
				CurrentBalance: tb.Amount,
			})
		}
	}

	if len(patches) == 0 {
		return nil
	}
	if err := c.store.UpdateCounters(entity.ID, patches); err != nil {
		return fmt.Errorf("patching counters of %s %s: %w", entity.Kind, entity.ID, err)
	}
	c.report.AddFixed(len(patches))
	return nil
}

// checkDonationSums verifies, for every lifecycle state and aggregation
// bucket, that the stored donations of the entity sum to each contributing
// pledge's amount. Mismatches are reported at pledge granularity and never
// auto-fixed; repairing them would require replay.
func (c *ConflictChecker) checkDonationSums(entity types.Entity, balances snapshot.ProjectBalances) error {
	for _, state := range types.PledgeStates {
		status, err := types.StatusForState(state)
		if err != nil {
			return err
		}

		donations, err := c.store.DonationsByOwner(entity.ID, status)
		if err != nil {
			return fmt.Errorf("loading %s donations of %s: %w", status, entity.ID, err)
		}

		for _, address := range c.tokens {
			tb := balances.Token(state, address)
			if tb == nil {
				continue
			}

			for _, pledgeID := range tb.PledgeIDs {
				pledge := c.snap.Pledge(pledgeID)

				sum := types.ZeroAmount()
				count := 0
				for _, d := range donations {
					if d.PledgeID == pledgeID {
						sum = sum.Add(d.Amount)
						count++
					}
				}

				if sum.Equal(pledge.Amount) {
					continue
				}

				c.log.WithFields(logrus.Fields{
					"entity":    entity.ID,
					"pledge":    pledgeID,
					"chain":     pledge.Amount.String(),
					"stored":    sum.String(),
					"donations": count,
				}).Warn("donation sum disagrees with pledge amount")

				c.report.Add(Condition{
					Kind:       KindBalanceConflict,
					EntityID:   entity.ID,
					EntityKind: entity.Kind,
					PledgeID:   pledgeID,
					EventIndex: -1,
					Stored:     sum.String(),
					Computed:   pledge.Amount.String(),
					Detail:     fmt.Sprintf("sum of %d %s donations", count, status),
				})
			}
		}
	}
	return nil
}
