// This file ties one reconciliation run together: build the balance index,
// run the conflict detector and the replay engine, and collect the report.
package reconcile

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/pledgewatch/internal/snapshot"
	"github.com/mesh-intelligence/pledgewatch/pkg/types"
)

// Runner holds the explicit inputs of one reconciliation run. No shared
// process state: everything a component needs is passed in here.
type Runner struct {
	Snapshot *snapshot.Snapshot
	Events   []types.TransferEvent
	Store    RecordStore
	Tokens   map[string]string // symbol -> lower-cased foreign address
	Fix      bool

	// SkipEntities and SkipReplay narrow a run to one half of the work
	// when investigating one class of findings.
	SkipEntities bool
	SkipReplay   bool

	Log logrus.FieldLogger
}

// Result is the outcome of a completed (or aborted) run.
type Result struct {
	Report   *Report
	Expected []ExpectedDonation
}

// Run executes the reconciliation. The conflict detector and the replay
// engine share only the read-only snapshot index, so they run as
// concurrent tasks. On a fatal replay condition Run returns the typed
// error together with everything accumulated up to the abort; the caller
// never gets a silent partial result.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	log := r.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	projects := snapshot.ProjectAdminSet(r.Snapshot.Admins)
	index := snapshot.BuildBalanceIndex(r.Snapshot.Pledges, projects)

	report := NewReport()
	result := &Result{Report: report}

	g, ctx := errgroup.WithContext(ctx)

	if !r.SkipEntities {
		checker := NewConflictChecker(r.Store, r.Snapshot, index, r.Tokens, r.Fix, report, log)
		g.Go(func() error {
			return checker.Check(ctx)
		})
	}

	if !r.SkipReplay {
		g.Go(func() error {
			donations, err := r.Store.AllDonations()
			if err != nil {
				return fmt.Errorf("loading donations: %w", err)
			}
			replayer := NewReplayer(r.Snapshot, donations, report, log)
			expected, err := replayer.Run(r.Events)
			result.Expected = expected
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, nil
}
