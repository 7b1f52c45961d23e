// Reconcile command: the full audit run.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pledgewatch/internal/reconcile"
	"github.com/mesh-intelligence/pledgewatch/internal/snapshot"
	"github.com/mesh-intelligence/pledgewatch/internal/sqlite"
)

// Reconcile flag values.
var (
	flagStateFile    string
	flagEventsFile   string
	flagFix          bool
	flagSkipEntities bool
	flagSkipReplay   bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile the record store against the cached chain state",
	Long: `Reconcile loads the cached pledge/admin snapshot and Transfer event
history, then checks entity donation counters against aggregated chain
balances and replays the event history against the stored donations.

The run ends with either "completed, N conflicts (M fixed)" or
"aborted at event K" with the fatal condition; partial results are never
silent.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if flagStateFile != "" {
			cfg.StateFile = flagStateFile
		}
		if flagEventsFile != "" {
			cfg.EventsFile = flagEventsFile
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		snap, err := snapshot.Load(cfg.StateFile)
		if err != nil {
			return err
		}
		events, err := snapshot.LoadEvents(cfg.EventsFile)
		if err != nil {
			return err
		}

		store, err := sqlite.Open(cfg.DataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		runner := &reconcile.Runner{
			Snapshot:     snap,
			Events:       events,
			Store:        store,
			Tokens:       cfg.TokenAddresses(),
			Fix:          flagFix,
			SkipEntities: flagSkipEntities,
			SkipReplay:   flagSkipReplay,
			Log:          logrus.StandardLogger(),
		}

		result, err := runner.Run(cmd.Context())
		printReport(result)
		if err != nil {
			fmt.Printf("aborted at event %d: %v\n", fatalEventIndex(err), err)
			os.Exit(exitSysError)
		}

		fmt.Println(result.Report.Summary())
		return nil
	},
}

func init() {
	reconcileCmd.Flags().StringVar(&flagStateFile, "state", "", "cached pledge/admin state file (overrides config)")
	reconcileCmd.Flags().StringVar(&flagEventsFile, "events", "", "cached Transfer event history file (overrides config)")
	reconcileCmd.Flags().BoolVar(&flagFix, "fix", false, "patch stored counters that disagree with the chain")
	reconcileCmd.Flags().BoolVar(&flagSkipEntities, "skip-entities", false, "skip the entity counter checks")
	reconcileCmd.Flags().BoolVar(&flagSkipReplay, "skip-replay", false, "skip the transfer replay")
}

// printReport renders every finding and the synthesized should-create
// records of a (possibly aborted) run.
func printReport(result *reconcile.Result) {
	if result == nil {
		return
	}
	for _, c := range result.Report.Conditions() {
		line := fmt.Sprintf("%s:", c.Kind)
		if c.EntityID != "" {
			line += fmt.Sprintf(" %s %s", c.EntityKind, c.EntityID)
		}
		if c.Token != "" {
			line += fmt.Sprintf(" token %s", c.Token)
		}
		if c.PledgeID != 0 {
			line += fmt.Sprintf(" pledge %d", c.PledgeID)
		}
		if c.Stored != "" || c.Computed != "" {
			line += fmt.Sprintf(" stored %s chain %s", c.Stored, c.Computed)
		}
		if c.Detail != "" {
			line += " (" + c.Detail + ")"
		}
		fmt.Println(line)
	}
	for _, e := range result.Expected {
		fmt.Printf("should be created: tx %s pledge %d amount %s state %s parents %v\n",
			e.TxHash, e.PledgeID, e.Amount, e.State, e.ParentIDs)
	}
}

// fatalEventIndex extracts the aborting event index from a fatal replay
// error, or -1 when the failure happened outside replay.
func fatalEventIndex(err error) int {
	var unattributed *reconcile.UnattributedTransferError
	if errors.As(err, &unattributed) {
		return unattributed.EventIndex
	}
	var insufficient *reconcile.InsufficientParentFundsError
	if errors.As(err, &insufficient) {
		return insufficient.EventIndex
	}
	return -1
}
