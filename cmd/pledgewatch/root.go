// Root command for the pledgewatch CLI.
package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pledgewatch/pkg/pledgewatch"
)

// Global flag values.
var (
	flagConfig  string
	flagDataDir string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:     "pledgewatch",
	Short:   "Pledgewatch reconciles the donation ledger against the chain",
	Version: pledgewatch.Version,
	Long: `Pledgewatch compares the stored donation ledger (milestones, campaigns,
and donation records) against the on-chain liquid-pledging state: it checks
donation counters against aggregated pledge balances and replays the full
Transfer event history to attribute every transfer to the donations that
funded it.`,
	// Do not print usage on errors returned by subcommands.
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if flagVerbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: pledgewatch.yaml in the working directory)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory holding the record store (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "log every replayed event")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(reconcileCmd)
}
