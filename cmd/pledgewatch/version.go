// Version command for the pledgewatch CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pledgewatch/pkg/pledgewatch"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pledgewatch version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("pledgewatch", pledgewatch.Version)
	},
}
