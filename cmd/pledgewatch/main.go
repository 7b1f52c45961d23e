// Package main provides the pledgewatch CLI: reconciliation of the
// off-chain donation ledger against the on-chain pledge ledger.
package main

import (
	"fmt"
	"os"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUserError)
	}
}
