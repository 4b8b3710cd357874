package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "oppilot",
	Short: "Oppilot - LLM dispatch and failover engine",
	Long: `Oppilot routes LLM tasks to the best-suited model and fails over
automatically when providers break, rate-limit, or time out.

It resolves each task through classification or a manual override,
walks the configured provider pools in health-ranked order, and keeps
per-credential success, failure, and latency state across runs:
  - Weighted keyword task classification (English and Chinese)
  - Manual override pinning with TTL and failure budget
  - Credential rotation with cooldowns for rate-limited keys
  - Primary, secondary, and emergency provider pools
  - Dispatch journal and Prometheus metrics`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "oppilot.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
