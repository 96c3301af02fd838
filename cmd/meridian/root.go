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
	Use:   "meridian",
	Short: "Meridian - fraud-operations rule platform",
	Long: `Meridian is a rule platform for banking fraud operations. It evaluates
transactions against versioned rulesets and routes every rule change through
a maker-checker workflow with a tamper-evident audit trail.

It provides:
  - Real-time transaction evaluation (first-block-wins or cumulative scoring)
  - Versioned, environment-scoped deployment of rulesets and data dictionaries
  - Maker-checker approval for every rule change
  - Hash-chained, append-only audit recording
  - Rule efficacy reporting against labeled outcomes`,
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
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.CompletionOptions.DisableDefaultCmd = false
}
