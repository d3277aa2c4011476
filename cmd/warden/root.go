package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"warden-sh/warden/pkg/config"
	"warden-sh/warden/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "warden - command policy and audit for AI shell assistants",
	Long: `Warden classifies candidate shell commands into safety tiers using
configurable allow/deny rules and a compliance mode, and keeps a durable,
queryable audit trail of every classification and execution outcome.

It is designed to sit between a command generator (an LLM-backed shell
assistant) and the shell:

  - Policy verdicts: safe, warning, dangerous, blocked
  - Compliance mode: explicit allow-listing, deny rules always win
  - Append-only JSONL audit log, crash-tolerant and queryable
  - Statistics and exports for compliance review`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithEnvOverrides(cfgFile)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Telemetry.Logging.Level = "debug"
		}
		return logging.Setup(cfg.Telemetry.Logging)
	},
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
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", config.DefaultPath(), "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig loads the effective configuration for a subcommand.
func loadConfig() (*config.Config, error) {
	return config.LoadWithEnvOverrides(cfgFile)
}
