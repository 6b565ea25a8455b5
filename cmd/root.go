// =============================================================================
// Usage Insights Reporter - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands (like 'run', 'preview') are
// attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (usage-reporter)
//   ├── runCmd     (usage-reporter run)
//   ├── previewCmd (usage-reporter preview)
//   └── versionCmd (usage-reporter version)
//
// The root command owns the global flags (--config, --verbose) and the
// logger construction shared by the subcommands.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
// This can be overridden using the --config flag.
var cfgFile string

// verbose enables debug logging when set to true.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "usage-reporter",
	Short: "Usage Insights Reporter - Summarize Keboola usage data to Slack",

	Long: `Usage Insights Reporter downloads a usage table from Keboola Storage,
aggregates per-company billed credits and error rates, and posts a formatted
summary to a Slack channel.

Key Features:
  - Async Storage table export with job polling
  - Per-company billed-credit totals and error-rate averages
  - Deterministic, fixed-format report rendering
  - Plain or consolidated report layouts
  - Local preview from CSV or XLSX files without sending anything

Example Usage:
  usage-reporter run                          # Fetch, aggregate, post to Slack
  usage-reporter run --config ./my.yaml       # Use a custom configuration file
  usage-reporter preview --file usage.csv     # Print the report locally`,

	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand is provided, print the help message.
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

// init sets up the global flags.
func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file (default is config.yaml)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// newLogger builds the logger the subcommands share. --verbose switches to
// the development configuration at debug level.
func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
