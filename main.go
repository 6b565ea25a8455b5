// =============================================================================
// Usage Insights Reporter - Main Entry Point
// =============================================================================
//
// This is the main entry point for the Usage Insights Reporter CLI. It fetches
// a usage table from Keboola Storage, aggregates per-company billing and
// quality metrics, and posts a formatted summary to a Slack channel.
//
// USAGE:
//   usage-reporter run        - Fetch the usage table, build the report, post it
//   usage-reporter preview    - Build the report from a local file, print it
//   usage-reporter version    - Display the application version
//
// ARCHITECTURE:
//   This application follows a modular design where:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Core business logic (not for external import)
//   - pkg/           : Shared utilities
//
// =============================================================================

package main

import (
	"github.com/keboola-insights/usage-reporter/cmd"
)

// main is the entry point of the application.
// It simply calls the Execute function from the cmd package, which
// initializes and runs the Cobra CLI.
func main() {
	cmd.Execute()
}
