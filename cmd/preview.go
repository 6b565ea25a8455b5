// =============================================================================
// Usage Insights Reporter - Preview Command
// =============================================================================
//
// This file defines the 'preview' command, which runs the aggregation
// pipeline over a local file and prints the report to stdout. Nothing is
// fetched and nothing is posted, which makes it the safe way to check what
// a run would produce for a given dataset.
//
// Both input formats are supported: .csv payloads go through the text
// parser, .xlsx workbooks through the workbook parser. Either way the
// pipeline sees the same table shape.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keboola-insights/usage-reporter/internal/config"
	"github.com/keboola-insights/usage-reporter/internal/pipeline"
	"github.com/keboola-insights/usage-reporter/internal/report"
	"github.com/keboola-insights/usage-reporter/internal/tableparser"
	"github.com/keboola-insights/usage-reporter/internal/xlsxparser"
)

// previewFile is the local file to build the report from.
var previewFile string

// previewVariant overrides the configured report layout.
var previewVariant string

// previewCmd represents the 'preview' command.
var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Build the report from a local file and print it",
	Long: `The preview command runs the aggregation pipeline over a local CSV or XLSX
file and prints the rendered report to stdout. No Keboola credentials are
needed and nothing is posted to Slack.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runPreview(cmd.Context())
	},
}

// init registers the preview command and its flags.
func init() {
	rootCmd.AddCommand(previewCmd)

	previewCmd.Flags().StringVar(
		&previewFile,
		"file",
		"",
		"Path to a local .csv or .xlsx usage file (required)",
	)
	previewCmd.MarkFlagRequired("file")

	previewCmd.Flags().StringVar(
		&previewVariant,
		"variant",
		"",
		`Report layout: "consolidated" or "plain" (overrides the configured variant)`,
	)
}

// runPreview builds and prints the report for a local file.
func runPreview(ctx context.Context) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if previewVariant != "" {
		cfg.Report.Variant = previewVariant
	}

	p := pipeline.New(pipeline.Config{
		Columns: pipeline.Columns{
			Entity:        cfg.Columns.Entity,
			BilledCredits: cfg.Columns.BilledCredits,
			ErrorRatio:    cfg.Columns.ErrorRatio,
		},
		SourceRef: filepath.Base(previewFile),
		CSV:       tableparser.Settings{Delimiter: cfg.CSV.Delimiter},
		Variant:   report.Variant(cfg.Report.Variant),
	}, logger)

	var outcome *pipeline.Outcome

	switch strings.ToLower(filepath.Ext(previewFile)) {
	case ".xlsx":
		tbl, err := xlsxparser.Parse(previewFile)
		if err != nil {
			return err
		}
		outcome, err = p.RunTable(ctx, tbl)
		if err != nil {
			return err
		}
	default:
		raw, err := os.ReadFile(previewFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", previewFile, err)
		}
		outcome, err = p.Run(ctx, string(raw))
		if err != nil {
			return err
		}
	}

	fmt.Println(outcome.Report)
	return nil
}
