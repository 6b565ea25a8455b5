// =============================================================================
// Usage Insights Reporter - Run Command
// =============================================================================
//
// This file defines the 'run' command, which executes the full workflow:
//
//   1. Load configuration and environment secrets
//   2. Download the usage table from Keboola Storage (exactly once)
//   3. Run the aggregation-and-merge pipeline over the payload
//   4. Write and archive the run artifacts
//   5. Post the report to the Slack webhook
//
// FLAGS:
//   --table-id    : Override the configured Keboola table ID
//   --dry-run     : Build the report but print it instead of posting
//
// A failure at any stage aborts the run; no partial report is ever sent.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keboola-insights/usage-reporter/internal/config"
	"github.com/keboola-insights/usage-reporter/internal/keboola"
	"github.com/keboola-insights/usage-reporter/internal/notify"
	"github.com/keboola-insights/usage-reporter/internal/pipeline"
	"github.com/keboola-insights/usage-reporter/internal/report"
	"github.com/keboola-insights/usage-reporter/internal/tableparser"
	"github.com/keboola-insights/usage-reporter/pkg/fileutil"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// tableID overrides the configured Keboola table ID.
var tableID string

// dryRun builds the report but prints it instead of posting to Slack.
var dryRun bool

// =============================================================================
// RUN COMMAND DEFINITION
// =============================================================================

// runCmd represents the 'run' command.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch the usage table, build the report, and post it to Slack",
	Long: `The run command downloads the configured usage table from Keboola Storage,
computes per-company billed-credit totals and error-rate averages, merges the
two into a company summary, and posts the rendered report to the configured
Slack webhook.

The table is fetched exactly once; every transformation stage works from the
in-memory payload. On success the rendered report (and optionally a snapshot
of the raw payload) is written to the output directory and archived.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd.Context())
	},
}

// init registers the run command and its flags.
func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(
		&tableID,
		"table-id",
		"",
		"Keboola table ID to analyze (overrides the configured table_id)",
	)

	runCmd.Flags().BoolVar(
		&dryRun,
		"dry-run",
		false,
		"Build the report but print it instead of posting to Slack",
	)
}

// =============================================================================
// MAIN WORKFLOW
// =============================================================================

// runReport executes the full fetch-aggregate-notify workflow.
func runReport(ctx context.Context) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	// =========================================================================
	// STEP 1: CONFIGURATION
	// =========================================================================

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if tableID != "" {
		cfg.TableID = tableID
	}

	secrets, err := config.LoadSecrets()
	if err != nil {
		return err
	}
	if !dryRun && secrets.SlackWebhookURL == "" {
		return fmt.Errorf("SLACK_WEBHOOK_URL is not set (use --dry-run to build the report without posting)")
	}

	runID := uuid.New().String()
	logger = logger.With(zap.String("run_id", runID))
	logger.Info("starting usage report run", zap.String("table_id", cfg.TableID))

	// =========================================================================
	// STEP 2: FETCH (exactly once)
	// =========================================================================

	client, err := keboola.NewClient(keboola.Config{
		BaseURL:         secrets.APIURL,
		Token:           secrets.APIToken,
		Timeout:         cfg.HTTPTimeout(),
		PollInterval:    cfg.PollInterval(),
		MaxPollAttempts: cfg.MaxPollAttempts,
	}, logger)
	if err != nil {
		return err
	}

	raw, err := client.ExportTableCSV(ctx, cfg.TableID)
	if err != nil {
		return fmt.Errorf("failed to download table %s: %w", cfg.TableID, err)
	}

	// =========================================================================
	// STEP 3: PIPELINE
	// =========================================================================

	p := pipeline.New(pipeline.Config{
		Columns: pipeline.Columns{
			Entity:        cfg.Columns.Entity,
			BilledCredits: cfg.Columns.BilledCredits,
			ErrorRatio:    cfg.Columns.ErrorRatio,
		},
		SourceRef: cfg.TableID,
		CSV:       tableparser.Settings{Delimiter: cfg.CSV.Delimiter},
		Variant:   report.Variant(cfg.Report.Variant),
	}, logger)

	outcome, err := p.Run(ctx, raw)
	if err != nil {
		return err
	}

	// =========================================================================
	// STEP 4: ARTIFACTS
	// =========================================================================

	files := fileutil.NewManager(cfg.OutputDir, cfg.ArchiveDir)
	if err := files.EnsureDirectories(); err != nil {
		return err
	}

	if cfg.SaveReportEnabled() {
		path, err := files.SaveReport(outcome.Report, runID)
		if err != nil {
			return err
		}
		if _, err := files.Archive(path); err != nil {
			logger.Warn("failed to archive report", zap.Error(err))
		}
		logger.Info("report written", zap.String("path", path))
	}
	if cfg.SaveSnapshot {
		path, err := files.SaveSnapshot(raw, runID)
		if err != nil {
			return err
		}
		logger.Info("payload snapshot written", zap.String("path", path))
	}

	// =========================================================================
	// STEP 5: NOTIFY
	// =========================================================================

	if dryRun {
		fmt.Println(outcome.Report)
		logger.Info("dry run: report not posted")
		return nil
	}

	notifier, err := notify.NewSlackNotifier(secrets.SlackWebhookURL, cfg.HTTPTimeout(), logger)
	if err != nil {
		return err
	}
	if err := notifier.Send(ctx, outcome.Report); err != nil {
		return err
	}

	logger.Info("run complete",
		zap.Int("rows", outcome.Stats.RowsParsed),
		zap.Int("entities", outcome.Stats.Entities),
		zap.Int("with_billed_total", outcome.Stats.WithBilledTotal),
		zap.Int("with_error_rate", outcome.Stats.WithErrorRate),
		zap.Duration("duration", outcome.Stats.Duration))

	return nil
}
