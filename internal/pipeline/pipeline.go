// =============================================================================
// Usage Insights Reporter - Pipeline Orchestrator Module
// =============================================================================
//
// This module sequences the transformation stages over a single in-memory
// table:
//
//   Fetched -> BilledComputed -> ErrorComputed -> Merged -> Reported
//
// Each stage consumes only the output of the prior stages. The raw payload
// is injected exactly once: a Pipeline is single-use, and a second Run call
// fails fast instead of re-entering the Fetched stage. BilledComputed and
// ErrorComputed both depend only on Fetched and run concurrently; Merged
// waits for both.
//
// A failure at any stage aborts the whole run. The originating error is
// wrapped in a StageError naming the stage, and no partial report is ever
// produced.
//
// =============================================================================

package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/keboola-insights/usage-reporter/internal/aggregator"
	"github.com/keboola-insights/usage-reporter/internal/merger"
	"github.com/keboola-insights/usage-reporter/internal/report"
	"github.com/keboola-insights/usage-reporter/internal/tableparser"
	"github.com/keboola-insights/usage-reporter/internal/types"
)

// =============================================================================
// STAGES
// =============================================================================

// Stage identifies a pipeline stage.
type Stage int

const (
	StageFetched Stage = iota + 1
	StageBilledComputed
	StageErrorComputed
	StageMerged
	StageReported
)

// String returns the stage name used in logs and error messages.
func (s Stage) String() string {
	switch s {
	case StageFetched:
		return "fetched"
	case StageBilledComputed:
		return "billed_computed"
	case StageErrorComputed:
		return "error_computed"
	case StageMerged:
		return "merged"
	case StageReported:
		return "reported"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// StageError wraps a stage failure with the stage at which it occurred.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ErrAlreadyRun reports an attempt to re-enter the Fetched stage: the
// source payload is injected exactly once per pipeline.
var ErrAlreadyRun = fmt.Errorf("pipeline already consumed its input; the source is fetched exactly once per run")

// =============================================================================
// CONFIGURATION AND RESULTS
// =============================================================================

// Columns names the three columns the pipeline works with. Column names are
// configuration, not hardcoded literals, so schema variations of the usage
// table stay a config change.
type Columns struct {
	// Entity is the grouping column (the company identifier).
	Entity string

	// BilledCredits is the billed-credits amount column (summed).
	BilledCredits string

	// ErrorRatio is the error-ratio column (averaged).
	ErrorRatio string
}

// Config carries everything a Pipeline needs besides the payload itself.
type Config struct {
	// Columns are the usage-table column names.
	Columns Columns

	// SourceRef identifies the source table in the report header.
	SourceRef string

	// CSV contains settings for parsing the raw payload.
	CSV tableparser.Settings

	// Variant selects the report layout. Empty means consolidated.
	Variant report.Variant
}

// Stats summarizes a completed run.
type Stats struct {
	RowsParsed      int
	Entities        int
	WithBilledTotal int
	WithErrorRate   int
	Duration        time.Duration
}

// Outcome is the terminal artifact of a successful run: the report text
// handed to the notifier, plus the merged records and run statistics.
type Outcome struct {
	Report  string
	Records []merger.MergedRecord
	Stats   Stats
}

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline executes one aggregation-and-merge run. It is single-use.
type Pipeline struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	started bool
}

// New creates a Pipeline for a single run.
func New(cfg Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, logger: logger}
}

// Run executes the full pipeline over a raw delimited-text payload.
//
// The payload is parsed once (the Fetched stage); every later stage works
// from in-memory artifacts only. Calling Run (or RunTable) a second time on
// the same Pipeline returns ErrAlreadyRun.
func (p *Pipeline) Run(ctx context.Context, raw string) (*Outcome, error) {
	if err := p.begin(); err != nil {
		return nil, err
	}

	tbl, err := tableparser.Parse(raw, p.cfg.CSV)
	if err != nil {
		return nil, &StageError{Stage: StageFetched, Err: err}
	}
	tbl.Source = p.cfg.SourceRef

	return p.run(ctx, tbl)
}

// RunTable executes the pipeline over an already-parsed table. This is the
// entry point for workbook inputs, which are parsed by the xlsx parser
// rather than from raw text; the single-use contract is the same.
func (p *Pipeline) RunTable(ctx context.Context, tbl *types.Table) (*Outcome, error) {
	if err := p.begin(); err != nil {
		return nil, err
	}
	return p.run(ctx, tbl)
}

// begin marks the pipeline consumed, rejecting re-entry into Fetched.
func (p *Pipeline) begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrAlreadyRun
	}
	p.started = true
	return nil
}

// run drives the stages after Fetched.
func (p *Pipeline) run(ctx context.Context, tbl *types.Table) (*Outcome, error) {
	start := time.Now()

	p.logger.Debug("table fetched",
		zap.String("source", tbl.Source),
		zap.Int("rows", tbl.RowCount()),
		zap.Int("columns", tbl.ColumnCount()))

	// =========================================================================
	// BILLED / ERROR STAGES
	// =========================================================================
	// Both aggregations are pure functions of the same immutable row
	// sequence, so they run concurrently and join before the merge.

	var billed, errRate *aggregator.Mapping

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := aggregator.Aggregate(tbl,
			p.cfg.Columns.Entity, p.cfg.Columns.BilledCredits,
			aggregator.MetricBilledTotal, aggregator.SumZeroFill)
		if err != nil {
			return &StageError{Stage: StageBilledComputed, Err: err}
		}
		billed = m
		return nil
	})
	g.Go(func() error {
		m, err := aggregator.Aggregate(tbl,
			p.cfg.Columns.Entity, p.cfg.Columns.ErrorRatio,
			aggregator.MetricErrorRate, aggregator.MeanSkipEmpty)
		if err != nil {
			return &StageError{Stage: StageErrorComputed, Err: err}
		}
		errRate = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.logger.Debug("aggregations computed",
		zap.Int("billed_entities", billed.Len()),
		zap.Int("error_rate_entities", errRate.Len()))

	// =========================================================================
	// MERGE STAGE
	// =========================================================================

	records, err := merger.Merge(billed, errRate)
	if err != nil {
		return nil, &StageError{Stage: StageMerged, Err: err}
	}
	if len(records) == 0 {
		return nil, &StageError{Stage: StageMerged, Err: merger.ErrEmptyResult}
	}

	// =========================================================================
	// REPORT STAGE
	// =========================================================================

	text, err := report.Format(records, report.Context{SourceRef: p.cfg.SourceRef}, p.cfg.Variant)
	if err != nil {
		return nil, &StageError{Stage: StageReported, Err: err}
	}

	outcome := &Outcome{
		Report:  text,
		Records: records,
		Stats: Stats{
			RowsParsed:      tbl.RowCount(),
			Entities:        len(records),
			WithBilledTotal: billed.Len(),
			WithErrorRate:   errRate.Len(),
			Duration:        time.Since(start),
		},
	}

	p.logger.Info("report built",
		zap.String("source", p.cfg.SourceRef),
		zap.Int("rows", outcome.Stats.RowsParsed),
		zap.Int("entities", outcome.Stats.Entities),
		zap.Duration("duration", outcome.Stats.Duration))

	return outcome, nil
}
