// =============================================================================
// Usage Insights Reporter - Report Formatter Module
// =============================================================================
//
// This module renders the merged record set into the fixed textual layout
// posted to Slack. Two variants share the same per-company line structure:
//
//   plain        - one metric per line, one block per metric:
//                    <Company> - Total Billed Credits: X.XX
//                    <Company> - Error Rate: 0.XXXX
//
//   consolidated - one block per company with a name line followed by up to
//                  two metric lines; a metric line is omitted entirely when
//                  that value is not available for the company:
//                    Company: <Company>
//                    Total Billed Credits: X.XX
//                    Average Error Rate: 0.XXXX
//
// Numeric fields are always rendered with fixed decimal places (2 for
// credits, 4 for error rate) regardless of trailing zeros. Record order is
// preserved as given; ordering is the merger's concern, not the
// formatter's.
//
// =============================================================================

package report

import (
	"bytes"
	"fmt"

	"github.com/keboola-insights/usage-reporter/internal/merger"
)

// Fixed decimal scales for the rendered metric values.
const (
	billedPlaces = 2
	errorPlaces  = 4
)

// =============================================================================
// VARIANTS AND CONTEXT
// =============================================================================

// Variant selects the report layout.
type Variant string

const (
	// VariantPlain renders one metric per line, one block per metric.
	VariantPlain Variant = "plain"

	// VariantConsolidated renders one block per company.
	VariantConsolidated Variant = "consolidated"
)

// Context carries the reference information interpolated into the report
// header.
type Context struct {
	// SourceRef identifies the source table (e.g. "in.c-usage.usage_data").
	// Must be non-empty; it is not otherwise validated.
	SourceRef string
}

// =============================================================================
// FORMATTING
// =============================================================================

// Format renders the merged records in the requested variant.
//
// Records with neither metric present are excluded from the output. If
// nothing remains to render, Format returns merger.ErrEmptyResult rather
// than an empty report.
func Format(records []merger.MergedRecord, ctx Context, variant Variant) (string, error) {
	if ctx.SourceRef == "" {
		return "", fmt.Errorf("report context has no source reference")
	}

	renderable := make([]merger.MergedRecord, 0, len(records))
	for _, r := range records {
		// The merger never emits a record with both fields missing; this
		// guard keeps the invariant local to the formatter as well.
		if r.BilledTotal == nil && r.ErrorRate == nil {
			continue
		}
		renderable = append(renderable, r)
	}
	if len(renderable) == 0 {
		return "", merger.ErrEmptyResult
	}

	switch variant {
	case VariantPlain:
		return formatPlain(renderable, ctx), nil
	case VariantConsolidated, "":
		return formatConsolidated(renderable, ctx), nil
	default:
		return "", fmt.Errorf("unknown report variant %q", variant)
	}
}

// formatPlain renders the per-metric block layout.
func formatPlain(records []merger.MergedRecord, ctx Context) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Usage metrics for %s\n", ctx.SourceRef)

	buf.WriteString("\n")
	for _, r := range records {
		if r.BilledTotal == nil {
			continue
		}
		fmt.Fprintf(&buf, "%s - Total Billed Credits: %s\n", r.Entity, r.BilledTotal.StringFixed(billedPlaces))
	}

	buf.WriteString("\n")
	for _, r := range records {
		if r.ErrorRate == nil {
			continue
		}
		fmt.Fprintf(&buf, "%s - Error Rate: %s\n", r.Entity, r.ErrorRate.StringFixed(errorPlaces))
	}

	return buf.String()
}

// formatConsolidated renders the per-company block layout.
func formatConsolidated(records []merger.MergedRecord, ctx Context) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Usage summary for %s\n", ctx.SourceRef)

	for _, r := range records {
		buf.WriteString("\n")
		fmt.Fprintf(&buf, "Company: %s\n", r.Entity)
		if r.BilledTotal != nil {
			fmt.Fprintf(&buf, "Total Billed Credits: %s\n", r.BilledTotal.StringFixed(billedPlaces))
		}
		if r.ErrorRate != nil {
			fmt.Fprintf(&buf, "Average Error Rate: %s\n", r.ErrorRate.StringFixed(errorPlaces))
		}
	}

	return buf.String()
}
