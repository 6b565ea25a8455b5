// =============================================================================
// Usage Insights Reporter - Group Aggregator Module
// =============================================================================
//
// This module reduces the parsed usage table to one numeric value per
// company. Two reduction rules exist, matching the two metrics the report
// carries:
//
//   SumZeroFill   - total billed credits. Every distinct company appearing
//                   in the rows is kept, empty or non-numeric cells count
//                   as zero, and the final sum is rounded once to 2 decimal
//                   places with round-half-to-even.
//
//   MeanSkipEmpty - average error ratio. Only cells that parse as numbers
//                   contribute; a company without a single numeric cell is
//                   excluded from the result entirely (it never appears
//                   with a zero or null value). The mean is rounded once to
//                   4 decimal places with round-half-to-even.
//
// Key order in the resulting mapping is first-appearance order in the
// source rows, which keeps the rendered report stable across runs.
//
// Accumulation is done in decimal arithmetic, not floats, so that the
// rounding contract holds for values like 10.005.
//
// =============================================================================

package aggregator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/keboola-insights/usage-reporter/internal/types"
)

// =============================================================================
// RULES AND METRICS
// =============================================================================

// Rule selects the reduction applied to the value column.
type Rule int

const (
	// SumZeroFill sums all parseable values per group, treating empty and
	// non-numeric cells as zero. Every group key is kept, including groups
	// whose total is exactly zero.
	SumZeroFill Rule = iota

	// MeanSkipEmpty averages the parseable values per group. Groups with no
	// parseable value are excluded from the result.
	MeanSkipEmpty
)

// String returns the rule name for logs and error messages.
func (r Rule) String() string {
	switch r {
	case SumZeroFill:
		return "sum_zero_fill"
	case MeanSkipEmpty:
		return "mean_skip_empty"
	default:
		return fmt.Sprintf("rule(%d)", int(r))
	}
}

// precision returns the fixed decimal scale the rule rounds to.
func (r Rule) precision() int32 {
	if r == MeanSkipEmpty {
		return 4
	}
	return 2
}

// Metric names carried on mappings. The merger dispatches on these, so a
// merged record is the same no matter which order its inputs arrive in.
const (
	MetricBilledTotal = "billed_total"
	MetricErrorRate   = "error_rate"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// InvalidColumnError reports that a requested column is absent from the
// table header.
type InvalidColumnError struct {
	// Column is the missing column name.
	Column string

	// Role describes what the column was requested as ("group", "value").
	Role string
}

func (e *InvalidColumnError) Error() string {
	return fmt.Sprintf("%s column %q not present in table header", e.Role, e.Column)
}

// =============================================================================
// AGGREGATE MAPPING
// =============================================================================

// Mapping is the result of one aggregation run: one value per entity key,
// with keys held in first-appearance order.
type Mapping struct {
	// Metric identifies what the values mean (MetricBilledTotal,
	// MetricErrorRate).
	Metric string

	// Precision is the fixed decimal scale every value is rounded to.
	Precision int32

	order  []string
	values map[string]decimal.Decimal
}

// newMapping creates an empty mapping for the given metric and scale.
func newMapping(metric string, precision int32) *Mapping {
	return &Mapping{
		Metric:    metric,
		Precision: precision,
		values:    make(map[string]decimal.Decimal),
	}
}

// set records a value for a key, appending the key to the order on first use.
func (m *Mapping) set(key string, value decimal.Decimal) {
	if _, exists := m.values[key]; !exists {
		m.order = append(m.order, key)
	}
	m.values[key] = value
}

// Get returns the value for a key and whether the key is present.
func (m *Mapping) Get(key string) (decimal.Decimal, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the entity keys in first-appearance order.
// The returned slice is a copy and may be modified by the caller.
func (m *Mapping) Keys() []string {
	keys := make([]string, len(m.order))
	copy(keys, m.order)
	return keys
}

// Len returns the number of entities in the mapping.
func (m *Mapping) Len() int {
	return len(m.order)
}

// =============================================================================
// AGGREGATION
// =============================================================================

// Aggregate groups the table's rows by groupColumn and reduces valueColumn
// per the given rule.
//
// PARAMETERS:
//   - tbl: The parsed table. Rows are visited in source order.
//   - groupColumn: The entity key column (the company identifier). An empty
//     cell is a valid, distinct key, not a reason to drop the row.
//   - valueColumn: The numeric column to reduce.
//   - metric: The metric label stamped on the resulting mapping.
//   - rule: SumZeroFill or MeanSkipEmpty.
//
// RETURNS:
//   - The aggregate mapping, keyed by entity in first-appearance order.
//   - An InvalidColumnError if either column is absent from the header.
//
// Non-numeric cells are never an error: under SumZeroFill they count as
// zero, under MeanSkipEmpty the row simply does not contribute.
func Aggregate(tbl *types.Table, groupColumn, valueColumn, metric string, rule Rule) (*Mapping, error) {
	if !tbl.HasColumn(groupColumn) {
		return nil, &InvalidColumnError{Column: groupColumn, Role: "group"}
	}
	if !tbl.HasColumn(valueColumn) {
		return nil, &InvalidColumnError{Column: valueColumn, Role: "value"}
	}

	type accumulator struct {
		sum   decimal.Decimal
		count int
	}

	order := make([]string, 0)
	groups := make(map[string]*accumulator)

	for _, row := range tbl.Rows {
		key := row[groupColumn]
		acc, exists := groups[key]
		if !exists {
			acc = &accumulator{}
			groups[key] = acc
			order = append(order, key)
		}

		value, ok := parseNumeric(row[valueColumn])
		if !ok {
			continue
		}
		acc.sum = acc.sum.Add(value)
		acc.count++
	}

	result := newMapping(metric, rule.precision())

	for _, key := range order {
		acc := groups[key]

		switch rule {
		case SumZeroFill:
			// Rounding is applied once to the final sum, not per row.
			result.set(key, acc.sum.RoundBank(result.Precision))

		case MeanSkipEmpty:
			if acc.count == 0 {
				continue
			}
			mean := acc.sum.Div(decimal.NewFromInt(int64(acc.count)))
			result.set(key, mean.RoundBank(result.Precision))

		default:
			return nil, fmt.Errorf("unknown aggregation rule: %s", rule)
		}
	}

	return result, nil
}

// parseNumeric parses a cell as a decimal number. Empty and whitespace-only
// cells, and anything else that does not parse, report ok=false.
func parseNumeric(cell string) (decimal.Decimal, bool) {
	if cell == "" {
		return decimal.Zero, false
	}
	value, err := decimal.NewFromString(cell)
	if err != nil {
		return decimal.Zero, false
	}
	return value, true
}
