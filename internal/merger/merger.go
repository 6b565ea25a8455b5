// =============================================================================
// Usage Insights Reporter - Result Merger Module
// =============================================================================
//
// This module combines the two independently computed per-company mappings
// (billed-credit totals and error-rate means) into one unified record set.
// A company appears in the result iff it appears in at least one input;
// a metric missing for a company stays explicitly "not available" rather
// than becoming zero.
//
// Field assignment dispatches on the mapping's metric label, so the merged
// values are identical no matter which order the two mappings are passed
// in. Record order follows the first argument's key order with any keys
// unique to the second argument appended, which - with both aggregations
// visiting rows in source order - is first-appearance order in the source.
//
// =============================================================================

package merger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/keboola-insights/usage-reporter/internal/aggregator"
)

// ErrEmptyResult reports that the merge produced zero renderable entities.
// The pipeline surfaces it instead of sending an empty report.
var ErrEmptyResult = errors.New("merge produced no renderable entities")

// MergedRecord carries the per-company metric values. A nil field means the
// metric is not available for that company.
type MergedRecord struct {
	Entity      string
	BilledTotal *decimal.Decimal
	ErrorRate   *decimal.Decimal
}

// Merge combines two aggregate mappings into one record set.
//
// The two mappings must carry distinct metric labels
// (aggregator.MetricBilledTotal and aggregator.MetricErrorRate); field
// values land by label, not by argument position. The resulting key set is
// the union of the inputs' key sets.
func Merge(a, b *aggregator.Mapping) ([]MergedRecord, error) {
	if a.Metric == b.Metric {
		return nil, fmt.Errorf("cannot merge two %q mappings", a.Metric)
	}

	keys := a.Keys()
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		seen[k] = true
	}
	for _, k := range b.Keys() {
		if !seen[k] {
			keys = append(keys, k)
		}
	}

	records := make([]MergedRecord, 0, len(keys))
	for _, key := range keys {
		record := MergedRecord{Entity: key}
		for _, m := range []*aggregator.Mapping{a, b} {
			value, ok := m.Get(key)
			if !ok {
				continue
			}
			switch m.Metric {
			case aggregator.MetricBilledTotal:
				v := value
				record.BilledTotal = &v
			case aggregator.MetricErrorRate:
				v := value
				record.ErrorRate = &v
			default:
				return nil, fmt.Errorf("unknown metric %q in merge input", m.Metric)
			}
		}
		records = append(records, record)
	}

	return records, nil
}
