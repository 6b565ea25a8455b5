package aggregator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keboola-insights/usage-reporter/internal/types"
)

// usageTable builds a three-column table from (company, billed, ratio) rows.
func usageTable(rows ...[3]string) *types.Table {
	tbl := &types.Table{
		Headers: []string{"Company", "Billed", "Ratio"},
	}
	for _, r := range rows {
		tbl.Rows = append(tbl.Rows, types.Row{
			"Company": r[0],
			"Billed":  r[1],
			"Ratio":   r[2],
		})
	}
	return tbl
}

func TestSumZeroFill(t *testing.T) {
	tbl := usageTable(
		[3]string{"A", "10.005", "0.01"},
		[3]string{"A", "", ""},
		[3]string{"B", "5", ""},
	)

	m, err := Aggregate(tbl, "Company", "Billed", MetricBilledTotal, SumZeroFill)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, m.Keys())

	// 10.005 has no further contributions, so the banker's rounding of the
	// final sum lands on the even neighbor.
	a, ok := m.Get("A")
	require.True(t, ok)
	assert.Equal(t, "10.00", a.StringFixed(2))

	b, ok := m.Get("B")
	require.True(t, ok)
	assert.Equal(t, "5.00", b.StringFixed(2))
}

func TestSumZeroFillKeepsZeroTotals(t *testing.T) {
	tbl := usageTable(
		[3]string{"A", "", ""},
		[3]string{"A", "not a number", ""},
	)

	m, err := Aggregate(tbl, "Company", "Billed", MetricBilledTotal, SumZeroFill)
	require.NoError(t, err)

	a, ok := m.Get("A")
	require.True(t, ok, "group with no numeric values must still appear")
	assert.Equal(t, "0.00", a.StringFixed(2))
}

func TestSumZeroFillCompleteness(t *testing.T) {
	tbl := usageTable(
		[3]string{"A", "1", ""},
		[3]string{"B", "", ""},
		[3]string{"", "3", ""},
		[3]string{"A", "2", ""},
	)

	m, err := Aggregate(tbl, "Company", "Billed", MetricBilledTotal, SumZeroFill)
	require.NoError(t, err)

	// Output key set equals the distinct grouping values, in first-seen
	// order; the empty key is a valid, distinct group.
	assert.Equal(t, []string{"A", "B", ""}, m.Keys())
}

func TestSumRoundsOnceNotPerRow(t *testing.T) {
	// Per-row rounding would give 1.00 + 1.00 = 2.00; the contract is one
	// final rounding: 1.004 + 1.004 = 2.008 -> 2.01.
	tbl := usageTable(
		[3]string{"A", "1.004", ""},
		[3]string{"A", "1.004", ""},
	)

	m, err := Aggregate(tbl, "Company", "Billed", MetricBilledTotal, SumZeroFill)
	require.NoError(t, err)

	a, _ := m.Get("A")
	assert.Equal(t, "2.01", a.StringFixed(2))
}

func TestSumBankersRounding(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"10.005", "10.00"}, // half down to even
		{"10.015", "10.02"}, // half up to even
		{"10.025", "10.02"},
		{"10.0251", "10.03"}, // beyond half rounds normally
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			m, err := Aggregate(usageTable([3]string{"A", tt.value, ""}),
				"Company", "Billed", MetricBilledTotal, SumZeroFill)
			require.NoError(t, err)

			a, _ := m.Get("A")
			assert.Equal(t, tt.want, a.StringFixed(2))
		})
	}
}

func TestRoundingIsIdempotent(t *testing.T) {
	tbl := usageTable(
		[3]string{"A", "10.005", ""},
		[3]string{"B", "5", ""},
	)

	m, err := Aggregate(tbl, "Company", "Billed", MetricBilledTotal, SumZeroFill)
	require.NoError(t, err)

	for _, key := range m.Keys() {
		v, _ := m.Get(key)
		assert.True(t, v.Equal(v.RoundBank(2)), "re-rounding changed %s", key)
	}
}

func TestMeanSkipEmpty(t *testing.T) {
	tbl := usageTable(
		[3]string{"A", "10.005", "0.01"},
		[3]string{"A", "", ""},
		[3]string{"B", "5", ""},
	)

	m, err := Aggregate(tbl, "Company", "Ratio", MetricErrorRate, MeanSkipEmpty)
	require.NoError(t, err)

	// B has no numeric ratio rows and must not appear at all.
	assert.Equal(t, []string{"A"}, m.Keys())
	_, ok := m.Get("B")
	assert.False(t, ok)

	a, _ := m.Get("A")
	assert.Equal(t, "0.0100", a.StringFixed(4))
}

func TestMeanAveragesOnlyNumericRows(t *testing.T) {
	tbl := usageTable(
		[3]string{"A", "", "0.1"},
		[3]string{"A", "", "bad"},
		[3]string{"A", "", "0.2"},
		[3]string{"A", "", ""},
	)

	m, err := Aggregate(tbl, "Company", "Ratio", MetricErrorRate, MeanSkipEmpty)
	require.NoError(t, err)

	a, _ := m.Get("A")
	assert.Equal(t, "0.1500", a.StringFixed(4))
}

func TestMeanBankersRounding(t *testing.T) {
	// 0.00015 + 0.00035 over two rows averages to 0.00025 -> 0.0002.
	tbl := usageTable(
		[3]string{"A", "", "0.00015"},
		[3]string{"A", "", "0.00035"},
	)

	m, err := Aggregate(tbl, "Company", "Ratio", MetricErrorRate, MeanSkipEmpty)
	require.NoError(t, err)

	a, _ := m.Get("A")
	assert.Equal(t, "0.0002", a.StringFixed(4))
}

func TestMeanKeySetIsSubsetOfGroups(t *testing.T) {
	tbl := usageTable(
		[3]string{"A", "", "0.1"},
		[3]string{"B", "", ""},
		[3]string{"C", "", "x"},
	)

	sum, err := Aggregate(tbl, "Company", "Ratio", MetricBilledTotal, SumZeroFill)
	require.NoError(t, err)
	mean, err := Aggregate(tbl, "Company", "Ratio", MetricErrorRate, MeanSkipEmpty)
	require.NoError(t, err)

	sumKeys := make(map[string]bool)
	for _, k := range sum.Keys() {
		sumKeys[k] = true
	}
	for _, k := range mean.Keys() {
		assert.True(t, sumKeys[k], "mean key %q not among group keys", k)
	}
	assert.Equal(t, []string{"A"}, mean.Keys())
}

func TestInvalidColumn(t *testing.T) {
	tbl := usageTable([3]string{"A", "1", "0.1"})

	_, err := Aggregate(tbl, "Nope", "Billed", MetricBilledTotal, SumZeroFill)
	var invalid *InvalidColumnError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "Nope", invalid.Column)
	assert.Equal(t, "group", invalid.Role)

	_, err = Aggregate(tbl, "Company", "Nope", MetricErrorRate, MeanSkipEmpty)
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "value", invalid.Role)
}

func TestAggregateEmptyTable(t *testing.T) {
	tbl := &types.Table{Headers: []string{"Company", "Billed", "Ratio"}}

	sum, err := Aggregate(tbl, "Company", "Billed", MetricBilledTotal, SumZeroFill)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Len())

	mean, err := Aggregate(tbl, "Company", "Ratio", MetricErrorRate, MeanSkipEmpty)
	require.NoError(t, err)
	assert.Equal(t, 0, mean.Len())
}
