// =============================================================================
// Usage Insights Reporter - Shared Types
// =============================================================================
//
// This package contains the shared table types used across multiple modules
// to avoid import cycles. Types defined here are produced by:
//   - tableparser (CSV payloads)
//   - xlsxparser  (XLSX workbook exports)
// and consumed by the aggregator and the pipeline.
//
// =============================================================================

package types

// Row is a single data row, keyed by column header.
// Every row produced by a parser carries the full header set; columns that
// were empty in the source are present with an empty string value.
type Row map[string]string

// Table represents a parsed usage table.
type Table struct {
	// Headers contains the column headers in source order.
	Headers []string

	// Rows contains the data rows in source order.
	Rows []Row

	// Source describes where the table came from (a table ID, a file path).
	// Used in logs and error messages.
	Source string
}

// RowCount returns the number of data rows.
func (t *Table) RowCount() int {
	return len(t.Rows)
}

// ColumnCount returns the number of columns.
func (t *Table) ColumnCount() int {
	return len(t.Headers)
}

// HasColumn reports whether the header set contains the given column name.
func (t *Table) HasColumn(name string) bool {
	for _, h := range t.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// Column returns all values for the given column, in row order.
func (t *Table) Column(name string) []string {
	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[name]
	}
	return values
}
