// =============================================================================
// Usage Insights Reporter - XLSX Parser Module
// =============================================================================
//
// This module parses usage exports that arrive as XLSX workbooks instead of
// CSV text. It produces the same table shape as the CSV parser, so the rest
// of the pipeline never knows which format the data arrived in.
//
// EXPECTED LAYOUT:
//   - The first sheet of the workbook holds the data.
//   - The first non-blank row is the header.
//   - Every following row is a data row; short rows are padded with empty
//     cells up to the header width (workbooks drop trailing empty cells, so
//     padding here is a format artifact, not a shape violation), but rows
//     wider than the header are rejected.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/keboola-insights/usage-reporter/internal/tableparser"
	"github.com/keboola-insights/usage-reporter/internal/types"
)

// Parse reads an XLSX workbook file and returns the parsed table.
//
// PARAMETERS:
//   - filePath: The path to the workbook.
//
// RETURNS:
//   - A pointer to the parsed Table.
//   - A tableparser.MalformedInputError if the workbook has no sheet, no
//     header row, or a data row wider than the header.
func Parse(filePath string) (*types.Table, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &tableparser.MalformedInputError{Reason: "workbook has no sheets"}
	}

	allRows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}

	return fromRows(allRows, filePath)
}

// fromRows builds a table from raw sheet rows.
func fromRows(allRows [][]string, source string) (*types.Table, error) {
	var headers []string
	rows := make([]types.Row, 0)

	for i, record := range allRows {
		if isRowEmpty(record) {
			continue
		}

		if headers == nil {
			headers = cleanHeaders(record)
			continue
		}

		if len(record) > len(headers) {
			return nil, &tableparser.MalformedInputError{
				Line:   i + 1,
				Reason: fmt.Sprintf("expected at most %d cells, got %d", len(headers), len(record)),
			}
		}

		row := make(types.Row, len(headers))
		for j, header := range headers {
			if j < len(record) {
				row[header] = strings.TrimSpace(record[j])
			} else {
				row[header] = ""
			}
		}
		rows = append(rows, row)
	}

	if headers == nil {
		return nil, &tableparser.MalformedInputError{Reason: "workbook has no header row"}
	}

	return &types.Table{
		Headers: headers,
		Rows:    rows,
		Source:  source,
	}, nil
}

// cleanHeaders trims header values and names any blank headers by position.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}
	return cleaned
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
