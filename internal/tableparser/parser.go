// =============================================================================
// Usage Insights Reporter - Table Parser Module
// =============================================================================
//
// This module parses the raw delimited-text payload returned by the Keboola
// Storage export into a typed table. It handles:
//   - Configurable delimiters (comma, pipe, tab, semicolon)
//   - Quoted fields containing delimiters or line breaks
//   - Whitespace-only and all-empty lines (skipped)
//
// The parser is strict about shape: the first non-blank line is the header,
// and every data line must carry exactly the same number of fields as the
// header. A shape mismatch is a MalformedInputError, never a silent
// truncation or padding.
//
// The parser is a pure function of its input. It never touches the network
// or the filesystem; fetching the payload is the Storage client's job.
//
// =============================================================================

package tableparser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/keboola-insights/usage-reporter/internal/types"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// MalformedInputError reports a structural problem in the raw payload:
// a missing header line, or a data line whose field count does not match
// the header.
type MalformedInputError struct {
	// Line is the 1-indexed source line of the offending record.
	// Zero when the problem is the payload as a whole (e.g. no header).
	Line int

	// Reason is a human-readable description of the problem.
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed input at line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("malformed input: %s", e.Reason)
}

// =============================================================================
// SETTINGS
// =============================================================================

// Settings contains settings for parsing the raw payload.
type Settings struct {
	// Delimiter is the character used to separate fields.
	// Common values: "," (comma), "|" (pipe), "\t" (tab)
	// Default: ","
	Delimiter string
}

// delimiterRune resolves the configured delimiter to a rune, handling the
// spellings accepted in configuration files.
func (s Settings) delimiterRune() rune {
	switch s.Delimiter {
	case "\\t", "tab", "TAB":
		return '\t'
	case "|", "pipe", "PIPE":
		return '|'
	case ";", "semicolon":
		return ';'
	case "":
		return ','
	default:
		return rune(s.Delimiter[0])
	}
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a raw delimited-text payload and returns the parsed table.
//
// PARAMETERS:
//   - raw: The payload text (UTF-8). The first non-blank line is the header.
//   - settings: Parsing settings (delimiter).
//
// RETURNS:
//   - A pointer to the parsed Table.
//   - A MalformedInputError if the payload has no header line or any data
//     line has a different field count than the header.
//
// Whitespace-only lines are skipped wherever they appear. The same check
// runs on parsed fields, so a line of bare delimiters (",,") is skipped
// too: a record with every cell empty carries no key and no value, and
// letting it through would surface an empty-string entity built from
// nothing. Field values are trimmed of surrounding whitespace; an empty or
// whitespace-only cell in an otherwise populated row becomes the empty
// string, which downstream rules treat as a null value, not an error.
func Parse(raw string, settings Settings) (*types.Table, error) {
	reader := csv.NewReader(strings.NewReader(raw))
	reader.Comma = settings.delimiterRune()

	// Shape is validated by hand below so that whitespace-only lines can be
	// skipped without tripping the reader's field-count enforcement.
	reader.FieldsPerRecord = -1

	var headers []string
	rows := make([]types.Row, 0)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return nil, &MalformedInputError{Line: parseErr.Line, Reason: parseErr.Err.Error()}
			}
			return nil, &MalformedInputError{Reason: err.Error()}
		}
		line, _ := reader.FieldPos(0)

		if isRecordEmpty(record) {
			continue
		}

		if headers == nil {
			headers = cleanHeaders(record)
			continue
		}

		if len(record) != len(headers) {
			return nil, &MalformedInputError{
				Line:   line,
				Reason: fmt.Sprintf("expected %d fields, got %d", len(headers), len(record)),
			}
		}

		row := make(types.Row, len(headers))
		for i, header := range headers {
			row[header] = strings.TrimSpace(record[i])
		}
		rows = append(rows, row)
	}

	if headers == nil {
		return nil, &MalformedInputError{Reason: "payload has no header line"}
	}

	return &types.Table{
		Headers: headers,
		Rows:    rows,
	}, nil
}

// cleanHeaders trims header values and names any blank headers by position
// so that every column stays addressable.
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

// isRecordEmpty checks if a record contains only empty values.
func isRecordEmpty(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
