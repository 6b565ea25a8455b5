package tableparser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBasic(t *testing.T) {
	raw := "Company_Name,Sum_of_Job_Billed_Credits_Used,Error_Jobs_Ratio\n" +
		"Acme,10.5,0.01\n" +
		"Globex,5,\n"

	tbl, err := Parse(raw, Settings{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Company_Name", "Sum_of_Job_Billed_Credits_Used", "Error_Jobs_Ratio"}, tbl.Headers)
	require.Equal(t, 2, tbl.RowCount())
	assert.Equal(t, "Acme", tbl.Rows[0]["Company_Name"])
	assert.Equal(t, "10.5", tbl.Rows[0]["Sum_of_Job_Billed_Credits_Used"])
	assert.Equal(t, "", tbl.Rows[1]["Error_Jobs_Ratio"])
}

func TestParseEveryRowHasFullColumnSet(t *testing.T) {
	raw := "Company,Credits\nAcme,\n"

	tbl, err := Parse(raw, Settings{})
	require.NoError(t, err)

	require.Equal(t, 1, tbl.RowCount())
	for _, header := range tbl.Headers {
		_, ok := tbl.Rows[0][header]
		assert.True(t, ok, "row missing column %q", header)
	}
}

func TestParseQuotedFields(t *testing.T) {
	raw := "Company,Credits\n" +
		"\"Acme, Inc.\",10\n" +
		"\"Multi\nLine Co\",5\n"

	tbl, err := Parse(raw, Settings{})
	require.NoError(t, err)

	require.Equal(t, 2, tbl.RowCount())
	assert.Equal(t, "Acme, Inc.", tbl.Rows[0]["Company"])
	assert.Equal(t, "Multi\nLine Co", tbl.Rows[1]["Company"])
}

func TestParseSkipsWhitespaceOnlyLines(t *testing.T) {
	raw := "Company,Credits\n\n   \nAcme,10\n  ,  \n"

	tbl, err := Parse(raw, Settings{})
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.RowCount())
}

func TestParseSkipsAllEmptyRecords(t *testing.T) {
	// A line of bare delimiters parses to a record with every cell empty.
	// It carries no key and no value, so it is skipped like a blank line
	// rather than becoming an empty-string entity row.
	raw := "Company,Credits\n,,\nAcme,10\n,\n"

	tbl, err := Parse(raw, Settings{})
	require.NoError(t, err)
	require.Equal(t, 1, tbl.RowCount())
	assert.Equal(t, "Acme", tbl.Rows[0]["Company"])
}

func TestParseFieldCountMismatch(t *testing.T) {
	raw := "Company,Credits,Ratio\nAcme,10\n"

	_, err := Parse(raw, Settings{})
	require.Error(t, err)

	var malformed *MalformedInputError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, 2, malformed.Line)
}

func TestParseNoSilentPadding(t *testing.T) {
	// A row with extra fields must fail the same way as a short row.
	raw := "Company,Credits\nAcme,10,extra\n"

	_, err := Parse(raw, Settings{})
	var malformed *MalformedInputError
	require.True(t, errors.As(err, &malformed))
}

func TestParseEmptyPayload(t *testing.T) {
	for _, raw := range []string{"", "\n\n", "   \n"} {
		_, err := Parse(raw, Settings{})

		var malformed *MalformedInputError
		require.True(t, errors.As(err, &malformed), "payload %q", raw)
	}
}

func TestParseHeaderOnly(t *testing.T) {
	tbl, err := Parse("Company,Credits\n", Settings{})
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.RowCount())
	assert.Equal(t, 2, tbl.ColumnCount())
}

func TestParseDelimiters(t *testing.T) {
	tests := []struct {
		name      string
		delimiter string
		raw       string
	}{
		{"pipe", "|", "Company|Credits\nAcme|10\n"},
		{"tab", "\\t", "Company\tCredits\nAcme\t10\n"},
		{"semicolon", ";", "Company;Credits\nAcme;10\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := Parse(tt.raw, Settings{Delimiter: tt.delimiter})
			require.NoError(t, err)
			require.Equal(t, 1, tbl.RowCount())
			assert.Equal(t, "10", tbl.Rows[0]["Credits"])
		})
	}
}

func TestParseTrimsValues(t *testing.T) {
	raw := "Company,Credits\n  Acme  , 10 \n"

	tbl, err := Parse(raw, Settings{})
	require.NoError(t, err)
	assert.Equal(t, "Acme", tbl.Rows[0]["Company"])
	assert.Equal(t, "10", tbl.Rows[0]["Credits"])
}

func TestParseBlankHeaderGetsPositionalName(t *testing.T) {
	raw := "Company,,Credits\nAcme,x,10\n"

	tbl, err := Parse(raw, Settings{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Company", "Column_2", "Credits"}, tbl.Headers)
	assert.Equal(t, "x", tbl.Rows[0]["Column_2"])
}
