package csvparser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	csv := "Email,Name,Plan\n" +
		"a@example.com,Ada,pro\n" +
		"b@example.com,Bob,free\n"

	rows, err := Parse(strings.NewReader(csv), 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "a@example.com", rows[0].Email)
	assert.Equal(t, map[string]string{"Name": "Ada", "Plan": "pro"}, rows[0].Variables)
	assert.Equal(t, "b@example.com", rows[1].Email)
}

func TestParseEmailColumnCaseInsensitive(t *testing.T) {
	csv := "name,EMAIL\nAda,a@example.com\n"

	rows, err := Parse(strings.NewReader(csv), 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a@example.com", rows[0].Email)
}

func TestParseSkipsMalformedAndEmptyRows(t *testing.T) {
	csv := "Email,Name\n" +
		"a@example.com,Ada\n" +
		",NoEmail\n"

	rows, err := Parse(strings.NewReader(csv), 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a@example.com", rows[0].Email)
}

func TestParseMissingEmailColumn(t *testing.T) {
	_, err := Parse(strings.NewReader("Name,Plan\nAda,pro\n"), 0)
	assert.Error(t, err)
}

func TestParseNoDataRows(t *testing.T) {
	_, err := Parse(strings.NewReader("Email,Name\n"), 0)
	assert.Error(t, err)
}

func TestParseMaxRows(t *testing.T) {
	csv := "Email\na@example.com\nb@example.com\nc@example.com\n"

	rows, err := Parse(strings.NewReader(csv), 2)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
