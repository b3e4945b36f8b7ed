package csvparser

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// Row is a single recipient extracted from an uploaded CSV. Email comes
// from the "Email" column (case-insensitive); every other column lands in
// Variables for template rendering.
type Row struct {
	Email     string
	Variables map[string]string
}

const defaultMaxRows = 1000

// Parse reads recipient rows from a CSV. The header row must contain an
// "Email" column (case-insensitive). maxRows caps the number of data rows;
// <= 0 selects the default.
func Parse(r io.Reader, maxRows int) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}

	emailIdx := -1
	normalized := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		normalized[i] = h
		if strings.EqualFold(h, "email") {
			emailIdx = i
		}
	}
	if emailIdx == -1 {
		return nil, errors.New("csv must contain an Email column")
	}

	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}

	rows := make([]Row, 0)
	for len(rows) < maxRows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) != len(headers) {
			// skip malformed row
			continue
		}

		email := strings.TrimSpace(record[emailIdx])
		if email == "" {
			continue
		}

		variables := make(map[string]string, len(headers)-1)
		for i := range record {
			if i == emailIdx || normalized[i] == "" {
				continue
			}
			variables[normalized[i]] = strings.TrimSpace(record[i])
		}

		rows = append(rows, Row{Email: email, Variables: variables})
	}

	if len(rows) == 0 {
		return nil, errors.New("csv must contain at least one data row")
	}

	return rows, nil
}
