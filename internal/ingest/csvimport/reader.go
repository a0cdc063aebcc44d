// Package csvimport reads uploaded CSV files into header-keyed rows.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// RequiredColumns must appear in the header; tax_type and tax_rate are optional.
var RequiredColumns = []string{"date", "description", "category", "transaction_type", "taxable_amount"}

var ErrMissingColumns = errors.New("missing_columns")

// Row is one data line. Line is 1-based over data rows, excluding the header.
type Row struct {
	Line   int
	Fields map[string]string
}

func (r Row) Get(col string) string {
	return strings.TrimSpace(r.Fields[col])
}

// Read parses at most limit+1 data rows, so callers can tell an oversized
// file apart from one exactly at the limit without buffering all of it.
// Malformed lines become rows with no fields.
func Read(r io.Reader, limit int) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrMissingColumns)
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := normalizeHeader(header)
	if missing := missingColumns(cols); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	var rows []Row
	for line := 1; limit <= 0 || line <= limit+1; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row := Row{Line: line, Fields: map[string]string{}}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, fmt.Errorf("read csv line %d: %w", line, err)
			}
			rows = append(rows, row)
			continue
		}
		if isBlank(record) {
			line--
			continue
		}
		for i, v := range record {
			if i < len(cols) && cols[i] != "" {
				row.Fields[cols[i]] = v
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		out[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return out
}

func missingColumns(cols []string) []string {
	have := make(map[string]bool, len(cols))
	for _, c := range cols {
		have[c] = true
	}
	var missing []string
	for _, req := range RequiredColumns {
		if !have[req] {
			missing = append(missing, req)
		}
	}
	return missing
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
