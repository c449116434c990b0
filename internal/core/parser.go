package core

// parser.go turns an uploaded sheet into buffered rows.
//
// Parsing is all-or-nothing: a malformed file fails the request before any
// row reaches a validator. The first record is the header; its cells become
// the lookup keys for every row after trimming and lowercasing. A data row is
// numbered by its position after the header, starting at 2. Empty CSV lines
// are never records; a line of separators only is a row like any other.

import (
	"bytes"
	"encoding/csv"
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
)

// firstDataRow is the number reported for the first row after the header.
const firstDataRow = 2

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Row is one data row. Number is the position reported in errors.
type Row struct {
	Number int
	index  map[string]int
	values []string
}

// Get returns the raw cell under column, or "" when the column is absent.
func (r Row) Get(column string) string {
	i, ok := r.index[strings.ToLower(column)]
	if !ok || i >= len(r.values) {
		return ""
	}
	return r.values[i]
}

// Records is a parsed sheet. It can be iterated any number of times.
type Records struct {
	Header []string
	index  map[string]int
	rows   []Row
}

// Len returns the number of data rows.
func (rs *Records) Len() int { return len(rs.rows) }

// All yields the data rows in file order.
func (rs *Records) All() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		for _, row := range rs.rows {
			if !yield(row) {
				return
			}
		}
	}
}

// ParseCSV parses comma-separated text with a header row.
func ParseCSV(data []byte) (*Records, error) {
	data = sanitizeUTF8(bytes.TrimPrefix(data, utf8BOM))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = 0
	raw, err := r.ReadAll()
	if err != nil {
		return nil, requestError(errors.WithHint(
			errors.Wrap(err, "invalid csv"),
			"Check quoting and make every row have as many columns as the header"))
	}
	return buildRecords(raw, false)
}

// buildRecords indexes the header and numbers the data rows. When ragged is
// set (worksheets), all-blank rows are dropped without shifting the numbers
// of later rows, short rows are accepted and long rows may only overflow
// with blank cells.
func buildRecords(raw [][]string, ragged bool) (*Records, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyFile
	}

	header := make([]string, len(raw[0]))
	index := make(map[string]int, len(raw[0]))
	for i, h := range raw[0] {
		key := strings.ToLower(CleanCell(strings.TrimPrefix(h, "\ufeff")))
		header[i] = key
		if key == "" {
			continue
		}
		if _, dup := index[key]; dup {
			return nil, requestError(errors.WithHint(
				errors.Newf("invalid header: duplicate column %q", key),
				"Remove the repeated column from the header row"))
		}
		index[key] = i
	}
	if len(index) == 0 {
		return nil, ErrEmptyFile
	}

	recs := &Records{Header: header, index: index}
	for i, values := range raw[1:] {
		if ragged {
			if isEmptyRow(values) {
				continue
			}
			if len(values) > len(header) {
				if !isEmptyRow(values[len(header):]) {
					return nil, requestError(errors.Newf("invalid sheet: line %d has more cells than the header", firstDataRow+i))
				}
				values = values[:len(header)]
			}
		}
		recs.rows = append(recs.rows, Row{
			Number: firstDataRow + i,
			index:  index,
			values: values,
		})
	}
	return recs, nil
}

// isEmptyRow reports whether every cell is blank.
func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// sanitizeUTF8 replaces invalid byte sequences with U+FFFD so spreadsheets
// saved in a legacy encoding still parse.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}
	out := make([]byte, 0, len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			out = utf8.AppendRune(out, utf8.RuneError)
		} else {
			out = append(out, data[:size]...)
		}
		data = data[size:]
	}
	return out
}
