// Package dataset holds the in-memory tabular model the analysis pipeline
// works on: a CSV parsed once per upload into named, typed columns, plus the
// schema/preview text we feed into the code-generation prompt.
//
// PARSING CONTRACT (matches what the sandbox does on its side):
// - comma-separated, first row is the header
// - lines starting with '#' are comments and skipped
// - content must be valid UTF-8
// - empty cells count as nulls
//
// The parsed Dataset is read-only after Parse. The raw CSV bytes are kept
// verbatim so the exact same input can be shipped to the execution sandbox —
// the sandbox re-parses with identical flags, so both sides see one dataset.
package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sakif/data-analyzer/internal/apperror"
)

// Column describes a single parsed column.
//
// Dtype uses pandas dtype names ("int64", "float64", "bool", "object")
// because the schema text ends up in a prompt about a pandas DataFrame —
// the model should see the vocabulary it will be writing code against.
type Column struct {
	Name    string `json:"name"`
	Dtype   string `json:"dtype"`
	NonNull int    `json:"nonNull"`
}

// Dataset is the parsed tabular data. Cells are kept as raw text — the
// pipeline only ever renders them back into prompt text, it never computes
// on them. Typed computation happens in the sandbox, in pandas.
type Dataset struct {
	Columns []Column
	Rows    [][]string

	raw []byte // original CSV bytes, untouched
}

// Parse reads CSV bytes into a Dataset.
//
// Returns a validation error (apperror.ErrValidation) for anything the user
// can fix by re-uploading: bad encoding, no header, ragged rows.
func Parse(data []byte) (*Dataset, error) {
	if !utf8.Valid(data) {
		return nil, apperror.ValidationFailed("file", "dataset must be UTF-8 encoded text")
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comment = '#'

	records, err := r.ReadAll()
	if err != nil {
		return nil, apperror.ValidationFailed("file", fmt.Sprintf("malformed CSV: %v", err))
	}
	if len(records) == 0 {
		return nil, apperror.ValidationFailed("file", "dataset has no header row")
	}

	header := records[0]
	rows := records[1:]

	cols := make([]Column, len(header))
	for i, name := range header {
		cols[i] = Column{
			Name:    strings.TrimSpace(name),
			Dtype:   inferDtype(rows, i),
			NonNull: countNonNull(rows, i),
		}
	}

	return &Dataset{
		Columns: cols,
		Rows:    rows,
		raw:     data,
	}, nil
}

// Raw returns the original CSV bytes for shipping to the sandbox.
func (d *Dataset) Raw() []byte {
	return d.raw
}

// NumRows returns the number of data rows (header excluded).
func (d *Dataset) NumRows() int {
	return len(d.Rows)
}

// NumCols returns the number of columns.
func (d *Dataset) NumCols() int {
	return len(d.Columns)
}

// inferDtype scans a column's non-empty cells and picks the narrowest
// pandas dtype that fits every value. Order matters: a column of "1","2"
// is int64, but one stray "2.5" widens it to float64, and any non-numeric
// value makes the whole column object — same widening pandas applies.
func inferDtype(rows [][]string, col int) string {
	seen := false
	isInt, isFloat, isBool := true, true, true

	for _, row := range rows {
		cell := strings.TrimSpace(row[col])
		if cell == "" {
			continue
		}
		seen = true

		if isInt {
			if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				isFloat = false
			}
		}
		if isBool {
			switch strings.ToLower(cell) {
			case "true", "false":
			default:
				isBool = false
			}
		}
	}

	switch {
	case !seen:
		return "object" // all-null column — nothing to infer from
	case isBool:
		return "bool"
	case isInt:
		return "int64"
	case isFloat:
		return "float64"
	default:
		return "object"
	}
}

// countNonNull counts cells in the column with any non-whitespace content.
func countNonNull(rows [][]string, col int) int {
	n := 0
	for _, row := range rows {
		if strings.TrimSpace(row[col]) != "" {
			n++
		}
	}
	return n
}
