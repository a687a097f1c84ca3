// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package table

import (
	"fmt"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// MissingValues are the cell contents treated as missing.
var MissingValues = []string{"", "NA", "N/A", "NaN", "nan", "null", "<nil>"}

// Table is the loaded observation table.
//
// Description:
//
//	One row per subject, one column per measured variable. Headers are
//	normalised and role values are trimmed and lowercased at construction.
//	The table is read-only after construction.
//
// Thread Safety: Safe for concurrent reads.
type Table struct {
	name          string
	digest        string
	header        []string
	rows          [][]string
	df            dataframe.DataFrame
	roleColumn    string
	subjectColumn string
	subjects      []string
	rowKeyed      bool
}

// NormalizeHeader trims surrounding whitespace and lowercases a column name.
func NormalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// NormalizeHeaders applies NormalizeHeader to every name. It is idempotent.
func NormalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = NormalizeHeader(h)
	}
	return out
}

// FromRecords builds a Table from string records, the first being the
// header.
//
// Description:
//
//	Columns with an empty header and no values are dropped. Fully empty
//	rows are skipped. Short rows are padded with missing cells. Two headers
//	that normalise to the same name, a missing or duplicated subject id, or
//	a file without data rows are MalformedData.
//
// Inputs:
//   - name: Display name of the source.
//   - records: Header followed by data rows.
//   - opts: Role and subject column names. Zero values use defaults.
//
// Outputs:
//   - *Table: The table. Never nil on success.
//   - error: A *DataError when the records cannot form a table.
func FromRecords(name string, records [][]string, opts Options) (*Table, error) {
	opts = opts.withDefaults()
	if len(records) == 0 {
		return nil, &DataError{Reason: "file is empty"}
	}

	raw := NormalizeHeaders(records[0])
	keep := make([]int, 0, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		if h == "" {
			if columnEmpty(records[1:], i) {
				continue
			}
			return nil, &DataError{Reason: fmt.Sprintf("column %d has values but no header", i+1)}
		}
		if prev, dup := seen[h]; dup {
			return nil, &DataError{Column: h, Reason: fmt.Sprintf("header duplicates column %d after normalisation", prev+1)}
		}
		seen[h] = i
		keep = append(keep, i)
	}

	header := make([]string, len(keep))
	for j, i := range keep {
		header[j] = raw[i]
	}
	roleIdx := indexOf(header, opts.RoleColumn)

	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]string, len(keep))
		empty := true
		for j, i := range keep {
			if i < len(rec) {
				row[j] = strings.TrimSpace(rec[i])
			}
			if row[j] != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		if roleIdx >= 0 {
			row[roleIdx] = strings.ToLower(row[roleIdx])
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, &DataError{Reason: "no data rows"}
	}

	t := &Table{
		name:          name,
		header:        header,
		rows:          rows,
		roleColumn:    opts.RoleColumn,
		subjectColumn: opts.SubjectColumn,
	}
	if err := t.keySubjects(); err != nil {
		return nil, err
	}

	types := map[string]series.Type{}
	for _, c := range []string{opts.RoleColumn, opts.SubjectColumn} {
		if t.HasColumn(c) {
			types[c] = series.String
		}
	}
	t.df = dataframe.LoadRecords(
		frameRecords(header, rows),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues([]string{"NaN"}),
		dataframe.WithTypes(types),
	)
	if t.df.Err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedData, t.df.Err)
	}
	return t, nil
}

func (t *Table) keySubjects() error {
	idx := indexOf(t.header, t.subjectColumn)
	t.subjects = make([]string, len(t.rows))
	if idx < 0 {
		t.rowKeyed = true
		for i := range t.rows {
			t.subjects[i] = fmt.Sprintf("row %d", i+1)
		}
		return nil
	}

	seen := make(map[string]int, len(t.rows))
	for i, row := range t.rows {
		id := row[idx]
		if isMissing(id) {
			return &DataError{Column: t.subjectColumn, Row: i + 1, Reason: "empty subject id"}
		}
		if prev, dup := seen[id]; dup {
			return &DataError{Column: t.subjectColumn, Row: i + 1, Subject: id,
				Reason: fmt.Sprintf("subject id already used on row %d", prev+1)}
		}
		seen[id] = i
		t.subjects[i] = id
	}
	return nil
}

// Name returns the source name the table was loaded from.
func (t *Table) Name() string { return t.name }

// Digest returns the hex SHA-256 of the source bytes, when known.
func (t *Table) Digest() string { return t.digest }

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// Columns returns the normalised column names in file order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.header...)
}

// HasColumn reports whether the normalised column exists.
func (t *Table) HasColumn(name string) bool {
	return name != "" && indexOf(t.header, name) >= 0
}

// RoleColumn returns the configured role column name.
func (t *Table) RoleColumn() string { return t.roleColumn }

// SubjectColumn returns the configured subject id column name.
func (t *Table) SubjectColumn() string { return t.subjectColumn }

// RowKeyed reports whether subjects are identified by row position because
// the subject column is absent.
func (t *Table) RowKeyed() bool { return t.rowKeyed }

// Subjects returns the subject label of every row.
func (t *Table) Subjects() []string {
	return append([]string(nil), t.subjects...)
}

// Roles returns the normalised role of every row. Empty when the role
// column is absent.
func (t *Table) Roles() []string {
	idx := indexOf(t.header, t.roleColumn)
	if idx < 0 {
		return nil
	}
	roles := make([]string, len(t.rows))
	for i, row := range t.rows {
		roles[i] = row[idx]
	}
	return roles
}

// Cells returns the raw normalised cells of a column.
func (t *Table) Cells(column string) ([]string, error) {
	idx := indexOf(t.header, column)
	if idx < 0 {
		return nil, &ColumnError{Column: column}
	}
	cells := make([]string, len(t.rows))
	for i, row := range t.rows {
		cells[i] = row[idx]
	}
	return cells, nil
}

// Float returns a numeric column, NaN marking missing cells.
func (t *Table) Float(column string) ([]float64, error) {
	if !t.HasColumn(column) {
		return nil, &ColumnError{Column: column}
	}
	return t.df.Col(column).Float(), nil
}

// NumericColumns returns the columns whose detected type is numeric,
// excluding the role and subject columns.
func (t *Table) NumericColumns() []string {
	var cols []string
	types := t.df.Types()
	for i, name := range t.df.Names() {
		if name == t.roleColumn || name == t.subjectColumn {
			continue
		}
		if types[i] == series.Int || types[i] == series.Float {
			cols = append(cols, name)
		}
	}
	return cols
}

// DataFrame returns the underlying frame. Callers must not modify it.
func (t *Table) DataFrame() dataframe.DataFrame {
	return t.df
}

func indexOf(xs []string, x string) int {
	for i, v := range xs {
		if v == x {
			return i
		}
	}
	return -1
}

func columnEmpty(rows [][]string, i int) bool {
	for _, r := range rows {
		if i < len(r) && strings.TrimSpace(r[i]) != "" {
			return false
		}
	}
	return true
}

func isMissing(cell string) bool {
	for _, m := range MissingValues {
		if cell == m {
			return true
		}
	}
	return false
}

// frameRecords copies the rows with every missing marker spelled "NaN",
// the one spelling type detection skips.
func frameRecords(header []string, rows [][]string) [][]string {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, header)
	for _, row := range rows {
		rec := make([]string, len(row))
		for j, cell := range row {
			if isMissing(cell) {
				cell = "NaN"
			}
			rec[j] = cell
		}
		records = append(records, rec)
	}
	return records
}
