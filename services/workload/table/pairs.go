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
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// MissingPolicy decides what a missing value does to a test.
type MissingPolicy string

const (
	// MissingFail makes any missing value a MalformedData error.
	MissingFail MissingPolicy = "fail"

	// MissingDrop excludes the affected subject from that test only.
	MissingDrop MissingPolicy = "drop"
)

// Pairs holds two phases of the same subjects, aligned by subject.
type Pairs struct {
	A        []float64
	B        []float64
	Subjects []string

	// Dropped lists subjects excluded for a missing value.
	Dropped []string
}

// Pairs joins two columns on the subject id.
//
// Description:
//
//	Each row carries one subject, so both values of a pair come from the
//	same row and the subject id labels the pair. Subject ids were checked
//	for uniqueness at load time.
//
// Inputs:
//   - colA, colB: Numeric columns, e.g. "spo2_pre" and "spo2_in".
//   - policy: What to do with a subject missing either value.
//
// Outputs:
//   - *Pairs: Aligned values.
//   - error: *ColumnError or, under MissingFail, *DataError.
func (t *Table) Pairs(colA, colB string, policy MissingPolicy) (*Pairs, error) {
	a, err := t.Float(colA)
	if err != nil {
		return nil, err
	}
	b, err := t.Float(colB)
	if err != nil {
		return nil, err
	}

	p := &Pairs{}
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			if policy != MissingDrop {
				col := colA
				if !math.IsNaN(a[i]) {
					col = colB
				}
				return nil, t.missingAt(col, i)
			}
			p.Dropped = append(p.Dropped, t.subjects[i])
			continue
		}
		p.A = append(p.A, a[i])
		p.B = append(p.B, b[i])
		p.Subjects = append(p.Subjects, t.subjects[i])
	}
	return p, nil
}

// Group returns a column's values for the rows whose role equals role.
//
// Outputs:
//   - values: Non-missing values in row order.
//   - dropped: Subjects excluded for a missing value (MissingDrop only).
//   - error: *ColumnError or, under MissingFail, *DataError.
func (t *Table) Group(column, role string, policy MissingPolicy) (values []float64, dropped []string, err error) {
	if !t.HasColumn(t.roleColumn) {
		return nil, nil, &ColumnError{Column: t.roleColumn}
	}
	if !t.HasColumn(column) {
		return nil, nil, &ColumnError{Column: column}
	}

	var rows []int
	for i, r := range t.Roles() {
		if r == role {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	sub := t.df.Filter(dataframe.F{
		Colname:    t.roleColumn,
		Comparator: series.Eq,
		Comparando: role,
	})
	if sub.Err != nil {
		return nil, nil, fmt.Errorf("filtering %s=%s: %w", t.roleColumn, role, sub.Err)
	}

	for j, v := range sub.Col(column).Float() {
		if math.IsNaN(v) {
			if policy != MissingDrop {
				return nil, nil, t.missingAt(column, rows[j])
			}
			dropped = append(dropped, t.subjects[rows[j]])
			continue
		}
		values = append(values, v)
	}
	return values, dropped, nil
}

// GroupNames returns the distinct roles in order of first appearance.
func (t *Table) GroupNames() []string {
	var names []string
	seen := map[string]bool{}
	for _, r := range t.Roles() {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		names = append(names, r)
	}
	return names
}

func (t *Table) missingAt(column string, row int) error {
	return &DataError{
		Column:  column,
		Row:     row + 1,
		Subject: t.subjects[row],
		Reason:  "missing value",
	}
}
