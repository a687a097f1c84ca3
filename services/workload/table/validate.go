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
	"slices"
	"strconv"
)

// Requirements lists what a table must provide for an analysis.
type Requirements struct {
	// Numeric columns every test or chart reads.
	Columns []string

	// Strict makes an absent subject column a MissingColumn error instead
	// of a row-order fallback.
	Strict bool
}

// Validate checks that the table can be analysed.
//
// Description:
//
//	The role column is checked first so its absence is reported with a
//	header hint before anything else. Then every required column must
//	exist and each of its cells must be a finite number or a missing
//	marker. Other numeric columns, which feed the normality checks, must
//	be finite too. Missing cells are left for the missing-value policy.
//
// Outputs:
//   - error: *ColumnError (ErrMissingColumn) or *DataError (ErrMalformedData).
func Validate(t *Table, req Requirements) error {
	if !t.HasColumn(t.roleColumn) {
		return &ColumnError{
			Column: t.roleColumn,
			Hint:   fmt.Sprintf("check the header row; found %v", t.header),
		}
	}
	if req.Strict && t.rowKeyed {
		return &ColumnError{
			Column: t.subjectColumn,
			Hint:   "strict mode requires an explicit subject id column",
		}
	}

	columns := append([]string(nil), req.Columns...)
	for _, col := range t.NumericColumns() {
		if !slices.Contains(columns, col) {
			columns = append(columns, col)
		}
	}

	for _, col := range columns {
		cells, err := t.Cells(col)
		if err != nil {
			return err
		}
		for i, cell := range cells {
			if isMissing(cell) {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return &DataError{
					Column:  col,
					Row:     i + 1,
					Subject: t.subjects[i],
					Reason:  fmt.Sprintf("%q is not a number", cell),
				}
			}
			if math.IsInf(v, 0) || math.IsNaN(v) {
				return &DataError{
					Column:  col,
					Row:     i + 1,
					Subject: t.subjects[i],
					Reason:  fmt.Sprintf("%q is not a finite number", cell),
				}
			}
		}
	}
	return nil
}
