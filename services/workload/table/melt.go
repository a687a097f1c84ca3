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

import "math"

// LongRow is one subject-phase-value observation.
type LongRow struct {
	Subject string
	Role    string
	Measure string
	Phase   string
	Value   float64
}

// ColumnName returns the wide column holding a measure at a phase.
func ColumnName(measure, phase string) string {
	return measure + "_" + phase
}

// Melt reshapes the {measure}_{phase} columns into long format.
//
// Description:
//
//	Rows are ordered subject-major, phases in the given order. Missing
//	values are skipped; charts draw what is present.
//
// Outputs:
//   - []LongRow: One row per present value.
//   - error: *ColumnError when a phase column is absent.
func (t *Table) Melt(measure string, phases []string) ([]LongRow, error) {
	cols := make([][]float64, len(phases))
	for j, phase := range phases {
		vals, err := t.Float(ColumnName(measure, phase))
		if err != nil {
			return nil, err
		}
		cols[j] = vals
	}

	roles := t.Roles()
	out := make([]LongRow, 0, len(t.rows)*len(phases))
	for i := range t.rows {
		role := ""
		if roles != nil {
			role = roles[i]
		}
		for j, phase := range phases {
			v := cols[j][i]
			if math.IsNaN(v) {
				continue
			}
			out = append(out, LongRow{
				Subject: t.subjects[i],
				Role:    role,
				Measure: measure,
				Phase:   phase,
				Value:   v,
			})
		}
	}
	return out, nil
}

// ByPhase groups long rows into per-phase value slices, in phase order.
func ByPhase(rows []LongRow, phases []string) [][]float64 {
	idx := make(map[string]int, len(phases))
	for i, p := range phases {
		idx[p] = i
	}
	out := make([][]float64, len(phases))
	for _, r := range rows {
		if i, ok := idx[r.Phase]; ok {
			out[i] = append(out[i], r.Value)
		}
	}
	return out
}

// BySubject groups long rows into per-subject series indexed by phase
// position, NaN where a phase is missing. Subjects keep first-seen order.
func BySubject(rows []LongRow, phases []string) (subjects []string, values [][]float64) {
	idx := make(map[string]int, len(phases))
	for i, p := range phases {
		idx[p] = i
	}
	pos := map[string]int{}
	for _, r := range rows {
		k, ok := pos[r.Subject]
		if !ok {
			k = len(subjects)
			pos[r.Subject] = k
			subjects = append(subjects, r.Subject)
			line := make([]float64, len(phases))
			for i := range line {
				line[i] = math.NaN()
			}
			values = append(values, line)
		}
		if i, ok := idx[r.Phase]; ok {
			values[k][i] = r.Value
		}
	}
	return subjects, values
}
