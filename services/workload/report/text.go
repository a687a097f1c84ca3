// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/flightload/pkg/ux"
	"github.com/AleutianAI/flightload/services/workload/analysis"
)

// Text prints the console report.
//
// Description:
//
//	Sections follow a fixed order: paired tests per measure, group tests
//	per measure with the narrative sentence after its row, normality,
//	effect size, charts and warnings. Measures keep plan order; group
//	measures keep the order of their first group test.
//
// Inputs:
//   - p: Destination and personality level.
//   - r: The run result.
//   - plan: Supplies measure labels and group names.
func Text(p *ux.Printer, r *analysis.Result, plan analysis.Plan) {
	p.Title("Crew Workload Analysis")
	p.Info(fmt.Sprintf("Source: %s (%d rows, %d columns)", r.Source, r.Rows, len(r.Columns)))
	if len(r.Columns) > 0 {
		p.Info("Columns: " + strings.Join(r.Columns, ", "))
	}
	p.Muted("Run " + r.RunID)

	for _, m := range plan.Measures {
		rows := rowsFor(r.Paired, m.Name)
		if len(rows) == 0 {
			continue
		}
		p.Section(plan.Label(m.Name))
		for _, row := range rows {
			p.Bullet(fmt.Sprintf("%-26s %s", PairedLabel(row)+":", TestLine(row)))
		}
	}

	groups := strings.Join(capitalized(plan.Groups), " vs ")
	for _, measure := range groupMeasures(r.Group) {
		p.Section(fmt.Sprintf("%s (%s)", groups, plan.Label(measure)))
		for _, row := range rowsFor(r.Group, measure) {
			p.Bullet(fmt.Sprintf("%-14s %s", GroupLabel(row)+":", TestLine(row)))
			if r.Narrative != nil && r.Narrative.Column == row.ColumnA && r.Narrative.Text != "" {
				p.Info(r.Narrative.Text)
			}
		}
	}

	if len(r.Normality) > 0 {
		p.Section("Shapiro-Wilk Normality Test")
		for _, row := range r.Normality {
			p.Bullet(NormalityLine(row))
		}
	}

	if r.Effect != nil {
		p.Section("Effect Size (Cohen's d)")
		p.Bullet(EffectLine(*r.Effect))
	}

	if len(r.Charts) > 0 {
		p.Section("Charts")
		for _, c := range r.Charts {
			if c.Error != "" {
				p.Error(fmt.Sprintf("%s: %s", c.Name, c.Error))
				continue
			}
			where := c.Location
			if where == "" {
				where = c.Key
			}
			p.Bullet(fmt.Sprintf("%s %s %s", c.Name, ux.IconArrow, where))
		}
	}

	for _, w := range r.Warnings {
		p.Warning(w)
	}

	c := r.Counts()
	p.Summary(
		ux.Count{Label: "paired", N: c.Paired},
		ux.Count{Label: "group", N: c.Group},
		ux.Count{Label: "normality", N: c.Normality},
		ux.Count{Label: "effect sizes", N: c.EffectSizes},
		ux.Count{Label: "charts", N: c.Charts},
		ux.Count{Label: "test failures", N: c.TestFailures, Bad: true},
		ux.Count{Label: "chart failures", N: c.ChartFailures, Bad: true},
	)
	p.Hint("flightload history show " + r.RunID)
}

func rowsFor(rows []analysis.TestRow, measure string) []analysis.TestRow {
	var out []analysis.TestRow
	for _, row := range rows {
		if row.Measure == measure {
			out = append(out, row)
		}
	}
	return out
}

func groupMeasures(rows []analysis.TestRow) []string {
	var out []string
	seen := map[string]bool{}
	for _, row := range rows {
		if !seen[row.Measure] {
			seen[row.Measure] = true
			out = append(out, row.Measure)
		}
	}
	return out
}

func capitalized(xs []string) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = analysis.Capitalize(x)
	}
	return out
}
