// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/AleutianAI/flightload/services/workload/analysis"
	"github.com/AleutianAI/flightload/services/workload/artifacts"
	"github.com/AleutianAI/flightload/services/workload/charts"
	"github.com/AleutianAI/flightload/services/workload/report"
	"github.com/AleutianAI/flightload/services/workload/stats"
	"github.com/AleutianAI/flightload/services/workload/table"
	"golang.org/x/sync/errgroup"
)

// maxUploads bounds concurrent artifact uploads.
const maxUploads = 4

// -----------------------------------------------------------------------------
// Load and validate
// -----------------------------------------------------------------------------

func (r *Runner) load(ctx context.Context, rc *RunContext) error {
	t, err := table.Load(ctx, rc.Source, table.Options{
		RoleColumn:    rc.Plan.RoleColumn,
		SubjectColumn: rc.Plan.SubjectColumn,
		Sheet:         r.opts.Sheet,
		Logger:        r.opts.Logger,
	})
	if err != nil {
		return err
	}
	rc.Table = t
	rc.Result.Source = t.Name()
	rc.Result.Digest = t.Digest()
	rc.Result.Columns = t.Columns()
	rc.Result.Rows = t.Len()
	rc.Result.RowKeyed = t.RowKeyed()
	return nil
}

func (r *Runner) validate(_ context.Context, rc *RunContext) error {
	if err := table.Validate(rc.Table, table.Requirements{
		Columns: rc.Plan.RequiredColumns(),
		Strict:  rc.Plan.Strict,
	}); err != nil {
		return err
	}
	if rc.Table.RowKeyed() {
		r.warn(rc, "no %q column; subjects paired by row order", rc.Plan.SubjectColumn)
	}

	var ignored []string
	for _, g := range rc.Table.GroupNames() {
		if g != rc.Plan.Groups[0] && g != rc.Plan.Groups[1] {
			ignored = append(ignored, g)
		}
	}
	if len(ignored) > 0 {
		r.warn(rc, "role values %v are not %s or %s and are ignored by group comparisons",
			ignored, rc.Plan.Groups[0], rc.Plan.Groups[1])
	}
	return nil
}

// -----------------------------------------------------------------------------
// Tests
// -----------------------------------------------------------------------------

func (r *Runner) paired(ctx context.Context, rc *RunContext) error {
	plan := rc.Plan
	for _, m := range plan.Measures {
		for _, pair := range plan.Paired[m.Name] {
			row := analysis.TestRow{
				Kind:       analysis.KindPaired,
				Measure:    m.Name,
				Label:      plan.Label(m.Name),
				ColumnA:    table.ColumnName(m.Name, pair[0]),
				ColumnB:    table.ColumnName(m.Name, pair[1]),
				PhaseA:     pair[0],
				PhaseB:     pair[1],
				Comparison: pair[0] + " vs " + pair[1],
			}
			p, err := rc.Table.Pairs(row.ColumnA, row.ColumnB, plan.Missing)
			if err != nil {
				return err
			}
			row.Dropped = p.Dropped

			res, err := stats.PairedTTest(p.A, p.B, plan.Alpha)
			if err != nil {
				row.Error = err.Error()
			} else {
				row.Result = res
			}
			r.opts.Metrics.RecordTests(ctx, string(analysis.KindPaired), err == nil, 1)
			rc.Result.Paired = append(rc.Result.Paired, row)
		}
	}
	return nil
}

// groupValues splits a column by the plan's two groups, caching the split.
func (r *Runner) groupValues(rc *RunContext, column string) (a, b []float64, dropped []string, err error) {
	if cached, ok := rc.groups[column]; ok {
		return cached[0], cached[1], nil, nil
	}
	policy := rc.Plan.Missing
	a, dropA, err := rc.Table.Group(column, rc.Plan.Groups[0], policy)
	if err != nil {
		return nil, nil, nil, err
	}
	b, dropB, err := rc.Table.Group(column, rc.Plan.Groups[1], policy)
	if err != nil {
		return nil, nil, nil, err
	}
	rc.groups[column] = [2][]float64{a, b}
	return a, b, append(dropA, dropB...), nil
}

func (r *Runner) group(ctx context.Context, rc *RunContext) error {
	plan := rc.Plan
	comparison := plan.Groups[0] + " vs " + plan.Groups[1]
	for _, col := range plan.GroupTests {
		a, b, dropped, err := r.groupValues(rc, col)
		if err != nil {
			return err
		}
		row := analysis.TestRow{
			Kind:       analysis.KindGroup,
			Measure:    col,
			ColumnA:    col,
			Comparison: comparison,
			Dropped:    dropped,
		}
		if measure, phase, ok := plan.SplitColumn(col); ok {
			row.Measure, row.PhaseA = measure, phase
		}
		row.Label = plan.Label(row.Measure)

		res, err := stats.WelchTTest(a, b, plan.Alpha)
		if err != nil {
			row.Error = err.Error()
		} else {
			row.Result = res
		}
		r.opts.Metrics.RecordTests(ctx, string(analysis.KindGroup), err == nil, 1)
		rc.Result.Group = append(rc.Result.Group, row)
	}
	return nil
}

func (r *Runner) narrative(_ context.Context, rc *RunContext) error {
	col := rc.Plan.NarrativeColumn
	if col == "" {
		return nil
	}
	a, b, _, err := r.groupValues(rc, col)
	if err != nil {
		return err
	}

	var res *stats.TTestResult
	for _, row := range rc.Result.Group {
		if row.ColumnA == col && row.OK() {
			res = row.Result
			break
		}
	}
	if res == nil {
		if res, err = stats.WelchTTest(a, b, rc.Plan.Alpha); err != nil {
			r.warn(rc, "no narrative for %s: %v", col, err)
			return nil
		}
	}

	n := analysis.Narrative{
		Column:      col,
		GroupA:      rc.Plan.Groups[0],
		GroupB:      rc.Plan.Groups[1],
		MeanA:       stats.Describe(a).Mean,
		MeanB:       stats.Describe(b).Mean,
		Significant: res.Significant,
	}
	n.Text = report.Sentence(n, narrativeSubject(rc.Plan, col), res)
	rc.Result.Narrative = &n
	return nil
}

var unitSuffix = regexp.MustCompile(`\s*\([^)]*\)\s*$`)

// narrativeSubject names a column in prose, e.g. "pre-flight heart rate".
func narrativeSubject(plan analysis.Plan, column string) string {
	measure, phase, ok := plan.SplitColumn(column)
	if !ok {
		return column
	}
	label := strings.ToLower(unitSuffix.ReplaceAllString(plan.Label(measure), ""))
	return strings.ToLower(analysis.PhaseLabel(phase)) + " " + label
}

func (r *Runner) normality(ctx context.Context, rc *RunContext) error {
	for _, col := range rc.Table.NumericColumns() {
		values, err := rc.Table.Float(col)
		if err != nil {
			return err
		}
		row := analysis.NormalityRow{Column: col}
		res, err := stats.ShapiroWilk(values)
		if err != nil {
			row.Class = analysis.Inconclusive
			row.Error = err.Error()
		} else {
			row.Result = res
			row.Class = analysis.ClassifyNormality(res.PValue)
		}
		r.opts.Metrics.RecordTests(ctx, "normality", err == nil, 1)
		rc.Result.Normality = append(rc.Result.Normality, row)
	}
	return nil
}

func (r *Runner) effect(ctx context.Context, rc *RunContext) error {
	col := rc.Plan.EffectSizeColumn
	if col == "" {
		return nil
	}
	a, b, _, err := r.groupValues(rc, col)
	if err != nil {
		return err
	}
	row := analysis.EffectRow{Column: col, GroupA: rc.Plan.Groups[0], GroupB: rc.Plan.Groups[1]}
	d, err := stats.CohensD(a, b)
	if err != nil {
		row.Error = err.Error()
	} else {
		row.D = d
		row.Category = stats.CategorizeEffect(d).String()
	}
	r.opts.Metrics.RecordTests(ctx, "effect", err == nil, 1)
	rc.Result.Effect = &row
	return nil
}

// descriptives summarises every plan column overall and per group. Empty
// samples are skipped because their summary is all NaN.
func (r *Runner) descriptives(_ context.Context, rc *RunContext) error {
	for _, col := range rc.Plan.RequiredColumns() {
		values, err := rc.Table.Float(col)
		if err != nil {
			return err
		}
		if s := stats.Describe(values); s.N > 0 {
			rc.Result.Descriptives = append(rc.Result.Descriptives, analysis.Descriptive{Column: col, Summary: s})
		}
		for _, g := range rc.Plan.Groups {
			vals, _, err := rc.Table.Group(col, g, table.MissingDrop)
			if err != nil {
				return err
			}
			if s := stats.Describe(vals); s.N > 0 {
				rc.Result.Descriptives = append(rc.Result.Descriptives, analysis.Descriptive{Column: col, Group: g, Summary: s})
			}
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Charts and publishing
// -----------------------------------------------------------------------------

// renderCharts renders concurrently, then stores each chart. A chart that
// fails to render or store is reported and the others continue.
func (r *Runner) renderCharts(ctx context.Context, rc *RunContext) error {
	st := r.opts.Style
	rendered := charts.RenderAll(ctx, rc.Table, rc.Plan, st)

	rows := make([]analysis.ChartRow, len(rendered))
	for i, out := range rendered {
		rows[i] = analysis.ChartRow{Name: out.Spec.Name, Kind: out.Spec.Kind}
		r.opts.Metrics.RecordChart(ctx, out.Err)
		if out.Err != nil {
			rows[i].Error = out.Err.Error()
			r.opts.Logger.Warn("chart failed", "run_id", rc.RunID, "chart", out.Spec.Name, "error", out.Err)
			continue
		}
		rows[i].Bytes = len(out.Data)
		rows[i].Key = artifacts.Key(rc.RunID, out.Spec.Name+"."+st.Extension())
	}

	var (
		mu       sync.Mutex
		failures []string
		g        errgroup.Group
	)
	g.SetLimit(maxUploads)
	for i, out := range rendered {
		if out.Err != nil {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				rows[i].Key = ""
				mu.Lock()
				failures = append(failures, fmt.Sprintf("storing chart %s: %v", out.Spec.Name, err))
				mu.Unlock()
				return nil
			}
			loc, err := r.opts.Store.Put(ctx, rows[i].Key, out.Data, st.ContentType())
			if err != nil {
				rows[i].Key = ""
				r.opts.Metrics.RecordPublishError(ctx, "artifacts")
				mu.Lock()
				failures = append(failures, fmt.Sprintf("storing chart %s: %v", out.Spec.Name, err))
				mu.Unlock()
				return nil
			}
			rows[i].Location = loc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		failures = append(failures, fmt.Sprintf("storing charts: %v", err))
	}
	for _, f := range failures {
		r.warn(rc, "%s", f)
	}

	rc.Result.Charts = rows
	return nil
}

func (r *Runner) publish(ctx context.Context, rc *RunContext) error {
	for _, p := range r.opts.Publishers {
		if err := p.Publish(ctx, rc.Result); err != nil {
			r.opts.Metrics.RecordPublishError(ctx, p.Name())
			r.warn(rc, "publishing to %s: %v", p.Name(), err)
		}
	}
	return nil
}
