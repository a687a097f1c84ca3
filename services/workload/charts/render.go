// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package charts renders the workload figures: box plots per phase, violin
// plots, per-subject trajectories and group mean bars.
package charts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/AleutianAI/flightload/services/workload/analysis"
	"github.com/AleutianAI/flightload/services/workload/stats"
	"github.com/AleutianAI/flightload/services/workload/table"
	"github.com/wcharczuk/go-chart/v2"
	"golang.org/x/sync/errgroup"
)

// ErrNoData indicates a chart with nothing to draw.
var ErrNoData = errors.New("chart has no values to draw")

const yTickCount = 6

// Rendered is the outcome of one chart. Exactly one of Data and Err is set.
type Rendered struct {
	Spec analysis.ChartSpec
	Data []byte
	Err  error
}

// RenderAll renders every chart of the plan concurrently.
//
// Description:
//
//	Charts are independent: a failure, including a renderer panic, is
//	recorded on that chart's Rendered and never stops the others. The
//	output keeps plan order.
//
// Inputs:
//   - ctx: Cancellation stops charts that have not started.
//   - t: The validated table.
//   - plan: Supplies the chart list and measure labels.
//   - st: Presentation options.
//
// Outputs:
//   - []Rendered: One entry per plan chart.
//
// Thread Safety: The table is only read. Safe for concurrent use.
func RenderAll(ctx context.Context, t *table.Table, plan analysis.Plan, st Style) []Rendered {
	out := make([]Rendered, len(plan.Charts))

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, spec := range plan.Charts {
		g.Go(func() error {
			out[i].Spec = spec
			if err := ctx.Err(); err != nil {
				out[i].Err = err
				return nil
			}
			out[i].Data, out[i].Err = Render(t, plan, spec, st)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Render builds and encodes one chart.
func Render(t *table.Table, plan analysis.Plan, spec analysis.ChartSpec, st Style) ([]byte, error) {
	st = st.withDefaults()
	c, err := Build(t, plan, spec, st)
	if err != nil {
		return nil, fmt.Errorf("chart %s: %w", spec.Name, err)
	}
	data, err := encode(c, st)
	if err != nil {
		return nil, fmt.Errorf("chart %s: %w", spec.Name, err)
	}
	return data, nil
}

// encode renders c into memory. Renderer panics become errors.
func encode(c chart.Chart, st Style) (data []byte, err error) {
	provider, err := st.provider()
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("renderer panic: %v", r)
		}
	}()

	var buf bytes.Buffer
	if err := c.Render(provider, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Build assembles the chart described by spec without rendering it.
func Build(t *table.Table, plan analysis.Plan, spec analysis.ChartSpec, st Style) (chart.Chart, error) {
	st = st.withDefaults()
	switch spec.Kind {
	case analysis.ChartBox:
		return buildBox(t, plan, spec, st)
	case analysis.ChartViolin:
		return buildViolin(t, plan, spec, st)
	case analysis.ChartLines:
		return buildLines(t, plan, spec, st)
	case analysis.ChartBar:
		return buildBar(t, plan, spec, st)
	default:
		return chart.Chart{}, fmt.Errorf("unknown chart kind %q", spec.Kind)
	}
}

// -----------------------------------------------------------------------------
// Chart kinds
// -----------------------------------------------------------------------------

func buildBox(t *table.Table, plan analysis.Plan, spec analysis.ChartSpec, st Style) (chart.Chart, error) {
	m, groups, err := phaseGroups(t, plan, spec)
	if err != nil {
		return chart.Chart{}, err
	}
	lo, hi := bounds(groups)
	lo, hi = padded(lo, hi, 0.05)

	th := st.theme()
	c := frame(spec, st, "Flight Phase", plan.Label(m.Name), phaseNames(m.Phases), niceTicks(lo, hi, yTickCount))
	c.Series = []chart.Series{boxSeries{name: m.Name, groups: groups, fills: th.phaseFills, stroke: th.stroke}}
	return c, nil
}

func buildViolin(t *table.Table, plan analysis.Plan, spec analysis.ChartSpec, st Style) (chart.Chart, error) {
	m, groups, err := phaseGroups(t, plan, spec)
	if err != nil {
		return chart.Chart{}, err
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		gl, gh := Extent(g)
		lo, hi = math.Min(lo, gl), math.Max(hi, gh)
	}
	lo, hi = padded(lo, hi, 0.02)

	th := st.theme()
	c := frame(spec, st, "Phase", plan.Label(m.Name), phaseNames(m.Phases), niceTicks(lo, hi, yTickCount))
	c.Series = []chart.Series{violinSeries{
		name:   m.Name,
		groups: groups,
		fills:  th.violinFills,
		stroke: th.stroke,
		point:  th.point,
	}}
	return c, nil
}

func buildLines(t *table.Table, plan analysis.Plan, spec analysis.ChartSpec, st Style) (chart.Chart, error) {
	m, ok := plan.Measure(spec.Measure)
	if !ok {
		return chart.Chart{}, fmt.Errorf("unknown measure %q", spec.Measure)
	}
	rows, err := t.Melt(m.Name, m.Phases)
	if err != nil {
		return chart.Chart{}, err
	}
	if len(rows) == 0 {
		return chart.Chart{}, ErrNoData
	}
	subjects, lines := table.BySubject(rows, m.Phases)
	lo, hi := bounds(lines)
	lo, hi = padded(lo, hi, 0.05)

	th := st.theme()
	c := frame(spec, st, "Flight Phase", plan.Label(m.Name), phaseNames(m.Phases), niceTicks(lo, hi, yTickCount))
	for i, subject := range subjects {
		var xs, ys []float64
		for j, v := range lines[i] {
			if math.IsNaN(v) {
				continue
			}
			xs = append(xs, float64(j+1))
			ys = append(ys, v)
		}
		c.Series = append(c.Series, chart.ContinuousSeries{
			Name:    subject,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: th.subjectLine,
				StrokeWidth: 1.5,
				DotColor:    th.subjectLine,
				DotWidth:    3,
			},
		})
	}
	return c, nil
}

func buildBar(t *table.Table, plan analysis.Plan, spec analysis.ChartSpec, st Style) (chart.Chart, error) {
	means := make([]float64, len(plan.Groups))
	errs := make([]float64, len(plan.Groups))
	labels := make([]string, len(plan.Groups))
	top, drawn := 0.0, false
	for i, group := range plan.Groups {
		labels[i] = analysis.Capitalize(group)
		values, _, err := t.Group(spec.Column, group, table.MissingDrop)
		if err != nil {
			return chart.Chart{}, err
		}
		s := stats.Describe(values)
		means[i], errs[i] = s.Mean, s.StdDev
		if s.N > 0 {
			drawn = true
			top = math.Max(top, s.Mean+s.StdDev)
		}
	}
	if !drawn {
		return chart.Chart{}, ErrNoData
	}

	th := st.theme()
	yName := plan.ColumnLabel(spec.Column)
	c := frame(spec, st, "Role", yName, labels, niceTicks(0, top*1.1, yTickCount))
	c.Series = []chart.Series{barSeries{
		name:   yName,
		means:  means,
		errs:   errs,
		fills:  th.barFills,
		stroke: th.stroke,
	}}
	return c, nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// frame lays out the title, padding and both axes shared by every kind.
func frame(spec analysis.ChartSpec, st Style, xName, yName string, categories []string, yTicks []chart.Tick) chart.Chart {
	xTicks := categoryTicks(categories)
	return chart.Chart{
		Title:  spec.Title,
		Width:  st.Width,
		Height: st.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  xName,
			Range: tickRange(xTicks),
			Ticks: xTicks,
		},
		YAxis: chart.YAxis{
			Name:  yName,
			Range: tickRange(yTicks),
			Ticks: yTicks,
		},
	}
}

func phaseGroups(t *table.Table, plan analysis.Plan, spec analysis.ChartSpec) (analysis.Measure, [][]float64, error) {
	m, ok := plan.Measure(spec.Measure)
	if !ok {
		return m, nil, fmt.Errorf("unknown measure %q", spec.Measure)
	}
	rows, err := t.Melt(m.Name, m.Phases)
	if err != nil {
		return m, nil, err
	}
	if len(rows) == 0 {
		return m, nil, ErrNoData
	}
	return m, table.ByPhase(rows, m.Phases), nil
}

func phaseNames(phases []string) []string {
	out := make([]string, len(phases))
	for i, p := range phases {
		out[i] = analysis.PhaseLabel(p)
	}
	return out
}

// bounds returns the smallest and largest non-NaN value.
func bounds(groups [][]float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, g := range groups {
		for _, v := range g {
			if math.IsNaN(v) {
				continue
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	return lo, hi
}
