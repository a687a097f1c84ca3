// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package charts

import (
	"errors"
	"math"

	"github.com/AleutianAI/flightload/services/workload/stats"
	mstats "github.com/aclements/go-moremath/stats"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	boxHalfWidth    = 0.3
	violinHalfWidth = 0.4
	barHalfWidth    = 0.3
	capHalfWidth    = 0.08
	violinGrid      = 64
	violinCut       = 2.0
)

// -----------------------------------------------------------------------------
// Geometry
// -----------------------------------------------------------------------------

// plot maps data coordinates into the canvas.
type plot struct {
	box    chart.Box
	xrange chart.Range
	yrange chart.Range
}

func (p plot) x(v float64) int { return p.box.Left + p.xrange.Translate(v) }
func (p plot) y(v float64) int { return p.box.Bottom - p.yrange.Translate(v) }

func strokeLine(r chart.Renderer, x1, y1, x2, y2 int) {
	r.MoveTo(x1, y1)
	r.LineTo(x2, y2)
	r.Stroke()
}

func fillRect(r chart.Renderer, left, top, right, bottom int) {
	r.MoveTo(left, top)
	r.LineTo(right, top)
	r.LineTo(right, bottom)
	r.LineTo(left, bottom)
	r.LineTo(left, top)
	r.Close()
	r.FillStroke()
}

// -----------------------------------------------------------------------------
// Box plot
// -----------------------------------------------------------------------------

// Whiskers describes one box of a Tukey box plot.
type Whiskers struct {
	Q1, Median, Q3 float64
	Low, High      float64
	Outliers       []float64
}

// TukeyWhiskers computes box, whiskers at the furthest values within 1.5 IQR
// of the box, and the outliers beyond them.
func TukeyWhiskers(values []float64) Whiskers {
	s := stats.Describe(values)
	fence := 1.5 * s.IQR()
	lowFence, highFence := s.Q1-fence, s.Q3+fence

	w := Whiskers{Q1: s.Q1, Median: s.Median, Q3: s.Q3, Low: s.Q1, High: s.Q3}
	for _, v := range values {
		switch {
		case math.IsNaN(v):
		case v < lowFence || v > highFence:
			w.Outliers = append(w.Outliers, v)
		default:
			w.Low = math.Min(w.Low, v)
			w.High = math.Max(w.High, v)
		}
	}
	return w
}

type boxSeries struct {
	name   string
	groups [][]float64
	fills  []drawing.Color
	stroke drawing.Color
}

func (b boxSeries) GetName() string           { return b.name }
func (b boxSeries) GetYAxis() chart.YAxisType { return chart.YAxisPrimary }
func (b boxSeries) GetStyle() chart.Style     { return chart.Style{} }

func (b boxSeries) Validate() error {
	if len(b.groups) == 0 {
		return errors.New("box series has no groups")
	}
	return nil
}

func (b boxSeries) Render(r chart.Renderer, canvasBox chart.Box, xrange, yrange chart.Range, _ chart.Style) {
	p := plot{box: canvasBox, xrange: xrange, yrange: yrange}
	for i, values := range b.groups {
		if len(values) == 0 {
			continue
		}
		w := TukeyWhiskers(values)
		pos := float64(i + 1)
		left, mid, right := p.x(pos-boxHalfWidth), p.x(pos), p.x(pos+boxHalfWidth)
		capL, capR := p.x(pos-capHalfWidth), p.x(pos+capHalfWidth)

		r.SetStrokeColor(b.stroke)
		r.SetStrokeWidth(1.5)
		strokeLine(r, mid, p.y(w.Q3), mid, p.y(w.High))
		strokeLine(r, mid, p.y(w.Q1), mid, p.y(w.Low))
		strokeLine(r, capL, p.y(w.High), capR, p.y(w.High))
		strokeLine(r, capL, p.y(w.Low), capR, p.y(w.Low))

		r.SetFillColor(pick(b.fills, i))
		fillRect(r, left, p.y(w.Q3), right, p.y(w.Q1))

		r.SetStrokeWidth(2)
		strokeLine(r, left, p.y(w.Median), right, p.y(w.Median))

		r.SetStrokeWidth(1)
		r.SetFillColor(drawing.ColorWhite)
		for _, o := range w.Outliers {
			r.Circle(3, mid, p.y(o))
			r.FillStroke()
		}
	}
}

// -----------------------------------------------------------------------------
// Violin plot
// -----------------------------------------------------------------------------

// Density is a kernel density outline of one group.
type Density struct {
	Ys        []float64
	Densities []float64
	Max       float64
}

// bandwidth returns Silverman's bandwidth, zero for degenerate samples.
func bandwidth(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sample := mstats.Sample{Xs: values}
	return mstats.BandwidthSilverman(&sample)
}

// Extent returns the y span a violin of values occupies.
func Extent(values []float64) (lo, hi float64) {
	s := stats.Describe(values)
	bw := bandwidth(values)
	return s.Min - violinCut*bw, s.Max + violinCut*bw
}

// KernelDensity evaluates a Gaussian KDE of values on an even grid that
// extends violinCut bandwidths past the data. Nil when the sample has no
// spread.
func KernelDensity(values []float64) *Density {
	bw := bandwidth(values)
	if bw <= 0 || math.IsNaN(bw) {
		return nil
	}
	kde := &mstats.KDE{
		Sample:      mstats.Sample{Xs: values},
		Kernel:      mstats.GaussianKernel,
		Bandwidth:   bw,
		BoundaryMin: math.Inf(-1),
		BoundaryMax: math.Inf(1),
	}
	lo, hi := Extent(values)
	d := &Density{Ys: make([]float64, violinGrid), Densities: make([]float64, violinGrid)}
	for i := 0; i < violinGrid; i++ {
		y := lo + (hi-lo)*float64(i)/float64(violinGrid-1)
		d.Ys[i] = y
		d.Densities[i] = kde.PDF(y)
		d.Max = math.Max(d.Max, d.Densities[i])
	}
	return d
}

type violinSeries struct {
	name   string
	groups [][]float64
	fills  []drawing.Color
	stroke drawing.Color
	point  drawing.Color
}

func (v violinSeries) GetName() string           { return v.name }
func (v violinSeries) GetYAxis() chart.YAxisType { return chart.YAxisPrimary }
func (v violinSeries) GetStyle() chart.Style     { return chart.Style{} }

func (v violinSeries) Validate() error {
	if len(v.groups) == 0 {
		return errors.New("violin series has no groups")
	}
	return nil
}

func (v violinSeries) Render(r chart.Renderer, canvasBox chart.Box, xrange, yrange chart.Range, _ chart.Style) {
	p := plot{box: canvasBox, xrange: xrange, yrange: yrange}
	for i, values := range v.groups {
		if len(values) == 0 {
			continue
		}
		pos := float64(i + 1)
		r.SetStrokeColor(v.stroke)
		r.SetStrokeWidth(1)
		r.SetFillColor(pick(v.fills, i))

		if d := KernelDensity(values); d != nil && d.Max > 0 {
			scale := violinHalfWidth / d.Max
			r.MoveTo(p.x(pos-d.Densities[0]*scale), p.y(d.Ys[0]))
			for k := 1; k < len(d.Ys); k++ {
				r.LineTo(p.x(pos-d.Densities[k]*scale), p.y(d.Ys[k]))
			}
			for k := len(d.Ys) - 1; k >= 0; k-- {
				r.LineTo(p.x(pos+d.Densities[k]*scale), p.y(d.Ys[k]))
			}
			r.Close()
			r.FillStroke()
		} else {
			// No spread to estimate: a flat bar at the single value.
			y := p.y(values[0])
			strokeLine(r, p.x(pos-violinHalfWidth), y, p.x(pos+violinHalfWidth), y)
		}

		r.SetFillColor(v.point)
		r.SetStrokeColor(v.point)
		for k, val := range values {
			r.Circle(2.5, p.x(pos+jitter(k)), p.y(val))
			r.FillStroke()
		}
	}
}

// jitter spreads overlaid points horizontally. It is deterministic so the
// same data always renders the same image.
func jitter(k int) float64 {
	return (float64((k*7)%11) - 5) / 5 * (violinHalfWidth / 4)
}

// -----------------------------------------------------------------------------
// Bar chart with error bars
// -----------------------------------------------------------------------------

type barSeries struct {
	name   string
	means  []float64
	errs   []float64
	fills  []drawing.Color
	stroke drawing.Color
	base   float64
}

func (b barSeries) GetName() string           { return b.name }
func (b barSeries) GetYAxis() chart.YAxisType { return chart.YAxisPrimary }
func (b barSeries) GetStyle() chart.Style     { return chart.Style{} }

func (b barSeries) Validate() error {
	if len(b.means) == 0 || len(b.means) != len(b.errs) {
		return errors.New("bar series needs one error per mean")
	}
	return nil
}

func (b barSeries) Render(r chart.Renderer, canvasBox chart.Box, xrange, yrange chart.Range, _ chart.Style) {
	p := plot{box: canvasBox, xrange: xrange, yrange: yrange}
	for i, mean := range b.means {
		if math.IsNaN(mean) {
			continue
		}
		pos := float64(i + 1)
		r.SetStrokeColor(b.stroke)
		r.SetStrokeWidth(1)
		r.SetFillColor(pick(b.fills, i))
		fillRect(r, p.x(pos-barHalfWidth), p.y(mean), p.x(pos+barHalfWidth), p.y(b.base))

		e := b.errs[i]
		if e > 0 && !math.IsNaN(e) {
			mid := p.x(pos)
			capL, capR := p.x(pos-capHalfWidth), p.x(pos+capHalfWidth)
			r.SetStrokeWidth(1.5)
			strokeLine(r, mid, p.y(mean-e), mid, p.y(mean+e))
			strokeLine(r, capL, p.y(mean+e), capR, p.y(mean+e))
			strokeLine(r, capL, p.y(mean-e), capR, p.y(mean-e))
		}
	}
}
