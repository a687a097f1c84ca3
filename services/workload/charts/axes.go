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
	"math"
	"strconv"

	"github.com/wcharczuk/go-chart/v2"
)

// categoryTicks places categories at 1..n with blank ticks half a slot
// outside so the outer boxes are not clipped.
func categoryTicks(labels []string) []chart.Tick {
	ticks := make([]chart.Tick, 0, len(labels)+2)
	ticks = append(ticks, chart.Tick{Value: 0.5})
	for i, l := range labels {
		ticks = append(ticks, chart.Tick{Value: float64(i + 1), Label: l})
	}
	return append(ticks, chart.Tick{Value: float64(len(labels)) + 0.5})
}

// niceTicks covers [lo, hi] with about n ticks on a 1-2-5 step.
func niceTicks(lo, hi float64, n int) []chart.Tick {
	if hi < lo {
		lo, hi = hi, lo
	}
	if hi == lo {
		pad := math.Max(math.Abs(lo)*0.05, 1)
		lo, hi = lo-pad, hi+pad
	}
	step := niceStep((hi - lo) / float64(n))
	start := math.Floor(lo/step) * step
	end := math.Ceil(hi/step) * step

	decimals := 0
	if step < 1 {
		decimals = int(math.Ceil(-math.Log10(step)))
	}

	var ticks []chart.Tick
	for i := 0; ; i++ {
		v := start + float64(i)*step
		if v > end+step/2 {
			break
		}
		v = roundTo(v, decimals)
		ticks = append(ticks, chart.Tick{Value: v, Label: strconv.FormatFloat(v, 'f', decimals, 64)})
	}
	return ticks
}

func niceStep(raw float64) float64 {
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	switch f := raw / mag; {
	case f <= 1:
		return mag
	case f <= 2:
		return 2 * mag
	case f <= 5:
		return 5 * mag
	default:
		return 10 * mag
	}
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// padded widens [lo, hi] by frac of its span on each side.
func padded(lo, hi, frac float64) (float64, float64) {
	span := hi - lo
	if span == 0 {
		span = math.Max(math.Abs(hi), 1)
	}
	return lo - span*frac, hi + span*frac
}

func tickRange(ticks []chart.Tick) *chart.ContinuousRange {
	return &chart.ContinuousRange{Min: ticks[0].Value, Max: ticks[len(ticks)-1].Value}
}
