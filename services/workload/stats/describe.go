// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stats

import (
	"math"

	mstats "github.com/aclements/go-moremath/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes one sample.
type Summary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std"`
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
}

// IQR returns the interquartile range.
func (s Summary) IQR() float64 {
	return s.Q3 - s.Q1
}

// Describe computes a Summary, skipping NaN values.
//
// Description:
//
//	StdDev is the sample (n-1) standard deviation and is zero for a single
//	value. Quartiles are interpolated between order statistics. An empty
//	sample yields N == 0 and NaN everywhere else.
//
// Thread Safety: This function is stateless and safe for concurrent use.
func Describe(xs []float64) Summary {
	values := DropNaN(xs)
	if len(values) == 0 {
		nan := math.NaN()
		return Summary{Mean: nan, StdDev: nan, Min: nan, Q1: nan, Median: nan, Q3: nan, Max: nan}
	}

	sample := mstats.Sample{Xs: values}
	sample.Sort()

	s := Summary{
		N:      len(values),
		Mean:   stat.Mean(values, nil),
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Q1:     sample.Quantile(0.25),
		Median: sample.Quantile(0.5),
		Q3:     sample.Quantile(0.75),
	}
	if len(values) > 1 {
		s.StdDev = stat.StdDev(values, nil)
	}
	return s
}

// DropNaN returns a copy of xs without NaN values.
func DropNaN(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

// DropNaNPairs removes every position where a or b is NaN.
//
// Outputs:
//   - keptA, keptB: The complete pairs, in their original order.
//   - kept: Original indices of the kept pairs.
func DropNaNPairs(a, b []float64) (keptA, keptB []float64, kept []int) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		keptA = append(keptA, a[i])
		keptB = append(keptB, b[i])
		kept = append(kept, i)
	}
	return keptA, keptB, kept
}
