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
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// -----------------------------------------------------------------------------
// Shapiro-Wilk
// -----------------------------------------------------------------------------

const (
	// MinShapiroSamples is the smallest sample the W test accepts.
	MinShapiroSamples = 3

	// MaxShapiroSamples is the largest sample the p-value approximation covers.
	MaxShapiroSamples = 5000

	// NormalThreshold is the p-value above which a sample is called normal.
	NormalThreshold = 0.05

	// ScientificThreshold is the p-value below which p is shown in
	// scientific notation and the sample is always non-normal.
	ScientificThreshold = 1e-4
)

// ErrConstantSample indicates all values are identical, so W is undefined.
var ErrConstantSample = errors.New("all values are identical")

// Royston (1995) polynomial coefficients, AS R94.
var (
	swG  = []float64{-2.273, 0.459}
	swC1 = []float64{0, 0.221157, -0.147981, -2.07119, 4.434685, -2.706056}
	swC2 = []float64{0, 0.042981, -0.293762, -1.752461, 5.682633, -3.582633}
	swC3 = []float64{0.544, -0.39978, 0.025054, -6.714e-4}
	swC4 = []float64{1.3822, -0.77857, 0.062767, -0.0020322}
	swC5 = []float64{-1.5861, -0.31082, -0.083751, 0.0038915}
	swC6 = []float64{-0.4803, -0.082676, 0.0030302}
)

// NormalityResult holds the outcome of a Shapiro-Wilk test.
type NormalityResult struct {
	// W is the Shapiro-Wilk statistic in (0, 1].
	W float64 `json:"w"`

	// PValue is the probability of a W this small under normality.
	PValue float64 `json:"p"`

	// N is the number of non-missing values tested.
	N int `json:"n"`
}

// Normal reports whether the sample is classified normal (p > 0.05).
func (r *NormalityResult) Normal() bool {
	return r.PValue > NormalThreshold
}

// ShapiroWilk tests the null hypothesis that xs came from a normal
// distribution.
//
// Description:
//
//	Uses Royston's AS R94 approximation for the coefficients and the
//	p-value. NaN values are skipped. For n == 3 the p-value is exact.
//
// Inputs:
//   - xs: Sample values. Not modified.
//
// Outputs:
//   - *NormalityResult: W, p and the number of values used.
//   - error: ErrInsufficientSamples outside [3, 5000] values,
//     ErrConstantSample when the range is zero.
//
// Thread Safety: This function is stateless and safe for concurrent use.
func ShapiroWilk(xs []float64) (*NormalityResult, error) {
	x := make([]float64, 0, len(xs))
	for _, v := range xs {
		if !math.IsNaN(v) {
			x = append(x, v)
		}
	}
	n := len(x)
	if n < MinShapiroSamples || n > MaxShapiroSamples {
		return nil, fmt.Errorf("%w: shapiro-wilk needs %d..%d values, got %d",
			ErrInsufficientSamples, MinShapiroSamples, MaxShapiroSamples, n)
	}
	sort.Float64s(x)

	rng := x[n-1] - x[0]
	if rng < 1e-19 {
		return nil, ErrConstantSample
	}

	a := shapiroCoefficients(n)

	// W is the squared correlation between the scaled data and the
	// antisymmetric coefficients. w1 = 1-W is kept to avoid cancellation
	// when W is close to 1.
	var sa, sx float64
	for i := 0; i < n; i++ {
		sa += coefficient(a, i, n)
		sx += x[i] / rng
	}
	sa /= float64(n)
	sx /= float64(n)

	var ssa, ssx, sax float64
	for i := 0; i < n; i++ {
		asa := coefficient(a, i, n) - sa
		xsx := x[i]/rng - sx
		ssa += asa * asa
		ssx += xsx * xsx
		sax += asa * xsx
	}
	ssassx := math.Sqrt(ssa * ssx)
	w1 := math.Max((ssassx-sax)*(ssassx+sax)/(ssa*ssx), 0)
	w := 1 - w1

	return &NormalityResult{W: w, PValue: shapiroPValue(w, w1, n), N: n}, nil
}

// shapiroCoefficients returns the upper half of the coefficient vector,
// a[0] being the weight of the extreme order statistics.
func shapiroCoefficients(n int) []float64 {
	nn2 := n / 2
	a := make([]float64, nn2)
	if n == 3 {
		a[0] = math.Sqrt(0.5)
		return a
	}

	an25 := float64(n) + 0.25
	var summ2 float64
	for i := range a {
		a[i] = distuv.UnitNormal.Quantile((float64(i+1) - 0.375) / an25)
		summ2 += a[i] * a[i]
	}
	summ2 *= 2
	ssumm2 := math.Sqrt(summ2)
	rsn := 1 / math.Sqrt(float64(n))
	a1 := poly(swC1, rsn) - a[0]/ssumm2

	var fac float64
	first := 1
	if n > 5 {
		first = 2
		a2 := -a[1]/ssumm2 + poly(swC2, rsn)
		fac = math.Sqrt((summ2 - 2*a[0]*a[0] - 2*a[1]*a[1]) /
			(1 - 2*a1*a1 - 2*a2*a2))
		a[1] = a2
	} else {
		fac = math.Sqrt((summ2 - 2*a[0]*a[0]) / (1 - 2*a1*a1))
	}
	a[0] = a1
	for i := first; i < nn2; i++ {
		a[i] /= -fac
	}
	return a
}

// coefficient expands the half vector to position i of a sorted sample of n.
func coefficient(a []float64, i, n int) float64 {
	j := n - 1 - i
	switch {
	case i < j:
		return -a[i]
	case i > j:
		return a[j]
	default:
		return 0
	}
}

func shapiroPValue(w, w1 float64, n int) float64 {
	an := float64(n)
	if n == 3 {
		const pi6 = 6 / math.Pi
		const stqr = math.Pi / 3
		p := pi6 * (math.Asin(math.Sqrt(w)) - stqr)
		return math.Min(math.Max(p, 0), 1)
	}

	y := math.Log(w1)
	var m, s float64
	if n <= 11 {
		gamma := poly(swG, an)
		if y >= gamma {
			return 1e-99
		}
		y = -math.Log(gamma - y)
		m = poly(swC3, an)
		s = math.Exp(poly(swC4, an))
	} else {
		lnN := math.Log(an)
		m = poly(swC5, lnN)
		s = math.Exp(poly(swC6, lnN))
	}
	return distuv.Normal{Mu: m, Sigma: s}.Survival(y)
}

// poly evaluates c[0] + c[1]x + c[2]x^2 + ...
func poly(c []float64, x float64) float64 {
	result := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		result = result*x + c[i]
	}
	return result
}
