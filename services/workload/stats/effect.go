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

	"gonum.org/v1/gonum/stat"
)

// CohensD calculates Cohen's d effect size with a pooled standard deviation.
//
// Description:
//
//	d = (mean(x) - mean(y)) / sqrt(((nx-1)var(x) + (ny-1)var(y)) / (nx+ny-2))
//	with the unbiased (n-1) variance of each group. The result is
//	antisymmetric in its arguments and zero for a group compared with
//	itself.
//
// Inputs:
//   - x: First sample set. Must not be empty.
//   - y: Second sample set. Must not be empty.
//
// Outputs:
//   - float64: Cohen's d value. Positive means x > y.
//   - error: ErrInsufficientSamples when nx+ny <= 2, ErrZeroVariance when
//     the pooled variance is zero, ErrMissingValue on NaN input.
//
// Thread Safety: This function is stateless and safe for concurrent use.
func CohensD(x, y []float64) (float64, error) {
	if len(x) == 0 || len(y) == 0 || len(x)+len(y) <= 2 {
		return 0, ErrInsufficientSamples
	}
	if hasNaN(x) || hasNaN(y) {
		return 0, ErrMissingValue
	}

	n1 := float64(len(x))
	n2 := float64(len(y))

	mean1, var1 := meanVariance(x)
	mean2, var2 := meanVariance(y)

	pooledVar := ((n1-1)*var1 + (n2-1)*var2) / (n1 + n2 - 2)
	pooledStdDev := math.Sqrt(pooledVar)
	if pooledStdDev == 0 {
		return 0, ErrZeroVariance
	}

	return (mean1 - mean2) / pooledStdDev, nil
}

// meanVariance returns the mean and unbiased variance. A single value has
// zero variance so it can still contribute to a pooled estimate.
func meanVariance(xs []float64) (float64, float64) {
	if len(xs) < 2 {
		return xs[0], 0
	}
	return stat.MeanVariance(xs, nil)
}

// EffectCategory categorizes effect sizes using Cohen's conventions.
type EffectCategory int

const (
	// EffectNegligible indicates |d| < 0.2
	EffectNegligible EffectCategory = iota
	// EffectSmall indicates 0.2 <= |d| < 0.5
	EffectSmall
	// EffectMedium indicates 0.5 <= |d| < 0.8
	EffectMedium
	// EffectLarge indicates |d| >= 0.8
	EffectLarge
)

// String returns the string representation.
func (e EffectCategory) String() string {
	switch e {
	case EffectNegligible:
		return "negligible"
	case EffectSmall:
		return "small"
	case EffectMedium:
		return "medium"
	case EffectLarge:
		return "large"
	default:
		return "unknown"
	}
}

// CategorizeEffect returns the category for a Cohen's d value.
func CategorizeEffect(d float64) EffectCategory {
	absD := math.Abs(d)
	switch {
	case absD < 0.2:
		return EffectNegligible
	case absD < 0.5:
		return EffectSmall
	case absD < 0.8:
		return EffectMedium
	default:
		return EffectLarge
	}
}
