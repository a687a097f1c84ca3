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
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	mstats "github.com/aclements/go-moremath/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInsufficientSamples indicates not enough samples for analysis.
	ErrInsufficientSamples = errors.New("insufficient samples for statistical analysis")

	// ErrZeroVariance indicates a sample set has zero variance.
	ErrZeroVariance = errors.New("sample set has zero variance")

	// ErrLengthMismatch indicates paired sequences of different lengths.
	ErrLengthMismatch = errors.New("paired samples have different lengths")

	// ErrMissingValue indicates a NaN reached a test that requires complete data.
	ErrMissingValue = errors.New("sample contains missing values")
)

// -----------------------------------------------------------------------------
// t-tests
// -----------------------------------------------------------------------------

// TTestResult holds the results of a t-test.
type TTestResult struct {
	// TStatistic is the computed t-statistic.
	TStatistic float64 `json:"t"`

	// PValue is the two-tailed p-value.
	PValue float64 `json:"p"`

	// DegreesOfFreedom is n-1 for paired tests and the
	// Welch-Satterthwaite df for group tests.
	DegreesOfFreedom float64 `json:"df"`

	// N1 and N2 are the sample sizes used.
	N1 int `json:"n1"`
	N2 int `json:"n2"`

	// Significant is true if PValue < SignificanceLevel.
	Significant bool `json:"significant"`

	// SignificanceLevel is the alpha used (e.g., 0.05).
	SignificanceLevel float64 `json:"alpha"`
}

// MarshalJSON writes a non-finite t-statistic as a string such as "+Inf",
// which encoding/json cannot represent as a number.
func (r TTestResult) MarshalJSON() ([]byte, error) {
	type plain TTestResult
	out := struct {
		plain
		TStatistic any `json:"t"`
	}{plain: plain(r), TStatistic: r.TStatistic}
	if math.IsInf(r.TStatistic, 0) || math.IsNaN(r.TStatistic) {
		out.TStatistic = strconv.FormatFloat(r.TStatistic, 'g', -1, 64)
	}
	return json.Marshal(out)
}

// PairedTTest performs a paired-difference t-test of a against b.
//
// Description:
//
//	Tests whether the mean of a[i]-b[i] differs from zero. Both sequences
//	describe the same subjects, so position i in a and b must refer to the
//	same subject. Degenerate differences are resolved without NaN: all-zero
//	differences give t=0 and p=1, constant non-zero differences give
//	t=±Inf and p=0.
//
// Inputs:
//   - a: Values at the first phase.
//   - b: Values at the second phase. Must have the same length as a.
//   - alpha: Significance level.
//
// Outputs:
//   - *TTestResult: Test results. Positive t means a > b on average.
//   - error: ErrLengthMismatch, ErrInsufficientSamples or ErrMissingValue.
//
// Thread Safety: This function is stateless and safe for concurrent use.
func PairedTTest(a, b []float64, alpha float64) (*TTestResult, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(a), len(b))
	}
	if len(a) < 2 {
		return nil, ErrInsufficientSamples
	}
	if hasNaN(a) || hasNaN(b) {
		return nil, ErrMissingValue
	}

	n := len(a)
	result := &TTestResult{
		N1:                n,
		N2:                n,
		DegreesOfFreedom:  float64(n - 1),
		SignificanceLevel: alpha,
	}

	diff := make([]float64, n)
	for i := range a {
		diff[i] = a[i] - b[i]
	}
	if constant(diff) {
		result.TStatistic, result.PValue = degenerate(diff[0])
		result.Significant = result.PValue < alpha
		return result, nil
	}

	res, err := mstats.PairedTTest(a, b, 0, mstats.LocationDiffers)
	if err != nil {
		return nil, fmt.Errorf("paired t-test: %w", err)
	}
	result.TStatistic = res.T
	result.DegreesOfFreedom = res.DoF
	result.PValue = twoTailedP(res.T, res.DoF)
	result.Significant = result.PValue < alpha
	return result, nil
}

// WelchTTest performs Welch's t-test for two independent sample sets.
//
// Description:
//
//	Welch's t-test does not assume equal population variances. Group sizes
//	may differ. The p-value is derived from |t| so swapping the groups
//	negates t and leaves p unchanged.
//
// Inputs:
//   - samples1: First sample set. Must have at least 2 values.
//   - samples2: Second sample set. Must have at least 2 values.
//   - alpha: Significance level (e.g., 0.05 for 95% confidence).
//
// Outputs:
//   - *TTestResult: Test results with t-statistic, p-value, and df.
//   - error: ErrInsufficientSamples or ErrMissingValue.
//
// Thread Safety: This function is stateless and safe for concurrent use.
func WelchTTest(samples1, samples2 []float64, alpha float64) (*TTestResult, error) {
	if len(samples1) < 2 || len(samples2) < 2 {
		return nil, ErrInsufficientSamples
	}
	if hasNaN(samples1) || hasNaN(samples2) {
		return nil, ErrMissingValue
	}

	s1 := mstats.Sample{Xs: samples1}
	s2 := mstats.Sample{Xs: samples2}
	result := &TTestResult{
		N1:                len(samples1),
		N2:                len(samples2),
		DegreesOfFreedom:  float64(len(samples1) + len(samples2) - 2),
		SignificanceLevel: alpha,
	}

	// Both groups constant: the test reduces to comparing the two values.
	if s1.Variance() == 0 && s2.Variance() == 0 {
		result.TStatistic, result.PValue = degenerate(s1.Mean() - s2.Mean())
		result.Significant = result.PValue < alpha
		return result, nil
	}

	res, err := mstats.TwoSampleWelchTTest(s1, s2, mstats.LocationDiffers)
	if err != nil {
		return nil, fmt.Errorf("welch t-test: %w", err)
	}
	result.TStatistic = res.T
	result.DegreesOfFreedom = res.DoF
	result.PValue = twoTailedP(res.T, res.DoF)
	result.Significant = result.PValue < alpha
	return result, nil
}

// -----------------------------------------------------------------------------
// Helper Functions
// -----------------------------------------------------------------------------

// twoTailedP returns P(|T| >= |t|) for Student's t with dof degrees of freedom.
func twoTailedP(t, dof float64) float64 {
	if math.IsInf(t, 0) {
		return 0
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: dof}
	p := 2 * dist.Survival(math.Abs(t))
	return math.Min(p, 1)
}

// degenerate resolves a test whose standard error is zero.
func degenerate(meanDiff float64) (t, p float64) {
	switch {
	case meanDiff == 0:
		return 0, 1
	case meanDiff > 0:
		return math.Inf(1), 0
	default:
		return math.Inf(-1), 0
	}
}

func constant(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}

func hasNaN(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}
