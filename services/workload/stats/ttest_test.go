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
	"math"
	"strings"
	"testing"
)

// -----------------------------------------------------------------------------
// Paired t-test Tests
// -----------------------------------------------------------------------------

func TestPairedTTest(t *testing.T) {
	t.Run("identical sequences", func(t *testing.T) {
		xs := []float64{97, 95, 98, 96, 99}
		result, err := PairedTTest(xs, append([]float64(nil), xs...), 0.05)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.TStatistic != 0 {
			t.Errorf("expected t == 0, got %v", result.TStatistic)
		}
		if result.PValue != 1 {
			t.Errorf("expected p == 1, got %v", result.PValue)
		}
		if result.Significant {
			t.Error("identical sequences must not be significant")
		}
	})

	t.Run("known values", func(t *testing.T) {
		// diffs: 1, 2, 3, 4, 5 -> mean 3, sd sqrt(2.5), t = 3*sqrt(5)/sqrt(2.5)
		pre := []float64{11, 12, 13, 14, 15}
		post := []float64{10, 10, 10, 10, 10}
		result, err := PairedTTest(pre, post, 0.05)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := 3 * math.Sqrt(5) / math.Sqrt(2.5)
		if math.Abs(result.TStatistic-want) > 1e-9 {
			t.Errorf("expected t=%.6f, got %.6f", want, result.TStatistic)
		}
		if result.DegreesOfFreedom != 4 {
			t.Errorf("expected df=4, got %v", result.DegreesOfFreedom)
		}
		// t=4.2426 with 4 df: two-tailed p is about 0.0132
		if math.Abs(result.PValue-0.0132) > 0.001 {
			t.Errorf("expected p near 0.0132, got %.5f", result.PValue)
		}
		if !result.Significant {
			t.Error("expected significant result")
		}
	})

	t.Run("order reverses sign", func(t *testing.T) {
		a := []float64{120, 131, 118, 140, 125, 133}
		b := []float64{110, 128, 121, 126, 119, 130}
		ab, err := PairedTTest(a, b, 0.05)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ba, err := PairedTTest(b, a, 0.05)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ab.TStatistic != -ba.TStatistic {
			t.Errorf("expected opposite statistics, got %v and %v", ab.TStatistic, ba.TStatistic)
		}
		if ab.PValue != ba.PValue {
			t.Errorf("expected equal p, got %v and %v", ab.PValue, ba.PValue)
		}
	})

	t.Run("constant non-zero difference", func(t *testing.T) {
		result, err := PairedTTest([]float64{5, 6, 7}, []float64{4, 5, 6}, 0.05)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !math.IsInf(result.TStatistic, 1) {
			t.Errorf("expected +Inf, got %v", result.TStatistic)
		}
		if result.PValue != 0 {
			t.Errorf("expected p == 0, got %v", result.PValue)
		}
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := PairedTTest([]float64{1, 2, 3}, []float64{1, 2}, 0.05)
		if !errors.Is(err, ErrLengthMismatch) {
			t.Errorf("expected ErrLengthMismatch, got %v", err)
		}
	})

	t.Run("missing value", func(t *testing.T) {
		_, err := PairedTTest([]float64{1, math.NaN(), 3}, []float64{1, 2, 4}, 0.05)
		if !errors.Is(err, ErrMissingValue) {
			t.Errorf("expected ErrMissingValue, got %v", err)
		}
	})

	t.Run("single pair", func(t *testing.T) {
		_, err := PairedTTest([]float64{1}, []float64{2}, 0.05)
		if !errors.Is(err, ErrInsufficientSamples) {
			t.Errorf("expected ErrInsufficientSamples, got %v", err)
		}
	})
}

// -----------------------------------------------------------------------------
// Welch's t-test Tests
// -----------------------------------------------------------------------------

func TestWelchTTest(t *testing.T) {
	pilots := []float64{88, 92, 95, 101, 97}
	copilots := []float64{79, 84, 90, 83, 86, 81}

	t.Run("antisymmetric statistic", func(t *testing.T) {
		ab, err := WelchTTest(pilots, copilots, 0.05)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ba, err := WelchTTest(copilots, pilots, 0.05)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ab.TStatistic != -ba.TStatistic {
			t.Errorf("expected opposite statistics, got %v and %v", ab.TStatistic, ba.TStatistic)
		}
		if ab.PValue != ba.PValue {
			t.Errorf("expected identical p, got %v and %v", ab.PValue, ba.PValue)
		}
		if ab.DegreesOfFreedom != ba.DegreesOfFreedom {
			t.Errorf("expected identical df, got %v and %v", ab.DegreesOfFreedom, ba.DegreesOfFreedom)
		}
		if ab.N1 != 5 || ab.N2 != 6 {
			t.Errorf("expected sizes 5 and 6, got %d and %d", ab.N1, ab.N2)
		}
	})

	t.Run("significant difference", func(t *testing.T) {
		result, err := WelchTTest(pilots, copilots, 0.05)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.TStatistic <= 0 {
			t.Errorf("expected positive t, got %.4f", result.TStatistic)
		}
		if !result.Significant {
			t.Errorf("expected significant difference, got p=%.4f", result.PValue)
		}
	})

	t.Run("df between min group and pooled", func(t *testing.T) {
		result, err := WelchTTest(pilots, copilots, 0.05)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.DegreesOfFreedom < 4 || result.DegreesOfFreedom > 9 {
			t.Errorf("expected df in [4, 9], got %.3f", result.DegreesOfFreedom)
		}
	})

	t.Run("both groups constant", func(t *testing.T) {
		same, err := WelchTTest([]float64{3, 3}, []float64{3, 3, 3}, 0.05)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if same.TStatistic != 0 || same.PValue != 1 {
			t.Errorf("expected t=0 p=1, got t=%v p=%v", same.TStatistic, same.PValue)
		}

		apart, err := WelchTTest([]float64{2, 2}, []float64{3, 3}, 0.05)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !math.IsInf(apart.TStatistic, -1) || apart.PValue != 0 {
			t.Errorf("expected t=-Inf p=0, got t=%v p=%v", apart.TStatistic, apart.PValue)
		}
	})

	t.Run("insufficient samples", func(t *testing.T) {
		_, err := WelchTTest([]float64{1}, []float64{1, 2, 3}, 0.05)
		if !errors.Is(err, ErrInsufficientSamples) {
			t.Errorf("expected ErrInsufficientSamples, got %v", err)
		}
	})
}

func TestTTestResult_MarshalJSON(t *testing.T) {
	finite, err := json.Marshal(TTestResult{TStatistic: 2.5, PValue: 0.03, N1: 5, N2: 5})
	if err != nil {
		t.Fatalf("marshal finite: %v", err)
	}
	if !strings.Contains(string(finite), `"t":2.5`) {
		t.Errorf("finite t encoded as %s", finite)
	}

	inf, err := json.Marshal(&TTestResult{TStatistic: math.Inf(-1)})
	if err != nil {
		t.Fatalf("marshal -Inf: %v", err)
	}
	if !strings.Contains(string(inf), `"t":"-Inf"`) {
		t.Errorf("infinite t encoded as %s", inf)
	}
	if strings.Count(string(inf), `"t":`) != 1 {
		t.Errorf("t encoded twice: %s", inf)
	}
}
