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
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapiroWilk_ReferenceValues(t *testing.T) {
	tests := []struct {
		name  string
		xs    []float64
		wantW float64
		wantP float64
	}{
		{
			name:  "equally spaced ten",
			xs:    []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
			wantW: 0.97016,
			wantP: 0.89237,
		},
		{
			name:  "right skewed eleven",
			xs:    []float64{148, 154, 158, 160, 161, 162, 166, 170, 182, 195, 236},
			wantW: 0.78881,
			wantP: 0.00670,
		},
		{
			name:  "exact three",
			xs:    []float64{3, 1, 2},
			wantW: 1,
			wantP: 1,
		},
		{
			name:  "lopsided three",
			xs:    []float64{0, 1, 0},
			wantW: 0.75,
			wantP: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ShapiroWilk(tt.xs)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantW, result.W, 1e-4)
			assert.InDelta(t, tt.wantP, result.PValue, 1e-4)
			assert.Equal(t, len(tt.xs), result.N)
		})
	}
}

func TestShapiroWilk_SkipsNaN(t *testing.T) {
	xs := []float64{1, 2, math.NaN(), 3, 4, 5, 6, 7, 8, 9, 10}
	result, err := ShapiroWilk(xs)
	require.NoError(t, err)
	assert.Equal(t, 10, result.N)
	assert.InDelta(t, 0.97016, result.W, 1e-4)
}

func TestShapiroWilk_Errors(t *testing.T) {
	_, err := ShapiroWilk([]float64{1, 2})
	assert.ErrorIs(t, err, ErrInsufficientSamples)

	_, err = ShapiroWilk([]float64{4, 4, 4, 4})
	assert.ErrorIs(t, err, ErrConstantSample)

	_, err = ShapiroWilk(make([]float64, MaxShapiroSamples+1))
	assert.ErrorIs(t, err, ErrInsufficientSamples)
}

func TestShapiroWilk_InputNotModified(t *testing.T) {
	xs := []float64{5, 3, 9, 1, 7}
	_, err := ShapiroWilk(xs)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 3, 9, 1, 7}, xs)
}

func TestShapiroWilk_NormalSamplesMostlyNormal(t *testing.T) {
	const trials = 40
	normal := 0
	for seed := uint64(1); seed <= trials; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed*7919))
		xs := make([]float64, 50)
		for i := range xs {
			xs[i] = 97 + 1.5*rng.NormFloat64()
		}
		result, err := ShapiroWilk(xs)
		require.NoError(t, err)
		if result.Normal() {
			normal++
		}
	}
	assert.Greater(t, normal, trials/2, "normal samples classified normal in %d of %d trials", normal, trials)
}

func TestShapiroWilk_ExponentialRejected(t *testing.T) {
	rejected := 0
	for seed := uint64(1); seed <= 20; seed++ {
		rng := rand.New(rand.NewPCG(seed, 42))
		xs := make([]float64, 100)
		for i := range xs {
			xs[i] = rng.ExpFloat64()
		}
		result, err := ShapiroWilk(xs)
		require.NoError(t, err)
		if !result.Normal() {
			rejected++
		}
	}
	assert.Greater(t, rejected, 15)
}

func TestPoly(t *testing.T) {
	assert.Equal(t, 1.0, poly([]float64{1}, 3))
	assert.Equal(t, 1.0+2*3+4*9, poly([]float64{1, 2, 4}, 3))
}
