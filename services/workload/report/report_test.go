// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"bytes"
	"encoding/csv"
	"math"
	"strings"
	"testing"

	"github.com/AleutianAI/flightload/pkg/ux"
	"github.com/AleutianAI/flightload/services/workload/analysis"
	"github.com/AleutianAI/flightload/services/workload/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPValue(t *testing.T) {
	tests := []struct {
		p    float64
		want string
	}{
		{0.5, "0.5000"},
		{0.0132, "0.0132"},
		{1e-4, "0.0001"},
		{9.9e-5, "9.90e-05"},
		{1.234e-7, "1.23e-07"},
		{0, "0.00e+00"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, PValue(tt.p))
		})
	}
}

func TestStat(t *testing.T) {
	assert.Equal(t, "4.24", Stat(4.2426))
	assert.Equal(t, "-3.10", Stat(-3.1))
	assert.Equal(t, "+Inf", Stat(math.Inf(1)))
}

func TestNormalityLine(t *testing.T) {
	tests := []struct {
		name string
		row  analysis.NormalityRow
		want string
	}{
		{
			name: "normal",
			row:  analysis.NormalityRow{Column: "bpm_pre", Result: &stats.NormalityResult{W: 0.97, PValue: 0.89}, Class: analysis.Normal},
			want: "bpm_pre: W = 0.9700, p = 0.8900 → Normal",
		},
		{
			name: "boundary is non-normal",
			row:  analysis.NormalityRow{Column: "spo2_in", Result: &stats.NormalityResult{W: 0.81, PValue: 0.02}, Class: analysis.NonNormal},
			want: "spo2_in: W = 0.8100, p = 0.0200 → Non-normal",
		},
		{
			name: "scientific",
			row:  analysis.NormalityRow{Column: "fatigue_pre", Result: &stats.NormalityResult{W: 0.5, PValue: 3e-6}, Class: analysis.NonNormal},
			want: "fatigue_pre: W = 0.5000, p = 3.00e-06 → Non-normal",
		},
		{
			name: "inconclusive",
			row:  analysis.NormalityRow{Column: "id", Class: analysis.Inconclusive, Error: "all values are identical"},
			want: "id: n/a (all values are identical)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalityLine(tt.row))
		})
	}
}

func TestTestLine(t *testing.T) {
	ok := analysis.TestRow{
		Result:  &stats.TTestResult{TStatistic: 2.1, PValue: 0.065},
		Dropped: []string{"s3"},
	}
	assert.Equal(t, "t = 2.10, p = 0.0650 (1 dropped: s3)", TestLine(ok))

	failed := analysis.TestRow{Error: "insufficient samples for statistical analysis"}
	assert.Equal(t, "n/a (insufficient samples for statistical analysis)", TestLine(failed))
}

func TestSentence(t *testing.T) {
	n := analysis.Narrative{GroupA: "pilot", GroupB: "copilot", MeanA: 72.44, MeanB: 78.0, Significant: true}
	res := &stats.TTestResult{TStatistic: -2.714, PValue: 0.027}

	got := Sentence(n, "pre-flight heart rate", res)
	assert.Equal(t, "A statistically significant difference was found between pilots and copilots in pre-flight heart rate "+
		"(M_pilot = 72.4, M_copilot = 78.0), Welch's t = -2.71, p = 0.0270.", got)

	n.Significant = false
	assert.True(t, strings.HasPrefix(Sentence(n, "x", res), "No statistically significant difference"))
}

func sampleResult() *analysis.Result {
	return &analysis.Result{
		RunID:   "run-1",
		Source:  "crew.csv",
		Columns: []string{"subject", "role", "bpm_pre", "bpm_in"},
		Rows:    4,
		Paired: []analysis.TestRow{{
			Kind: analysis.KindPaired, Measure: "bpm", ColumnA: "bpm_pre", ColumnB: "bpm_in",
			PhaseA: "pre", PhaseB: "in", Comparison: "pre vs in",
			Result: &stats.TTestResult{TStatistic: -5.5, PValue: 0.0118, DegreesOfFreedom: 3, N1: 4, N2: 4, Significant: true},
		}},
		Group: []analysis.TestRow{
			{
				Kind: analysis.KindGroup, Measure: "bpm", ColumnA: "bpm_pre", PhaseA: "pre", Comparison: "pilot vs copilot",
				Result: &stats.TTestResult{TStatistic: math.Inf(-1), PValue: 0, DegreesOfFreedom: 2, N1: 2, N2: 2, Significant: true},
			},
			{Kind: analysis.KindGroup, Measure: "spo2", ColumnA: "spo2_pre", PhaseA: "pre", Error: "insufficient samples for statistical analysis"},
		},
		Narrative: &analysis.Narrative{Column: "bpm_pre", Text: "A statistically significant difference was found."},
		Normality: []analysis.NormalityRow{{Column: "bpm_pre", Result: &stats.NormalityResult{W: 0.9, PValue: 0.4, N: 4}, Class: analysis.Normal}},
		Effect:    &analysis.EffectRow{Column: "bpm_pre", GroupA: "pilot", GroupB: "copilot", D: -1.2, Category: "large"},
		Charts: []analysis.ChartRow{
			{Name: "bpm_box", Kind: analysis.ChartBox, Key: "run-1/bpm_box.png", Bytes: 100},
			{Name: "bpm_pre_by_role", Kind: analysis.ChartBar, Error: "chart has no values to draw"},
		},
		Warnings: []string{"history: database locked"},
	}
}

func TestText_Machine(t *testing.T) {
	var out, errOut bytes.Buffer
	p := &ux.Printer{Out: &out, Err: &errOut, Level: ux.PersonalityMachine}

	Text(p, sampleResult(), analysis.DefaultPlan())
	s := out.String()

	heart := strings.Index(s, "Heart Rate (BPM):")
	group := strings.Index(s, "Pilot vs Copilot (Heart Rate (BPM)):")
	spo2 := strings.Index(s, "Pilot vs Copilot (Oxygen Saturation (%)):")
	normality := strings.Index(s, "Shapiro-Wilk Normality Test:")
	effect := strings.Index(s, "Effect Size (Cohen's d):")
	require.True(t, heart >= 0 && group > heart && spo2 > group && normality > spo2 && effect > normality, s)

	assert.Contains(t, s, "Columns: subject, role, bpm_pre, bpm_in")
	assert.Contains(t, s, "Pre-flight vs In-flight:")
	assert.Contains(t, s, "t = -5.50, p = 0.0118")
	assert.Contains(t, s, "t = -Inf, p = 0.00e+00")
	assert.Contains(t, s, "A statistically significant difference was found.")
	assert.Contains(t, s, "bpm_pre (pilot vs copilot): d = -1.20 (large)")
	assert.Contains(t, s, "SUMMARY: paired=1 group=2 normality=1 effect_sizes=1 charts=1 test_failures=1 chart_failures=1")

	assert.Contains(t, errOut.String(), "ERROR: bpm_pre_by_role: chart has no values to draw")
	assert.Contains(t, errOut.String(), "WARN: history: database locked")
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleResult()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, CSVHeader, records[0])

	assert.Equal(t, []string{"paired", "bpm", "pre vs in", "bpm_pre", "bpm_in", "-5.5", "0.0118", "3", "4", "4", "true", "", ""}, records[1])
	assert.Equal(t, "-Inf", records[2][5])
	assert.Equal(t, "", records[3][5])
	assert.Equal(t, "insufficient samples for statistical analysis", records[3][12])
}
