// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultPlan(t *testing.T) {
	p := DefaultPlan()
	require.NoError(t, p.Validate())

	assert.Equal(t, 7, p.PairedCount())
	assert.Len(t, p.GroupTests, 6)
	assert.Len(t, p.Charts, 5)
	assert.Equal(t, "Heart Rate (BPM)", p.Label("bpm"))
	assert.Equal(t, "hrv", p.Label("hrv"))

	cols := p.RequiredColumns()
	assert.ElementsMatch(t, []string{
		"spo2_pre", "spo2_in", "spo2_post",
		"bpm_pre", "bpm_in", "bpm_post",
		"fatigue_pre", "fatigue_post",
	}, cols)
}

func TestPlan_ValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Plan)
	}{
		{"alpha out of range", func(p *Plan) { p.Alpha = 1.5 }},
		{"three groups", func(p *Plan) { p.Groups = []string{"pilot", "copilot", "crew chief"} }},
		{"unknown policy", func(p *Plan) { p.Missing = "impute" }},
		{"no measures", func(p *Plan) { p.Measures = nil }},
		{"undeclared measure", func(p *Plan) { p.Paired["hrv"] = [][]string{{"pre", "post"}} }},
		{"unknown phase", func(p *Plan) { p.Paired["fatigue"] = [][]string{{"pre", "in"}} }},
		{"pair of one", func(p *Plan) { p.Paired["bpm"] = [][]string{{"pre"}} }},
		{"bar without column", func(p *Plan) { p.Charts[4].Column = "" }},
		{"chart unknown measure", func(p *Plan) { p.Charts[0].Measure = "hrv" }},
		{"chart unknown kind", func(p *Plan) { p.Charts[0].Kind = "pie" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPlan()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidPlan)
		})
	}
}

func TestPlan_YAMLRoundTrip(t *testing.T) {
	src := `
role_column: role
subject_column: crew_id
groups: [pilot, copilot]
alpha: 0.01
missing: drop
measures:
  - {name: bpm, label: "Heart Rate", phases: [pre, post]}
paired:
  bpm: [[pre, post]]
group_tests: [bpm_pre]
effect_size_column: bpm_pre
charts:
  - {name: bpm_box, kind: box, measure: bpm}
`
	var p Plan
	require.NoError(t, yaml.Unmarshal([]byte(src), &p))
	require.NoError(t, p.Validate())
	assert.Equal(t, "crew_id", p.SubjectColumn)
	assert.Equal(t, 1, p.PairedCount())
	assert.Equal(t, []string{"bpm_pre", "bpm_post"}, p.RequiredColumns())
}

func TestClassifyNormality(t *testing.T) {
	assert.Equal(t, Normal, ClassifyNormality(0.2))
	assert.Equal(t, NonNormal, ClassifyNormality(0.05))
	assert.Equal(t, NonNormal, ClassifyNormality(0.01))
	assert.Equal(t, NonNormal, ClassifyNormality(1e-6))
}

func TestResult_Counts(t *testing.T) {
	r := &Result{
		Paired:    []TestRow{{Result: nil, Error: "boom"}, {Kind: KindPaired}},
		Group:     []TestRow{{Kind: KindGroup}},
		Normality: []NormalityRow{{Column: "bpm_pre"}},
		Effect:    &EffectRow{},
		Charts:    []ChartRow{{Name: "a"}, {Name: "b", Error: "render failed"}},
	}
	c := r.Counts()
	assert.Equal(t, 2, c.Paired)
	assert.Equal(t, 1, c.Group)
	assert.Equal(t, 1, c.Normality)
	assert.Equal(t, 1, c.EffectSizes)
	assert.Equal(t, 1, c.Charts)
	assert.Equal(t, 1, c.ChartFailures)
	assert.Equal(t, 3, c.TestFailures)
}

func TestPhaseLabel(t *testing.T) {
	assert.Equal(t, "Post-flight", PhaseLabel("post"))
	assert.Equal(t, "Cruise", PhaseLabel("cruise"))
	assert.Equal(t, "", Capitalize(""))
}

func TestPlan_SplitColumn(t *testing.T) {
	p := DefaultPlan()
	m, ph, ok := p.SplitColumn("spo2_in")
	require.True(t, ok)
	assert.Equal(t, "spo2", m)
	assert.Equal(t, "in", ph)

	_, _, ok = p.SplitColumn("fatigue_in")
	assert.False(t, ok)
}

func TestPlan_ColumnLabel(t *testing.T) {
	p := DefaultPlan()
	assert.Equal(t, "Pre-flight Heart Rate (BPM)", p.ColumnLabel("bpm_pre"))
	assert.Equal(t, "Post-flight Samn-Perelli Fatigue Score", p.ColumnLabel("fatigue_post"))
	assert.Equal(t, "hrv_pre", p.ColumnLabel("hrv_pre"))
}
