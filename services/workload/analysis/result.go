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
	"time"

	"github.com/AleutianAI/flightload/services/workload/stats"
)

// -----------------------------------------------------------------------------
// Test rows
// -----------------------------------------------------------------------------

// TestKind distinguishes within-subject and between-group tests.
type TestKind string

const (
	KindPaired TestKind = "paired"
	KindGroup  TestKind = "group"
)

// TestRow is one t-test in the report.
type TestRow struct {
	Kind    TestKind `json:"kind"`
	Measure string   `json:"measure"`
	Label   string   `json:"label"`
	ColumnA string   `json:"column_a"`
	ColumnB string   `json:"column_b,omitempty"`

	// PhaseA and PhaseB are the compared phases of a paired row. Group rows
	// set PhaseA to the phase of ColumnA.
	PhaseA string `json:"phase_a,omitempty"`
	PhaseB string `json:"phase_b,omitempty"`

	// Comparison names the compared sides: "pre vs in" or "pilot vs copilot".
	Comparison string `json:"comparison"`

	Result *stats.TTestResult `json:"result,omitempty"`

	// Dropped lists subjects excluded for missing values.
	Dropped []string `json:"dropped,omitempty"`

	// Error is set when the test could not be computed.
	Error string `json:"error,omitempty"`
}

// OK reports whether the row carries a result.
func (r TestRow) OK() bool {
	return r.Result != nil && r.Error == ""
}

// NormalityClass is the two-way normality verdict.
type NormalityClass string

const (
	Normal       NormalityClass = "Normal"
	NonNormal    NormalityClass = "Non-normal"
	Inconclusive NormalityClass = "n/a"
)

// ClassifyNormality maps a Shapiro-Wilk p-value to a class. Only p > 0.05
// is normal; everything at or below, including [1e-4, 0.05], is not.
func ClassifyNormality(p float64) NormalityClass {
	if p > stats.NormalThreshold {
		return Normal
	}
	return NonNormal
}

// NormalityRow is the normality verdict for one numeric column.
type NormalityRow struct {
	Column string                 `json:"column"`
	Result *stats.NormalityResult `json:"result,omitempty"`
	Class  NormalityClass         `json:"class"`
	Error  string                 `json:"error,omitempty"`
}

// EffectRow is Cohen's d between the two groups on one column.
type EffectRow struct {
	Column   string  `json:"column"`
	GroupA   string  `json:"group_a"`
	GroupB   string  `json:"group_b"`
	D        float64 `json:"d"`
	Category string  `json:"category,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// Narrative is the plain-language summary of one group comparison.
type Narrative struct {
	Column      string  `json:"column"`
	GroupA      string  `json:"group_a"`
	GroupB      string  `json:"group_b"`
	MeanA       float64 `json:"mean_a"`
	MeanB       float64 `json:"mean_b"`
	Significant bool    `json:"significant"`
	Text        string  `json:"text"`
}

// Descriptive is the summary of one column within one group. Group is
// empty for the whole table.
type Descriptive struct {
	Column  string        `json:"column"`
	Group   string        `json:"group,omitempty"`
	Summary stats.Summary `json:"summary"`
}

// ChartRow records one rendered chart.
type ChartRow struct {
	Name string    `json:"name"`
	Kind ChartKind `json:"kind"`
	Key  string    `json:"key,omitempty"`

	// Location is where the store put the chart: a path or URL.
	Location string `json:"location,omitempty"`

	Bytes int    `json:"bytes,omitempty"`
	Error string `json:"error,omitempty"`
}

// -----------------------------------------------------------------------------
// Result
// -----------------------------------------------------------------------------

// Result is everything one run produced.
type Result struct {
	RunID     string        `json:"run_id"`
	Source    string        `json:"source"`
	Digest    string        `json:"digest,omitempty"`
	Columns   []string      `json:"columns"`
	Rows      int           `json:"rows"`
	RowKeyed  bool          `json:"row_keyed"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`

	Paired       []TestRow      `json:"paired"`
	Group        []TestRow      `json:"group"`
	Normality    []NormalityRow `json:"normality"`
	Effect       *EffectRow     `json:"effect,omitempty"`
	Narrative    *Narrative     `json:"narrative,omitempty"`
	Descriptives []Descriptive  `json:"descriptives,omitempty"`
	Charts       []ChartRow     `json:"charts"`

	// Warnings collects non-fatal problems (publish failures, ignored roles).
	Warnings []string `json:"warnings,omitempty"`
}

// Counts summarises how many results of each kind a run produced.
type Counts struct {
	Paired        int `json:"paired"`
	Group         int `json:"group"`
	Normality     int `json:"normality"`
	EffectSizes   int `json:"effect_sizes"`
	Charts        int `json:"charts"`
	ChartFailures int `json:"chart_failures"`
	TestFailures  int `json:"test_failures"`
}

// Counts tallies the result.
func (r *Result) Counts() Counts {
	c := Counts{
		Paired:    len(r.Paired),
		Group:     len(r.Group),
		Normality: len(r.Normality),
	}
	if r.Effect != nil {
		c.EffectSizes = 1
	}
	for _, row := range append(append([]TestRow(nil), r.Paired...), r.Group...) {
		if !row.OK() {
			c.TestFailures++
		}
	}
	for _, ch := range r.Charts {
		if ch.Error != "" {
			c.ChartFailures++
			continue
		}
		c.Charts++
	}
	return c
}

// Descriptive returns the summary for a column and group, if computed.
func (r *Result) Descriptive(column, group string) (stats.Summary, bool) {
	for _, d := range r.Descriptives {
		if d.Column == column && d.Group == group {
			return d.Summary, true
		}
	}
	return stats.Summary{}, false
}
