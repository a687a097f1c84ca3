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
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/flightload/services/workload/table"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidPlan indicates a plan that cannot be executed.
var ErrInvalidPlan = errors.New("invalid analysis plan")

// Measure is one physiological or subjective variable sampled per phase.
type Measure struct {
	// Name is the column prefix, e.g. "spo2" for spo2_pre.
	Name string `yaml:"name" json:"name" validate:"required"`

	// Label is the axis and report label.
	Label string `yaml:"label" json:"label"`

	// Phases lists the sampled phases in chronological order.
	Phases []string `yaml:"phases" json:"phases" validate:"required,min=1,dive,required"`
}

// ChartKind selects a chart renderer.
type ChartKind string

const (
	ChartBox    ChartKind = "box"
	ChartViolin ChartKind = "violin"
	ChartLines  ChartKind = "lines"
	ChartBar    ChartKind = "bar"
)

// ChartSpec describes one chart to render.
type ChartSpec struct {
	// Name is the artifact base name, e.g. "spo2_box".
	Name string `yaml:"name" json:"name" validate:"required"`

	Kind ChartKind `yaml:"kind" json:"kind" validate:"required,oneof=box violin lines bar"`

	Title string `yaml:"title" json:"title"`

	// Measure is used by box, violin and lines charts.
	Measure string `yaml:"measure,omitempty" json:"measure,omitempty"`

	// Column is used by bar charts (mean per group).
	Column string `yaml:"column,omitempty" json:"column,omitempty"`
}

// Plan is the full description of one analysis run.
//
// Description:
//
//	DefaultPlan reproduces the standard crew workload analysis. A plan
//	loaded from configuration replaces it wholesale.
type Plan struct {
	RoleColumn    string              `yaml:"role_column" json:"role_column" validate:"required"`
	SubjectColumn string              `yaml:"subject_column" json:"subject_column" validate:"required"`
	Groups        []string            `yaml:"groups" json:"groups" validate:"len=2,dive,required"`
	Alpha         float64             `yaml:"alpha" json:"alpha" validate:"gt=0,lt=1"`
	Missing       table.MissingPolicy `yaml:"missing" json:"missing" validate:"oneof=fail drop"`
	Strict        bool                `yaml:"strict" json:"strict"`
	Measures      []Measure           `yaml:"measures" json:"measures" validate:"required,min=1,dive"`

	// Paired maps a measure name to the phase pairs to compare.
	Paired map[string][][]string `yaml:"paired" json:"paired"`

	// GroupTests lists the columns compared between the two groups.
	GroupTests []string `yaml:"group_tests" json:"group_tests"`

	// NarrativeColumn gets a sentence with both group means.
	NarrativeColumn string `yaml:"narrative_column" json:"narrative_column"`

	// EffectSizeColumn gets Cohen's d between the groups.
	EffectSizeColumn string `yaml:"effect_size_column" json:"effect_size_column"`

	Charts []ChartSpec `yaml:"charts" json:"charts" validate:"dive"`
}

// DefaultPlan returns the standard analysis: SpO2, heart rate and fatigue
// for pilots against copilots.
func DefaultPlan() Plan {
	threePhase := [][]string{{"pre", "in"}, {"in", "post"}, {"pre", "post"}}
	return Plan{
		RoleColumn:    table.DefaultRoleColumn,
		SubjectColumn: table.DefaultSubjectColumn,
		Groups:        []string{"pilot", "copilot"},
		Alpha:         0.05,
		Missing:       table.MissingFail,
		Measures: []Measure{
			{Name: "spo2", Label: "Oxygen Saturation (%)", Phases: []string{"pre", "in", "post"}},
			{Name: "bpm", Label: "Heart Rate (BPM)", Phases: []string{"pre", "in", "post"}},
			{Name: "fatigue", Label: "Samn-Perelli Fatigue Score", Phases: []string{"pre", "post"}},
		},
		Paired: map[string][][]string{
			"spo2":    threePhase,
			"bpm":     threePhase,
			"fatigue": {{"pre", "post"}},
		},
		GroupTests: []string{
			"bpm_pre",
			"spo2_pre", "spo2_in", "spo2_post",
			"fatigue_pre", "fatigue_post",
		},
		NarrativeColumn:  "bpm_pre",
		EffectSizeColumn: "bpm_pre",
		Charts: []ChartSpec{
			{Name: "spo2_box", Kind: ChartBox, Measure: "spo2", Title: "SpO2 Across Flight Phases"},
			{Name: "bpm_box", Kind: ChartBox, Measure: "bpm", Title: "Heart Rate Across Flight Phases"},
			{Name: "fatigue_violin", Kind: ChartViolin, Measure: "fatigue", Title: "Fatigue Before and After Flight"},
			{Name: "spo2_subjects", Kind: ChartLines, Measure: "spo2", Title: "Individual SpO2 Trajectories"},
			{Name: "bpm_pre_by_role", Kind: ChartBar, Column: "bpm_pre", Title: "Pre-Flight Heart Rate by Role"},
		},
	}
}

// Measure returns the measure with the given name.
func (p Plan) Measure(name string) (Measure, bool) {
	for _, m := range p.Measures {
		if m.Name == name {
			return m, true
		}
	}
	return Measure{}, false
}

// Label returns the display label of a measure, falling back to its name.
func (p Plan) Label(name string) string {
	if m, ok := p.Measure(name); ok && m.Label != "" {
		return m.Label
	}
	return name
}

// RequiredColumns lists every numeric column the plan reads, deduplicated,
// in first-use order.
func (p Plan) RequiredColumns() []string {
	var cols []string
	seen := map[string]bool{}
	add := func(c string) {
		if c != "" && !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	for _, m := range p.Measures {
		for _, pair := range p.Paired[m.Name] {
			add(table.ColumnName(m.Name, pair[0]))
			add(table.ColumnName(m.Name, pair[1]))
		}
	}
	for _, c := range p.GroupTests {
		add(c)
	}
	add(p.NarrativeColumn)
	add(p.EffectSizeColumn)
	for _, c := range p.Charts {
		if c.Kind == ChartBar {
			add(c.Column)
			continue
		}
		if m, ok := p.Measure(c.Measure); ok {
			for _, phase := range m.Phases {
				add(table.ColumnName(m.Name, phase))
			}
		}
	}
	return cols
}

// PairedCount returns the number of paired tests the plan runs.
func (p Plan) PairedCount() int {
	n := 0
	for _, m := range p.Measures {
		n += len(p.Paired[m.Name])
	}
	return n
}

var validate = validator.New()

// Validate checks the plan's structure and cross references.
func (p Plan) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	for name, pairs := range p.Paired {
		m, ok := p.Measure(name)
		if !ok {
			return fmt.Errorf("%w: paired tests for undeclared measure %q", ErrInvalidPlan, name)
		}
		for _, pair := range pairs {
			if len(pair) != 2 {
				return fmt.Errorf("%w: %s pair %v must name two phases", ErrInvalidPlan, name, pair)
			}
			for _, phase := range pair {
				if !contains(m.Phases, phase) {
					return fmt.Errorf("%w: %s has no phase %q", ErrInvalidPlan, name, phase)
				}
			}
		}
	}
	for _, c := range p.Charts {
		switch c.Kind {
		case ChartBar:
			if c.Column == "" {
				return fmt.Errorf("%w: bar chart %q needs a column", ErrInvalidPlan, c.Name)
			}
		default:
			if _, ok := p.Measure(c.Measure); !ok {
				return fmt.Errorf("%w: chart %q references unknown measure %q", ErrInvalidPlan, c.Name, c.Measure)
			}
		}
	}
	return nil
}

var phaseLabels = map[string]string{
	"pre":  "Pre-flight",
	"in":   "In-flight",
	"post": "Post-flight",
}

// PhaseLabel returns the display name of a phase.
func PhaseLabel(phase string) string {
	if l, ok := phaseLabels[phase]; ok {
		return l
	}
	return Capitalize(phase)
}

// Capitalize upper-cases the first letter of s.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// SplitColumn splits a {measure}_{phase} column against the plan's
// measures. ok is false when no declared measure matches.
func (p Plan) SplitColumn(column string) (measure, phase string, ok bool) {
	for _, m := range p.Measures {
		for _, ph := range m.Phases {
			if table.ColumnName(m.Name, ph) == column {
				return m.Name, ph, true
			}
		}
	}
	return "", "", false
}

// ColumnLabel names a measure column for display, e.g.
// "Pre-flight Heart Rate (BPM)". Unknown columns are returned as is.
func (p Plan) ColumnLabel(column string) string {
	measure, phase, ok := p.SplitColumn(column)
	if !ok {
		return column
	}
	return PhaseLabel(phase) + " " + p.Label(measure)
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
