// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report formats analysis results for people and spreadsheets.
package report

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/flightload/services/workload/analysis"
	"github.com/AleutianAI/flightload/services/workload/stats"
)

// Stat formats a test statistic with two decimals.
func Stat(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// PValue formats p with four decimals, or in scientific notation below
// 1e-4 where four decimals would read as zero.
func PValue(p float64) string {
	if p < stats.ScientificThreshold {
		return fmt.Sprintf("%.2e", p)
	}
	return fmt.Sprintf("%.4f", p)
}

// TestLine renders "t = 2.10, p = 0.0650" plus drop and error notes.
func TestLine(row analysis.TestRow) string {
	if !row.OK() {
		return "n/a (" + row.Error + ")"
	}
	line := fmt.Sprintf("t = %s, p = %s", Stat(row.Result.TStatistic), PValue(row.Result.PValue))
	if n := len(row.Dropped); n > 0 {
		line += fmt.Sprintf(" (%d dropped: %s)", n, strings.Join(row.Dropped, ", "))
	}
	return line
}

// PairedLabel names the phases of a paired row: "Pre-flight vs In-flight".
func PairedLabel(row analysis.TestRow) string {
	return analysis.PhaseLabel(row.PhaseA) + " vs " + analysis.PhaseLabel(row.PhaseB)
}

// GroupLabel names the phase of a group row, falling back to its column.
func GroupLabel(row analysis.TestRow) string {
	if row.PhaseA == "" {
		return row.ColumnA
	}
	return analysis.PhaseLabel(row.PhaseA)
}

// NormalityLine renders one Shapiro-Wilk verdict. p below 1e-4 is shown in
// scientific notation and is always non-normal.
func NormalityLine(row analysis.NormalityRow) string {
	if row.Result == nil {
		return fmt.Sprintf("%s: %s (%s)", row.Column, analysis.Inconclusive, row.Error)
	}
	return fmt.Sprintf("%s: W = %.4f, p = %s → %s", row.Column, row.Result.W, PValue(row.Result.PValue), row.Class)
}

// EffectLine renders Cohen's d with its magnitude.
func EffectLine(row analysis.EffectRow) string {
	if row.Error != "" {
		return fmt.Sprintf("%s (%s vs %s): n/a (%s)", row.Column, row.GroupA, row.GroupB, row.Error)
	}
	return fmt.Sprintf("%s (%s vs %s): d = %s (%s)", row.Column, row.GroupA, row.GroupB, Stat(row.D), row.Category)
}

// Sentence is the plain-language summary of a group comparison.
//
// Description:
//
//	It states both group means and whether the difference is significant
//	at the test's alpha. Means use one decimal.
func Sentence(n analysis.Narrative, subject string, res *stats.TTestResult) string {
	verdict := "No statistically significant difference was found"
	if n.Significant {
		verdict = "A statistically significant difference was found"
	}
	return fmt.Sprintf("%s between %ss and %ss in %s (M_%s = %.1f, M_%s = %.1f), Welch's t = %s, p = %s.",
		verdict, n.GroupA, n.GroupB, subject,
		n.GroupA, n.MeanA, n.GroupB, n.MeanB,
		Stat(res.TStatistic), PValue(res.PValue))
}
