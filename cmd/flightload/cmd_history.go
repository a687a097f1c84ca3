// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/flightload/pkg/ux"
	"github.com/AleutianAI/flightload/services/workload/history"
	"github.com/spf13/cobra"
)

// HistoryListResult holds history list output.
type HistoryListResult struct {
	Runs  []history.Record `json:"runs"`
	Count int              `json:"count"`
}

func newHistoryListCmd(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List recent runs, newest first",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			hs, err := c.openHistory(false)
			if err != nil {
				return NewCommandError("history list", err)
			}
			defer hs.Close()

			runs, err := hs.List(cmd.Context(), limit)
			if err != nil {
				return NewCommandError("history list", err)
			}
			return OutputResult(c.output(), c.stdout, "history list", c.started,
				HistoryListResult{Runs: runs, Count: len(runs)},
				func() { printRuns(c.printer(), runs) })
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list (0 for all)")
	return cmd
}

func newHistoryShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hs, err := c.openHistory(false)
			if err != nil {
				return NewCommandError("history show", err)
			}
			defer hs.Close()

			rec, err := hs.Get(cmd.Context(), args[0])
			if err != nil {
				return NewCommandError("history show", err)
			}
			return OutputResult(c.output(), c.stdout, "history show", c.started, rec,
				func() { printRecord(c.printer(), rec) })
		},
	}
}

func newHistoryDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete one stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hs, err := c.openHistory(false)
			if err != nil {
				return NewCommandError("history delete", err)
			}
			defer hs.Close()

			if err := hs.Delete(cmd.Context(), args[0]); err != nil {
				return NewCommandError("history delete", err)
			}
			return OutputResult(c.output(), c.stdout, "history delete", c.started,
				map[string]string{"run_id": args[0]},
				func() { c.printer().Success("Deleted run " + args[0]) })
		},
	}
}

func printRuns(p *ux.Printer, runs []history.Record) {
	if len(runs) == 0 {
		p.Info("No runs recorded yet.")
		p.Hint("flightload analyze")
		return
	}
	p.Title("Analysis History")
	for _, r := range runs {
		c := r.Counts
		line := fmt.Sprintf("%s  %s  %s  paired=%d group=%d charts=%d",
			r.RunID, r.StartedAt.Local().Format(time.DateTime), r.Source, c.Paired, c.Group, c.Charts)
		if c.TestFailures+c.ChartFailures > 0 {
			line += fmt.Sprintf(" failures=%d", c.TestFailures+c.ChartFailures)
		}
		p.Bullet(line)
	}
	p.Hint("flightload history show <run-id>")
}

func printRecord(p *ux.Printer, r history.Record) {
	c := r.Counts
	lines := []string{
		"Source:   " + r.Source,
		"Started:  " + r.StartedAt.Local().Format(time.DateTime),
		"Duration: " + r.Duration.Round(time.Millisecond).String(),
		fmt.Sprintf("Tests:    %d paired, %d group, %d normality, %d effect sizes",
			c.Paired, c.Group, c.Normality, c.EffectSizes),
		fmt.Sprintf("Charts:   %d rendered, %d failed", c.Charts, c.ChartFailures),
	}
	if r.Digest != "" {
		lines = append(lines, "SHA-256:  "+r.Digest)
	}
	if len(r.Significant) > 0 {
		lines = append(lines, "Significant group differences: "+strings.Join(r.Significant, ", "))
	}
	p.Box("Run "+r.RunID, lines...)
	for _, k := range r.ChartKeys {
		p.Bullet(k)
	}
	if len(r.Warnings) > 0 {
		p.WarningBox("Warnings", r.Warnings...)
	}
}
