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
	"context"
	"time"

	"github.com/AleutianAI/flightload/services/workload/report"
	"github.com/AleutianAI/flightload/services/workload/table"
	"github.com/AleutianAI/flightload/services/workload/watch"
	"github.com/spf13/cobra"
)

type watchFlags struct {
	runFlags
	debounce time.Duration
}

func newWatchCmd(c *cli) *cobra.Command {
	var f watchFlags
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the analysis whenever the data directory changes",
		Long: `watch analyses the data directory once, then again each time a .xlsx
or .csv file in it is written. Changes made while an analysis is running
are combined into one follow-up run. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.runWatch(cmd.Context(), f); err != nil {
				return NewCommandError("watch", err)
			}
			return nil
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().DurationVar(&f.debounce, "debounce", 0, "quiet period before a run (default from config, 500ms)")
	return cmd
}

func (c *cli) runWatch(ctx context.Context, f watchFlags) error {
	opts, err := f.appOptions(c)
	if err != nil {
		return err
	}
	opts.longLived = true

	a, err := c.newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			c.log().Warn("closing resources", "error", cerr)
		}
	}()

	dir := f.dataDir(c)
	src := table.DirSource{Dir: dir, Extensions: c.cfg.Data.Extensions}
	out := c.output()
	// One envelope per line so each run is a separate JSON document.
	out.Compact = true

	debounce := f.debounce
	if debounce <= 0 {
		debounce = c.cfg.Watch.Debounce
	}

	w, err := watch.New(dir, func(ctx context.Context, changes []watch.Change) {
		start := time.Now()
		result, err := a.runner.Run(ctx, src)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			OutputError(out, c.stdout, c.stderr, "watch", start, NewCommandError("watch", err))
			return
		}
		_ = OutputResult(out, c.stdout, "watch", start, result, func() {
			report.Text(c.printer(), result, a.plan)
		})
	}, watch.Options{
		Debounce:   debounce,
		Extensions: c.cfg.Data.Extensions,
		RunOnStart: true,
		Logger:     c.log(),
	})
	if err != nil {
		return err
	}
	if !c.quiet && !c.jsonOut {
		c.printer().Info("Watching " + dir + " (Ctrl-C to stop)")
	}
	return w.Run(ctx)
}
