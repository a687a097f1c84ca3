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
	"errors"
	"fmt"
	"os"

	"github.com/AleutianAI/flightload/pkg/ux"
	"github.com/AleutianAI/flightload/services/workload/analysis"
	"github.com/AleutianAI/flightload/services/workload/artifacts"
	"github.com/AleutianAI/flightload/services/workload/charts"
	"github.com/AleutianAI/flightload/services/workload/report"
	"github.com/AleutianAI/flightload/services/workload/table"
	"github.com/AleutianAI/flightload/services/workload/telemetry"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var validate = validator.New()

// runFlags are shared by analyze and watch.
type runFlags struct {
	dir       string
	sheet     string
	noCharts  bool
	palette   string
	format    string
	store     string
	chartsDir string
	noHistory bool
	missing   string
	strict    bool
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.dir, "dir", "d", "", "data directory; the last .xlsx/.csv by name is analysed (default from config)")
	fs.StringVar(&f.sheet, "sheet", "", "worksheet of an .xlsx input (default: first sheet)")
	fs.BoolVar(&f.noCharts, "no-charts", false, "skip chart rendering")
	fs.StringVar(&f.palette, "palette", "", "chart palette: grayscale or color")
	fs.StringVar(&f.format, "format", "", "chart format: png or svg")
	fs.StringVar(&f.store, "store", "", "artifact store: dir, memory, gcs or s3")
	fs.StringVar(&f.chartsDir, "charts-dir", "", "directory for the dir artifact store")
	fs.BoolVar(&f.noHistory, "no-history", false, "do not record this run in the history store")
	fs.StringVar(&f.missing, "missing", "", "missing value policy: fail or drop")
	fs.BoolVar(&f.strict, "strict", false, "require a subject column instead of pairing by row order")
}

// appOptions layers the flags over the loaded config.
func (f *runFlags) appOptions(c *cli) (appOptions, error) {
	plan := c.cfg.Plan()
	if f.missing != "" {
		plan.Missing = table.MissingPolicy(f.missing)
	}
	if f.strict {
		plan.Strict = true
	}
	if err := plan.Validate(); err != nil {
		return appOptions{}, err
	}

	style := c.cfg.Charts.Style
	if f.palette != "" {
		style.Palette = charts.Palette(f.palette)
	}
	if f.format != "" {
		style.Format = charts.Format(f.format)
	}
	if err := validate.Struct(style); err != nil {
		return appOptions{}, fmt.Errorf("chart style: %w", err)
	}

	store := c.cfg.Artifacts
	if f.store != "" {
		store.Kind = artifacts.Kind(f.store)
	}
	if f.chartsDir != "" {
		store.Dir = f.chartsDir
	}

	return appOptions{
		plan:       plan,
		sheet:      firstNonEmpty(f.sheet, c.cfg.Data.Sheet),
		style:      style,
		skipCharts: f.noCharts || !c.cfg.Charts.Enabled,
		artifacts:  store,
		noHistory:  f.noHistory,
	}, nil
}

func (f *runFlags) dataDir(c *cli) string {
	return firstNonEmpty(f.dir, c.cfg.Data.Dir)
}

type analyzeFlags struct {
	runFlags
	input       string
	exportCSV   string
	metricsFile string
}

func newAnalyzeCmd(c *cli) *cobra.Command {
	var f analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the workload analysis once and print the report",
		Example: `  flightload analyze
  flightload analyze --input flights.xlsx --palette color
  cat crew.csv | flightload analyze --input - --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.runAnalyze(cmd.Context(), f); err != nil {
				return NewCommandError("analyze", err)
			}
			return nil
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "input file, or - for CSV on stdin")
	cmd.Flags().StringVar(&f.exportCSV, "export-csv", "", "write every test row to this CSV file")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "write prometheus metrics to this textfile after the run")
	return cmd
}

func (c *cli) runAnalyze(ctx context.Context, f analyzeFlags) (err error) {
	opts, err := f.appOptions(c)
	if err != nil {
		return err
	}
	opts.metricsFile = f.metricsFile

	a, err := c.newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			c.log().Warn("closing resources", "error", cerr)
		}
	}()

	spinner := ux.NewSpinner(c.stderr, "Analysing crew workload data", ux.IsInteractive() && !c.quiet && !c.jsonOut)
	spinner.Start()
	result, err := a.runner.Run(ctx, f.source(c))
	spinner.Stop()
	if err != nil {
		return err
	}

	if f.exportCSV != "" {
		if err := exportCSV(f.exportCSV, result); err != nil {
			return err
		}
	}
	if f.metricsFile != "" {
		if err := telemetry.WriteMetricsFile(f.metricsFile); err != nil {
			return err
		}
	}

	return OutputResult(c.output(), c.stdout, "analyze", c.started, result, func() {
		p := c.printer()
		report.Text(p, result, a.plan)
		if f.exportCSV != "" {
			p.Success("Test results written to " + f.exportCSV)
		}
	})
}

// source picks stdin, an explicit file or the data directory.
func (f analyzeFlags) source(c *cli) table.Source {
	switch f.input {
	case "-":
		return table.ReaderSource{Name: "stdin.csv", Reader: c.stdin}
	case "":
		return table.DirSource{Dir: f.dataDir(c), Extensions: c.cfg.Data.Extensions}
	default:
		return table.FileSource{Path: f.input}
	}
}

func exportCSV(path string, r *analysis.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	werr := report.WriteCSV(file, r)
	cerr := file.Close()
	if err := errors.Join(werr, cerr); err != nil {
		return fmt.Errorf("export csv %s: %w", path, err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
