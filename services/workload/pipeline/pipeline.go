// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline runs one crew workload analysis end to end.
//
// A run moves through fixed stages, each consuming what the previous one
// left on the RunContext:
//
//	load -> validate -> paired -> group -> narrative -> normality
//	     -> effect -> descriptives -> charts -> publish
//
// Load and validate errors (FileNotFound, MissingColumn, MalformedData)
// are fatal and no result is returned. Statistical boundary errors are
// attached to the affected row. Chart, artifact and publisher failures
// are recorded on the result and never change the statistics.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/flightload/services/workload/analysis"
	"github.com/AleutianAI/flightload/services/workload/artifacts"
	"github.com/AleutianAI/flightload/services/workload/charts"
	"github.com/AleutianAI/flightload/services/workload/table"
	"github.com/AleutianAI/flightload/services/workload/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Stage names, used for spans, metrics and logs.
const (
	StageLoad         = "load"
	StageValidate     = "validate"
	StagePaired       = "paired"
	StageGroup        = "group"
	StageNarrative    = "narrative"
	StageNormality    = "normality"
	StageEffect       = "effect"
	StageDescriptives = "descriptives"
	StageCharts       = "charts"
	StagePublish      = "publish"
)

// ErrNilSource indicates Run was called without a data source.
var ErrNilSource = errors.New("pipeline: nil source")

// Publisher receives every finished result, e.g. the history store or the
// InfluxDB sink.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, r *analysis.Result) error
}

// Options configures a Runner.
type Options struct {
	// Plan is the analysis to run. The zero value uses DefaultPlan.
	Plan analysis.Plan

	// Sheet selects the worksheet of an .xlsx input.
	Sheet string

	// Style controls chart rendering.
	Style charts.Style

	// SkipCharts disables the charts stage.
	SkipCharts bool

	// Store receives rendered charts. Nil uses an in-memory store.
	Store artifacts.Store

	// Publishers run in order after the result is complete. Put the history
	// store last so its record includes earlier publish warnings.
	Publishers []Publisher

	// Metrics may be nil.
	Metrics *telemetry.Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// NewID and Now are overridable for tests.
	NewID func() string
	Now   func() time.Time
}

// RunContext carries one run's state between stages.
type RunContext struct {
	RunID  string
	Source table.Source
	Plan   analysis.Plan
	Table  *table.Table
	Result *analysis.Result

	// groups caches each group-test column split by role.
	groups map[string][2][]float64
}

// Runner executes analysis runs. It holds no per-run state.
//
// Thread Safety: Safe for concurrent use; each Run has its own RunContext.
type Runner struct {
	opts Options
}

// New validates the plan and fills defaults.
func New(opts Options) (*Runner, error) {
	if opts.Plan.Measures == nil {
		opts.Plan = analysis.DefaultPlan()
	}
	if err := opts.Plan.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Store == nil {
		opts.Store = artifacts.NewMemoryStore()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{opts: opts}, nil
}

// Plan returns the plan the runner executes.
func (r *Runner) Plan() analysis.Plan {
	return r.opts.Plan
}

// Run analyses the table read from src.
//
// Description:
//
//	Runs every stage in order under one "pipeline.Run" span. Cancellation
//	is checked between stages and before each chart and upload.
//
// Inputs:
//   - ctx: Context for cancellation and tracing. Must not be nil.
//   - src: Where the observation table comes from.
//
// Outputs:
//   - *analysis.Result: The complete result. Nil when err is non-nil.
//   - error: A table error (ErrFileNotFound, ErrMissingColumn,
//     ErrMalformedData), a context error, or ErrNilSource.
func (r *Runner) Run(ctx context.Context, src table.Source) (*analysis.Result, error) {
	if src == nil {
		return nil, ErrNilSource
	}
	started := r.opts.Now()
	rc := &RunContext{
		RunID:  r.opts.NewID(),
		Source: src,
		Plan:   r.opts.Plan,
		groups: map[string][2][]float64{},
	}
	rc.Result = &analysis.Result{RunID: rc.RunID, StartedAt: started}

	ctx, span := telemetry.StartSpan(ctx, "pipeline.Run", attribute.String("run_id", rc.RunID))
	defer span.End()
	logger := r.opts.Logger.With("run_id", rc.RunID)

	stages := []namedStage{
		{StageLoad, r.load},
		{StageValidate, r.validate},
		{StagePaired, r.paired},
		{StageGroup, r.group},
		{StageNarrative, r.narrative},
		{StageNormality, r.normality},
		{StageEffect, r.effect},
		{StageDescriptives, r.descriptives},
	}
	if !r.opts.SkipCharts {
		stages = append(stages, namedStage{StageCharts, r.renderCharts})
	}

	for _, st := range stages {
		if err := r.stage(ctx, logger, st.name, rc, st.fn); err != nil {
			telemetry.RecordError(span, err, attribute.String("stage", st.name))
			r.opts.Metrics.RecordRun(ctx, r.opts.Now().Sub(started), err)
			logger.Error("analysis failed", "stage", st.name, "error", err)
			return nil, err
		}
	}

	rc.Result.Duration = r.opts.Now().Sub(started)

	// Publishing never fails the run.
	if err := r.stage(ctx, logger, StagePublish, rc, r.publish); err != nil {
		r.warn(rc, "results not published: %v", err)
	}

	r.opts.Metrics.RecordRun(ctx, rc.Result.Duration, nil)
	c := rc.Result.Counts()
	logger.Info("analysis complete",
		"source", rc.Result.Source,
		"paired", c.Paired,
		"group", c.Group,
		"normality", c.Normality,
		"charts", c.Charts,
		"chart_failures", c.ChartFailures,
		"duration", rc.Result.Duration)
	return rc.Result, nil
}

type stageFunc func(context.Context, *RunContext) error

type namedStage struct {
	name string
	fn   stageFunc
}

// stage runs fn under its own span after checking for cancellation.
func (r *Runner) stage(ctx context.Context, logger *slog.Logger, name string, rc *RunContext, fn stageFunc) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	ctx, span := telemetry.StartSpan(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx, rc)
	d := time.Since(start)
	r.opts.Metrics.RecordStage(ctx, name, d)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	logger.Debug("stage complete", "stage", name, "duration", d)
	return nil
}

// warn records a non-fatal problem on the result and in the log.
func (r *Runner) warn(rc *RunContext, msg string, args ...any) {
	text := fmt.Sprintf(msg, args...)
	rc.Result.Warnings = append(rc.Result.Warnings, text)
	r.opts.Logger.Warn(text, "run_id", rc.RunID)
}
