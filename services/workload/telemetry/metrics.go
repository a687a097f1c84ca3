// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics contains the instruments recorded by analysis runs.
//
// Description:
//
//	All metrics use the "flightload_" prefix. Attributes are kept to low
//	cardinality values: status, stage, kind.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// RunsTotal counts analysis runs by status (ok, error).
	RunsTotal metric.Int64Counter

	// RunDuration records end-to-end run duration in seconds.
	RunDuration metric.Float64Histogram

	// StageDuration records per-stage duration in seconds by stage.
	StageDuration metric.Float64Histogram

	// TestsTotal counts computed tests by kind (paired, group, normality,
	// effect) and status (ok, error).
	TestsTotal metric.Int64Counter

	// ChartsTotal counts chart renders by status.
	ChartsTotal metric.Int64Counter

	// PublishErrorsTotal counts artifact, history and sink failures by target.
	PublishErrorsTotal metric.Int64Counter
}

// NewMetrics creates the instruments on the given meter.
//
// Inputs:
//
//	meter - The OTel meter. Nil uses otel.Meter(TracerName).
//
// Outputs:
//
//	*Metrics - The instruments.
//	error - Non-nil if registration fails.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(TracerName)
	}
	m := &Metrics{}
	var err error

	m.RunsTotal, err = meter.Int64Counter(
		"flightload_runs",
		metric.WithDescription("Analysis runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create runs counter: %w", err)
	}

	m.RunDuration, err = meter.Float64Histogram(
		"flightload_run_duration",
		metric.WithDescription("Analysis run duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create run duration histogram: %w", err)
	}

	m.StageDuration, err = meter.Float64Histogram(
		"flightload_stage_duration",
		metric.WithDescription("Pipeline stage duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create stage duration histogram: %w", err)
	}

	m.TestsTotal, err = meter.Int64Counter(
		"flightload_tests",
		metric.WithDescription("Statistical tests computed"),
		metric.WithUnit("{test}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create tests counter: %w", err)
	}

	m.ChartsTotal, err = meter.Int64Counter(
		"flightload_charts",
		metric.WithDescription("Chart renders"),
		metric.WithUnit("{chart}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create charts counter: %w", err)
	}

	m.PublishErrorsTotal, err = meter.Int64Counter(
		"flightload_publish_errors",
		metric.WithDescription("Failures writing artifacts, history or sinks"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create publish errors counter: %w", err)
	}

	return m, nil
}

// RecordRun records one finished run.
func (m *Metrics) RecordRun(ctx context.Context, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := attribute.String("status", statusOf(err))
	m.RunsTotal.Add(ctx, 1, metric.WithAttributes(status))
	m.RunDuration.Record(ctx, d.Seconds(), metric.WithAttributes(status))
}

// RecordStage records the duration of one pipeline stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordTests adds n tests of one kind and status.
func (m *Metrics) RecordTests(ctx context.Context, kind string, ok bool, n int) {
	if m == nil || n == 0 {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.TestsTotal.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

// RecordChart records one chart render.
func (m *Metrics) RecordChart(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.ChartsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", statusOf(err))))
}

// RecordPublishError records a failed write to target (artifacts, history,
// influx).
func (m *Metrics) RecordPublishError(ctx context.Context, target string) {
	if m == nil {
		return
	}
	m.PublishErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("target", target)))
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
