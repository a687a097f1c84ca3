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
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "")
	t.Setenv("OTEL_METRICS_EXPORTER", "")
	cfg := DefaultConfig()

	if cfg.ServiceName != "flightload" {
		t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, "flightload")
	}
	if cfg.TraceExporter != "none" {
		t.Errorf("TraceExporter = %q, want %q", cfg.TraceExporter, "none")
	}
	if cfg.MetricExporter != "none" {
		t.Errorf("MetricExporter = %q, want %q", cfg.MetricExporter, "none")
	}
}

func TestInit_NilContext(t *testing.T) {
	//nolint:staticcheck // nil context is the case under test
	_, err := Init(nil, DefaultConfig())
	if !errors.Is(err, ErrNilContext) {
		t.Errorf("Init(nil, cfg) error = %v, want %v", err, ErrNilContext)
	}
}

func TestInit_Noop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "none"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestInit_UnknownExporter(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(*Config)
	}{
		{"trace", func(c *Config) { c.TraceExporter = "zipkin" }},
		{"metric", func(c *Config) { c.MetricExporter = "statsd" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.TraceExporter, cfg.MetricExporter = "none", "none"
			tt.cfg(&cfg)
			if _, err := Init(context.Background(), cfg); !errors.Is(err, ErrUnknownExporter) {
				t.Errorf("error = %v, want ErrUnknownExporter", err)
			}
		})
	}
}

func TestInit_StdoutTraceWritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.TraceExporter = "stdout"
	cfg.MetricExporter = "none"
	cfg.Writer = &buf

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	_, span := StartSpan(context.Background(), "pipeline.Load")
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}

	if !strings.Contains(buf.String(), "pipeline.Load") {
		t.Errorf("span not exported to writer: %q", buf.String())
	}
}

func TestWriteMetricsFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "prometheus"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer shutdown(context.Background())

	m, err := NewMetrics(nil)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	m.RecordRun(context.Background(), 1500*time.Millisecond, nil)
	m.RecordTests(context.Background(), "paired", true, 7)

	path := filepath.Join(t.TempDir(), "flightload.prom")
	if err := WriteMetricsFile(path); err != nil {
		t.Fatalf("WriteMetricsFile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"flightload_runs", "flightload_run_duration", "flightload_tests"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("metrics file missing %q:\n%s", want, data)
		}
	}
}

func TestMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	ctx := context.Background()
	m.RecordChart(ctx, nil)
	m.RecordChart(ctx, errors.New("boom"))
	m.RecordStage(ctx, "load", time.Millisecond)
	m.RecordPublishError(ctx, "history")
	m.RecordTests(ctx, "group", false, 0)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			names[md.Name] = true
			if md.Name == "flightload_charts" {
				sum, ok := md.Data.(metricdata.Sum[int64])
				if !ok || len(sum.DataPoints) != 2 {
					t.Errorf("charts: want 2 data points (ok, error), got %+v", md.Data)
				}
			}
		}
	}
	for _, want := range []string{"flightload_charts", "flightload_stage_duration", "flightload_publish_errors"} {
		if !names[want] {
			t.Errorf("metric %q not collected", want)
		}
	}
	if names["flightload_tests"] {
		t.Error("zero test count should not be recorded")
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordRun(context.Background(), time.Second, nil)
	m.RecordChart(context.Background(), nil)
}

func TestRecordError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	ctx, span := StartSpan(context.Background(), "pipeline.Validate")
	if TraceID(ctx) == "" {
		t.Error("expected a trace id in the span context")
	}
	RecordError(span, errors.New("missing column"))
	RecordError(span, nil)
	RecordError(nil, errors.New("ignored"))
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(ended))
	}
	if got := ended[0].Status().Code; got != codes.Error {
		t.Errorf("status = %v, want Error", got)
	}
	if TraceID(context.Background()) != "" {
		t.Error("expected empty trace id without a span")
	}
}
