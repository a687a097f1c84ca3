// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sinks publishes analysis results to external time-series stores.
package sinks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/AleutianAI/flightload/services/workload/analysis"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// TokenEnv supplies the InfluxDB token when the config leaves it empty.
const TokenEnv = "FLIGHTLOAD_INFLUX_TOKEN"

// ErrNotConfigured indicates an InfluxDB sink without URL, org or bucket.
var ErrNotConfigured = errors.New("influx sink not configured")

// InfluxConfig configures the InfluxDB v2 sink.
type InfluxConfig struct {
	URL    string `yaml:"url" json:"url"`
	Org    string `yaml:"org" json:"org"`
	Bucket string `yaml:"bucket" json:"bucket"`

	// Token is never written back to the config file.
	Token string `yaml:"-" json:"-"`

	// Measurement defaults to "crew_workload".
	Measurement string `yaml:"measurement" json:"measurement"`
}

// Enabled reports whether a URL is configured.
func (c InfluxConfig) Enabled() bool {
	return c.URL != ""
}

// InfluxSink writes one point per test, normality and effect row.
//
// Thread Safety: Safe for concurrent use; the blocking write API is.
type InfluxSink struct {
	client      influxdb2.Client
	writer      api.WriteAPIBlocking
	measurement string
	logger      *slog.Logger
}

// NewInfluxSink connects to InfluxDB.
//
// Description:
//
//	No request is made until Publish. The token comes from cfg.Token or,
//	when empty, the FLIGHTLOAD_INFLUX_TOKEN environment variable.
func NewInfluxSink(cfg InfluxConfig, logger *slog.Logger) (*InfluxSink, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: url, org and bucket are required", ErrNotConfigured)
	}
	token := cfg.Token
	if token == "" {
		token = os.Getenv(TokenEnv)
	}
	client := influxdb2.NewClient(cfg.URL, token)
	s := NewInfluxSinkWithAPI(client.WriteAPIBlocking(cfg.Org, cfg.Bucket), cfg.Measurement, logger)
	s.client = client
	return s, nil
}

// NewInfluxSinkWithAPI wraps an existing write API.
func NewInfluxSinkWithAPI(w api.WriteAPIBlocking, measurement string, logger *slog.Logger) *InfluxSink {
	if measurement == "" {
		measurement = "crew_workload"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InfluxSink{writer: w, measurement: measurement, logger: logger}
}

// Name identifies the sink in warnings and metrics.
func (s *InfluxSink) Name() string { return "influxdb" }

// Publish writes the result's points and flushes.
func (s *InfluxSink) Publish(ctx context.Context, r *analysis.Result) error {
	points := Points(r, s.measurement)
	if len(points) == 0 {
		return nil
	}
	if err := s.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("writing %d points to influxdb: %w", len(points), err)
	}
	if err := s.writer.Flush(ctx); err != nil {
		return fmt.Errorf("flushing influxdb: %w", err)
	}
	s.logger.Info("Published results to InfluxDB",
		"run_id", r.RunID,
		"points", len(points),
		"measurement", s.measurement)
	return nil
}

// Close releases the HTTP client.
func (s *InfluxSink) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

// Points converts a result to line-protocol points timestamped at the run
// start. Failed rows and non-finite statistics are left out because line
// protocol cannot carry NaN or Inf.
func Points(r *analysis.Result, measurement string) []*write.Point {
	var points []*write.Point
	base := map[string]string{"run_id": r.RunID, "source": r.Source}

	for _, row := range append(append([]analysis.TestRow(nil), r.Paired...), r.Group...) {
		if !row.OK() {
			continue
		}
		tags := withTags(base, map[string]string{
			"kind":       string(row.Kind),
			"measure":    row.Measure,
			"comparison": row.Comparison,
			"column_a":   row.ColumnA,
		})
		if row.ColumnB != "" {
			tags["column_b"] = row.ColumnB
		}
		res := row.Result
		fields := map[string]interface{}{
			"n1":          res.N1,
			"n2":          res.N2,
			"significant": res.Significant,
			"dropped":     len(row.Dropped),
		}
		putFinite(fields, "t", res.TStatistic)
		putFinite(fields, "p", res.PValue)
		putFinite(fields, "df", res.DegreesOfFreedom)
		points = append(points, influxdb2.NewPoint(measurement, tags, fields, r.StartedAt))
	}

	for _, row := range r.Normality {
		if row.Result == nil {
			continue
		}
		fields := map[string]interface{}{
			"n":      row.Result.N,
			"normal": row.Class == analysis.Normal,
		}
		putFinite(fields, "w", row.Result.W)
		putFinite(fields, "p", row.Result.PValue)
		tags := withTags(base, map[string]string{"kind": "normality", "column_a": row.Column})
		points = append(points, influxdb2.NewPoint(measurement, tags, fields, r.StartedAt))
	}

	if e := r.Effect; e != nil && e.Error == "" && !math.IsNaN(e.D) && !math.IsInf(e.D, 0) {
		tags := withTags(base, map[string]string{
			"kind":       "effect",
			"column_a":   e.Column,
			"comparison": e.GroupA + " vs " + e.GroupB,
		})
		fields := map[string]interface{}{"d": e.D, "category": e.Category}
		points = append(points, influxdb2.NewPoint(measurement, tags, fields, r.StartedAt))
	}
	return points
}

func withTags(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func putFinite(fields map[string]interface{}, key string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	fields[key] = v
}
