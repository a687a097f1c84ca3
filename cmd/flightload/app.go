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
	"log/slog"
	"time"

	"github.com/AleutianAI/flightload/services/workload/analysis"
	"github.com/AleutianAI/flightload/services/workload/artifacts"
	"github.com/AleutianAI/flightload/services/workload/charts"
	"github.com/AleutianAI/flightload/services/workload/history"
	"github.com/AleutianAI/flightload/services/workload/pipeline"
	"github.com/AleutianAI/flightload/services/workload/sinks"
	"github.com/AleutianAI/flightload/services/workload/telemetry"
	"go.opentelemetry.io/otel"
)

// ErrHistoryDisabled is returned by history commands when the config
// turns the store off.
var ErrHistoryDisabled = errors.New("run history is disabled in the configuration")

// appOptions are the per-command choices layered over the config.
type appOptions struct {
	plan        analysis.Plan
	sheet       string
	style       charts.Style
	skipCharts  bool
	artifacts   artifacts.Config
	noHistory   bool
	metricsFile string

	// longLived enables background maintenance such as history GC.
	longLived bool
}

// app is the wired pipeline and everything it holds open.
type app struct {
	runner   *pipeline.Runner
	plan     analysis.Plan
	logger   *slog.Logger
	shutdown func(context.Context) error
	closers  []func() error
}

// newApp builds telemetry, the artifact store and the publishers, then the
// pipeline runner. On error everything opened so far is closed.
func (c *cli) newApp(ctx context.Context, o appOptions) (a *app, err error) {
	logger := c.log()
	a = &app{plan: o.plan, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	tcfg := c.cfg.Telemetry
	if o.metricsFile != "" {
		tcfg.MetricExporter = "prometheus"
	}
	tcfg.ServiceVersion = version
	tcfg.Writer = c.stderr
	if a.shutdown, err = telemetry.Init(ctx, tcfg); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	metrics, err := telemetry.NewMetrics(otel.Meter(telemetry.TracerName))
	if err != nil {
		return nil, err
	}

	var store artifacts.Store
	if !o.skipCharts {
		if store, err = artifacts.Open(ctx, o.artifacts); err != nil {
			return nil, fmt.Errorf("artifact store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
	}

	var publishers []pipeline.Publisher
	if c.cfg.Influx.Enabled() {
		sink, err := sinks.NewInfluxSink(c.cfg.Influx, logger)
		if err != nil {
			return nil, fmt.Errorf("influxdb sink: %w", err)
		}
		a.closers = append(a.closers, sink.Close)
		publishers = append(publishers, sink)
	}
	if c.cfg.History.Enabled && !o.noHistory {
		hs, err := c.openHistory(o.longLived)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, hs.Close)
		// Last, so the record carries earlier publish warnings.
		publishers = append(publishers, hs)
	}

	a.runner, err = pipeline.New(pipeline.Options{
		Plan:       o.plan,
		Sheet:      o.sheet,
		Style:      o.style,
		SkipCharts: o.skipCharts,
		Store:      store,
		Publishers: publishers,
		Metrics:    metrics,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// openHistory opens the configured badger store.
func (c *cli) openHistory(longLived bool) (*history.Store, error) {
	if !c.cfg.History.Enabled {
		return nil, ErrHistoryDisabled
	}
	hc := c.cfg.History.Store()
	if !longLived {
		hc.GCInterval = 0
	}
	hc.Logger = c.log()
	hs, err := history.Open(hc)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return hs, nil
}

// Close releases resources in reverse order of creation and flushes
// telemetry.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}
