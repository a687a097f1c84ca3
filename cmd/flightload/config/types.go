// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"path/filepath"
	"time"

	"github.com/AleutianAI/flightload/services/workload/analysis"
	"github.com/AleutianAI/flightload/services/workload/artifacts"
	"github.com/AleutianAI/flightload/services/workload/charts"
	"github.com/AleutianAI/flightload/services/workload/history"
	"github.com/AleutianAI/flightload/services/workload/sinks"
	"github.com/AleutianAI/flightload/services/workload/telemetry"
)

// CurrentConfigVersion is written to new config files.
const CurrentConfigVersion = "1"

// FlightloadConfig is the content of ~/.flightload/config.yaml.
type FlightloadConfig struct {
	Meta MetaConfig `yaml:"meta"`

	// Data locates the input table.
	Data DataConfig `yaml:"data"`

	// Analysis replaces the built-in plan when present.
	Analysis *analysis.Plan `yaml:"analysis,omitempty"`

	Charts    ChartsConfig       `yaml:"charts"`
	Artifacts artifacts.Config   `yaml:"artifacts"`
	History   HistoryConfig      `yaml:"history"`
	Influx    sinks.InfluxConfig `yaml:"influx"`
	Telemetry telemetry.Config   `yaml:"telemetry"`
	Logging   LoggingConfig      `yaml:"logging"`
	Watch     WatchConfig        `yaml:"watch"`
}

type MetaConfig struct {
	Version string `yaml:"version"`
}

type DataConfig struct {
	// Dir is searched for the lexicographically last data file.
	Dir string `yaml:"dir" validate:"required"`

	// Sheet selects an .xlsx worksheet. Empty means the first sheet.
	Sheet string `yaml:"sheet,omitempty"`

	Extensions []string `yaml:"extensions" validate:"dive,startswith=."`
}

type ChartsConfig struct {
	Enabled bool         `yaml:"enabled"`
	Style   charts.Style `yaml:"style"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`

	// GCInterval applies to watch mode only.
	GCInterval time.Duration `yaml:"gc_interval"`
}

// Store returns the badger settings for this block.
func (h HistoryConfig) Store() history.Config {
	c := history.DefaultConfig(h.Path)
	c.GCInterval = h.GCInterval
	return c
}

type LoggingConfig struct {
	// Level applies to the console and the log file.
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`

	// Dir enables the JSON log file.
	Dir string `yaml:"dir,omitempty"`

	// JSON formats console logs as JSON.
	JSON bool `yaml:"json"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

// Plan returns the configured analysis, or the built-in one.
func (c FlightloadConfig) Plan() analysis.Plan {
	if c.Analysis == nil {
		return analysis.DefaultPlan()
	}
	return *c.Analysis
}

// DefaultConfig returns the configuration written on first run. Paths live
// under home, normally the user's home directory.
func DefaultConfig(home string) FlightloadConfig {
	base := filepath.Join(home, ".flightload")
	plan := analysis.DefaultPlan()
	tel := telemetry.DefaultConfig()
	return FlightloadConfig{
		Meta: MetaConfig{Version: CurrentConfigVersion},
		Data: DataConfig{
			Dir:        "data",
			Extensions: []string{".xlsx", ".csv"},
		},
		Analysis: &plan,
		Charts: ChartsConfig{
			Enabled: true,
			Style:   charts.DefaultStyle(),
		},
		Artifacts: artifacts.Config{
			Kind: artifacts.KindDir,
			Dir:  "charts",
		},
		History: HistoryConfig{
			Enabled:    true,
			Path:       filepath.Join(base, "history"),
			GCInterval: 10 * time.Minute,
		},
		Influx: sinks.InfluxConfig{
			Measurement: "crew_workload",
		},
		Telemetry: telemetry.Config{
			ServiceName:    tel.ServiceName,
			ServiceVersion: tel.ServiceVersion,
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "none",
			OTLPEndpoint:   "localhost:4317",
			OTLPInsecure:   true,
		},
		Logging: LoggingConfig{
			Level: "warn",
			Dir:   filepath.Join(base, "logs"),
		},
		Watch: WatchConfig{Debounce: 500 * time.Millisecond},
	}
}
