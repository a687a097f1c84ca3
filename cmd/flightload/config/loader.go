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
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/AleutianAI/flightload/services/workload/analysis"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the default config location.
const EnvConfigPath = "FLIGHTLOAD_CONFIG"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

var validate = validator.New()

// Path resolves the config file: the explicit flag value, then
// $FLIGHTLOAD_CONFIG, then ~/.flightload/config.yaml.
func Path(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".flightload", "config.yaml"), nil
}

// Load reads the config at path, writing DefaultConfig there first when
// the file does not exist.
//
// Outputs:
//   - FlightloadConfig: Defaults overlaid with the file's values.
//   - bool: True when the file was created by this call.
//   - error: Unreadable or invalid file, wrapping ErrInvalidConfig when
//     validation fails.
func Load(path string) (FlightloadConfig, bool, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	created := false
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := createDefault(path, DefaultConfig(home)); err != nil {
			return FlightloadConfig{}, false, err
		}
		created = true
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return FlightloadConfig{}, false, fmt.Errorf("failed to read the config file: %w", err)
	}
	cfg, err := Parse(data, home)
	if err != nil {
		return FlightloadConfig{}, false, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, created, nil
}

// Parse decodes yaml over DefaultConfig(home) and validates the result.
// Unknown keys are rejected. An analysis block replaces the built-in plan;
// its unset role, subject, group, alpha and missing fields keep the
// built-in values.
func Parse(data []byte, home string) (FlightloadConfig, error) {
	cfg := DefaultConfig(home)
	// A plan is replaced, never merged.
	cfg.Analysis = nil

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return FlightloadConfig{}, fmt.Errorf("failed to parse the config: %w", err)
	}
	if cfg.Analysis != nil {
		fillPlanDefaults(cfg.Analysis)
	}
	if err := Validate(cfg); err != nil {
		return FlightloadConfig{}, err
	}
	return cfg, nil
}

// Validate checks struct tags and the analysis plan's cross references.
func Validate(cfg FlightloadConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Plan().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func fillPlanDefaults(p *analysis.Plan) {
	d := analysis.DefaultPlan()
	if p.RoleColumn == "" {
		p.RoleColumn = d.RoleColumn
	}
	if p.SubjectColumn == "" {
		p.SubjectColumn = d.SubjectColumn
	}
	if len(p.Groups) == 0 {
		p.Groups = d.Groups
	}
	if p.Alpha == 0 {
		p.Alpha = d.Alpha
	}
	if p.Missing == "" {
		p.Missing = d.Missing
	}
}

func createDefault(path string, cfg FlightloadConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("# flightload configuration. Delete this file to restore defaults.\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode the default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0640)
}
