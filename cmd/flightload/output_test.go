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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/flightload/cmd/flightload/config"
	"github.com/AleutianAI/flightload/services/workload/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, CLIExitSuccess},
		{"generic", errors.New("boom"), CLIExitError},
		{"file not found", fmt.Errorf("load: %w", table.ErrFileNotFound), CLIExitFileNotFound},
		{"column error", &table.ColumnError{Column: "bpm_pre"}, CLIExitMissingColumn},
		{"data error", &table.DataError{Column: "bpm_in", Row: 3, Reason: "not a number"}, CLIExitMalformedData},
		{"wrapped command error", fmt.Errorf("outer: %w", &CommandError{Command: "x", ExitCode: 7}), 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestNewCommandError(t *testing.T) {
	assert.Nil(t, NewCommandError("analyze", nil))

	err := NewCommandError("analyze", &table.ColumnError{Column: "fatigue_post"})
	assert.Equal(t, CLIExitMissingColumn, err.ExitCode)
	assert.Contains(t, err.Hint, `"fatigue_post"`)
	assert.True(t, errors.Is(err, table.ErrMissingColumn))
	assert.True(t, strings.HasPrefix(err.Error(), "analyze: "))

	again := NewCommandError("watch", fmt.Errorf("ctx: %w", err))
	assert.Same(t, err, again, "never double-wraps")

	cfgErr := NewCommandError("config", fmt.Errorf("%w: bad", config.ErrInvalidConfig))
	assert.Equal(t, CLIExitError, cfgErr.ExitCode)
	assert.NotEmpty(t, ExtractHint(cfgErr))

	assert.Empty(t, ExtractHint(errors.New("plain")))
	assert.Equal(t, "x failed (exit 2)", (&CommandError{Command: "x", ExitCode: 2}).Error())
}

func TestOutputResult(t *testing.T) {
	start := time.Now()

	t.Run("json envelope", func(t *testing.T) {
		var out bytes.Buffer
		rendered := false
		err := OutputResult(OutputConfig{JSON: true, Compact: true}, &out, "analyze", start,
			map[string]int{"paired": 7}, func() { rendered = true })
		require.NoError(t, err)
		assert.False(t, rendered)
		assert.Equal(t, 1, strings.Count(out.String(), "\n"), "compact is one line")

		var res CommandResult
		require.NoError(t, json.Unmarshal(out.Bytes(), &res))
		assert.True(t, res.Success)
		assert.Equal(t, "analyze", res.Command)
		assert.Equal(t, APIVersion, res.APIVersion)
	})

	t.Run("text renders", func(t *testing.T) {
		rendered := false
		require.NoError(t, OutputResult(OutputConfig{}, &bytes.Buffer{}, "analyze", start, nil, func() { rendered = true }))
		assert.True(t, rendered)
	})

	t.Run("quiet", func(t *testing.T) {
		rendered := false
		require.NoError(t, OutputResult(OutputConfig{Quiet: true}, &bytes.Buffer{}, "analyze", start, nil, func() { rendered = true }))
		assert.False(t, rendered)
	})
}

func TestOutputError(t *testing.T) {
	err := NewCommandError("analyze", fmt.Errorf("load: %w", table.ErrFileNotFound))

	t.Run("json", func(t *testing.T) {
		var out, errOut bytes.Buffer
		OutputError(OutputConfig{JSON: true}, &out, &errOut, "analyze", time.Now(), err)
		assert.Empty(t, errOut.String())

		var res CommandResult
		require.NoError(t, json.Unmarshal(out.Bytes(), &res))
		assert.False(t, res.Success)
		assert.Equal(t, CLIExitFileNotFound, res.ExitCode)
		assert.NotEmpty(t, res.Hint)
		assert.Contains(t, res.Error, "no data file found")
	})

	t.Run("text", func(t *testing.T) {
		var out, errOut bytes.Buffer
		OutputError(OutputConfig{}, &out, &errOut, "analyze", time.Now(), err)
		assert.Empty(t, out.String())
		assert.Contains(t, errOut.String(), "Error: analyze: load: no data file found")
		assert.Contains(t, errOut.String(), "Hint: ")
	})

	t.Run("quiet", func(t *testing.T) {
		var out, errOut bytes.Buffer
		OutputError(OutputConfig{Quiet: true}, &out, &errOut, "analyze", time.Now(), err)
		assert.Empty(t, out.String())
		assert.Empty(t, errOut.String())
	})
}
