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
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Exit codes for CLI commands.
const (
	CLIExitSuccess       = 0 // Operation completed successfully
	CLIExitError         = 2 // Operation failed
	CLIExitFileNotFound  = 3 // No input file
	CLIExitMissingColumn = 4 // Required column absent
	CLIExitMalformedData = 5 // Unusable cell or row
)

// APIVersion is the version of the CommandResult envelope.
const APIVersion = "1.0"

// OutputConfig controls output behavior.
type OutputConfig struct {
	JSON    bool // Output as JSON
	Compact bool // No indentation
	Quiet   bool // No output, exit code only
}

// CommandResult wraps command output with metadata.
type CommandResult struct {
	APIVersion string    `json:"api_version"`
	Command    string    `json:"command"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms"`
	Success    bool      `json:"success"`
	Data       any       `json:"data,omitempty"`
	Error      string    `json:"error,omitempty"`
	Hint       string    `json:"hint,omitempty"`
	ExitCode   int       `json:"exit_code"`
}

// OutputJSON writes data as JSON to w.
//
// # Inputs
//
//   - w: Destination, normally stdout.
//   - data: The data to encode. Must be JSON-serializable.
//   - compact: If true, output one line without indentation.
//
// # Outputs
//
//   - error: Non-nil if encoding fails.
func OutputJSON(w io.Writer, data any, compact bool) error {
	encoder := json.NewEncoder(w)
	if !compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// OutputError writes a failure in the configured format. JSON goes to out
// so scripts read one stream; text goes to errOut.
func OutputError(cfg OutputConfig, out, errOut io.Writer, cmd string, start time.Time, err error) {
	if cfg.Quiet && !cfg.JSON {
		return
	}
	hint := ExtractHint(err)
	if cfg.JSON {
		result := CommandResult{
			APIVersion: APIVersion,
			Command:    cmd,
			Timestamp:  time.Now(),
			DurationMs: time.Since(start).Milliseconds(),
			Success:    false,
			Error:      err.Error(),
			Hint:       hint,
			ExitCode:   ExitCode(err),
		}
		if encErr := OutputJSON(out, result, cfg.Compact); encErr != nil {
			fmt.Fprintf(errOut, "Failed to encode JSON: %v\n", encErr)
		}
		return
	}
	fmt.Fprintf(errOut, "Error: %v\n", err)
	if hint != "" {
		fmt.Fprintf(errOut, "Hint: %s\n", hint)
	}
}

// OutputResult writes a successful command's data. In text mode render
// prints it; in JSON mode data is wrapped in a CommandResult.
func OutputResult(cfg OutputConfig, out io.Writer, cmd string, start time.Time, data any, render func()) error {
	if cfg.JSON {
		return OutputJSON(out, CommandResult{
			APIVersion: APIVersion,
			Command:    cmd,
			Timestamp:  time.Now(),
			DurationMs: time.Since(start).Milliseconds(),
			Success:    true,
			Data:       data,
			ExitCode:   CLIExitSuccess,
		}, cfg.Compact)
	}
	if cfg.Quiet || render == nil {
		return nil
	}
	render()
	return nil
}
