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
	"errors"
	"fmt"

	"github.com/AleutianAI/flightload/cmd/flightload/config"
	"github.com/AleutianAI/flightload/services/workload/table"
)

// CommandError wraps a command failure with its exit code and a hint for
// the user.
//
// # Example
//
//	err := NewCommandError("analyze", fmt.Errorf("load: %w", table.ErrFileNotFound))
//	err.ExitCode // CLIExitFileNotFound
//
//	var cmdErr *CommandError
//	if errors.As(err, &cmdErr) {
//	    fmt.Println(cmdErr.Hint)
//	}
type CommandError struct {
	// Command is the subcommand that failed, e.g. "analyze".
	Command string

	// ExitCode is the process exit status for this failure.
	ExitCode int

	// Hint suggests a fix. May be empty.
	Hint string

	// Wrapped is the underlying error.
	Wrapped error
}

// Error returns "<command>: <cause>".
func (e *CommandError) Error() string {
	if e.Wrapped == nil {
		return fmt.Sprintf("%s failed (exit %d)", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Wrapped)
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Wrapped
}

// NewCommandError classifies err. It returns nil for a nil err and never
// double-wraps.
func NewCommandError(cmd string, err error) *CommandError {
	if err == nil {
		return nil
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr
	}
	return &CommandError{
		Command:  cmd,
		ExitCode: exitCodeFor(err),
		Hint:     hintFor(err),
		Wrapped:  err,
	}
}

// ExitCode returns the process exit status for err.
func ExitCode(err error) int {
	if err == nil {
		return CLIExitSuccess
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}
	return exitCodeFor(err)
}

// ExtractHint returns the first hint in err's chain, or "".
func ExtractHint(err error) string {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Hint
	}
	return ""
}

func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, table.ErrFileNotFound):
		return CLIExitFileNotFound
	case errors.Is(err, table.ErrMissingColumn):
		return CLIExitMissingColumn
	case errors.Is(err, table.ErrMalformedData):
		return CLIExitMalformedData
	default:
		return CLIExitError
	}
}

func hintFor(err error) string {
	var colErr *table.ColumnError
	switch {
	case errors.Is(err, table.ErrFileNotFound):
		return "put a .xlsx or .csv file in the data directory, or pass --input"
	case errors.As(err, &colErr):
		return fmt.Sprintf("add a %q column or change the analysis block of the config", colErr.Column)
	case errors.Is(err, table.ErrMalformedData):
		return "fix the cell named above, or set analysis.missing to drop for blank cells"
	case errors.Is(err, config.ErrInvalidConfig):
		return "edit the config file or delete it to restore defaults"
	default:
		return ""
	}
}
