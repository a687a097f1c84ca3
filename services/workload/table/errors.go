// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package table

import (
	"errors"
	"fmt"
)

var (
	// ErrFileNotFound indicates no input file matched.
	ErrFileNotFound = errors.New("no data file found")

	// ErrMissingColumn indicates a required column is absent.
	ErrMissingColumn = errors.New("required column missing")

	// ErrMalformedData indicates a cell or row that cannot be analysed.
	ErrMalformedData = errors.New("malformed data")
)

// ColumnError names the missing column. It matches ErrMissingColumn.
type ColumnError struct {
	Column string
	Hint   string
}

func (e *ColumnError) Error() string {
	if e.Hint == "" {
		return fmt.Sprintf("%s: %q", ErrMissingColumn, e.Column)
	}
	return fmt.Sprintf("%s: %q (%s)", ErrMissingColumn, e.Column, e.Hint)
}

func (e *ColumnError) Unwrap() error {
	return ErrMissingColumn
}

// DataError locates a malformed value. It matches ErrMalformedData.
//
// Row is the 1-based data row (the header is row 0); zero means the
// problem is not tied to one row.
type DataError struct {
	Column  string
	Row     int
	Subject string
	Reason  string
}

func (e *DataError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrMalformedData, e.Reason)
	if e.Column != "" {
		msg += fmt.Sprintf(" (column %q", e.Column)
		if e.Row > 0 {
			msg += fmt.Sprintf(", row %d", e.Row)
		}
		if e.Subject != "" {
			msg += fmt.Sprintf(", subject %q", e.Subject)
		}
		msg += ")"
	} else if e.Row > 0 {
		msg += fmt.Sprintf(" (row %d)", e.Row)
	}
	return msg
}

func (e *DataError) Unwrap() error {
	return ErrMalformedData
}
