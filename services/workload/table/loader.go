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
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	// DefaultRoleColumn is the categorical column splitting the groups.
	DefaultRoleColumn = "role"

	// DefaultSubjectColumn identifies a crew member across phases.
	DefaultSubjectColumn = "subject"
)

// Options configures Load and FromRecords.
type Options struct {
	// RoleColumn is the normalised name of the role column.
	RoleColumn string

	// SubjectColumn is the normalised name of the subject id column.
	SubjectColumn string

	// Sheet selects the worksheet of an .xlsx file. Empty means the first.
	Sheet string

	// Logger receives load diagnostics. Nil uses slog.Default().
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.RoleColumn == "" {
		o.RoleColumn = DefaultRoleColumn
	}
	if o.SubjectColumn == "" {
		o.SubjectColumn = DefaultSubjectColumn
	}
	o.RoleColumn = NormalizeHeader(o.RoleColumn)
	o.SubjectColumn = NormalizeHeader(o.SubjectColumn)
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Load reads the observation table from a Source.
//
// Description:
//
//	Opens the source, reads it fully, parses it as .xlsx or CSV based on
//	the source name, normalises the headers and logs the chosen file and
//	its columns.
//
// Inputs:
//   - ctx: Context for cancellation. Must not be nil.
//   - src: Where the data comes from.
//   - opts: Column names and worksheet selection.
//
// Outputs:
//   - *Table: The loaded table.
//   - error: ErrFileNotFound when the source has no file, ErrMalformedData
//     when it cannot be parsed, or an I/O error.
func Load(ctx context.Context, src Source, opts Options) (*Table, error) {
	opts = opts.withDefaults()

	name, rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(rc)
	closeErr := rc.Close()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if closeErr != nil {
		opts.Logger.Warn("closing input failed", "file", name, "error", closeErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records [][]string
	switch FormatOf(name) {
	case FormatXLSX:
		records, err = readXLSX(data, opts.Sheet)
	default:
		records, err = readCSV(data)
	}
	if err != nil {
		return nil, err
	}

	t, err := FromRecords(filepath.Base(name), records, opts)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	t.digest = hex.EncodeToString(sum[:])

	opts.Logger.Info("loaded observation table",
		"file", name,
		"rows", t.Len(),
		"columns", t.Columns(),
	)
	if t.RowKeyed() {
		opts.Logger.Warn("subject column absent, pairing subjects by row order",
			"subject_column", opts.SubjectColumn)
	}
	return t, nil
}

// Format is an input file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatOf returns the format implied by a file name.
func FormatOf(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	default:
		return FormatCSV
	}
}

func readXLSX(data []byte, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: opening workbook: %v", ErrMalformedData, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, &DataError{Reason: "workbook has no sheets"}
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: sheet %q: %v", ErrMalformedData, sheet, err)
	}
	return rows, nil
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	return records, nil
}
