// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/AleutianAI/flightload/services/workload/analysis"
)

// CSVHeader is the first row written by WriteCSV.
var CSVHeader = []string{
	"kind", "measure", "comparison", "column_a", "column_b",
	"t", "p", "df", "n1", "n2", "significant", "dropped", "error",
}

// WriteCSV exports every test row, paired first, for spreadsheet use.
// Statistics keep full precision; failed tests leave the numbers empty.
func WriteCSV(w io.Writer, r *analysis.Result) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CSVHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	rows := append(append([]analysis.TestRow(nil), r.Paired...), r.Group...)
	for _, row := range rows {
		if err := writer.Write(csvRecord(row)); err != nil {
			return fmt.Errorf("writing csv row %s: %w", row.ColumnA, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

func csvRecord(row analysis.TestRow) []string {
	rec := []string{
		string(row.Kind), row.Measure, row.Comparison, row.ColumnA, row.ColumnB,
		"", "", "", "", "", "",
		strings.Join(row.Dropped, ";"),
		row.Error,
	}
	if res := row.Result; res != nil {
		rec[5] = formatFloat(res.TStatistic)
		rec[6] = formatFloat(res.PValue)
		rec[7] = formatFloat(res.DegreesOfFreedom)
		rec[8] = strconv.Itoa(res.N1)
		rec[9] = strconv.Itoa(res.N2)
		rec[10] = strconv.FormatBool(res.Significant)
	}
	return rec
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
