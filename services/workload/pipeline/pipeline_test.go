// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/flightload/services/workload/analysis"
	"github.com/AleutianAI/flightload/services/workload/artifacts"
	"github.com/AleutianAI/flightload/services/workload/history"
	"github.com/AleutianAI/flightload/services/workload/table"
	"github.com/AleutianAI/flightload/services/workload/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "subject,role,spo2_pre,spo2_in,spo2_post,bpm_pre,bpm_in,bpm_post,fatigue_pre,fatigue_post"

// crewCSV builds ten crew members, alternating pilot and copilot. edit may
// rewrite individual rows.
func crewCSV(edit func(i int, row []string)) string {
	lines := []string{header}
	for i := 0; i < 10; i++ {
		role := "pilot"
		if i%2 == 1 {
			role = "copilot"
		}
		row := []string{
			fmt.Sprintf("s%02d", i+1), role,
			fmt.Sprint(97 + i%3), fmt.Sprint(92 + i%4), fmt.Sprint(96 + i%2),
			fmt.Sprint(70 + i), fmt.Sprint(100 + 2*i + i%3), fmt.Sprint(78 + i%5),
			fmt.Sprint(1 + i%3), fmt.Sprint(3 + i%4),
		}
		if edit != nil {
			edit(i, row)
		}
		lines = append(lines, strings.Join(row, ","))
	}
	return strings.Join(lines, "\n") + "\n"
}

func source(body string) table.Source {
	return table.ReaderSource{Name: "crew.csv", Reader: strings.NewReader(body)}
}

func fixedRunner(t *testing.T, opts Options) *Runner {
	t.Helper()
	opts.NewID = func() string { return "run-1" }
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	opts.Now = func() time.Time {
		calls++
		return start.Add(time.Duration(calls) * time.Second)
	}
	r, err := New(opts)
	require.NoError(t, err)
	return r
}

// --- publishers ---

type recordingPublisher struct {
	name string
	err  error
	got  []*analysis.Result
}

func (p *recordingPublisher) Name() string { return p.name }

func (p *recordingPublisher) Publish(ctx context.Context, r *analysis.Result) error {
	p.got = append(p.got, r)
	return p.err
}

type failingStore struct{}

func (failingStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	return "", errors.New("bucket unavailable")
}

func (failingStore) Close() error { return nil }

// cancellingStore cancels the run from inside the charts stage.
type cancellingStore struct {
	cancel context.CancelFunc
}

func (s cancellingStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	s.cancel()
	return "", ctx.Err()
}

func (cancellingStore) Close() error { return nil }

// --- tests ---

func TestRun_EndToEnd(t *testing.T) {
	store := artifacts.NewMemoryStore()
	hist, err := history.OpenInMemory()
	require.NoError(t, err)
	defer hist.Close()

	metrics, err := telemetry.NewMetrics(nil)
	require.NoError(t, err)

	r := fixedRunner(t, Options{Store: store, Publishers: []Publisher{hist}, Metrics: metrics})
	res, err := r.Run(context.Background(), source(crewCSV(nil)))
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, "crew.csv", res.Source)
	assert.Equal(t, 10, res.Rows)
	assert.Len(t, res.Digest, 64)

	c := res.Counts()
	assert.Equal(t, 7, c.Paired)
	assert.Equal(t, 6, c.Group)
	assert.Equal(t, 8, c.Normality, "one per numeric column")
	assert.Equal(t, 1, c.EffectSizes)
	assert.Equal(t, 5, c.Charts)
	assert.Zero(t, c.ChartFailures)
	assert.Zero(t, c.TestFailures)
	assert.Empty(t, res.Warnings)

	// paired rows follow plan order
	assert.Equal(t, "spo2_pre", res.Paired[0].ColumnA)
	assert.Equal(t, "spo2_in", res.Paired[0].ColumnB)
	assert.Equal(t, "pre vs in", res.Paired[0].Comparison)
	assert.Equal(t, "fatigue_post", res.Paired[6].ColumnB)

	assert.Equal(t, "bpm_pre", res.Group[0].ColumnA)
	assert.Equal(t, "bpm", res.Group[0].Measure)
	assert.Equal(t, "pre", res.Group[0].PhaseA)
	assert.Equal(t, "pilot vs copilot", res.Group[0].Comparison)

	require.NotNil(t, res.Narrative)
	assert.Equal(t, 74.0, res.Narrative.MeanA)
	assert.Equal(t, 75.0, res.Narrative.MeanB)
	assert.Contains(t, res.Narrative.Text, "between pilots and copilots in pre-flight heart rate")
	assert.Contains(t, res.Narrative.Text, "M_pilot = 74.0, M_copilot = 75.0")

	require.NotNil(t, res.Effect)
	assert.Empty(t, res.Effect.Error)
	assert.Less(t, res.Effect.D, 0.0)

	sum, ok := res.Descriptive("bpm_pre", "pilot")
	require.True(t, ok)
	assert.Equal(t, 5, sum.N)

	assert.Len(t, store.Keys(), 5)
	for _, ch := range res.Charts {
		assert.Equal(t, "run-1/"+ch.Name+".png", ch.Key)
		assert.Equal(t, "mem://"+ch.Key, ch.Location)
		obj, err := store.Get(ch.Key)
		require.NoError(t, err)
		assert.Equal(t, "image/png", obj.ContentType)
		assert.Equal(t, ch.Bytes, len(obj.Data))
	}

	rec, err := hist.Get(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, c, rec.Counts)
	assert.Len(t, rec.ChartKeys, 5)
	assert.Equal(t, time.Second, res.Duration)

	_, err = json.Marshal(res)
	assert.NoError(t, err, "result must be JSON encodable")
}

func TestRun_SkipCharts(t *testing.T) {
	store := artifacts.NewMemoryStore()
	r := fixedRunner(t, Options{Store: store, SkipCharts: true})
	res, err := r.Run(context.Background(), source(crewCSV(nil)))
	require.NoError(t, err)
	assert.Empty(t, res.Charts)
	assert.Empty(t, store.Keys())
}

func TestRun_FatalErrors(t *testing.T) {
	tests := []struct {
		name string
		src  table.Source
		want error
	}{
		{
			name: "no file in directory",
			src:  table.DirSource{Dir: t.TempDir()},
			want: table.ErrFileNotFound,
		},
		{
			name: "no role column",
			src:  source(strings.Replace(crewCSV(nil), "role", "position", 1)),
			want: table.ErrMissingColumn,
		},
		{
			name: "missing measure column",
			src:  source(strings.Replace(crewCSV(nil), "fatigue_post", "fatigue_later", 1)),
			want: table.ErrMissingColumn,
		},
		{
			name: "missing value under fail policy",
			src: source(crewCSV(func(i int, row []string) {
				if i == 2 {
					row[3] = "NA"
				}
			})),
			want: table.ErrMalformedData,
		},
		{
			name: "non-numeric cell",
			src: source(crewCSV(func(i int, row []string) {
				if i == 4 {
					row[5] = "seventy"
				}
			})),
			want: table.ErrMalformedData,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := fixedRunner(t, Options{SkipCharts: true})
			res, err := r.Run(context.Background(), tt.src)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, res)
		})
	}
}

func TestRun_DropPolicy(t *testing.T) {
	plan := analysis.DefaultPlan()
	plan.Missing = table.MissingDrop

	r := fixedRunner(t, Options{Plan: plan, SkipCharts: true})
	res, err := r.Run(context.Background(), source(crewCSV(func(i int, row []string) {
		if i == 2 {
			row[3] = "NA" // spo2_in of s03, a pilot
		}
	})))
	require.NoError(t, err)

	for _, row := range res.Paired {
		uses := row.ColumnA == "spo2_in" || row.ColumnB == "spo2_in"
		if uses {
			assert.Equal(t, []string{"s03"}, row.Dropped, row.Comparison)
			assert.Equal(t, 9, row.Result.N1)
		} else {
			assert.Empty(t, row.Dropped, row.ColumnA+" "+row.ColumnB)
		}
	}
	for _, row := range res.Group {
		if row.ColumnA == "spo2_in" {
			assert.Equal(t, []string{"s03"}, row.Dropped)
			assert.Equal(t, 4, row.Result.N1)
		}
	}
}

func TestRun_RowKeyedAndIgnoredRoles(t *testing.T) {
	body := crewCSV(func(i int, row []string) {
		if i == 9 {
			row[1] = "navigator"
		}
	})
	body = strings.Replace(body, "subject,", "crew_id,", 1)

	r := fixedRunner(t, Options{SkipCharts: true})
	res, err := r.Run(context.Background(), source(body))
	require.NoError(t, err)
	assert.True(t, res.RowKeyed)
	require.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[0], "row order")
	assert.Contains(t, res.Warnings[1], "navigator")

	plan := analysis.DefaultPlan()
	plan.Strict = true
	strict := fixedRunner(t, Options{Plan: plan, SkipCharts: true})
	_, err = strict.Run(context.Background(), source(body))
	assert.ErrorIs(t, err, table.ErrMissingColumn)
}

func TestRun_PublisherFailureIsWarning(t *testing.T) {
	bad := &recordingPublisher{name: "influxdb", err: errors.New("connection refused")}
	good := &recordingPublisher{name: "history"}

	r := fixedRunner(t, Options{SkipCharts: true, Publishers: []Publisher{bad, good}})
	res, err := r.Run(context.Background(), source(crewCSV(nil)))
	require.NoError(t, err)

	require.Len(t, good.got, 1)
	assert.Same(t, res, good.got[0])
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "publishing to influxdb: connection refused")
	assert.Equal(t, 7, res.Counts().Paired)
}

func TestRun_StoreFailureKeepsCharts(t *testing.T) {
	r := fixedRunner(t, Options{Store: failingStore{}})
	res, err := r.Run(context.Background(), source(crewCSV(nil)))
	require.NoError(t, err)

	assert.Equal(t, 5, res.Counts().Charts)
	assert.Len(t, res.Warnings, 5)
	for _, ch := range res.Charts {
		assert.Empty(t, ch.Key)
		assert.Positive(t, ch.Bytes)
	}
}

func TestRun_ChartFailureIsolated(t *testing.T) {
	plan := analysis.DefaultPlan()
	plan.Missing = table.MissingDrop
	plan.Charts = append(plan.Charts, analysis.ChartSpec{Name: "hrv_bar", Kind: analysis.ChartBar, Column: "hrv_pre"})

	// hrv_pre exists but has no values, so its bar chart has nothing to draw.
	lines := strings.Split(strings.TrimSuffix(crewCSV(nil), "\n"), "\n")
	lines[0] += ",hrv_pre"
	for i := 1; i < len(lines); i++ {
		lines[i] += ",NA"
	}
	store := artifacts.NewMemoryStore()

	r := fixedRunner(t, Options{Plan: plan, Store: store})
	res, err := r.Run(context.Background(), source(strings.Join(lines, "\n")))
	require.NoError(t, err)

	c := res.Counts()
	assert.Equal(t, 5, c.Charts)
	assert.Equal(t, 1, c.ChartFailures)
	assert.Equal(t, "hrv_bar", res.Charts[5].Name)
	assert.Contains(t, res.Charts[5].Error, "no values")
	assert.Empty(t, res.Charts[5].Key)
	assert.Len(t, store.Keys(), 5)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := fixedRunner(t, Options{})
	res, err := r.Run(ctx, source(crewCSV(nil)))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestRun_CancelledBeforePublishIsWarning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pub := &recordingPublisher{name: "history"}

	r := fixedRunner(t, Options{Store: cancellingStore{cancel: cancel}, Publishers: []Publisher{pub}})
	res, err := r.Run(ctx, source(crewCSV(nil)))
	require.NoError(t, err)

	assert.Empty(t, pub.got)
	assert.Equal(t, 7, res.Counts().Paired)
	require.NotEmpty(t, res.Warnings)
	last := res.Warnings[len(res.Warnings)-1]
	assert.Contains(t, last, "results not published")
	assert.Contains(t, last, context.Canceled.Error())
}

func TestRun_NilSource(t *testing.T) {
	r := fixedRunner(t, Options{})
	_, err := r.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilSource)
}

func TestNew_InvalidPlan(t *testing.T) {
	plan := analysis.DefaultPlan()
	plan.Alpha = 2
	_, err := New(Options{Plan: plan})
	assert.ErrorIs(t, err, analysis.ErrInvalidPlan)
}

func TestNarrativeSubject(t *testing.T) {
	plan := analysis.DefaultPlan()
	assert.Equal(t, "pre-flight heart rate", narrativeSubject(plan, "bpm_pre"))
	assert.Equal(t, "in-flight oxygen saturation", narrativeSubject(plan, "spo2_in"))
	assert.Equal(t, "post-flight samn-perelli fatigue score", narrativeSubject(plan, "fatigue_post"))
	assert.Equal(t, "hrv_pre", narrativeSubject(plan, "hrv_pre"))
}
