// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/AleutianAI/flightload/services/workload/analysis"
	"github.com/AleutianAI/flightload/services/workload/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func record(id string, offset time.Duration) Record {
	return Record{
		RunID:     id,
		Source:    "crew.xlsx",
		Digest:    "abc123",
		StartedAt: base.Add(offset),
		Duration:  1500 * time.Millisecond,
		Counts:    analysis.Counts{Paired: 7, Group: 6, Normality: 17, EffectSizes: 1, Charts: 5},
	}
}

func openMem(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SaveGet(t *testing.T) {
	s := openMem(t)
	ctx := context.Background()

	want := record("run-a", 0)
	want.ChartKeys = []string{"run-a/spo2_box.png"}
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Get(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, want.RunID, got.RunID)
	assert.Equal(t, want.Counts, got.Counts)
	assert.Equal(t, want.ChartKeys, got.ChartKeys)
	assert.True(t, want.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, want.Duration, got.Duration)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := openMem(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, record("second", time.Hour)))
	require.NoError(t, s.Save(ctx, record("first", 0)))
	require.NoError(t, s.Save(ctx, record("third", 2*time.Hour)))

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	ids := make([]string, len(all))
	for i, r := range all {
		ids[i] = r.RunID
	}
	assert.Equal(t, []string{"third", "second", "first"}, ids)

	two, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, two, 2)
	assert.Equal(t, "third", two[0].RunID)
}

func TestStore_SaveReplaces(t *testing.T) {
	s := openMem(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, record("run", 0)))
	updated := record("run", time.Minute)
	updated.Warnings = []string{"publish failed"}
	require.NoError(t, s.Save(ctx, updated))

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, []string{"publish failed"}, all[0].Warnings)
}

func TestStore_Delete(t *testing.T) {
	s := openMem(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, record("run", 0)))
	require.NoError(t, s.Delete(ctx, "run"))
	_, err := s.Get(ctx, "run")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "run"), ErrNotFound)

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStore_SaveInvalid(t *testing.T) {
	s := openMem(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Save(ctx, Record{StartedAt: base}), ErrInvalidRecord)
	assert.ErrorIs(t, s.Save(ctx, Record{RunID: "x"}), ErrInvalidRecord)
}

func TestStore_Cancelled(t *testing.T) {
	s := openMem(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Save(ctx, record("run", 0)), context.Canceled)
	_, err := s.List(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.Get(ctx, "run")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_Persistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := DefaultConfig(dir)
	cfg.GCInterval = time.Hour
	s, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, record("kept", 0)))
	require.NoError(t, s.Close())

	s2, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.Get(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, "crew.xlsx", got.Source)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestFromResult(t *testing.T) {
	r := &analysis.Result{
		RunID:     "run-1",
		Source:    "crew.csv",
		StartedAt: base,
		Group: []analysis.TestRow{
			{Kind: analysis.KindGroup, ColumnA: "bpm_pre", Result: &stats.TTestResult{Significant: true}},
			{Kind: analysis.KindGroup, ColumnA: "spo2_pre", Result: &stats.TTestResult{}},
			{Kind: analysis.KindGroup, ColumnA: "spo2_in", Error: "insufficient"},
		},
		Charts: []analysis.ChartRow{
			{Name: "spo2_box", Key: "run-1/spo2_box.png"},
			{Name: "bpm_bar", Error: "boom"},
		},
		Warnings: []string{"w"},
	}

	rec := FromResult(r)
	assert.Equal(t, "run-1", rec.RunID)
	assert.Equal(t, []string{"bpm_pre"}, rec.Significant)
	assert.Equal(t, []string{"run-1/spo2_box.png"}, rec.ChartKeys)
	assert.Equal(t, 3, rec.Counts.Group)
	assert.Equal(t, 1, rec.Counts.TestFailures)
	assert.Equal(t, 1, rec.Counts.ChartFailures)
}

func TestStore_ManyRuns(t *testing.T) {
	s := openMem(t)
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		require.NoError(t, s.Save(ctx, record(fmt.Sprintf("run-%02d", i), time.Duration(i)*time.Second)))
	}
	latest, err := s.List(ctx, 5)
	require.NoError(t, err)
	require.Len(t, latest, 5)
	assert.Equal(t, "run-49", latest[0].RunID)
	assert.Equal(t, "run-45", latest[4].RunID)
}

func TestStore_Publish(t *testing.T) {
	s := openMem(t)
	ctx := context.Background()
	assert.Equal(t, "history", s.Name())

	r := &analysis.Result{RunID: "run-p", Source: "crew.csv", StartedAt: base, Duration: time.Second}
	require.NoError(t, s.Publish(ctx, r))

	got, err := s.Get(ctx, "run-p")
	require.NoError(t, err)
	assert.Equal(t, "crew.csv", got.Source)
	assert.Equal(t, time.Second, got.Duration)
}
