// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history persists a summary of every analysis run in an embedded
// BadgerDB so past runs can be listed and inspected from the CLI.
//
// Key layout:
//
//	run/<started-at unix nanos, 20 digits>/<run-id>  -> Record JSON
//	id/<run-id>                                      -> run/... key
//
// The zero-padded timestamp makes lexical key order chronological, so a
// reverse prefix scan yields newest-first listings without sorting.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/AleutianAI/flightload/services/workload/analysis"
	"github.com/dgraph-io/badger/v4"
)

var (
	// ErrNotFound indicates no record exists for a run id.
	ErrNotFound = errors.New("run not found")

	// ErrInvalidRecord indicates a record that cannot be stored.
	ErrInvalidRecord = errors.New("invalid history record")
)

const (
	runPrefix = "run/"
	idPrefix  = "id/"
)

// Record is the persisted summary of one run.
type Record struct {
	RunID     string          `json:"run_id"`
	Source    string          `json:"source"`
	Digest    string          `json:"digest,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration_ns"`
	Counts    analysis.Counts `json:"counts"`

	// Significant lists the group-test columns with p < alpha.
	Significant []string `json:"significant,omitempty"`

	ChartKeys []string `json:"chart_keys,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// FromResult summarises a run result.
func FromResult(r *analysis.Result) Record {
	rec := Record{
		RunID:     r.RunID,
		Source:    r.Source,
		Digest:    r.Digest,
		StartedAt: r.StartedAt,
		Duration:  r.Duration,
		Counts:    r.Counts(),
		Warnings:  append([]string(nil), r.Warnings...),
	}
	for _, row := range r.Group {
		if row.OK() && row.Result.Significant {
			rec.Significant = append(rec.Significant, row.ColumnA)
		}
	}
	for _, ch := range r.Charts {
		if ch.Key != "" {
			rec.ChartKeys = append(rec.ChartKeys, ch.Key)
		}
	}
	return rec
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config holds configuration for the history database.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string `yaml:"path" json:"path"`

	// InMemory enables in-memory mode (no disk persistence). Useful for testing.
	InMemory bool `yaml:"-" json:"-"`

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool `yaml:"sync_writes" json:"sync_writes"`

	// GCInterval is how often to run value log garbage collection.
	// Zero disables it; only long-lived processes (watch) benefit.
	GCInterval time.Duration `yaml:"gc_interval" json:"gc_interval"`

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	GCDiscardRatio float64 `yaml:"gc_discard_ratio" json:"gc_discard_ratio"`

	// Logger receives BadgerDB's internal logs. Nil disables them.
	Logger *slog.Logger `yaml:"-" json:"-"`
}

// DefaultConfig returns durable defaults rooted at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------
// Store
// -----------------------------------------------------------------------------

// Store reads and writes run records.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db       *badger.DB
	gcRunner *gcRunner
}

// Open opens the history database described by cfg.
//
// Description:
//
//	Opens BadgerDB at cfg.Path, creating the directory, or in memory when
//	cfg.InMemory is set. Starts value log GC when cfg.GCInterval > 0.
//
// Outputs:
//
//	*Store - Caller must call Close().
//	error - Non-nil if the path is empty or the database cannot be opened.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("history path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create history directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	s := &Store{db: db}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		ratio := cfg.GCDiscardRatio
		if ratio <= 0 || ratio > 1 {
			ratio = 0.5
		}
		s.gcRunner = newGCRunner(db, cfg.GCInterval, ratio, cfg.Logger)
		s.gcRunner.start()
	}
	return s, nil
}

// OpenInMemory opens an empty in-memory store.
func OpenInMemory() (*Store, error) {
	return Open(InMemoryConfig())
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	if s.gcRunner != nil {
		s.gcRunner.stop()
	}
	return s.db.Close()
}

func runKey(rec Record) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", runPrefix, rec.StartedAt.UnixNano(), rec.RunID))
}

func idKey(runID string) []byte {
	return []byte(idPrefix + runID)
}

// Save stores rec, replacing any earlier record with the same run id.
func (s *Store) Save(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if rec.RunID == "" {
		return fmt.Errorf("%w: empty run id", ErrInvalidRecord)
	}
	if rec.StartedAt.IsZero() || rec.StartedAt.UnixNano() < 0 {
		return fmt.Errorf("%w: run %s has no start time", ErrInvalidRecord, rec.RunID)
	}
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", rec.RunID, err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(rec.RunID))
		switch {
		case err == nil:
			old, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := txn.Delete(old); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		key := runKey(rec)
		if err := txn.Set(key, val); err != nil {
			return err
		}
		return txn.Set(idKey(rec.RunID), key)
	})
}

// Name identifies the store as a result publisher.
func (s *Store) Name() string { return "history" }

// Publish saves the summary of a finished run.
func (s *Store) Publish(ctx context.Context, r *analysis.Result) error {
	return s.Save(ctx, FromResult(r))
}

// Get returns the record for runID.
func (s *Store) Get(ctx context.Context, runID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, fmt.Errorf("context cancelled: %w", err)
	}
	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(runID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err = txn.Get(key)
		if err != nil {
			return fmt.Errorf("run %s: dangling index: %w", runID, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	return rec, err
}

// List returns up to limit records, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	var out []Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(runPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration must seek past the last key with the prefix.
		seek := append([]byte(runPrefix), 0xFF)
		for it.Seek(seek); it.ValidForPrefix([]byte(runPrefix)); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, rec)
			if limit > 0 && len(out) >= limit {
				return nil
			}
		}
		return nil
	})
	return out, err
}

// Delete removes the record for runID.
func (s *Store) Delete(ctx context.Context, runID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(runID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(idKey(runID))
	})
}

// -----------------------------------------------------------------------------
// Garbage collection
// -----------------------------------------------------------------------------

// gcRunner runs periodic value log garbage collection.
type gcRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	stopCh   chan struct{}
	doneCh   chan struct{}
	logger   *slog.Logger
}

func newGCRunner(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger) *gcRunner {
	return &gcRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (r *gcRunner) start() {
	go r.run()
}

func (r *gcRunner) stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *gcRunner) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.runGC()
		}
	}
}

func (r *gcRunner) runGC() {
	// ErrNoRewrite means nothing needed collecting.
	err := r.db.RunValueLogGC(r.ratio)
	if err == nil {
		if r.logger != nil {
			r.logger.Debug("history value log GC completed")
		}
	} else if !errors.Is(err, badger.ErrNoRewrite) && r.logger != nil {
		r.logger.Warn("history value log GC error", slog.String("error", err.Error()))
	}
}
