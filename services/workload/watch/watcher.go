// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch re-runs the analysis when the data directory changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrAlreadyRunning indicates Run was called on a watcher that is running.
var ErrAlreadyRunning = errors.New("watcher already running")

// Op is the type of a file change.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

// String returns the string representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Change is one file system event on a data file.
type Change struct {
	Path string
	Op   Op
	Time time.Time
}

// RunFunc performs one analysis. changes is empty for the initial run.
type RunFunc func(ctx context.Context, changes []Change)

// Options configures a Watcher.
type Options struct {
	// Debounce is how long the directory must be quiet before a run.
	// Default: 500ms.
	Debounce time.Duration

	// Extensions limits events to data files. Default: .xlsx and .csv.
	Extensions []string

	// RunOnStart performs one run before any change arrives.
	RunOnStart bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns a 500ms debounce over .xlsx and .csv files.
func DefaultOptions() Options {
	return Options{
		Debounce:   500 * time.Millisecond,
		Extensions: []string{".xlsx", ".csv"},
		RunOnStart: true,
	}
}

// Watcher triggers runs on debounced changes in one directory.
//
// Description:
//
//	Events are collected until the directory has been quiet for the
//	debounce window, then one run starts. Only one run executes at a time;
//	changes that settle while a run is in progress are coalesced into a
//	single follow-up run that sees all of them.
//
// Thread Safety: Run must be called once. Other methods are safe for
// concurrent use.
type Watcher struct {
	dir  string
	run  RunFunc
	opts Options

	mu      sync.Mutex
	pending []Change
	running bool

	// wake holds at most one queued run.
	wake chan struct{}
}

// New creates a watcher for dir. Nothing is watched until Run.
func New(dir string, run RunFunc, opts Options) (*Watcher, error) {
	if run == nil {
		return nil, errors.New("watch: nil run function")
	}
	d := DefaultOptions()
	if opts.Debounce <= 0 {
		opts.Debounce = d.Debounce
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = d.Extensions
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Watcher{
		dir:  dir,
		run:  run,
		opts: opts,
		wake: make(chan struct{}, 1),
	}, nil
}

// Run watches until ctx is cancelled, then waits for any run in progress.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyRunning
	}
	w.running = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.opts.Logger.Info("watching for data changes", "dir", w.dir, "debounce", w.opts.Debounce)

	if w.opts.RunOnStart {
		w.schedule()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.runLoop(ctx)
	}()

	w.eventLoop(ctx, fw)
	wg.Wait()
	return nil
}

// eventLoop debounces fsnotify events until ctx is done.
func (w *Watcher) eventLoop(ctx context.Context, fw *fsnotify.Watcher) {
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if !w.relevant(event.Name) {
				continue
			}
			w.mu.Lock()
			w.pending = append(w.pending, Change{Path: event.Name, Op: convertOp(event.Op), Time: time.Now()})
			w.mu.Unlock()

			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.opts.Debounce)
			}

		case <-timerC:
			timer, timerC = nil, nil
			w.schedule()

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.opts.Logger.Warn("file watcher error", "dir", w.dir, "error", err)
		}
	}
}

// schedule queues a run. A run already queued absorbs this one.
func (w *Watcher) schedule() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// runLoop executes queued runs one at a time.
func (w *Watcher) runLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
			w.mu.Lock()
			changes := dedupe(w.pending)
			w.pending = nil
			w.mu.Unlock()

			w.opts.Logger.Info("running analysis", "dir", w.dir, "changes", len(changes))
			w.run(ctx, changes)
		}
	}
}

// relevant reports whether path is a data file worth re-running for.
func (w *Watcher) relevant(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, e := range w.opts.Extensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Write):
		return OpWrite
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}

// dedupe keeps the latest change per path, in first-seen order.
func dedupe(changes []Change) []Change {
	seen := make(map[string]int)
	out := make([]Change, 0, len(changes))
	for _, c := range changes {
		if i, ok := seen[c.Path]; ok {
			out[i] = c
			continue
		}
		seen[c.Path] = len(out)
		out = append(out, c)
	}
	return out
}
