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
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultExtensions are the file types DirSource considers.
var DefaultExtensions = []string{".xlsx", ".csv"}

// Source provides the raw observation file.
//
// Description:
//
//	Open returns a display name (used to pick the parser by extension and
//	to report which file was analysed) and a reader the caller must close.
//
// Thread Safety: Implementations must be safe to Open repeatedly; watch
// mode re-opens the same source on every change.
type Source interface {
	Open(ctx context.Context) (name string, rc io.ReadCloser, err error)
}

// DirSource picks the lexicographically last matching file in Dir.
type DirSource struct {
	Dir        string
	Extensions []string
}

// Resolve returns the path DirSource would open.
func (s DirSource) Resolve() (string, error) {
	exts := s.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: directory %s does not exist", ErrFileNotFound, s.Dir)
		}
		return "", fmt.Errorf("reading %s: %w", s.Dir, err)
	}

	var matches []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), "~$") {
			continue
		}
		if hasExtension(e.Name(), exts) {
			matches = append(matches, e.Name())
		}
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: no %s file in %s", ErrFileNotFound, strings.Join(exts, "/"), s.Dir)
	}
	sort.Strings(matches)
	return filepath.Join(s.Dir, matches[len(matches)-1]), nil
}

// Open implements Source.
func (s DirSource) Open(ctx context.Context) (string, io.ReadCloser, error) {
	path, err := s.Resolve()
	if err != nil {
		return "", nil, err
	}
	return FileSource{Path: path}.Open(ctx)
}

// FileSource opens an explicit path.
type FileSource struct {
	Path string
}

// Open implements Source.
func (s FileSource) Open(ctx context.Context) (string, io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("%w: %s", ErrFileNotFound, s.Path)
		}
		return "", nil, fmt.Errorf("opening %s: %w", s.Path, err)
	}
	return s.Path, f, nil
}

// ReaderSource wraps an already open stream such as stdin. Name decides
// the format; a name without a known extension is read as CSV.
type ReaderSource struct {
	Name   string
	Reader io.Reader
}

// Open implements Source.
func (s ReaderSource) Open(ctx context.Context) (string, io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	if s.Reader == nil {
		return "", nil, fmt.Errorf("%w: no reader for %s", ErrFileNotFound, s.Name)
	}
	return s.Name, io.NopCloser(s.Reader), nil
}

func hasExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}
