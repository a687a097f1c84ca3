// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package artifacts stores rendered charts and exports under run-scoped
// keys in a local directory, memory, Google Cloud Storage or S3.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

var (
	// ErrInvalidKey indicates an empty, absolute or escaping key.
	ErrInvalidKey = errors.New("invalid artifact key")

	// ErrNotFound indicates a key with no stored artifact.
	ErrNotFound = errors.New("artifact not found")

	// ErrUnknownKind indicates an unsupported store kind in Config.
	ErrUnknownKind = errors.New("unknown artifact store kind")
)

// Store persists artifact bytes.
//
// Description:
//
//	Keys are slash separated and relative, e.g. "<run-id>/spo2_box.png".
//	Put overwrites an existing key. The returned location is how a person
//	finds the artifact: a file path, gs:// or s3:// URL, or mem:// key.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (location string, err error)
	Close() error
}

// Key joins a run id and file name into an artifact key.
func Key(runID, name string) string {
	return path.Join(runID, name)
}

// cleanKey rejects keys that could escape the store root.
func cleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q is not a relative slash path", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q contains '..'", ErrInvalidKey, key)
		}
	}
	return path.Clean(key), nil
}

// withPrefix prepends a configured object prefix.
func withPrefix(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Kind selects a Store implementation.
type Kind string

const (
	KindDir    Kind = "dir"
	KindMemory Kind = "memory"
	KindGCS    Kind = "gcs"
	KindS3     Kind = "s3"
)

// Config selects and configures the artifact store.
type Config struct {
	Kind Kind      `yaml:"kind" json:"kind" validate:"omitempty,oneof=dir memory gcs s3"`
	Dir  string    `yaml:"dir" json:"dir"`
	GCS  GCSConfig `yaml:"gcs" json:"gcs"`
	S3   S3Config  `yaml:"s3" json:"s3"`
}

// Open builds the store described by cfg. An empty kind is a directory
// store rooted at cfg.Dir.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Kind {
	case KindDir, "":
		return NewDirStore(cfg.Dir)
	case KindMemory:
		return NewMemoryStore(), nil
	case KindGCS:
		return NewGCSStore(ctx, cfg.GCS)
	case KindS3:
		return NewS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}
