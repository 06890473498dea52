// Package store persists the singleton portfolio document as a JSON file.
// Saves are crash-safe (temp file + rename) and ticks are serialized by an
// advisory file lock held for the duration of a tick.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"vietnam-stock-trader/models"
)

// lockRetryInterval is how often a blocked lock acquisition re-checks.
const lockRetryInterval = 50 * time.Millisecond

// Store owns the canonical portfolio document path.
type Store struct {
	path string
	lock *flock.Flock
}

// New creates a store for the document at path. The parent directory is
// created on first save.
func New(path string) *Store {
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the canonical document path.
func (s *Store) Path() string {
	return s.path
}

// Lock acquires the advisory file lock, blocking until acquired or ctx is
// done. Concurrent writers are forbidden by construction: the decision
// engine holds this lock across a full tick.
func (s *Store) Lock(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	ok, err := s.lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("failed to acquire portfolio lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("portfolio lock not acquired")
	}
	return nil
}

// Unlock releases the advisory file lock.
func (s *Store) Unlock() error {
	return s.lock.Unlock()
}

// Load reads the portfolio document. A missing document returns (nil, nil)
// so the caller can run its one-time initialization.
func (s *Store) Load() (*models.Portfolio, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read portfolio: %w", err)
	}
	var p models.Portfolio
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode portfolio: %w", err)
	}
	return &p, nil
}

// Save writes the document atomically: marshal to a temp file in the same
// directory, fsync, then rename over the canonical path. A crash mid-save
// leaves the previous document intact.
func (s *Store) Save(p *models.Portfolio) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode portfolio: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write portfolio: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync portfolio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace portfolio: %w", err)
	}
	return nil
}
