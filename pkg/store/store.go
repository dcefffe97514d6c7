// Package store persists histogram snapshots across process restarts.
// It is strictly optional: the in-memory aggregator stays authoritative
// and every failure here is log-and-continue territory for callers.
package store

import (
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// SnapshotStore writes exported aggregator state to a single gob file.
type SnapshotStore struct {
	logger *slog.Logger
	path   string
}

// New creates a SnapshotStore writing to path. The parent directory is
// created on the first Save.
func New(path string, logger *slog.Logger) *SnapshotStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotStore{path: path, logger: logger}
}

// DefaultPath returns the snapshot location under the user cache
// directory, or an empty string when that cannot be determined.
func DefaultPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "avail", "histogram.gob")
}

// Load reads the last snapshot. A missing file is not an error; it
// returns an empty state, matching a cold start.
func (s *SnapshotStore) Load() (map[int][]float64, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("no histogram snapshot found", "path", s.path)
			return map[int][]float64{}, nil
		}
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			s.logger.Debug("failed to close snapshot file", "error", closeErr)
		}
	}()

	var state map[int][]float64
	if err := gob.NewDecoder(file).Decode(&state); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}

	s.logger.Info("histogram snapshot loaded", "path", s.path, "hours", len(state))
	return state, nil
}

// Save writes state atomically: temp file, fsync, rename.
func (s *SnapshotStore) Save(state map[int][]float64) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	defer func() {
		if removeErr := os.Remove(tempPath); removeErr != nil && !os.IsNotExist(removeErr) {
			s.logger.Debug("failed to remove temp snapshot", "error", removeErr)
		}
	}()

	if err := gob.NewEncoder(file).Encode(state); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("syncing snapshot: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing snapshot: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}

	s.logger.Info("histogram snapshot saved", "path", s.path, "hours", len(state))
	return nil
}
