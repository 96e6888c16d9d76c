// Package state persists the directory fingerprint mapping between runs.
package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shipit-dev/shipit/pkg/logging"
	"go.uber.org/zap"
)

// Store maps directory identifiers to their last successfully built
// fingerprint. It is read once at run start and written at most once,
// after all builds succeed.
type Store struct {
	entries map[string]string
}

// New returns an empty store
func New() *Store {
	return &Store{entries: make(map[string]string)}
}

// Load reads the persisted mapping. A missing, empty, or unparsable file
// yields an empty store and never fails the run.
func Load(path string) *Store {
	st := New()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Logger.Warn("State file unreadable, starting from an empty store",
				zap.String("file", path),
				zap.Error(err))
		}
		return st
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return st
	}

	if err := json.Unmarshal(data, &st.entries); err != nil {
		logging.Logger.Warn("State file corrupt, starting from an empty store",
			zap.String("file", path),
			zap.Error(err))
		st.entries = make(map[string]string)
	}

	return st
}

// Get returns the stored digest for a directory identifier. A missing entry
// means the directory was never built.
func (s *Store) Get(id string) (string, bool) {
	digest, ok := s.entries[id]
	return digest, ok
}

// Put sets exactly one entry, leaving all other keys untouched
func (s *Store) Put(id, digest string) {
	s.entries[id] = digest
}

// Len returns the number of stored entries
func (s *Store) Len() int {
	return len(s.entries)
}

// Save persists the whole mapping. Write-temp-then-rename so an interrupted
// run never leaves a half-written document behind.
func (s *Store) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	return nil
}
