// Package store persists the serialized browser session at its
// well-known path. The blob is opaque here; only the browser engine
// interprets it.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

var (
	// ErrNotFound means no session has been saved yet.
	ErrNotFound = errors.New("session state not found")

	// ErrCorrupt means a file exists but cannot be trusted. Callers
	// treat it like an absent session and re-authenticate.
	ErrCorrupt = errors.New("session state corrupt")
)

// Session artifacts are restricted to the current user.
const (
	dirMode  = 0o700
	fileMode = 0o600
)

const stateFileName = "storage_state.json"

type Store struct {
	path string
}

func New(dataDir string) *Store {
	return &Store{path: filepath.Join(dataDir, stateFileName)}
}

func (s *Store) Path() string { return s.path }

// Load returns the saved blob. A missing file is ErrNotFound; an
// unreadable file or one that is not a JSON object is ErrCorrupt.
func (s *Store) Load() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var probe map[string]any
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return data, nil
}

func (s *Store) Save(blob []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	// MkdirAll leaves an existing directory's mode alone.
	_ = os.Chmod(dir, dirMode)

	if err := os.WriteFile(s.path, blob, fileMode); err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	_ = os.Chmod(s.path, fileMode)
	return nil
}

// Clear removes the saved session. Removing an absent one is fine.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear session state: %w", err)
	}
	return nil
}
