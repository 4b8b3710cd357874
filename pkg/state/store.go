package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Common state persistence errors that can be checked with errors.Is().
var (
	// ErrNotExist is returned by Load when the state file does not exist.
	// Callers treat this as cold state, not a failure.
	ErrNotExist = errors.New("state file does not exist")

	// ErrCorrupt is returned by Load when the state file cannot be decoded.
	ErrCorrupt = errors.New("state file is corrupt")
)

// CorruptStateError is returned when a state file exists but cannot be
// decoded as JSON. The dispatch path treats it the same as a missing file.
type CorruptStateError struct {
	// Path is the state file path.
	Path string

	// Err is the underlying decode error.
	Err error
}

// Error implements the error interface.
func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("state file %q is corrupt: %v", e.Path, e.Err)
}

// Is implements error matching for errors.Is().
func (e *CorruptStateError) Is(target error) bool {
	return target == ErrCorrupt
}

// Unwrap returns the wrapped error for error chain traversal.
func (e *CorruptStateError) Unwrap() error {
	return e.Err
}

// FileStore persists a single JSON document with atomic replace semantics.
// Writers marshal the value to a temporary file in the same directory and
// rename it over the target, so a crash mid-write leaves the previous
// version intact. The store itself holds no in-memory state; callers own
// serialization of their writes.
type FileStore struct {
	// path is the target state file path.
	path string
}

// NewFileStore creates a file store for the given path.
// Parent directories are created lazily on the first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the state file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads and decodes the state file into v.
//
// Returns ErrNotExist if the file is absent and a CorruptStateError if it
// exists but cannot be decoded. Both are recoverable: the caller should
// proceed with zero-value (cold) state.
func (s *FileStore) Load(v any) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotExist
		}
		return fmt.Errorf("failed to read state file %q: %w", s.path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return &CorruptStateError{Path: s.path, Err: err}
	}

	return nil
}

// Save encodes v and atomically replaces the state file.
//
// The temporary file is created in the target directory (rename is only
// atomic within a filesystem) with 0600 permissions since state may
// reference credential identifiers.
func (s *FileStore) Save(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	// Any failure past this point must not leave the temp file behind.
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync temp state file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		cleanup()
		return fmt.Errorf("failed to chmod temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace state file %q: %w", s.path, err)
	}

	return nil
}
