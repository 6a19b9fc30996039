package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const defaultLockTimeout = 5 * time.Second

// JSONStore implements KeyValueStore as one flat JSON object on disk.
// Every write goes through WriteAtomic while holding the FileLock.
type JSONStore struct {
	path        string
	lockTimeout time.Duration
	mu          sync.Mutex
}

// NewJSONStore returns a store backed by path. Nothing is read or created
// until the first Load or Save.
func NewJSONStore(path string) (*JSONStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &StorageError{Op: "open", Err: ErrInvalidInput}
	}
	return &JSONStore{path: path, lockTimeout: defaultLockTimeout}, nil
}

// Path returns the backing file location.
func (s *JSONStore) Path() string { return s.path }

// Load reads the file. A missing or empty file is an empty map; undecodable
// content is reported as ErrStorageCorrupt.
func (s *JSONStore) Load(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, &StorageError{Op: "load", Path: s.path, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]string{}, nil
	}

	entries := make(map[string]string)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &StorageError{Op: "load", Path: s.path, Err: errors.Join(ErrStorageCorrupt, err)}
	}
	return entries, nil
}

// Save atomically replaces the file with entries, creating its directory on
// first use.
func (s *JSONStore) Save(ctx context.Context, entries map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := EnsureDir(s.path); err != nil {
		return &StorageError{Op: "save", Path: s.path, Err: err}
	}
	lock := NewFileLock(s.path)
	if err := lock.Lock(ctx, s.lockTimeout); err != nil {
		return err
	}
	defer lock.Unlock()

	if entries == nil {
		entries = map[string]string{}
	}
	err := WriteAtomic(s.path, func(w io.Writer) error {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		encoder.SetEscapeHTML(false)
		return encoder.Encode(entries)
	})
	if err != nil {
		return &StorageError{Op: "save", Path: s.path, Err: err}
	}
	return nil
}

// Remove deletes the backing file if present. A store whose directory was
// never created has nothing to remove.
func (s *JSONStore) Remove(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(filepath.Dir(s.path)); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	lock := NewFileLock(s.path)
	if err := lock.Lock(ctx, s.lockTimeout); err != nil {
		return err
	}
	defer lock.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &StorageError{Op: "remove", Path: s.path, Err: err}
	}
	return nil
}
