// Package storage persists dubber's flat key/value data (the translation
// cache) as a single JSON file with atomic writes and a cross-process lock.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common storage conditions.
var (
	// ErrInvalidInput indicates invalid or malformed input was provided.
	ErrInvalidInput = errors.New("storage: invalid input")
	// ErrStorageCorrupt indicates the backing file could not be decoded.
	ErrStorageCorrupt = errors.New("storage: data corruption detected")
	// ErrLockTimeout indicates a timeout acquiring a file lock.
	ErrLockTimeout = errors.New("storage: lock acquisition timeout")
)

// StorageError wraps storage errors with operation and path context.
// Use errors.As() to extract this error type and get operation details:
//
//	var storErr *storage.StorageError
//	if errors.As(err, &storErr) {
//		fmt.Printf("Failed to %s %s: %v\n", storErr.Op, storErr.Path, storErr.Err)
//	}
type StorageError struct {
	// Op is the operation that failed ("load", "save", "remove", "lock").
	Op string
	// Path is the backing file.
	Path string
	// Err is the underlying error that occurred.
	Err error
}

// Error returns a string representation of the storage error.
func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *StorageError) Unwrap() error { return e.Err }

// KeyValueStore persists a flat string map as a whole.
// Implementations must be safe for concurrent use.
type KeyValueStore interface {
	// Load returns the persisted map. A missing backing file yields an
	// empty map and no error.
	Load(ctx context.Context) (map[string]string, error)
	// Save replaces the persisted map with entries.
	Save(ctx context.Context, entries map[string]string) error
	// Remove deletes the backing file. Removing a missing file is not an error.
	Remove(ctx context.Context) error
	// Path returns the backing file location.
	Path() string
}
