package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultFileMode is applied to files published by an AtomicWriter.
const DefaultFileMode os.FileMode = 0o644

// AtomicWriter stages writes in a hidden temp file beside the target and
// publishes them with a rename, so a cache or result file is either the old
// version or the new one, never a prefix of it. After Commit, Abort is a
// no-op, which makes `defer w.Abort()` safe.
type AtomicWriter struct {
	target string
	mode   os.FileMode
	tmp    *os.File
	done   bool
}

// EnsureDir creates the directory that will hold path.
func EnsureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return nil
}

// NewAtomicWriter stages a write to path with DefaultFileMode, creating the
// parent directory when needed.
func NewAtomicWriter(path string) (*AtomicWriter, error) {
	return NewAtomicWriterMode(path, DefaultFileMode)
}

// NewAtomicWriterMode is NewAtomicWriter with an explicit file mode.
func NewAtomicWriterMode(path string, mode os.FileMode) (*AtomicWriter, error) {
	if err := EnsureDir(path); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &AtomicWriter{target: path, mode: mode, tmp: tmp}, nil
}

func (w *AtomicWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, os.ErrClosed
	}
	return w.tmp.Write(p)
}

// Commit flushes the staged bytes to disk and renames them over the target.
// On failure the temp file is removed and the target is untouched.
func (w *AtomicWriter) Commit() error {
	if w.done {
		return os.ErrClosed
	}
	w.done = true
	name := w.tmp.Name()

	err := w.tmp.Sync()
	if err == nil {
		err = w.tmp.Chmod(w.mode)
	}
	if cerr := w.tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(name, w.target)
	}
	if err != nil {
		os.Remove(name)
		return fmt.Errorf("publish %s: %w", filepath.Base(w.target), err)
	}
	return nil
}

// Abort drops the staged bytes. It does nothing after Commit.
func (w *AtomicWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	w.tmp.Close()
	if err := os.Remove(w.tmp.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// WriteAtomic runs fn against a staged copy of path and publishes it only
// if fn succeeds.
func WriteAtomic(path string, fn func(io.Writer) error) error {
	w, err := NewAtomicWriter(path)
	if err != nil {
		return err
	}
	defer w.Abort()
	if err := fn(w); err != nil {
		return err
	}
	return w.Commit()
}
