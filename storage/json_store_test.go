package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *JSONStore {
	t.Helper()
	store, err := NewJSONStore(filepath.Join(t.TempDir(), "cache", "translations.json"))
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}
	return store
}

func TestNewJSONStoreRejectsEmptyPath(t *testing.T) {
	_, err := NewJSONStore("  ")
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("NewJSONStore(\"\") error = %v, want ErrInvalidInput", err)
	}
}

func TestJSONStore_LoadMissingFile(t *testing.T) {
	store := newTestStore(t)

	entries, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Load() = %v, want empty map", entries)
	}
	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Error("Load() created the backing file")
	}
}

func TestJSONStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := map[string]string{
		"en:tr:abc": "merhaba",
		"en:de:def": "hallo <welt> & co",
	}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reopened, err := NewJSONStore(store.Path())
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}
	got, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Load() returned %d entries, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Load()[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestJSONStore_SaveReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Save(ctx, map[string]string{"a": "1", "b": "2"})
	store.Save(ctx, map[string]string{"c": "3"})

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 1 || got["c"] != "3" {
		t.Errorf("Load() = %v, want only c", got)
	}
}

func TestJSONStore_LoadCorrupt(t *testing.T) {
	store := newTestStore(t)
	if err := os.MkdirAll(filepath.Dir(store.Path()), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(store.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := store.Load(context.Background())
	if !errors.Is(err, ErrStorageCorrupt) {
		t.Fatalf("Load() error = %v, want ErrStorageCorrupt", err)
	}
	var storErr *StorageError
	if !errors.As(err, &storErr) || storErr.Op != "load" {
		t.Errorf("Load() error = %#v, want StorageError{Op: load}", err)
	}
}

func TestJSONStore_LoadEmptyFile(t *testing.T) {
	store := newTestStore(t)
	os.MkdirAll(filepath.Dir(store.Path()), 0755)
	os.WriteFile(store.Path(), []byte("\n"), 0644)

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load() = %v, want empty", got)
	}
}

func TestJSONStore_Remove(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Remove(ctx); err != nil {
		t.Errorf("Remove() on missing file error = %v", err)
	}

	store.Save(ctx, map[string]string{"k": "v"})
	if err := store.Remove(ctx); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Error("Remove() left the backing file behind")
	}
}

func TestJSONStore_NoTempFilesLeft(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := store.Save(ctx, map[string]string{"k": "v"}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(store.Path()), "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestJSONStore_ConcurrentSaves(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := store.Save(ctx, map[string]string{"writer": string(rune('a' + i))}); err != nil {
				t.Errorf("Save() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() after concurrent saves error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Load() = %v, want exactly one writer's map", got)
	}
}

func TestFileLock_Timeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.json")
	ctx := context.Background()

	first := NewFileLock(path)
	if err := first.Lock(ctx, time.Second); err != nil {
		t.Fatalf("first Lock() error = %v", err)
	}
	defer first.Unlock()

	second := NewFileLock(path)
	err := second.Lock(ctx, 50*time.Millisecond)
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("second Lock() error = %v, want ErrLockTimeout", err)
	}
}

func TestFileLock_ReleasedAfterUnlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.json")
	ctx := context.Background()

	first := NewFileLock(path)
	if err := first.Lock(ctx, time.Second); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	first.Unlock()

	second := NewFileLock(path)
	if err := second.Lock(ctx, time.Second); err != nil {
		t.Fatalf("Lock() after Unlock error = %v", err)
	}
	second.Unlock()
}

func TestAtomicWriter_Abort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")

	w, err := NewAtomicWriter(path)
	if err != nil {
		t.Fatalf("NewAtomicWriter() error = %v", err)
	}
	w.Write([]byte("partial"))
	if err := w.Abort(); err != nil {
		t.Fatalf("Abort() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Abort() produced the target file")
	}
}

func TestJSONStore_SaveCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh", "dubber", "translations.json")
	store, err := NewJSONStore(path)
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}
	ctx := context.Background()

	if err := store.Remove(ctx); err != nil {
		t.Errorf("Remove() before first save error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(path)); !os.IsNotExist(err) {
		t.Error("Remove() created the cache directory")
	}

	if err := store.Save(ctx, map[string]string{"k": "v"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got["k"] != "v" {
		t.Errorf("Load() = %v, want k=v", got)
	}
}

func TestAtomicWriter_CommitPublishes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "result.json")

	w, err := NewAtomicWriter(path)
	if err != nil {
		t.Fatalf("NewAtomicWriter() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("target visible before Commit()")
	}
	w.Write([]byte(`{"ok":true}`))
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if err := w.Abort(); err != nil {
		t.Errorf("Abort() after Commit() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != DefaultFileMode {
		t.Errorf("mode = %v, want %v", info.Mode().Perm(), DefaultFileMode)
	}
	if _, err := w.Write([]byte("late")); !errors.Is(err, os.ErrClosed) {
		t.Errorf("Write() after Commit() error = %v, want os.ErrClosed", err)
	}
}

func TestWriteAtomic_FailureKeepsTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("encode failed")
	err := WriteAtomic(path, func(w io.Writer) error {
		w.Write([]byte("half"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WriteAtomic() error = %v, want %v", err, boom)
	}
	if data, _ := os.ReadFile(path); string(data) != "old" {
		t.Errorf("target = %q, want old content", data)
	}
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}
