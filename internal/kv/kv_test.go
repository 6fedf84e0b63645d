package kv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// backends that can be built without external services
func testBackends(t *testing.T) map[string]Store {
	t.Helper()
	fileStore, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("file backend: %v", err)
	}
	sqliteStore, err := NewSQLite(filepath.Join(t.TempDir(), "slots.db"))
	if err != nil {
		t.Fatalf("sqlite backend: %v", err)
	}
	return map[string]Store{
		"memory": NewMemory(),
		"file":   fileStore,
		"sqlite": sqliteStore,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()

			if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			if err := s.Set(ctx, "primary", []byte(`{"a":1}`)); err != nil {
				t.Fatalf("set: %v", err)
			}
			got, err := s.Get(ctx, "primary")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if string(got) != `{"a":1}` {
				t.Fatalf("got %q", got)
			}

			// Overwrite
			if err := s.Set(ctx, "primary", []byte(`{"a":2}`)); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			got, _ = s.Get(ctx, "primary")
			if string(got) != `{"a":2}` {
				t.Fatalf("after overwrite got %q", got)
			}

			// Delete, then delete again (idempotent)
			if err := s.Delete(ctx, "primary"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if err := s.Delete(ctx, "primary"); err != nil {
				t.Fatalf("second delete: %v", err)
			}
			if _, err := s.Get(ctx, "primary"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound after delete, got %v", err)
			}
		})
	}
}

func TestMemoryLimit(t *testing.T) {
	s := NewMemoryWithLimit(4)
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("1234")); err != nil {
		t.Fatalf("within limit: %v", err)
	}
	if err := s.Set(ctx, "k", []byte("12345")); !errors.Is(err, ErrStorageFull) {
		t.Fatalf("expected ErrStorageFull, got %v", err)
	}
	// The previous value must survive a failed write
	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != "1234" {
		t.Fatalf("previous value lost: %q err=%v", got, err)
	}
}

func TestMemoryCopiesValues(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	src := []byte("abc")
	if err := s.Set(ctx, "k", src); err != nil {
		t.Fatal(err)
	}
	src[0] = 'z'

	got, _ := s.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("stored value aliased caller slice: %q", got)
	}
	got[0] = 'z'

	again, _ := s.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("returned value aliased stored slice: %q", again)
	}
}

func TestFileSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := NewFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.Set(ctx, "financeai_data", []byte(`{"transactions":[]}`)); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2, err := NewFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s2.Get(ctx, "financeai_data")
	if err != nil || string(got) != `{"transactions":[]}` {
		t.Fatalf("data lost across reopen: %q err=%v", got, err)
	}
}

func TestFileLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(context.Background(), "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "k.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("unexpected directory contents: %v", names)
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "slots.db")
	ctx := context.Background()

	s1, err := NewSQLite(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.Set(ctx, "financeai_data", []byte(`{"x":1}`)); err != nil {
		t.Fatal(err)
	}
	if err := s1.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := NewSQLite(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	got, err := s2.Get(ctx, "financeai_data")
	if err != nil || string(got) != `{"x":1}` {
		t.Fatalf("data lost across reopen: %q err=%v", got, err)
	}
}
