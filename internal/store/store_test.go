package store

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, ok, err := s.Get(ctx, "session:test-1"); err != nil || ok {
		t.Fatalf("Get(absent) = ok=%v err=%v, want absent", ok, err)
	}

	if err := s.Set(ctx, "session:test-1", []byte(`{"phase":"running"}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v, ok, err := s.Get(ctx, "session:test-1")
	if err != nil || !ok {
		t.Fatalf("Get = ok=%v err=%v, want present", ok, err)
	}
	if string(v) != `{"phase":"running"}` {
		t.Errorf("value = %s", v)
	}

	// Overwrite.
	if err := s.Set(ctx, "session:test-1", []byte(`{"phase":"paused"}`)); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	v, _, _ = s.Get(ctx, "session:test-1")
	if string(v) != `{"phase":"paused"}` {
		t.Errorf("value after overwrite = %s", v)
	}

	if err := s.Delete(ctx, "session:test-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "session:test-1"); ok {
		t.Error("expected key deleted")
	}

	// Deleting a missing key is not an error.
	if err := s.Delete(ctx, "nope"); err != nil {
		t.Errorf("Delete(missing): %v", err)
	}
}

func TestStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s1.Set(ctx, "offlineQueue", []byte("[]")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	v, ok, err := s2.Get(ctx, "offlineQueue")
	if err != nil || !ok {
		t.Fatalf("Get after reopen = ok=%v err=%v", ok, err)
	}
	if string(v) != "[]" {
		t.Errorf("value = %s, want []", v)
	}
}

func TestMemory_CopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	buf := []byte("abc")
	if err := m.Set(ctx, "k", buf); err != nil {
		t.Fatalf("Set: %v", err)
	}
	buf[0] = 'z'

	v, ok, _ := m.Get(ctx, "k")
	if !ok || string(v) != "abc" {
		t.Errorf("value = %s/%v, want abc (stored copy)", v, ok)
	}
}
