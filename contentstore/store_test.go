package contentstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	payload := []byte("city traffic counts 2019-2024")
	hash, err := store.Put(ctx, payload)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if hash != HashBytes(payload) {
		t.Errorf("hash mismatch: %s", hash)
	}

	// Idempotent: same bytes, same hash.
	again, err := store.Put(ctx, payload)
	if err != nil {
		t.Fatalf("second put: %v", err)
	}
	if again != hash {
		t.Errorf("expected identical hash on re-put, got %s and %s", hash, again)
	}

	got, err := store.Get(ctx, hash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("roundtrip mismatch: %q", got)
	}

	if _, err := store.Get(ctx, "deadbeef"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not-found for unknown hash, got %v", err)
	}
	if _, err := store.Put(ctx, nil); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("expected empty-content rejection, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestBoltStore(t *testing.T) {
	store, err := OpenBoltStore(filepath.Join(t.TempDir(), "blobs", "content.db"))
	if err != nil {
		t.Fatalf("open bolt store: %v", err)
	}
	defer store.Close()

	testStore(t, store)
}

func TestFactorySelectsBackend(t *testing.T) {
	ctx := context.Background()

	if _, err := New(ctx, Options{Backend: "memory"}); err != nil {
		t.Errorf("memory backend: %v", err)
	}
	if _, err := New(ctx, Options{Backend: "bolt"}); err == nil {
		t.Errorf("expected error for bolt backend without a path")
	}
	if _, err := New(ctx, Options{Backend: "tape"}); err == nil {
		t.Errorf("expected error for unknown backend")
	}
}
