package inmemory

import (
	"context"
	"errors"
	"testing"

	"github.com/AnishMulay/blockfs/internal/blob_store"
)

func TestInMemoryBlobStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryBlobStore()

	if _, err := s.Load(ctx, "missing"); !errors.Is(err, blob_store.ErrBlobNotFound) {
		t.Fatalf("Load() missing = %v, want %v", err, blob_store.ErrBlobNotFound)
	}

	data := []byte("state")
	if err := s.Save(ctx, "k", data); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data[0] = 'X'

	got, err := s.Load(ctx, "k")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(got) != "state" {
		t.Errorf("Load() = %q, want %q", got, "state")
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete() of missing key = %v, want nil", err)
	}
	if _, err := s.Load(ctx, "k"); !errors.Is(err, blob_store.ErrBlobNotFound) {
		t.Errorf("Load() after delete = %v", err)
	}

	if err := s.Save(ctx, "a/b", nil); !errors.Is(err, blob_store.ErrInvalidKey) {
		t.Errorf("Save() with slash = %v, want %v", err, blob_store.ErrInvalidKey)
	}
}
