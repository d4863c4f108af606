package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/AnishMulay/blockfs/internal/blob_store"
)

type InMemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewInMemoryBlobStore() *InMemoryBlobStore {
	return &InMemoryBlobStore{blobs: make(map[string][]byte)}
}

func (s *InMemoryBlobStore) Save(_ context.Context, key string, data []byte) error {
	if err := blob_store.ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (s *InMemoryBlobStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", blob_store.ErrBlobNotFound, key)
	}
	return append([]byte(nil), data...), nil
}

func (s *InMemoryBlobStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

var _ blob_store.BlobStore = (*InMemoryBlobStore)(nil)
