package localdisc

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/AnishMulay/blockfs/internal/blob_store"
	"github.com/AnishMulay/blockfs/internal/log_service"
)

// LocalDiscBlobStore keeps one file per key under baseDir. Writes go to a
// temporary file that is renamed over the old blob.
type LocalDiscBlobStore struct {
	baseDir string
	ls      log_service.LogService
}

func NewLocalDiscBlobStore(baseDir string, ls log_service.LogService) (*LocalDiscBlobStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob directory %s: %w", baseDir, err)
	}
	return &LocalDiscBlobStore{
		baseDir: baseDir,
		ls:      ls,
	}, nil
}

func (s *LocalDiscBlobStore) blobPath(key string) string {
	return filepath.Join(s.baseDir, key+".json")
}

func (s *LocalDiscBlobStore) Save(_ context.Context, key string, data []byte) error {
	if err := blob_store.ValidateKey(key); err != nil {
		return err
	}

	s.ls.Debug(log_service.LogEvent{
		Message:  "Writing blob",
		Metadata: map[string]any{"key": key, "size": len(data)},
	})

	tmp, err := os.CreateTemp(s.baseDir, key+".*.tmp")
	if err != nil {
		return s.writeFailed(key, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return s.writeFailed(key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return s.writeFailed(key, err)
	}
	if err := os.Rename(tmp.Name(), s.blobPath(key)); err != nil {
		os.Remove(tmp.Name())
		return s.writeFailed(key, err)
	}

	s.ls.Debug(log_service.LogEvent{
		Message:  "Blob written successfully",
		Metadata: map[string]any{"key": key},
	})
	return nil
}

func (s *LocalDiscBlobStore) writeFailed(key string, err error) error {
	s.ls.Error(log_service.LogEvent{
		Message:  "Failed to write blob",
		Metadata: map[string]any{"key": key, "error": err.Error()},
	})
	return fmt.Errorf("%w: %s: %w", blob_store.ErrBlobWriteFailed, key, err)
}

func (s *LocalDiscBlobStore) Load(_ context.Context, key string) ([]byte, error) {
	if err := blob_store.ValidateKey(key); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.blobPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", blob_store.ErrBlobNotFound, key)
	}
	if err != nil {
		s.ls.Error(log_service.LogEvent{
			Message:  "Failed to read blob",
			Metadata: map[string]any{"key": key, "error": err.Error()},
		})
		return nil, fmt.Errorf("%w: %s: %w", blob_store.ErrBlobReadFailed, key, err)
	}

	s.ls.Debug(log_service.LogEvent{
		Message:  "Blob read successfully",
		Metadata: map[string]any{"key": key, "size": len(data)},
	})
	return data, nil
}

func (s *LocalDiscBlobStore) Delete(_ context.Context, key string) error {
	if err := blob_store.ValidateKey(key); err != nil {
		return err
	}

	err := os.Remove(s.blobPath(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.ls.Error(log_service.LogEvent{
			Message:  "Failed to delete blob",
			Metadata: map[string]any{"key": key, "error": err.Error()},
		})
		return fmt.Errorf("%w: %s: %w", blob_store.ErrBlobDeleteFailed, key, err)
	}

	s.ls.Info(log_service.LogEvent{
		Message:  "Blob deleted",
		Metadata: map[string]any{"key": key},
	})
	return nil
}

var _ blob_store.BlobStore = (*LocalDiscBlobStore)(nil)
