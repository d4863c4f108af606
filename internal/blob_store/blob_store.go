package blob_store

import "context"

// StateKey is the key the filesystem state is persisted under.
const StateKey = "blockfs-state"

// BlobStore persists opaque blobs by key. Load returns ErrBlobNotFound when
// nothing is stored under the key; Delete of a missing key is not an error.
type BlobStore interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
