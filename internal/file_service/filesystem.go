package file_service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AnishMulay/blockfs/internal/allocator"
	"github.com/AnishMulay/blockfs/internal/blob_store"
	"github.com/AnishMulay/blockfs/internal/disk"
	"github.com/AnishMulay/blockfs/internal/log_service"
	ms "github.com/AnishMulay/blockfs/internal/metadata_service"
	"github.com/AnishMulay/blockfs/internal/state_codec"
)

const (
	WelcomeFileName = "Welcome.txt"
	WelcomeFileSize = 256
)

type Options struct {
	TotalBlocks     int
	BlockSize       int
	DefaultStrategy allocator.Strategy

	// StateKey defaults to blob_store.StateKey.
	StateKey string
	// SkipWelcome leaves fresh filesystems empty.
	SkipWelcome bool

	Now   func() time.Time
	NewID func() string
}

func (o Options) withDefaults() Options {
	if o.TotalBlocks == 0 {
		o.TotalBlocks = disk.DefaultTotalBlocks
	}
	if o.BlockSize == 0 {
		o.BlockSize = disk.DefaultBlockSize
	}
	if o.DefaultStrategy == "" {
		o.DefaultStrategy = allocator.DefaultStrategy
	}
	if o.StateKey == "" {
		o.StateKey = blob_store.StateKey
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// FileSystem owns one simulated filesystem and persists it after every
// successful mutation. All methods are serialized on a single mutex.
type FileSystem struct {
	mu    sync.Mutex
	opts  Options
	state *ms.State
	store blob_store.BlobStore
	ls    log_service.LogService
}

// Open loads the persisted state from store, or initializes a fresh
// filesystem when nothing is stored or the stored blob cannot be decoded.
func Open(ctx context.Context, opts Options, store blob_store.BlobStore, ls log_service.LogService) (*FileSystem, error) {
	opts = opts.withDefaults()
	if !opts.DefaultStrategy.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, opts.DefaultStrategy)
	}

	fs := &FileSystem{opts: opts, store: store, ls: ls}

	data, err := store.Load(ctx, opts.StateKey)
	switch {
	case errors.Is(err, blob_store.ErrBlobNotFound):
		ls.Info(log_service.LogEvent{
			Message:  "No persisted state, initializing fresh filesystem",
			Metadata: map[string]any{"key": opts.StateKey},
		})
		return fs.fresh(ctx)
	case err != nil:
		return nil, fmt.Errorf("loading filesystem state: %w", err)
	}

	state, err := state_codec.Decode(data)
	if err != nil {
		ls.Warn(log_service.LogEvent{
			Message:  "Persisted state could not be decoded, initializing fresh filesystem",
			Metadata: map[string]any{"key": opts.StateKey, "error": err.Error()},
		})
		return fs.fresh(ctx)
	}

	if state.Superblock.FsID == "" {
		state.Superblock.FsID = opts.NewID()
	}
	fs.state = state
	ls.Info(log_service.LogEvent{
		Message: "Loaded filesystem state",
		Metadata: map[string]any{
			"fsId":     state.Superblock.FsID,
			"inodes":   state.Inodes.Len(),
			"strategy": state.Strategy.String(),
		},
	})
	return fs, nil
}

func (fs *FileSystem) fresh(ctx context.Context) (*FileSystem, error) {
	if err := fs.initialize(ctx); err != nil {
		return nil, err
	}
	return fs, nil
}

// initialize replaces the state with a fresh filesystem and saves it.
func (fs *FileSystem) initialize(ctx context.Context) error {
	d, err := disk.New(fs.opts.TotalBlocks, fs.opts.BlockSize)
	if err != nil {
		return err
	}
	fs.state = ms.NewState(fs.opts.NewID(), d, fs.opts.DefaultStrategy, fs.opts.Now())

	if !fs.opts.SkipWelcome {
		if _, err := fs.createFile(ms.RootInodeID, WelcomeFileName, WelcomeFileSize); err != nil {
			fs.ls.Warn(log_service.LogEvent{
				Message:  "Failed to seed welcome file",
				Metadata: map[string]any{"error": err.Error()},
			})
		}
	}

	fs.ls.Info(log_service.LogEvent{
		Message: "Initialized filesystem",
		Metadata: map[string]any{
			"fsId":        fs.state.Superblock.FsID,
			"totalBlocks": d.TotalBlocks,
			"blockSize":   d.BlockSize,
			"strategy":    fs.state.Strategy.String(),
		},
	})
	fs.persist(ctx, "initialize")
	return nil
}

// persist saves the current state. Failures are logged and not returned: the
// in-memory state stays authoritative.
func (fs *FileSystem) persist(ctx context.Context, op string) {
	data, err := state_codec.Encode(fs.state)
	if err != nil {
		fs.ls.Error(log_service.LogEvent{
			Message:  "Failed to encode filesystem state",
			Metadata: map[string]any{"op": op, "error": err.Error()},
		})
		return
	}
	if err := fs.store.Save(ctx, fs.opts.StateKey, data); err != nil {
		fs.ls.Error(log_service.LogEvent{
			Message:  "Failed to save filesystem state",
			Metadata: map[string]any{"op": op, "key": fs.opts.StateKey, "error": err.Error()},
		})
		return
	}
	fs.ls.Debug(log_service.LogEvent{
		Message:  "Saved filesystem state",
		Metadata: map[string]any{"op": op, "size": len(data)},
	})
}

// Snapshot returns a deep copy of the whole state.
func (fs *FileSystem) Snapshot() *ms.State {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.state.Clone()
}

var _ FileService = (*FileSystem)(nil)
