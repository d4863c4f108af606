package file_service

import (
	"context"

	"github.com/AnishMulay/blockfs/internal/allocator"
	"github.com/AnishMulay/blockfs/internal/disk"
	"github.com/AnishMulay/blockfs/internal/fragmentation"
	ms "github.com/AnishMulay/blockfs/internal/metadata_service"
)

// FileService is the operation surface shared by the local FileSystem and the
// remote client. Sizes are in bytes.
type FileService interface {
	CreateFile(ctx context.Context, parentID int, name string, sizeBytes int64) (*ms.Inode, error)
	CreateDirectory(ctx context.Context, parentID int, name string) (*ms.Inode, error)
	RenameEntry(ctx context.Context, parentID int, oldName, newName string) error
	DeleteEntry(ctx context.Context, parentID int, name string) error
	UpdatePermissions(ctx context.Context, inodeID int, perms ms.Permissions) error
	SwitchAllocationStrategy(ctx context.Context, strategy allocator.Strategy) error
	Reset(ctx context.Context) error

	GetInode(ctx context.Context, inodeID int) (*ms.Inode, error)
	Lookup(ctx context.Context, parentID int, name string) (*ms.Inode, error)
	ResolvePath(ctx context.Context, path string) ([]PathStep, error)
	ListDirectory(ctx context.Context, inodeID int) ([]DirEntry, error)
	Path(ctx context.Context, inodeID int) (string, error)
	BlockChain(ctx context.Context, inodeID int) ([]int, error)
	BlockMap(ctx context.Context) ([]BlockInfo, error)
	Stats(ctx context.Context) (fragmentation.DiskStats, error)
	Strategy(ctx context.Context) (allocator.Strategy, error)
	Superblock(ctx context.Context) (ms.Superblock, error)
}

// DirEntry is one row of a directory listing.
type DirEntry struct {
	Name        string             `json:"name"`
	InodeID     int                `json:"inodeId"`
	Kind        ms.Kind            `json:"type"`
	SizeBytes   int64              `json:"size"`
	Permissions ms.Permissions     `json:"permissions"`
	Strategy    allocator.Strategy `json:"allocationStrategy,omitempty"`
	Blocks      int                `json:"blocks"`
}

// PathStep is one component visited while resolving a path. The last step of
// a fully resolved path has Target set.
type PathStep struct {
	Name    string  `json:"name"`
	InodeID int     `json:"inodeId"`
	Kind    ms.Kind `json:"type"`
	Target  bool    `json:"target"`
}

type BlockInfo struct {
	ID               int            `json:"id"`
	Used             bool           `json:"used"`
	OwnerInodeID     *int           `json:"inodeId"`
	NextBlockPointer *int           `json:"nextBlockPointer,omitempty"`
	Type             disk.BlockType `json:"blockType,omitempty"`
}
