package file_service

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/AnishMulay/blockfs/internal/allocator"
	"github.com/AnishMulay/blockfs/internal/disk"
	"github.com/AnishMulay/blockfs/internal/fragmentation"
	ms "github.com/AnishMulay/blockfs/internal/metadata_service"
)

func (fs *FileSystem) GetInode(_ context.Context, inodeID int) (*ms.Inode, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.state.Inodes.Get(inodeID)
	if err != nil {
		return nil, err
	}
	return n.Clone(), nil
}

func (fs *FileSystem) GetDirectory(_ context.Context, inodeID int) (*ms.Directory, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	_, dir, err := fs.directory(inodeID)
	if err != nil {
		return nil, err
	}
	return dir.Clone(), nil
}

// Disk returns a copy of the disk model.
func (fs *FileSystem) Disk() *disk.Disk {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.state.Disk.Clone()
}

func (fs *FileSystem) Stats(_ context.Context) (fragmentation.DiskStats, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fragmentation.Stats(fs.state.Disk), nil
}

func (fs *FileSystem) Fragmentation() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fragmentation.Calculate(fs.state.Disk)
}

func (fs *FileSystem) Strategy(_ context.Context) (allocator.Strategy, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.state.Strategy, nil
}

func (fs *FileSystem) Superblock(_ context.Context) (ms.Superblock, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.state.Superblock, nil
}

// CheckPermission reports whether the inode grants op.
func (fs *FileSystem) CheckPermission(inodeID int, op ms.Operation) (bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.state.Inodes.Get(inodeID)
	if err != nil {
		return false, err
	}
	return n.Permissions.Allows(op), nil
}

func (fs *FileSystem) Lookup(_ context.Context, parentID int, name string) (*ms.Inode, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	_, dir, err := fs.directory(parentID)
	if err != nil {
		return nil, err
	}
	entry, ok := dir.Lookup(strings.TrimSpace(name))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	n, err := fs.state.Inodes.Get(entry.InodeID)
	if err != nil {
		return nil, err
	}
	return n.Clone(), nil
}

// ResolvePath walks an absolute path from the root, one step per component.
// On failure the steps resolved so far are returned with the error.
func (fs *FileSystem) ResolvePath(_ context.Context, path string) ([]PathStep, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}

	steps := []PathStep{{Name: "/", InodeID: ms.RootInodeID, Kind: ms.KindDirectory, Target: len(parts) == 0}}
	cur := ms.RootInodeID
	for i, part := range parts {
		_, dir, err := fs.directory(cur)
		if err != nil {
			return steps, err
		}
		entry, ok := dir.Lookup(part)
		if !ok {
			return steps, fmt.Errorf("%w: %q in %s", ErrNotFound, part, "/"+strings.Join(parts[:i], "/"))
		}
		n, err := fs.state.Inodes.Get(entry.InodeID)
		if err != nil {
			return steps, err
		}
		steps = append(steps, PathStep{
			Name:    part,
			InodeID: n.ID,
			Kind:    n.Kind,
			Target:  i == len(parts)-1,
		})
		cur = n.ID
	}
	return steps, nil
}

// ListDirectory lists directories first, then files, each group by name.
func (fs *FileSystem) ListDirectory(_ context.Context, inodeID int) ([]DirEntry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	_, dir, err := fs.directory(inodeID)
	if err != nil {
		return nil, err
	}

	out := make([]DirEntry, 0, len(dir.Entries))
	for _, e := range dir.Entries {
		n, err := fs.state.Inodes.Get(e.InodeID)
		if err != nil {
			return nil, err
		}
		out = append(out, DirEntry{
			Name:        e.Name,
			InodeID:     n.ID,
			Kind:        n.Kind,
			SizeBytes:   n.SizeBytes,
			Permissions: n.Permissions,
			Strategy:    n.Strategy,
			Blocks:      len(n.OwnedBlocks()),
		})
	}

	slices.SortStableFunc(out, func(a, b DirEntry) int {
		if ad, bd := a.Kind == ms.KindDirectory, b.Kind == ms.KindDirectory; ad != bd {
			if ad {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

// Path returns the absolute path of any inode. Directories follow their parent
// links; files are found through the directory that lists them.
func (fs *FileSystem) Path(_ context.Context, inodeID int) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !fs.state.Inodes.Has(inodeID) {
		return "", fmt.Errorf("%w: inode %d", ErrNotFound, inodeID)
	}

	var parts []string
	cur := inodeID
	for steps := 0; cur != ms.RootInodeID; steps++ {
		if steps > fs.state.Directories.Len() {
			return "", fmt.Errorf("%w: parent chain of inode %d does not reach the root", ms.ErrInvalidState, inodeID)
		}
		parent, name, ok := fs.parentOf(cur)
		if !ok {
			return "", fmt.Errorf("%w: inode %d is not linked into the tree", ErrNotFound, cur)
		}
		parts = append(parts, name)
		cur = parent
	}

	slices.Reverse(parts)
	return "/" + strings.Join(parts, "/"), nil
}

func (fs *FileSystem) parentOf(inodeID int) (parentID int, name string, ok bool) {
	if dir, err := fs.state.Directories.Get(inodeID); err == nil && dir.ParentInodeID != nil {
		parent, err := fs.state.Directories.Get(*dir.ParentInodeID)
		if err != nil {
			return 0, "", false
		}
		e, ok := parent.EntryFor(inodeID)
		return parent.OwnerInodeID, e.Name, ok
	}

	for _, id := range fs.state.Directories.IDs() {
		dir, _ := fs.state.Directories.Get(id)
		if e, ok := dir.EntryFor(inodeID); ok {
			return id, e.Name, true
		}
	}
	return 0, "", false
}

// BlockChain returns a file's data blocks in logical order. Linked files are
// walked through their next pointers on disk.
func (fs *FileSystem) BlockChain(_ context.Context, inodeID int) ([]int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.state.Inodes.Get(inodeID)
	if err != nil {
		return nil, err
	}

	switch p := n.Pointers.(type) {
	case allocator.LinkedPointers:
		return allocator.WalkChain(fs.state.Disk, p.Head)
	case allocator.UnixPointers:
		return p.DataBlocks(), nil
	default:
		return append([]int{}, n.BlockList...), nil
	}
}

func (fs *FileSystem) BlockMap(_ context.Context) ([]BlockInfo, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	d := fs.state.Disk.Clone()
	out := make([]BlockInfo, len(d.Blocks))
	for i, b := range d.Blocks {
		out[i] = BlockInfo{
			ID:               b.ID,
			Used:             b.Used,
			OwnerInodeID:     b.OwnerInodeID,
			NextBlockPointer: b.NextBlockPointer,
			Type:             b.Type,
		}
	}
	return out, nil
}
