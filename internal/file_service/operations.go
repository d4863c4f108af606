package file_service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AnishMulay/blockfs/internal/allocator"
	"github.com/AnishMulay/blockfs/internal/log_service"
	ms "github.com/AnishMulay/blockfs/internal/metadata_service"
)

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return name, nil
}

// directory returns the inode and directory record of dirID.
func (fs *FileSystem) directory(dirID int) (*ms.Inode, *ms.Directory, error) {
	n, err := fs.state.Inodes.Get(dirID)
	if err != nil {
		return nil, nil, err
	}
	if !n.IsDir() {
		return nil, nil, fmt.Errorf("%w: inode %d", ErrNotADirectory, dirID)
	}
	dir, err := fs.state.Directories.Get(dirID)
	if err != nil {
		return nil, nil, err
	}
	return n, dir, nil
}

func (fs *FileSystem) writableDirectory(dirID int) (*ms.Directory, error) {
	n, dir, err := fs.directory(dirID)
	if err != nil {
		return nil, err
	}
	if !n.Permissions.Allows(ms.OpWrite) {
		return nil, fmt.Errorf("%w: directory %d is read-only", ErrPermissionDenied, dirID)
	}
	return dir, nil
}

func (fs *FileSystem) CreateFile(ctx context.Context, parentID int, name string, sizeBytes int64) (*ms.Inode, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.createFile(parentID, name, sizeBytes)
	if err != nil {
		fs.ls.Warn(log_service.LogEvent{
			Message:  "Failed to create file",
			Metadata: map[string]any{"parent": parentID, "name": name, "size": sizeBytes, "error": err.Error()},
		})
		return nil, err
	}

	fs.ls.Info(log_service.LogEvent{
		Message: "File created",
		Metadata: map[string]any{
			"inode":    n.ID,
			"name":     name,
			"size":     sizeBytes,
			"strategy": n.Strategy.String(),
			"blocks":   len(n.OwnedBlocks()),
		},
	})
	fs.persist(ctx, "create_file")
	return n.Clone(), nil
}

func (fs *FileSystem) createFile(parentID int, name string, sizeBytes int64) (*ms.Inode, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	_, parent, err := fs.directory(parentID)
	if err != nil {
		return nil, err
	}
	if parent.Has(name) {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	// A failed allocation still consumes the id; ids are never reused.
	id := fs.state.AllocateInodeID()
	a, err := allocator.Allocate(fs.state.Disk, fs.state.Strategy, sizeBytes, id)
	if err != nil {
		return nil, fmt.Errorf("creating %q: %w", name, err)
	}

	n := &ms.Inode{
		ID:          id,
		Kind:        ms.KindFile,
		SizeBytes:   sizeBytes,
		CreatedAt:   fs.opts.Now(),
		Permissions: ms.DefaultFilePermissions,
		BlockList:   a.Blocks,
		Strategy:    a.Strategy,
		Pointers:    a.Pointers,
	}
	if err := fs.link(parent, name, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (fs *FileSystem) CreateDirectory(ctx context.Context, parentID int, name string) (*ms.Inode, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.createDirectory(parentID, name)
	if err != nil {
		fs.ls.Warn(log_service.LogEvent{
			Message:  "Failed to create directory",
			Metadata: map[string]any{"parent": parentID, "name": name, "error": err.Error()},
		})
		return nil, err
	}

	fs.ls.Info(log_service.LogEvent{
		Message:  "Directory created",
		Metadata: map[string]any{"inode": n.ID, "parent": parentID, "name": name},
	})
	fs.persist(ctx, "create_directory")
	return n.Clone(), nil
}

func (fs *FileSystem) createDirectory(parentID int, name string) (*ms.Inode, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	_, parent, err := fs.directory(parentID)
	if err != nil {
		return nil, err
	}
	if parent.Has(name) {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	id := fs.state.AllocateInodeID()
	n := &ms.Inode{
		ID:          id,
		Kind:        ms.KindDirectory,
		CreatedAt:   fs.opts.Now(),
		Permissions: ms.DefaultDirectoryPermissions,
		BlockList:   []int{},
	}
	if err := fs.link(parent, name, n); err != nil {
		return nil, err
	}
	return n, nil
}

// link enters n into parent and then into the tables. When the entry cannot be
// added the file's blocks are released and the tables are left unchanged.
func (fs *FileSystem) link(parent *ms.Directory, name string, n *ms.Inode) error {
	if err := parent.Add(name, n.ID); err != nil {
		return errors.Join(err, allocator.Free(fs.state.Disk, n.OwnedBlocks()))
	}
	fs.state.Inodes.Put(n)
	if n.IsDir() {
		fs.state.Directories.Put(ms.NewDirectory(n.ID, &parent.OwnerInodeID))
	}
	return nil
}

// RenameEntry changes only the entry's name. The inode, its blocks and its
// pointers are untouched.
func (fs *FileSystem) RenameEntry(ctx context.Context, parentID int, oldName, newName string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fail := func(err error) error {
		fs.ls.Warn(log_service.LogEvent{
			Message:  "Failed to rename entry",
			Metadata: map[string]any{"parent": parentID, "from": oldName, "to": newName, "error": err.Error()},
		})
		return err
	}

	dir, err := fs.writableDirectory(parentID)
	if err != nil {
		return fail(err)
	}
	target, err := cleanName(newName)
	if err != nil {
		return fail(err)
	}
	if err := dir.Rename(strings.TrimSpace(oldName), target); err != nil {
		return fail(err)
	}

	fs.ls.Info(log_service.LogEvent{
		Message:  "Entry renamed",
		Metadata: map[string]any{"parent": parentID, "from": oldName, "to": target},
	})
	fs.persist(ctx, "rename_entry")
	return nil
}

// DeleteEntry removes a file or an empty directory from parentID and frees
// every block the inode owns. All checks run before anything changes.
func (fs *FileSystem) DeleteEntry(ctx context.Context, parentID int, name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	freed, err := fs.deleteEntry(parentID, strings.TrimSpace(name))
	if err != nil {
		fs.ls.Warn(log_service.LogEvent{
			Message:  "Failed to delete entry",
			Metadata: map[string]any{"parent": parentID, "name": name, "error": err.Error()},
		})
		return err
	}

	fs.ls.Info(log_service.LogEvent{
		Message:  "Entry deleted",
		Metadata: map[string]any{"parent": parentID, "name": name, "freedBlocks": freed},
	})
	fs.persist(ctx, "delete_entry")
	return nil
}

func (fs *FileSystem) deleteEntry(parentID int, name string) (int, error) {
	dir, err := fs.writableDirectory(parentID)
	if err != nil {
		return 0, err
	}
	entry, ok := dir.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	target, err := fs.state.Inodes.Get(entry.InodeID)
	if err != nil {
		return 0, err
	}
	if target.IsDir() {
		sub, err := fs.state.Directories.Get(target.ID)
		if err != nil {
			return 0, err
		}
		if !sub.IsEmpty() {
			return 0, fmt.Errorf("%w: %q has %d entries", ErrNonEmptyDirectory, name, len(sub.Entries))
		}
	}

	owned := target.OwnedBlocks()
	if err := allocator.Free(fs.state.Disk, owned); err != nil {
		return 0, err
	}
	if target.IsDir() {
		fs.state.Directories.Delete(target.ID)
	}
	fs.state.Inodes.Delete(target.ID)
	if _, err := dir.Remove(name); err != nil {
		return 0, err
	}
	return len(owned), nil
}

func (fs *FileSystem) UpdatePermissions(ctx context.Context, inodeID int, perms ms.Permissions) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.state.Inodes.Get(inodeID)
	if err != nil {
		fs.ls.Warn(log_service.LogEvent{
			Message:  "Failed to update permissions",
			Metadata: map[string]any{"inode": inodeID, "error": err.Error()},
		})
		return err
	}
	n.Permissions = perms

	fs.ls.Info(log_service.LogEvent{
		Message:  "Permissions updated",
		Metadata: map[string]any{"inode": inodeID, "permissions": perms.String()},
	})
	fs.persist(ctx, "update_permissions")
	return nil
}

// SwitchAllocationStrategy affects only files created after the switch.
func (fs *FileSystem) SwitchAllocationStrategy(ctx context.Context, strategy allocator.Strategy) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !strategy.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
	prev := fs.state.Strategy
	fs.state.Strategy = strategy

	fs.ls.Info(log_service.LogEvent{
		Message:  "Allocation strategy switched",
		Metadata: map[string]any{"from": prev.String(), "to": strategy.String()},
	})
	fs.persist(ctx, "switch_strategy")
	return nil
}

// Reset deletes the persisted state and starts over with a fresh filesystem.
func (fs *FileSystem) Reset(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.store.Delete(ctx, fs.opts.StateKey); err != nil {
		fs.ls.Error(log_service.LogEvent{
			Message:  "Failed to delete persisted state",
			Metadata: map[string]any{"key": fs.opts.StateKey, "error": err.Error()},
		})
		return fmt.Errorf("resetting filesystem: %w", err)
	}
	return fs.initialize(ctx)
}
