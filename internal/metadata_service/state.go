package metadata_service

import (
	"fmt"
	"time"

	"github.com/AnishMulay/blockfs/internal/allocator"
	"github.com/AnishMulay/blockfs/internal/disk"
)

type Superblock struct {
	FsID        string
	RootInodeID int
	TotalBlocks int
	BlockSize   int
	CreatedAt   time.Time
}

// State is the whole simulated filesystem. It is not safe for concurrent use;
// the owner serializes access.
type State struct {
	Superblock  Superblock
	Inodes      *InodeTable
	Directories *DirectoryTable
	Disk        *disk.Disk
	NextInodeID int
	Strategy    allocator.Strategy
}

// NewState builds an empty filesystem holding only the root directory.
func NewState(fsID string, d *disk.Disk, strategy allocator.Strategy, now time.Time) *State {
	s := &State{
		Superblock: Superblock{
			FsID:        fsID,
			RootInodeID: RootInodeID,
			TotalBlocks: d.TotalBlocks,
			BlockSize:   d.BlockSize,
			CreatedAt:   now,
		},
		Inodes:      NewInodeTable(),
		Directories: NewDirectoryTable(),
		Disk:        d,
		NextInodeID: RootInodeID + 1,
		Strategy:    strategy,
	}

	s.Inodes.Put(&Inode{
		ID:          RootInodeID,
		Kind:        KindDirectory,
		CreatedAt:   now,
		Permissions: DefaultDirectoryPermissions,
		BlockList:   []int{},
	})
	s.Directories.Put(NewDirectory(RootInodeID, nil))
	return s
}

// AllocateInodeID hands out the next inode id. Ids are never reused.
func (s *State) AllocateInodeID() int {
	id := s.NextInodeID
	s.NextInodeID++
	return id
}

func (s *State) Clone() *State {
	return &State{
		Superblock:  s.Superblock,
		Inodes:      s.Inodes.Clone(),
		Directories: s.Directories.Clone(),
		Disk:        s.Disk.Clone(),
		NextInodeID: s.NextInodeID,
		Strategy:    s.Strategy,
	}
}

// Check verifies every structural invariant of the state:
//   - the disk bitmap agrees with the blocks
//   - the root exists, is a directory, and has no parent
//   - every directory annotates a directory inode and vice versa
//   - names are unique within a directory and every entry resolves
//   - each inode other than the root is referenced by exactly one entry
//   - the directory graph is a tree rooted at the root
//   - every used block is owned by exactly the inode that lists it
//   - NextInodeID is above every allocated id
func (s *State) Check() error {
	if s.Disk == nil {
		return fmt.Errorf("%w: missing disk", ErrInvalidState)
	}
	if err := s.Disk.Check(); err != nil {
		return err
	}

	root, err := s.Inodes.Get(RootInodeID)
	if err != nil || !root.IsDir() {
		return fmt.Errorf("%w: root inode missing or not a directory", ErrInvalidState)
	}
	rootDir, err := s.Directories.Get(RootInodeID)
	if err != nil || rootDir.ParentInodeID != nil {
		return fmt.Errorf("%w: root directory missing or has a parent", ErrInvalidState)
	}

	referenced := make(map[int]int)
	for _, id := range s.Directories.IDs() {
		dir, _ := s.Directories.Get(id)
		owner, err := s.Inodes.Get(id)
		if err != nil || !owner.IsDir() {
			return fmt.Errorf("%w: directory %d has no directory inode", ErrInvalidState, id)
		}

		names := make(map[string]struct{}, len(dir.Entries))
		for _, e := range dir.Entries {
			if _, dup := names[e.Name]; dup {
				return fmt.Errorf("%w: duplicate name %q in directory %d", ErrInvalidState, e.Name, id)
			}
			names[e.Name] = struct{}{}

			child, err := s.Inodes.Get(e.InodeID)
			if err != nil {
				return fmt.Errorf("%w: entry %q points at missing inode %d", ErrInvalidState, e.Name, e.InodeID)
			}
			if child.IsDir() {
				sub, err := s.Directories.Get(child.ID)
				if err != nil || sub.ParentInodeID == nil || *sub.ParentInodeID != id {
					return fmt.Errorf("%w: directory %d parent link does not match entry in %d", ErrInvalidState, child.ID, id)
				}
			}
			referenced[e.InodeID]++
		}
	}

	for _, id := range s.Inodes.IDs() {
		n, _ := s.Inodes.Get(id)
		if n.IsDir() && !s.Directories.Has(id) {
			return fmt.Errorf("%w: directory inode %d has no directory record", ErrInvalidState, id)
		}
		if id == RootInodeID {
			if referenced[id] != 0 {
				return fmt.Errorf("%w: root is referenced by an entry", ErrInvalidState)
			}
		} else if referenced[id] != 1 {
			return fmt.Errorf("%w: inode %d referenced by %d entries", ErrInvalidState, id, referenced[id])
		}
		if id >= s.NextInodeID {
			return fmt.Errorf("%w: inode %d not below next id %d", ErrInvalidState, id, s.NextInodeID)
		}
	}

	if err := s.checkAcyclic(); err != nil {
		return err
	}
	return s.checkBlockOwnership()
}

// checkAcyclic walks each directory's parent chain; a chain longer than the
// number of directories means a cycle.
func (s *State) checkAcyclic() error {
	limit := s.Directories.Len()
	for _, id := range s.Directories.IDs() {
		cur := id
		for depth := 0; cur != RootInodeID; depth++ {
			if depth > limit {
				return fmt.Errorf("%w: directory %d is part of a cycle", ErrInvalidState, id)
			}
			dir, err := s.Directories.Get(cur)
			if err != nil || dir.ParentInodeID == nil {
				return fmt.Errorf("%w: directory %d does not reach the root", ErrInvalidState, id)
			}
			cur = *dir.ParentInodeID
		}
	}
	return nil
}

func (s *State) checkBlockOwnership() error {
	owners := make(map[int]int)
	for _, id := range s.Inodes.IDs() {
		n, _ := s.Inodes.Get(id)
		for _, b := range n.OwnedBlocks() {
			if !s.Disk.InRange(b) {
				return fmt.Errorf("%w: inode %d lists block %d outside the disk", ErrInvalidState, id, b)
			}
			if prev, ok := owners[b]; ok {
				return fmt.Errorf("%w: block %d listed by inodes %d and %d", ErrInvalidState, b, prev, id)
			}
			owners[b] = id
		}
	}

	for _, b := range s.Disk.Blocks {
		owner, listed := owners[b.ID]
		if b.Used != listed {
			return fmt.Errorf("%w: block %d used=%t but listed=%t", ErrInvalidState, b.ID, b.Used, listed)
		}
		if b.Used && *b.OwnerInodeID != owner {
			return fmt.Errorf("%w: block %d owned by %d but listed by %d", ErrInvalidState, b.ID, *b.OwnerInodeID, owner)
		}
	}
	return nil
}
