// Package state_codec converts a filesystem state to and from the JSON blob the
// blob store persists.
//
// Inode and directory tables are written as [id, record] pairs sorted by id.
// Inode records are flat: the pointer structure is reduced to blockPointers plus
// the few ids needed to rebuild it (indexBlockId, directPointers,
// singleIndirectPointer, doubleIndirectPointer). Older documents that stored
// permissions as an "rwx" string are migrated on load.
package state_codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AnishMulay/blockfs/internal/allocator"
	"github.com/AnishMulay/blockfs/internal/disk"
	ms "github.com/AnishMulay/blockfs/internal/metadata_service"
)

type document struct {
	Inodes                    []pair[inodeRecord]   `json:"inodes"`
	Directories               []pair[*ms.Directory] `json:"directories"`
	Disk                      *disk.Disk            `json:"disk"`
	NextInodeID               int                   `json:"nextInodeId"`
	RootInodeID               int                   `json:"rootInodeId"`
	CurrentAllocationStrategy string                `json:"currentAllocationStrategy,omitempty"`
	Superblock                *superblockRecord     `json:"superblock,omitempty"`
}

type superblockRecord struct {
	FsID      string    `json:"fsId"`
	CreatedAt time.Time `json:"createdAt"`
}

type inodeRecord struct {
	ID                    int             `json:"id"`
	Type                  ms.Kind         `json:"type"`
	Size                  int64           `json:"size"`
	CreatedAt             time.Time       `json:"createdAt"`
	Permissions           json.RawMessage `json:"permissions,omitempty"`
	BlockPointers         []int           `json:"blockPointers"`
	AllocationStrategy    string          `json:"allocationStrategy,omitempty"`
	IndexBlockID          *int            `json:"indexBlockId,omitempty"`
	DirectPointers        []int           `json:"directPointers,omitempty"`
	SingleIndirectPointer *int            `json:"singleIndirectPointer,omitempty"`
	DoubleIndirectPointer *int            `json:"doubleIndirectPointer,omitempty"`
}

func Encode(s *ms.State) ([]byte, error) {
	doc := document{
		Inodes:                    make([]pair[inodeRecord], 0, s.Inodes.Len()),
		Directories:               make([]pair[*ms.Directory], 0, s.Directories.Len()),
		Disk:                      s.Disk,
		NextInodeID:               s.NextInodeID,
		RootInodeID:               s.Superblock.RootInodeID,
		CurrentAllocationStrategy: s.Strategy.String(),
		Superblock: &superblockRecord{
			FsID:      s.Superblock.FsID,
			CreatedAt: s.Superblock.CreatedAt,
		},
	}

	for _, id := range s.Inodes.IDs() {
		n, _ := s.Inodes.Get(id)
		rec, err := encodeInode(n)
		if err != nil {
			return nil, err
		}
		doc.Inodes = append(doc.Inodes, pair[inodeRecord]{ID: id, Value: rec})
	}
	for _, id := range s.Directories.IDs() {
		d, _ := s.Directories.Get(id)
		doc.Directories = append(doc.Directories, pair[*ms.Directory]{ID: id, Value: d})
	}

	return json.Marshal(doc)
}

func encodeInode(n *ms.Inode) (inodeRecord, error) {
	perms, err := json.Marshal(n.Permissions)
	if err != nil {
		return inodeRecord{}, err
	}

	rec := inodeRecord{
		ID:                 n.ID,
		Type:               n.Kind,
		Size:               n.SizeBytes,
		CreatedAt:          n.CreatedAt,
		Permissions:        perms,
		BlockPointers:      append([]int{}, n.BlockList...),
		AllocationStrategy: n.Strategy.String(),
	}

	switch p := n.Pointers.(type) {
	case allocator.IndexedPointers:
		id := p.IndexBlockID
		rec.IndexBlockID = &id
	case allocator.UnixPointers:
		rec.DirectPointers = append([]int{}, p.Direct...)
		rec.SingleIndirectPointer = p.SingleIndirectID()
		rec.DoubleIndirectPointer = p.DoubleIndirectID()
	}
	return rec, nil
}

// Decode parses a persisted document and rebuilds the in-memory state. Any
// malformed input or structurally inconsistent state yields ErrDecodeFailed.
func Decode(data []byte) (*ms.State, error) {
	var doc document
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}

	if doc.Disk == nil {
		return nil, fmt.Errorf("%w: missing disk", ErrDecodeFailed)
	}
	if err := doc.Disk.Check(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}
	if doc.RootInodeID != ms.RootInodeID {
		return nil, fmt.Errorf("%w: unsupported root inode id %d", ErrDecodeFailed, doc.RootInodeID)
	}

	strategy := allocator.DefaultStrategy
	if doc.CurrentAllocationStrategy != "" {
		parsed, err := allocator.ParseStrategy(doc.CurrentAllocationStrategy)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
		}
		strategy = parsed
	}

	s := &ms.State{
		Superblock: ms.Superblock{
			RootInodeID: doc.RootInodeID,
			TotalBlocks: doc.Disk.TotalBlocks,
			BlockSize:   doc.Disk.BlockSize,
		},
		Inodes:      ms.NewInodeTable(),
		Directories: ms.NewDirectoryTable(),
		Disk:        doc.Disk,
		NextInodeID: doc.NextInodeID,
		Strategy:    strategy,
	}

	maxID := -1
	for _, p := range doc.Inodes {
		if p.ID != p.Value.ID {
			return nil, fmt.Errorf("%w: inode key %d holds record %d", ErrDecodeFailed, p.ID, p.Value.ID)
		}
		if s.Inodes.Has(p.ID) {
			return nil, fmt.Errorf("%w: inode %d listed twice", ErrDecodeFailed, p.ID)
		}
		n, err := decodeInode(p.Value, doc.Disk.BlockSize)
		if err != nil {
			return nil, fmt.Errorf("%w: inode %d: %w", ErrDecodeFailed, p.ID, err)
		}
		s.Inodes.Put(n)
		maxID = max(maxID, n.ID)
	}

	for _, p := range doc.Directories {
		if p.Value == nil || p.Value.OwnerInodeID != p.ID {
			return nil, fmt.Errorf("%w: directory key %d does not match its record", ErrDecodeFailed, p.ID)
		}
		if s.Directories.Has(p.ID) {
			return nil, fmt.Errorf("%w: directory %d listed twice", ErrDecodeFailed, p.ID)
		}
		if p.Value.Entries == nil {
			p.Value.Entries = []ms.DirectoryEntry{}
		}
		s.Directories.Put(p.Value)
	}

	// Ids are never reused, so the counter must sit above every id in use.
	if s.NextInodeID <= maxID {
		s.NextInodeID = maxID + 1
	}

	if doc.Superblock != nil {
		s.Superblock.FsID = doc.Superblock.FsID
		s.Superblock.CreatedAt = doc.Superblock.CreatedAt
	} else if root, err := s.Inodes.Get(ms.RootInodeID); err == nil {
		s.Superblock.CreatedAt = root.CreatedAt
	}

	if err := s.Check(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}
	return s, nil
}

func decodeInode(rec inodeRecord, blockSize int) (*ms.Inode, error) {
	if rec.Type != ms.KindFile && rec.Type != ms.KindDirectory {
		return nil, fmt.Errorf("unknown inode type %q", rec.Type)
	}
	if rec.Size < 0 {
		return nil, fmt.Errorf("negative size %d", rec.Size)
	}

	perms, err := decodePermissions(rec.Permissions, rec.Type)
	if err != nil {
		return nil, err
	}

	n := &ms.Inode{
		ID:          rec.ID,
		Kind:        rec.Type,
		SizeBytes:   rec.Size,
		CreatedAt:   rec.CreatedAt,
		Permissions: perms,
		BlockList:   append([]int{}, rec.BlockPointers...),
	}
	if n.IsDir() {
		return n, nil
	}

	n.Strategy = allocator.DefaultStrategy
	if rec.AllocationStrategy != "" {
		if n.Strategy, err = allocator.ParseStrategy(rec.AllocationStrategy); err != nil {
			return nil, err
		}
	}

	n.Pointers, err = allocator.RebuildPointers(n.Strategy, n.BlockList, allocator.BlocksNeeded(n.SizeBytes, blockSize), rec.IndexBlockID)
	if err != nil {
		return nil, err
	}

	if up, ok := n.Pointers.(allocator.UnixPointers); ok {
		if !sameID(rec.SingleIndirectPointer, up.SingleIndirectID()) || !sameID(rec.DoubleIndirectPointer, up.DoubleIndirectID()) {
			return nil, fmt.Errorf("%w: indirect pointers do not match block list", allocator.ErrInvalidLayout)
		}
	}
	return n, nil
}

// decodePermissions accepts the structured form, a legacy "rwx" string, or
// nothing at all. Inodes without permissions grant everything.
func decodePermissions(raw json.RawMessage, kind ms.Kind) (ms.Permissions, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ms.Permissions{Read: true, Write: true, Execute: true}, nil
	}

	if raw[0] == '"' {
		var legacy string
		if err := json.Unmarshal(raw, &legacy); err != nil {
			return ms.Permissions{}, err
		}
		return ms.Permissions{
			Read:    strings.Contains(legacy, "r"),
			Write:   strings.Contains(legacy, "w"),
			Execute: strings.Contains(legacy, "x") || kind == ms.KindDirectory,
		}, nil
	}

	var p ms.Permissions
	if err := json.Unmarshal(raw, &p); err != nil {
		return ms.Permissions{}, err
	}
	return p, nil
}

func sameID(recorded, rebuilt *int) bool {
	if recorded == nil {
		return true
	}
	return rebuilt != nil && *recorded == *rebuilt
}
