package state_codec

import (
	"strings"
	"testing"
	"time"

	"github.com/AnishMulay/blockfs/internal/allocator"
	"github.com/AnishMulay/blockfs/internal/disk"
	ms "github.com/AnishMulay/blockfs/internal/metadata_service"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func newState(t *testing.T) *ms.State {
	t.Helper()
	d, err := disk.New(64, 512)
	require.NoError(t, err)
	return ms.NewState("3f0c1a52-8d5e-4c1e-9f57-0b7f6f1d2a10", d, allocator.Contiguous, epoch)
}

func addFile(t *testing.T, s *ms.State, parent int, name string, strategy allocator.Strategy, size int64) *ms.Inode {
	t.Helper()
	id := s.AllocateInodeID()
	a, err := allocator.Allocate(s.Disk, strategy, size, id)
	require.NoError(t, err)

	n := &ms.Inode{
		ID:          id,
		Kind:        ms.KindFile,
		SizeBytes:   size,
		CreatedAt:   epoch,
		Permissions: ms.DefaultFilePermissions,
		BlockList:   a.Blocks,
		Strategy:    a.Strategy,
		Pointers:    a.Pointers,
	}
	s.Inodes.Put(n)
	dir, err := s.Directories.Get(parent)
	require.NoError(t, err)
	require.NoError(t, dir.Add(name, id))
	return n
}

func addDir(t *testing.T, s *ms.State, parent int, name string) int {
	t.Helper()
	id := s.AllocateInodeID()
	s.Inodes.Put(&ms.Inode{
		ID:          id,
		Kind:        ms.KindDirectory,
		CreatedAt:   epoch,
		Permissions: ms.DefaultDirectoryPermissions,
		BlockList:   []int{},
	})
	s.Directories.Put(ms.NewDirectory(id, &parent))
	dir, err := s.Directories.Get(parent)
	require.NoError(t, err)
	require.NoError(t, dir.Add(name, id))
	return id
}

func TestRoundTrip(t *testing.T) {
	s := newState(t)
	addFile(t, s, ms.RootInodeID, "Welcome.txt", allocator.Contiguous, 256)
	docs := addDir(t, s, ms.RootInodeID, "docs")
	addFile(t, s, docs, "chain.bin", allocator.Linked, 3*512)
	addFile(t, s, docs, "table.bin", allocator.Indexed, 2*512)
	addFile(t, s, ms.RootInodeID, "big.bin", allocator.Unix, 30*512)
	s.Strategy = allocator.Unix

	data, err := Encode(s)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, s, got)

	again, err := Encode(got)
	require.NoError(t, err)
	require.JSONEq(t, string(data), string(again))
}

func TestEncodePairsSortedByID(t *testing.T) {
	s := newState(t)
	for _, name := range []string{"c", "b", "a"} {
		addDir(t, s, ms.RootInodeID, name)
	}

	data, err := Encode(s)
	require.NoError(t, err)
	require.Contains(t, string(data), `"inodes":[[0,{`)
	require.Less(t, strings.Index(string(data), `[1,{"id":1`), strings.Index(string(data), `[2,{"id":2`))
	require.Less(t, strings.Index(string(data), `[2,{"id":2`), strings.Index(string(data), `[3,{"id":3`))
}

const legacyDocument = `{
  "inodes": [
    [0, {"id": 0, "type": "directory", "size": 0, "createdAt": "2024-01-01T00:00:00.000Z", "permissions": "rw", "blockPointers": []}],
    [1, {"id": 1, "type": "file", "size": 256, "createdAt": "2024-01-01T00:00:00.000Z", "permissions": "r", "blockPointers": [0]}]
  ],
  "directories": [
    [0, {"inodeId": 0, "parentInodeId": null, "entries": [{"name": "Welcome.txt", "inodeId": 1}]}]
  ],
  "disk": {
    "totalBlocks": 4,
    "blockSize": 4096,
    "blocks": [
      {"id": 0, "used": true, "inodeId": 1, "blockType": "data"},
      {"id": 1, "used": false, "inodeId": null},
      {"id": 2, "used": false, "inodeId": null},
      {"id": 3, "used": false, "inodeId": null}
    ],
    "freeBlockBitmap": [true, false, false, false]
  },
  "nextInodeId": 2,
  "rootInodeId": 0
}`

func TestDecodeLegacyDocument(t *testing.T) {
	s, err := Decode([]byte(legacyDocument))
	require.NoError(t, err)

	require.Equal(t, allocator.Contiguous, s.Strategy, "missing strategy defaults to contiguous")
	require.Equal(t, 2, s.NextInodeID)
	require.Empty(t, s.Superblock.FsID)
	require.Equal(t, 4, s.Superblock.TotalBlocks)

	root, err := s.Inodes.Get(ms.RootInodeID)
	require.NoError(t, err)
	require.Equal(t, ms.Permissions{Read: true, Write: true, Execute: true}, root.Permissions,
		"directories gain execute when migrated")
	require.Equal(t, root.CreatedAt, s.Superblock.CreatedAt)

	welcome, err := s.Inodes.Get(1)
	require.NoError(t, err)
	require.Equal(t, ms.Permissions{Read: true}, welcome.Permissions)
	require.Equal(t, allocator.Contiguous, welcome.Strategy)
	require.Equal(t, allocator.ContiguousPointers{Start: 0, Length: 1}, welcome.Pointers)
}

func TestDecodeRepairsNextInodeID(t *testing.T) {
	doc := strings.Replace(legacyDocument, `"nextInodeId": 2`, `"nextInodeId": 1`, 1)
	s, err := Decode([]byte(doc))
	require.NoError(t, err)
	require.Equal(t, 2, s.NextInodeID)
}

func TestDecodeMissingPermissionsGrantsAll(t *testing.T) {
	doc := strings.Replace(legacyDocument, `"permissions": "r", `, ``, 1)
	s, err := Decode([]byte(doc))
	require.NoError(t, err)
	n, err := s.Inodes.Get(1)
	require.NoError(t, err)
	require.Equal(t, ms.Permissions{Read: true, Write: true, Execute: true}, n.Permissions)
}

func TestDecodeFailures(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "not json", doc: "{{{"},
		{name: "empty object", doc: "{}"},
		{name: "bitmap disagrees with blocks", doc: strings.Replace(legacyDocument, `[true, false, false, false]`, `[false, false, false, false]`, 1)},
		{name: "unknown strategy", doc: strings.Replace(legacyDocument, `"rootInodeId": 0`, `"rootInodeId": 0, "currentAllocationStrategy": "buddy"`, 1)},
		{name: "dangling entry", doc: strings.Replace(legacyDocument, `{"name": "Welcome.txt", "inodeId": 1}`, `{"name": "Welcome.txt", "inodeId": 1}, {"name": "ghost", "inodeId": 9}`, 1)},
		{name: "three element pair", doc: strings.Replace(legacyDocument, `[0, {"inodeId": 0`, `[0, 0, {"inodeId": 0`, 1)},
		{name: "indexed file without index block", doc: strings.Replace(legacyDocument, `"blockPointers": [0]}`, `"blockPointers": [0], "allocationStrategy": "indexed"}`, 1)},
		{name: "unknown inode type", doc: strings.Replace(legacyDocument, `"type": "file"`, `"type": "socket"`, 1)},
		{name: "non zero root", doc: strings.Replace(legacyDocument, `"rootInodeId": 0`, `"rootInodeId": 1`, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc))
			require.ErrorIs(t, err, ErrDecodeFailed)
		})
	}
}
