package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AnishMulay/blockfs/internal/allocator"
	"github.com/AnishMulay/blockfs/internal/communication"
	fs "github.com/AnishMulay/blockfs/internal/file_service"
	ms "github.com/AnishMulay/blockfs/internal/metadata_service"
)

func TestErrorKindsRoundTrip(t *testing.T) {
	for _, k := range errorKinds {
		t.Run(k.name, func(t *testing.T) {
			wrapped := fmt.Errorf("creating %q: %w", "a.txt", k.err)
			code, body := EncodeError(wrapped)
			require.Equal(t, k.code, code)
			require.Equal(t, k.name, body.Kind)

			data, err := json.Marshal(body)
			require.NoError(t, err)
			got := DecodeError(&communication.Response{Code: code, Body: data})
			require.ErrorIs(t, got, k.err)
			require.Equal(t, wrapped.Error(), got.Error())
		})
	}
}

func TestUnclassifiedErrorsAreInternal(t *testing.T) {
	code, body := EncodeError(errors.New("disk on fire"))
	require.Equal(t, communication.CodeInternal, code)
	require.Equal(t, "internal", body.Kind)
	require.ErrorIs(t, body.Err(), ErrRemote)
}

func TestDecodeErrorFallsBackToPlainBody(t *testing.T) {
	err := DecodeError(&communication.Response{Code: communication.CodeUnavailable, Body: []byte("message handler not set\n")})
	require.ErrorIs(t, err, ErrRemote)
	require.Equal(t, "message handler not set", err.Error())

	err = DecodeError(&communication.Response{Code: communication.CodeInternal})
	require.Equal(t, "INTERNAL", err.Error())
}

func TestResourceExhaustedKeepsTheExactSentinel(t *testing.T) {
	code, body := EncodeError(fs.ErrInsufficientSpace)
	require.Equal(t, communication.CodeResourceExhausted, code)
	err := body.Err()
	require.ErrorIs(t, err, fs.ErrInsufficientSpace)
	require.NotErrorIs(t, err, fs.ErrInsufficientContiguousSpace)
}

func TestInodeViewRoundTrip(t *testing.T) {
	created := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	tests := []struct {
		name  string
		inode *ms.Inode
	}{
		{"contiguous", &ms.Inode{ID: 2, Kind: ms.KindFile, SizeBytes: 3, BlockList: []int{4, 5},
			Strategy: allocator.Contiguous, Pointers: allocator.ContiguousPointers{Start: 4, Length: 2}}},
		{"linked", &ms.Inode{ID: 3, Kind: ms.KindFile, BlockList: []int{9, 1},
			Strategy: allocator.Linked, Pointers: allocator.LinkedPointers{Head: 9, Tail: 1}}},
		{"indexed", &ms.Inode{ID: 4, Kind: ms.KindFile, BlockList: []int{6, 7},
			Strategy: allocator.Indexed, Pointers: allocator.IndexedPointers{IndexBlockID: 5, Entries: []int{6, 7}}}},
		{"unix", &ms.Inode{ID: 5, Kind: ms.KindFile, BlockList: []int{1, 2, 3},
			Strategy: allocator.Unix, Pointers: allocator.UnixPointers{
				Direct:         []int{1},
				SingleIndirect: &allocator.IndirectBlock{ID: 2, Entries: []int{3}},
			}}},
		{"directory", &ms.Inode{ID: 6, Kind: ms.KindDirectory, BlockList: []int{},
			Permissions: ms.Permissions{Read: true, Write: true, Execute: true}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.inode.CreatedAt = created
			data, err := json.Marshal(NewInodeView(tt.inode))
			require.NoError(t, err)

			var view InodeView
			require.NoError(t, json.Unmarshal(data, &view))
			got, err := view.Inode()
			require.NoError(t, err)
			require.Equal(t, tt.inode, got)
		})
	}
}

func TestInodeViewRejectsMismatchedPointers(t *testing.T) {
	view := InodeView{ID: 1, Pointers: &PointersView{Strategy: allocator.Unix, Linked: &allocator.LinkedPointers{}}}
	_, err := view.Inode()
	require.ErrorIs(t, err, allocator.ErrInvalidLayout)
}

func TestPayloadTypesCoverEveryMessage(t *testing.T) {
	for _, msgType := range []string{
		MsgCreateFile, MsgCreateDirectory, MsgRenameEntry, MsgDeleteEntry,
		MsgUpdatePermissions, MsgSwitchStrategy, MsgReset, MsgGetInode,
		MsgLookup, MsgResolvePath, MsgListDirectory, MsgPath, MsgBlockChain,
		MsgBlockMap, MsgStats, MsgStrategy, MsgSuperblock,
	} {
		_, ok := PayloadTypes[msgType]
		require.True(t, ok, msgType)
	}
}
