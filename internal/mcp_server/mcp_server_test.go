package mcp_server

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/AnishMulay/blockfs/internal/allocator"
	"github.com/AnishMulay/blockfs/internal/blob_store/inmemory"
	pfs "github.com/AnishMulay/blockfs/internal/file_service"
	"github.com/AnishMulay/blockfs/internal/log_service"
	logs "github.com/AnishMulay/blockfs/internal/log_service/inmemory"
	ms "github.com/AnishMulay/blockfs/internal/metadata_service"
	ps "github.com/AnishMulay/blockfs/internal/server"
)

func newTools(t *testing.T) (*Tools, *pfs.FileSystem, *logs.InMemoryLogService) {
	t.Helper()
	ls := logs.NewInMemoryLogService()
	fsys, err := pfs.Open(context.Background(), pfs.Options{
		TotalBlocks: 64,
		BlockSize:   4096,
		Now:         func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) },
		NewID:       func() string { return "mcp-fs" },
	}, inmemory.NewInMemoryBlobStore(), ls)
	require.NoError(t, err)
	return NewTools(fsys, ls), fsys, ls
}

func call(t *testing.T, h toolHandler, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

func TestDefinitionsAreUnique(t *testing.T) {
	tools, _, _ := newTools(t)
	seen := map[string]bool{}
	for _, def := range tools.definitions() {
		require.NotEmpty(t, def.tool.Description, def.tool.Name)
		require.NotNil(t, def.handler, def.tool.Name)
		require.False(t, seen[def.tool.Name], "duplicate tool %s", def.tool.Name)
		seen[def.tool.Name] = true
	}
	require.Len(t, seen, 12)
	require.NotNil(t, NewMCPServer(tools.fs, tools.ls))
}

func TestCreateAndStatFile(t *testing.T) {
	tools, fsys, _ := newTools(t)

	res := call(t, tools.createDirectory, map[string]any{"path": "/docs"})
	require.False(t, res.IsError, text(t, res))

	res = call(t, tools.switchStrategy, map[string]any{"strategy": "linked"})
	require.False(t, res.IsError, text(t, res))
	require.Contains(t, text(t, res), "linked")

	res = call(t, tools.createFile, map[string]any{"path": "/docs/a.bin", "size_kb": float64(12)})
	require.False(t, res.IsError, text(t, res))

	var view ps.InodeView
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &view))
	require.Equal(t, int64(12*1024), view.SizeBytes)
	require.Equal(t, allocator.Linked, view.Strategy)
	require.Len(t, view.BlockList, 3)

	res = call(t, tools.stat, map[string]any{"path": "/docs/a.bin"})
	require.False(t, res.IsError, text(t, res))
	var st statResult
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &st))
	require.Equal(t, view.BlockList, st.Chain)

	steps, err := fsys.ResolvePath(context.Background(), "/docs/a.bin")
	require.NoError(t, err)
	require.Equal(t, view.ID, steps[len(steps)-1].InodeID)
}

func TestListRenameDelete(t *testing.T) {
	tools, _, _ := newTools(t)

	call(t, tools.createDirectory, map[string]any{"path": "/docs"})
	call(t, tools.createFile, map[string]any{"path": "/docs/a.txt", "size_kb": float64(1)})

	res := call(t, tools.listDirectory, map[string]any{})
	var root []pfs.DirEntry
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &root))
	require.Len(t, root, 2)
	require.Equal(t, "docs", root[0].Name, "directories sort first")

	res = call(t, tools.rename, map[string]any{"path": "/docs/a.txt", "new_name": "b.txt"})
	require.False(t, res.IsError, text(t, res))

	res = call(t, tools.delete, map[string]any{"path": "/docs"})
	require.True(t, res.IsError)
	require.Contains(t, text(t, res), "not empty")

	res = call(t, tools.delete, map[string]any{"path": "/docs/b.txt"})
	require.False(t, res.IsError, text(t, res))
	res = call(t, tools.delete, map[string]any{"path": "/docs"})
	require.False(t, res.IsError, text(t, res))
}

func TestChmodBlocksDelete(t *testing.T) {
	tools, fsys, _ := newTools(t)
	ctx := context.Background()

	call(t, tools.createDirectory, map[string]any{"path": "/ro"})
	call(t, tools.createFile, map[string]any{"path": "/ro/keep", "size_kb": float64(1)})

	res := call(t, tools.chmod, map[string]any{"path": "/ro", "permissions": "r-x"})
	require.False(t, res.IsError, text(t, res))

	dir, err := fsys.Lookup(ctx, ms.RootInodeID, "ro")
	require.NoError(t, err)
	require.Equal(t, ms.Permissions{Read: true, Execute: true}, dir.Permissions)

	res = call(t, tools.delete, map[string]any{"path": "/ro/keep"})
	require.True(t, res.IsError)

	res = call(t, tools.chmod, map[string]any{"path": "/ro", "permissions": "rwz"})
	require.True(t, res.IsError)
}

func TestArgumentErrors(t *testing.T) {
	tools, _, _ := newTools(t)

	tests := []struct {
		name string
		h    toolHandler
		args map[string]any
	}{
		{"missing path", tools.createDirectory, map[string]any{}},
		{"missing size", tools.createFile, map[string]any{"path": "/x"}},
		{"relative path", tools.createDirectory, map[string]any{"path": "docs"}},
		{"unknown strategy", tools.switchStrategy, map[string]any{"strategy": "buddy"}},
		{"missing parent", tools.createFile, map[string]any{"path": "/nope/x", "size_kb": float64(1)}},
		{"too large", tools.createFile, map[string]any{"path": "/huge", "size_kb": float64(1024)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, tt.h, tt.args)
			require.True(t, res.IsError)
		})
	}
}

func TestCreateFileExplainsSpaceFailure(t *testing.T) {
	tools, _, _ := newTools(t)

	res := call(t, tools.createFile, map[string]any{"path": "/huge", "size_kb": float64(1024)})
	require.True(t, res.IsError)
	require.Contains(t, text(t, res), "contiguous allocation needs 256 blocks, 0 index")

	res = call(t, tools.createFile, map[string]any{"path": "/huger", "size_kb": 1e300})
	require.True(t, res.IsError)
	require.Contains(t, text(t, res), "invalid file size")
}

func TestResolveStatsLayoutReset(t *testing.T) {
	tools, _, _ := newTools(t)

	call(t, tools.createDirectory, map[string]any{"path": "/docs"})

	res := call(t, tools.resolvePath, map[string]any{"path": "/docs/missing"})
	require.False(t, res.IsError)
	var resolved ps.ResolvePathResponse
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &resolved))
	require.Len(t, resolved.Steps, 2)
	require.NotNil(t, resolved.Error)
	require.ErrorIs(t, resolved.Error.Err(), pfs.ErrNotFound)

	res = call(t, tools.diskStats, nil)
	require.Contains(t, text(t, res), `"usedBlocks"`)

	res = call(t, tools.diskLayout, nil)
	layout := text(t, res)
	require.Len(t, layout, 64)
	require.True(t, strings.HasPrefix(layout, "D."))

	res = call(t, tools.reset, nil)
	require.False(t, res.IsError)
}

func TestLoggedWrapperRecordsToolErrors(t *testing.T) {
	tools, _, ls := newTools(t)
	before := ls.Count(log_service.InfoLevel)

	h := tools.logged("delete", tools.delete)
	res, err := h(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Equal(t, before+1, ls.Count(log_service.InfoLevel))
}
