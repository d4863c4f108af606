package mcp_server

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	blocklib "github.com/AnishMulay/blockfs/clients/library"
	"github.com/AnishMulay/blockfs/internal/allocator"
	pfs "github.com/AnishMulay/blockfs/internal/file_service"
	ms "github.com/AnishMulay/blockfs/internal/metadata_service"
	ps "github.com/AnishMulay/blockfs/internal/server"
)

type toolDef struct {
	tool    mcp.Tool
	handler toolHandler
}

func strategyNames() []string {
	var names []string
	for _, s := range allocator.Strategies() {
		names = append(names, s.String())
	}
	return names
}

func (t *Tools) definitions() []toolDef {
	pathArg := mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path, e.g. /docs/notes.txt"))

	return []toolDef{
		{mcp.NewTool("create_file",
			mcp.WithDescription("Create a file of the given size under the current allocation strategy"),
			pathArg,
			mcp.WithNumber("size_kb", mcp.Required(), mcp.Description("File size in KB")),
		), t.createFile},
		{mcp.NewTool("create_directory",
			mcp.WithDescription("Create an empty directory"),
			pathArg,
		), t.createDirectory},
		{mcp.NewTool("rename",
			mcp.WithDescription("Rename a file or directory in place; blocks are not touched"),
			pathArg,
			mcp.WithString("new_name", mcp.Required(), mcp.Description("New entry name, without slashes")),
		), t.rename},
		{mcp.NewTool("delete",
			mcp.WithDescription("Delete a file or an empty directory and free its blocks"),
			pathArg,
		), t.delete},
		{mcp.NewTool("chmod",
			mcp.WithDescription("Set the read, write and execute flags of an entry"),
			pathArg,
			mcp.WithString("permissions", mcp.Required(), mcp.Description(`Flags as "rwx", "r-x", "rw" and so on`)),
		), t.chmod},
		{mcp.NewTool("switch_strategy",
			mcp.WithDescription("Select the allocation strategy used for files created from now on"),
			mcp.WithString("strategy", mcp.Required(), mcp.Enum(strategyNames()...)),
		), t.switchStrategy},
		{mcp.NewTool("list_directory",
			mcp.WithDescription("List a directory, directories first"),
			mcp.WithString("path", mcp.Description("Directory path, defaults to /")),
		), t.listDirectory},
		{mcp.NewTool("stat",
			mcp.WithDescription("Show an inode with its block list, pointer structure and logical block chain"),
			pathArg,
		), t.stat},
		{mcp.NewTool("resolve_path",
			mcp.WithDescription("Walk a path from the root and report every step"),
			pathArg,
		), t.resolvePath},
		{mcp.NewTool("disk_stats",
			mcp.WithDescription("Report used and free blocks, largest free run and fragmentation"),
		), t.diskStats},
		{mcp.NewTool("disk_layout",
			mcp.WithDescription("Render the disk as one character per block: '.' free, 'D' data, 'I' index"),
		), t.diskLayout},
		{mcp.NewTool("reset",
			mcp.WithDescription("Discard everything and start from a fresh filesystem"),
		), t.reset},
	}
}

func (t *Tools) createFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sizeKB, err := request.RequireFloat("size_kb")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	parent, name, err := blocklib.ResolveParent(ctx, t.fs, path)
	if err != nil {
		return errorResult("create_file", err)
	}
	size, err := blocklib.KBToBytes(sizeKB)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := t.fs.CreateFile(ctx, parent, name, size)
	if err != nil {
		return errorResult("create_file", blocklib.ExplainCreateFailure(ctx, t.fs, size, err))
	}
	return jsonResult(ps.NewInodeView(n))
}

func (t *Tools) createDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	parent, name, err := blocklib.ResolveParent(ctx, t.fs, path)
	if err != nil {
		return errorResult("create_directory", err)
	}
	n, err := t.fs.CreateDirectory(ctx, parent, name)
	if err != nil {
		return errorResult("create_directory", err)
	}
	return jsonResult(ps.NewInodeView(n))
}

func (t *Tools) rename(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	newName, err := request.RequireString("new_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	parent, name, err := blocklib.ResolveParent(ctx, t.fs, path)
	if err != nil {
		return errorResult("rename", err)
	}
	if err := t.fs.RenameEntry(ctx, parent, name, newName); err != nil {
		return errorResult("rename", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Renamed %s to %s", path, newName)), nil
}

func (t *Tools) delete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	parent, name, err := blocklib.ResolveParent(ctx, t.fs, path)
	if err != nil {
		return errorResult("delete", err)
	}
	if err := t.fs.DeleteEntry(ctx, parent, name); err != nil {
		return errorResult("delete", err)
	}
	return mcp.NewToolResultText("Deleted " + path), nil
}

func (t *Tools) chmod(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := request.RequireString("permissions")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	perms, err := ms.ParsePermissions(raw)
	if err != nil {
		return errorResult("chmod", err)
	}
	id, err := blocklib.ResolveInode(ctx, t.fs, path)
	if err != nil {
		return errorResult("chmod", err)
	}
	if err := t.fs.UpdatePermissions(ctx, id, perms); err != nil {
		return errorResult("chmod", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s is now %s", path, perms)), nil
}

func (t *Tools) switchStrategy(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("strategy")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	strategy, err := allocator.ParseStrategy(name)
	if err != nil {
		return errorResult("switch_strategy", err)
	}
	if err := t.fs.SwitchAllocationStrategy(ctx, strategy); err != nil {
		return errorResult("switch_strategy", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Allocation strategy is now %s: %s", strategy, strategy.Describe())), nil
}

func (t *Tools) listDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("path", "/")
	id, err := blocklib.ResolveInode(ctx, t.fs, path)
	if err != nil {
		return errorResult("list_directory", err)
	}
	entries, err := t.fs.ListDirectory(ctx, id)
	if err != nil {
		return errorResult("list_directory", err)
	}
	return jsonResult(entries)
}

type statResult struct {
	Path  string       `json:"path"`
	Inode ps.InodeView `json:"inode"`
	Chain []int        `json:"blockChain,omitempty"`
}

func (t *Tools) stat(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := blocklib.ResolveInode(ctx, t.fs, path)
	if err != nil {
		return errorResult("stat", err)
	}
	n, err := t.fs.GetInode(ctx, id)
	if err != nil {
		return errorResult("stat", err)
	}
	res := statResult{Path: path, Inode: ps.NewInodeView(n)}
	if !n.IsDir() {
		if res.Chain, err = t.fs.BlockChain(ctx, id); err != nil {
			return errorResult("stat", err)
		}
	}
	return jsonResult(res)
}

func (t *Tools) resolvePath(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	steps, err := t.fs.ResolvePath(ctx, path)
	res := ps.ResolvePathResponse{Steps: steps}
	if err != nil {
		_, res.Error = ps.EncodeError(err)
	}
	return jsonResult(res)
}

func (t *Tools) diskStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := t.fs.Stats(ctx)
	if err != nil {
		return errorResult("disk_stats", err)
	}
	return jsonResult(stats)
}

func (t *Tools) diskLayout(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	blocks, err := t.fs.BlockMap(ctx)
	if err != nil {
		return errorResult("disk_layout", err)
	}
	return mcp.NewToolResultText(pfs.RenderBlockMap(blocks, 64)), nil
}

func (t *Tools) reset(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := t.fs.Reset(ctx); err != nil {
		return errorResult("reset", err)
	}
	return mcp.NewToolResultText("Filesystem reset"), nil
}
