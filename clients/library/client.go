package blocklib

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AnishMulay/blockfs/internal/allocator"
	"github.com/AnishMulay/blockfs/internal/communication"
	pfs "github.com/AnishMulay/blockfs/internal/file_service"
	"github.com/AnishMulay/blockfs/internal/fragmentation"
	ms "github.com/AnishMulay/blockfs/internal/metadata_service"
	ps "github.com/AnishMulay/blockfs/internal/server"
)

func NewBlockfsClient(serverAddr string, comm communication.Communicator) *BlockfsClient {
	return &BlockfsClient{ServerAddr: serverAddr, Comm: comm, From: "blocklib"}
}

var _ pfs.FileService = (*BlockfsClient)(nil)

func (c *BlockfsClient) send(ctx context.Context, msgType string, payload any) (*communication.Response, error) {
	if c == nil || c.Comm == nil {
		return nil, fmt.Errorf("blockfs client is not connected")
	}
	if c.ServerAddr == "" {
		return nil, fmt.Errorf("blockfs server address is empty")
	}
	return c.Comm.Send(ctx, c.ServerAddr, communication.Message{
		From:    c.From,
		Type:    msgType,
		Payload: payload,
	})
}

// call sends one request and decodes a successful body into out, which may be
// nil for operations that return nothing.
func (c *BlockfsClient) call(ctx context.Context, msgType string, payload, out any) error {
	resp, err := c.send(ctx, msgType, payload)
	if err != nil {
		return fmt.Errorf("%s failed: %w", msgType, err)
	}
	if resp.Code != communication.CodeOK {
		return ps.DecodeError(resp)
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", msgType, err)
	}
	return nil
}

func (c *BlockfsClient) callInode(ctx context.Context, msgType string, payload any) (*ms.Inode, error) {
	var view ps.InodeView
	if err := c.call(ctx, msgType, payload, &view); err != nil {
		return nil, err
	}
	return view.Inode()
}

func (c *BlockfsClient) CreateFile(ctx context.Context, parentID int, name string, sizeBytes int64) (*ms.Inode, error) {
	return c.callInode(ctx, ps.MsgCreateFile, ps.CreateFileRequest{ParentID: parentID, Name: name, SizeBytes: sizeBytes})
}

func (c *BlockfsClient) CreateDirectory(ctx context.Context, parentID int, name string) (*ms.Inode, error) {
	return c.callInode(ctx, ps.MsgCreateDirectory, ps.CreateDirectoryRequest{ParentID: parentID, Name: name})
}

func (c *BlockfsClient) RenameEntry(ctx context.Context, parentID int, oldName, newName string) error {
	return c.call(ctx, ps.MsgRenameEntry, ps.RenameEntryRequest{ParentID: parentID, OldName: oldName, NewName: newName}, nil)
}

func (c *BlockfsClient) DeleteEntry(ctx context.Context, parentID int, name string) error {
	return c.call(ctx, ps.MsgDeleteEntry, ps.DeleteEntryRequest{ParentID: parentID, Name: name}, nil)
}

func (c *BlockfsClient) UpdatePermissions(ctx context.Context, inodeID int, perms ms.Permissions) error {
	return c.call(ctx, ps.MsgUpdatePermissions, ps.UpdatePermissionsRequest{InodeID: inodeID, Permissions: perms}, nil)
}

func (c *BlockfsClient) SwitchAllocationStrategy(ctx context.Context, strategy allocator.Strategy) error {
	return c.call(ctx, ps.MsgSwitchStrategy, ps.SwitchStrategyRequest{Strategy: strategy}, nil)
}

func (c *BlockfsClient) Reset(ctx context.Context) error {
	return c.call(ctx, ps.MsgReset, ps.ResetRequest{}, nil)
}

func (c *BlockfsClient) GetInode(ctx context.Context, inodeID int) (*ms.Inode, error) {
	return c.callInode(ctx, ps.MsgGetInode, ps.InodeRequest{InodeID: inodeID})
}

func (c *BlockfsClient) Lookup(ctx context.Context, parentID int, name string) (*ms.Inode, error) {
	return c.callInode(ctx, ps.MsgLookup, ps.LookupRequest{ParentID: parentID, Name: name})
}

func (c *BlockfsClient) ResolvePath(ctx context.Context, path string) ([]pfs.PathStep, error) {
	var res ps.ResolvePathResponse
	if err := c.call(ctx, ps.MsgResolvePath, ps.ResolvePathRequest{Path: path}, &res); err != nil {
		return nil, err
	}
	if res.Error != nil {
		return res.Steps, res.Error.Err()
	}
	return res.Steps, nil
}

func (c *BlockfsClient) ListDirectory(ctx context.Context, inodeID int) ([]pfs.DirEntry, error) {
	var entries []pfs.DirEntry
	if err := c.call(ctx, ps.MsgListDirectory, ps.InodeRequest{InodeID: inodeID}, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *BlockfsClient) Path(ctx context.Context, inodeID int) (string, error) {
	var res ps.PathResponse
	if err := c.call(ctx, ps.MsgPath, ps.InodeRequest{InodeID: inodeID}, &res); err != nil {
		return "", err
	}
	return res.Path, nil
}

func (c *BlockfsClient) BlockChain(ctx context.Context, inodeID int) ([]int, error) {
	var chain []int
	if err := c.call(ctx, ps.MsgBlockChain, ps.InodeRequest{InodeID: inodeID}, &chain); err != nil {
		return nil, err
	}
	return chain, nil
}

func (c *BlockfsClient) BlockMap(ctx context.Context) ([]pfs.BlockInfo, error) {
	var blocks []pfs.BlockInfo
	if err := c.call(ctx, ps.MsgBlockMap, ps.EmptyRequest{}, &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

func (c *BlockfsClient) Stats(ctx context.Context) (fragmentation.DiskStats, error) {
	var stats fragmentation.DiskStats
	err := c.call(ctx, ps.MsgStats, ps.EmptyRequest{}, &stats)
	return stats, err
}

func (c *BlockfsClient) Strategy(ctx context.Context) (allocator.Strategy, error) {
	var res ps.StrategyResponse
	err := c.call(ctx, ps.MsgStrategy, ps.EmptyRequest{}, &res)
	return res.Strategy, err
}

func (c *BlockfsClient) Superblock(ctx context.Context) (ms.Superblock, error) {
	var sb ms.Superblock
	err := c.call(ctx, ps.MsgSuperblock, ps.EmptyRequest{}, &sb)
	return sb, err
}

// Ping checks the server is reachable.
func (c *BlockfsClient) Ping(ctx context.Context) error {
	if c == nil || c.Comm == nil {
		return fmt.Errorf("blockfs client is not connected")
	}
	return c.Comm.Ping(ctx, c.ServerAddr)
}
