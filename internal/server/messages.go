package server

import (
	"reflect"

	"github.com/AnishMulay/blockfs/internal/allocator"
	fs "github.com/AnishMulay/blockfs/internal/file_service"
	ms "github.com/AnishMulay/blockfs/internal/metadata_service"
)

// Message Type Constants
const (
	// Mutations
	MsgCreateFile        = "create_file"
	MsgCreateDirectory   = "create_directory"
	MsgRenameEntry       = "rename_entry"
	MsgDeleteEntry       = "delete_entry"
	MsgUpdatePermissions = "update_permissions"
	MsgSwitchStrategy    = "switch_strategy"
	MsgReset             = "reset"

	// Queries
	MsgGetInode      = "get_inode"
	MsgLookup        = "lookup"
	MsgResolvePath   = "resolve_path"
	MsgListDirectory = "list_directory"
	MsgPath          = "path"
	MsgBlockChain    = "block_chain"
	MsgBlockMap      = "block_map"
	MsgStats         = "stats"
	MsgStrategy      = "strategy"
	MsgSuperblock    = "superblock"
)

// --- Payload Structs ---

type CreateFileRequest struct {
	ParentID  int    `json:"parentId"`
	Name      string `json:"name"`
	SizeBytes int64  `json:"sizeBytes"`
}

type CreateDirectoryRequest struct {
	ParentID int    `json:"parentId"`
	Name     string `json:"name"`
}

type RenameEntryRequest struct {
	ParentID int    `json:"parentId"`
	OldName  string `json:"oldName"`
	NewName  string `json:"newName"`
}

type DeleteEntryRequest struct {
	ParentID int    `json:"parentId"`
	Name     string `json:"name"`
}

type UpdatePermissionsRequest struct {
	InodeID     int            `json:"inodeId"`
	Permissions ms.Permissions `json:"permissions"`
}

type SwitchStrategyRequest struct {
	Strategy allocator.Strategy `json:"strategy"`
}

type ResetRequest struct{}

type InodeRequest struct {
	InodeID int `json:"inodeId"`
}

type LookupRequest struct {
	ParentID int    `json:"parentId"`
	Name     string `json:"name"`
}

type ResolvePathRequest struct {
	Path string `json:"path"`
}

// ResolvePathResponse carries the steps resolved so far even when resolution
// failed part way; Error is then set.
type ResolvePathResponse struct {
	Steps []fs.PathStep `json:"steps"`
	Error *ErrorBody    `json:"error,omitempty"`
}

type PathResponse struct {
	Path string `json:"path"`
}

type StrategyResponse struct {
	Strategy allocator.Strategy `json:"strategy"`
}

type EmptyRequest struct{}

// PayloadTypes maps every message type to the request it carries.
var PayloadTypes = map[string]reflect.Type{
	MsgCreateFile:        reflect.TypeOf(CreateFileRequest{}),
	MsgCreateDirectory:   reflect.TypeOf(CreateDirectoryRequest{}),
	MsgRenameEntry:       reflect.TypeOf(RenameEntryRequest{}),
	MsgDeleteEntry:       reflect.TypeOf(DeleteEntryRequest{}),
	MsgUpdatePermissions: reflect.TypeOf(UpdatePermissionsRequest{}),
	MsgSwitchStrategy:    reflect.TypeOf(SwitchStrategyRequest{}),
	MsgReset:             reflect.TypeOf(ResetRequest{}),
	MsgGetInode:          reflect.TypeOf(InodeRequest{}),
	MsgLookup:            reflect.TypeOf(LookupRequest{}),
	MsgResolvePath:       reflect.TypeOf(ResolvePathRequest{}),
	MsgListDirectory:     reflect.TypeOf(InodeRequest{}),
	MsgPath:              reflect.TypeOf(InodeRequest{}),
	MsgBlockChain:        reflect.TypeOf(InodeRequest{}),
	MsgBlockMap:          reflect.TypeOf(EmptyRequest{}),
	MsgStats:             reflect.TypeOf(EmptyRequest{}),
	MsgStrategy:          reflect.TypeOf(EmptyRequest{}),
	MsgSuperblock:        reflect.TypeOf(EmptyRequest{}),
}
