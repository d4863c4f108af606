package metadata_service

import (
	"time"

	"github.com/AnishMulay/blockfs/internal/allocator"
)

const RootInodeID = 0

type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

type Permissions struct {
	Read    bool `json:"read"`
	Write   bool `json:"write"`
	Execute bool `json:"execute"`
}

type Operation string

const (
	OpRead    Operation = "read"
	OpWrite   Operation = "write"
	OpExecute Operation = "execute"
)

var (
	DefaultFilePermissions      = Permissions{Read: true, Write: true, Execute: false}
	DefaultDirectoryPermissions = Permissions{Read: true, Write: true, Execute: true}
)

// Allows reports whether op is granted.
func (p Permissions) Allows(op Operation) bool {
	switch op {
	case OpRead:
		return p.Read
	case OpWrite:
		return p.Write
	case OpExecute:
		return p.Execute
	}
	return false
}

// String renders the permission set as an "rwx" triple.
func (p Permissions) String() string {
	b := []byte("---")
	if p.Read {
		b[0] = 'r'
	}
	if p.Write {
		b[1] = 'w'
	}
	if p.Execute {
		b[2] = 'x'
	}
	return string(b)
}

// Inode is the metadata of a file or directory. It never stores its own name.
// BlockList is the flattened block view recorded at creation; Pointers holds the
// strategy specific structure and is nil for directories.
type Inode struct {
	ID          int
	Kind        Kind
	SizeBytes   int64
	CreatedAt   time.Time
	Permissions Permissions
	BlockList   []int
	Strategy    allocator.Strategy
	Pointers    allocator.Pointers
}

func (n *Inode) IsDir() bool { return n.Kind == KindDirectory }

// OwnedBlocks lists every disk block the inode holds, index blocks included.
func (n *Inode) OwnedBlocks() []int {
	return allocator.OwnedBlocks(n.BlockList, n.Pointers)
}

// Clone deep copies the inode, pointer structures included.
func (n *Inode) Clone() *Inode {
	c := *n
	c.BlockList = append([]int(nil), n.BlockList...)
	c.Pointers = allocator.ClonePointers(n.Pointers)
	return &c
}

type DirectoryEntry struct {
	Name    string `json:"name"`
	InodeID int    `json:"inodeId"`
}

// Directory annotates a directory inode with its parent and ordered entries.
// ParentInodeID is nil only for the root.
type Directory struct {
	OwnerInodeID  int              `json:"inodeId"`
	ParentInodeID *int             `json:"parentInodeId"`
	Entries       []DirectoryEntry `json:"entries"`
}

func NewDirectory(owner int, parent *int) *Directory {
	if parent != nil {
		p := *parent
		parent = &p
	}
	return &Directory{OwnerInodeID: owner, ParentInodeID: parent, Entries: []DirectoryEntry{}}
}

func (d *Directory) Clone() *Directory {
	c := NewDirectory(d.OwnerInodeID, d.ParentInodeID)
	c.Entries = append(c.Entries, d.Entries...)
	return c
}

func (d *Directory) IsEmpty() bool { return len(d.Entries) == 0 }
