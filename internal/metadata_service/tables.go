package metadata_service

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// InodeTable maps inode ids to inode records.
type InodeTable struct {
	inodes map[int]*Inode
}

func NewInodeTable() *InodeTable {
	return &InodeTable{inodes: make(map[int]*Inode)}
}

func (t *InodeTable) Get(id int) (*Inode, error) {
	n, ok := t.inodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: inode %d", ErrNotFound, id)
	}
	return n, nil
}

func (t *InodeTable) Has(id int) bool {
	_, ok := t.inodes[id]
	return ok
}

func (t *InodeTable) Put(n *Inode) { t.inodes[n.ID] = n }

func (t *InodeTable) Delete(id int) { delete(t.inodes, id) }

func (t *InodeTable) Len() int { return len(t.inodes) }

// IDs returns every inode id in ascending order.
func (t *InodeTable) IDs() []int {
	ids := make([]int, 0, len(t.inodes))
	for id := range t.inodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (t *InodeTable) Clone() *InodeTable {
	c := NewInodeTable()
	for id, n := range t.inodes {
		c.inodes[id] = n.Clone()
	}
	return c
}

// DirectoryTable maps directory inode ids to their entry lists.
type DirectoryTable struct {
	dirs map[int]*Directory
}

func NewDirectoryTable() *DirectoryTable {
	return &DirectoryTable{dirs: make(map[int]*Directory)}
}

func (t *DirectoryTable) Get(id int) (*Directory, error) {
	d, ok := t.dirs[id]
	if !ok {
		return nil, fmt.Errorf("%w: directory %d", ErrNotFound, id)
	}
	return d, nil
}

func (t *DirectoryTable) Has(id int) bool {
	_, ok := t.dirs[id]
	return ok
}

func (t *DirectoryTable) Put(d *Directory) { t.dirs[d.OwnerInodeID] = d }

func (t *DirectoryTable) Delete(id int) { delete(t.dirs, id) }

func (t *DirectoryTable) Len() int { return len(t.dirs) }

func (t *DirectoryTable) IDs() []int {
	ids := make([]int, 0, len(t.dirs))
	for id := range t.dirs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (t *DirectoryTable) Clone() *DirectoryTable {
	c := NewDirectoryTable()
	for id, d := range t.dirs {
		c.dirs[id] = d.Clone()
	}
	return c
}
