package server

import (
	"fmt"
	"time"

	"github.com/AnishMulay/blockfs/internal/allocator"
	ms "github.com/AnishMulay/blockfs/internal/metadata_service"
)

// PointersView is the wire form of allocator.Pointers. Exactly one of the
// variant fields is set, matching Strategy.
type PointersView struct {
	Strategy   allocator.Strategy            `json:"strategy"`
	Contiguous *allocator.ContiguousPointers `json:"contiguous,omitempty"`
	Linked     *allocator.LinkedPointers     `json:"linked,omitempty"`
	Indexed    *allocator.IndexedPointers    `json:"indexed,omitempty"`
	Unix       *allocator.UnixPointers       `json:"unix,omitempty"`
}

type InodeView struct {
	ID          int                `json:"id"`
	Kind        ms.Kind            `json:"type"`
	SizeBytes   int64              `json:"size"`
	CreatedAt   time.Time          `json:"createdAt"`
	Permissions ms.Permissions     `json:"permissions"`
	BlockList   []int              `json:"blockList"`
	Strategy    allocator.Strategy `json:"allocationStrategy,omitempty"`
	Pointers    *PointersView      `json:"pointers,omitempty"`
}

func NewInodeView(n *ms.Inode) InodeView {
	v := InodeView{
		ID:          n.ID,
		Kind:        n.Kind,
		SizeBytes:   n.SizeBytes,
		CreatedAt:   n.CreatedAt,
		Permissions: n.Permissions,
		BlockList:   append([]int{}, n.BlockList...),
		Strategy:    n.Strategy,
	}

	switch p := n.Pointers.(type) {
	case allocator.ContiguousPointers:
		v.Pointers = &PointersView{Strategy: p.Strategy(), Contiguous: &p}
	case allocator.LinkedPointers:
		v.Pointers = &PointersView{Strategy: p.Strategy(), Linked: &p}
	case allocator.IndexedPointers:
		v.Pointers = &PointersView{Strategy: p.Strategy(), Indexed: &p}
	case allocator.UnixPointers:
		v.Pointers = &PointersView{Strategy: p.Strategy(), Unix: &p}
	}
	return v
}

// Inode converts the view back. A pointer variant that disagrees with its
// declared strategy is rejected.
func (v InodeView) Inode() (*ms.Inode, error) {
	n := &ms.Inode{
		ID:          v.ID,
		Kind:        v.Kind,
		SizeBytes:   v.SizeBytes,
		CreatedAt:   v.CreatedAt,
		Permissions: v.Permissions,
		BlockList:   append([]int{}, v.BlockList...),
		Strategy:    v.Strategy,
	}
	if v.Pointers == nil {
		return n, nil
	}

	p := v.Pointers
	switch {
	case p.Strategy == allocator.Contiguous && p.Contiguous != nil:
		n.Pointers = *p.Contiguous
	case p.Strategy == allocator.Linked && p.Linked != nil:
		n.Pointers = *p.Linked
	case p.Strategy == allocator.Indexed && p.Indexed != nil:
		n.Pointers = *p.Indexed
	case p.Strategy == allocator.Unix && p.Unix != nil:
		n.Pointers = *p.Unix
	default:
		return nil, fmt.Errorf("%w: pointers for %q missing from inode %d", allocator.ErrInvalidLayout, p.Strategy, v.ID)
	}
	return n, nil
}
