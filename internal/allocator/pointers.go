package allocator

// Pointers is the strategy specific part of an inode's block map. The set of
// implementations is closed: ContiguousPointers, LinkedPointers,
// IndexedPointers and UnixPointers.
type Pointers interface {
	Strategy() Strategy
	// IndexBlocks lists the blocks holding pointers rather than file data.
	IndexBlocks() []int
	isPointers()
}

type ContiguousPointers struct {
	Start  int
	Length int
}

type LinkedPointers struct {
	Head int
	Tail int
}

type IndexedPointers struct {
	IndexBlockID int
	Entries      []int
}

// IndirectBlock is an index block and the block ids it points to.
type IndirectBlock struct {
	ID      int
	Entries []int
}

type DoubleIndirectBlock struct {
	ID       int
	Children []IndirectBlock
}

type UnixPointers struct {
	Direct         []int
	SingleIndirect *IndirectBlock
	DoubleIndirect *DoubleIndirectBlock
}

func (ContiguousPointers) Strategy() Strategy { return Contiguous }
func (LinkedPointers) Strategy() Strategy     { return Linked }
func (IndexedPointers) Strategy() Strategy    { return Indexed }
func (UnixPointers) Strategy() Strategy       { return Unix }

func (ContiguousPointers) IndexBlocks() []int { return nil }
func (LinkedPointers) IndexBlocks() []int     { return nil }

func (p IndexedPointers) IndexBlocks() []int { return []int{p.IndexBlockID} }

func (p UnixPointers) IndexBlocks() []int {
	var out []int
	if p.SingleIndirect != nil {
		out = append(out, p.SingleIndirect.ID)
	}
	if p.DoubleIndirect != nil {
		out = append(out, p.DoubleIndirect.ID)
		for _, child := range p.DoubleIndirect.Children {
			out = append(out, child.ID)
		}
	}
	return out
}

// SingleIndirectID returns the single indirect block id, or nil.
func (p UnixPointers) SingleIndirectID() *int {
	if p.SingleIndirect == nil {
		return nil
	}
	id := p.SingleIndirect.ID
	return &id
}

// DoubleIndirectID returns the top level double indirect block id, or nil.
func (p UnixPointers) DoubleIndirectID() *int {
	if p.DoubleIndirect == nil {
		return nil
	}
	id := p.DoubleIndirect.ID
	return &id
}

// DataBlocks lists the unix data blocks in file order.
func (p UnixPointers) DataBlocks() []int {
	out := append([]int(nil), p.Direct...)
	if p.SingleIndirect != nil {
		out = append(out, p.SingleIndirect.Entries...)
	}
	if p.DoubleIndirect != nil {
		for _, child := range p.DoubleIndirect.Children {
			out = append(out, child.Entries...)
		}
	}
	return out
}

// ClonePointers deep copies p so the copy shares no slices with it.
func ClonePointers(p Pointers) Pointers {
	switch p := p.(type) {
	case IndexedPointers:
		p.Entries = append([]int(nil), p.Entries...)
		return p
	case UnixPointers:
		p.Direct = append([]int(nil), p.Direct...)
		if p.SingleIndirect != nil {
			p.SingleIndirect = cloneIndirect(*p.SingleIndirect)
		}
		if p.DoubleIndirect != nil {
			double := &DoubleIndirectBlock{ID: p.DoubleIndirect.ID}
			for _, child := range p.DoubleIndirect.Children {
				double.Children = append(double.Children, *cloneIndirect(child))
			}
			p.DoubleIndirect = double
		}
		return p
	default:
		return p
	}
}

func cloneIndirect(b IndirectBlock) *IndirectBlock {
	return &IndirectBlock{ID: b.ID, Entries: append([]int(nil), b.Entries...)}
}

func (ContiguousPointers) isPointers() {}
func (LinkedPointers) isPointers()     {}
func (IndexedPointers) isPointers()    {}
func (UnixPointers) isPointers()       {}

// OwnedBlocks merges a flattened block list with the pointer structure's index
// blocks, keeping the block list order and dropping duplicates.
func OwnedBlocks(blockList []int, p Pointers) []int {
	out := make([]int, 0, len(blockList)+1)
	seen := make(map[int]struct{}, len(blockList)+1)
	add := func(id int) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	for _, id := range blockList {
		add(id)
	}
	if p != nil {
		for _, id := range p.IndexBlocks() {
			add(id)
		}
	}
	return out
}
