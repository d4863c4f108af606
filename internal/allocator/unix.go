package allocator

import (
	"fmt"

	"github.com/AnishMulay/blockfs/internal/disk"
	"github.com/AnishMulay/blockfs/internal/math"
)

const (
	MaxDirect        = 12
	PointersPerBlock = 16

	singleIndirectCapacity = PointersPerBlock
	doubleIndirectCapacity = PointersPerBlock * PointersPerBlock

	// MaxUnixBlocks is the largest file, in data blocks, the unix layout can
	// address.
	MaxUnixBlocks = MaxDirect + singleIndirectCapacity + doubleIndirectCapacity
)

// unixLayout counts the data blocks that land at each level of indirection.
type unixLayout struct {
	direct int
	single int
	double int
	// second level index blocks under the double indirect block
	doubleChildren int
}

func planUnix(n int) (unixLayout, error) {
	if n > MaxUnixBlocks {
		return unixLayout{}, fmt.Errorf("%w: %d blocks, unix layout addresses at most %d",
			ErrFileTooLarge, n, MaxUnixBlocks)
	}

	var l unixLayout
	l.direct = math.Min(n, MaxDirect)
	rem := n - l.direct
	l.single = math.Min(rem, singleIndirectCapacity)
	rem -= l.single
	l.double = rem
	if l.double > 0 {
		l.doubleChildren = math.DivRoundUp(l.double, PointersPerBlock)
	}
	return l, nil
}

func (l unixLayout) indexBlocks() int {
	n := 0
	if l.single > 0 {
		n++
	}
	if l.double > 0 {
		n += 1 + l.doubleChildren
	}
	return n
}

func (l unixLayout) total() int {
	return l.direct + l.single + l.double + l.indexBlocks()
}

// assign lays blocks out in allocation order: direct data, the single indirect
// block, its data, the double indirect block, the second level index blocks,
// then their data. Each second level block takes PointersPerBlock data blocks
// and the last one may be partially filled. len(blocks) must equal l.total().
func (l unixLayout) assign(blocks []int) (UnixPointers, []placement) {
	plan := make([]placement, 0, len(blocks))
	cursor := 0
	take := func(n int, blockType disk.BlockType) []int {
		ids := blocks[cursor : cursor+n]
		for _, id := range ids {
			plan = append(plan, placement{id: id, blockType: blockType})
		}
		cursor += n
		return append([]int(nil), ids...)
	}

	var p UnixPointers
	p.Direct = take(l.direct, disk.BlockTypeData)

	if l.single > 0 {
		id := take(1, disk.BlockTypeIndex)[0]
		p.SingleIndirect = &IndirectBlock{ID: id, Entries: take(l.single, disk.BlockTypeData)}
	}

	if l.double > 0 {
		top := take(1, disk.BlockTypeIndex)[0]
		children := take(l.doubleChildren, disk.BlockTypeIndex)
		data := take(l.double, disk.BlockTypeData)

		p.DoubleIndirect = &DoubleIndirectBlock{ID: top, Children: make([]IndirectBlock, len(children))}
		for i, child := range children {
			lo := i * PointersPerBlock
			hi := math.Min(lo+PointersPerBlock, len(data))
			p.DoubleIndirect.Children[i] = IndirectBlock{ID: child, Entries: data[lo:hi]}
		}
	}

	return p, plan
}

func allocateUnix(d *disk.Disk, n, owner int) (*Allocation, error) {
	layout, err := planUnix(n)
	if err != nil {
		return nil, err
	}

	total := layout.total()
	candidates := firstFree(d, total)
	if len(candidates) < total {
		return nil, fmt.Errorf("%w: need %d blocks (%d data, %d index), %d free",
			ErrInsufficientSpace, total, n, layout.indexBlocks(), len(candidates))
	}

	pointers, plan := layout.assign(candidates)
	if err := commit(d, owner, plan); err != nil {
		return nil, err
	}

	return &Allocation{
		Strategy: Unix,
		Blocks:   candidates,
		Pointers: pointers,
	}, nil
}
