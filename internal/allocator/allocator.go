package allocator

import (
	"fmt"

	"github.com/AnishMulay/blockfs/internal/disk"
	"github.com/AnishMulay/blockfs/internal/math"
)

// Allocation is the result of reserving blocks for one inode.
//
// Blocks is the flattened block list recorded on the inode. For unix
// allocations it holds every reserved block, index blocks included, in
// allocation order. For the other strategies it holds only data blocks, and the
// indexed strategy's index block is reachable through Pointers.
type Allocation struct {
	Strategy Strategy
	Blocks   []int
	Pointers Pointers
}

// Owned lists every block the allocation reserved.
func (a *Allocation) Owned() []int {
	return OwnedBlocks(a.Blocks, a.Pointers)
}

// Estimate is how many blocks a file of a given size costs under a strategy.
type Estimate struct {
	DataBlocks  int
	IndexBlocks int
}

func (e Estimate) Total() int { return e.DataBlocks + e.IndexBlocks }

// BlocksNeeded is ceil(sizeBytes/blockSize) with a floor of one block.
func BlocksNeeded(sizeBytes int64, blockSize int) int {
	return int(math.Max(1, math.DivRoundUp(sizeBytes, int64(blockSize))))
}

func EstimateBlocks(strategy Strategy, sizeBytes int64, blockSize int) (Estimate, error) {
	if sizeBytes < 0 {
		return Estimate{}, fmt.Errorf("%w: %d bytes", ErrInvalidSize, sizeBytes)
	}
	n := BlocksNeeded(sizeBytes, blockSize)

	switch strategy {
	case Contiguous, Linked:
		return Estimate{DataBlocks: n}, nil
	case Indexed:
		return Estimate{DataBlocks: n, IndexBlocks: 1}, nil
	case Unix:
		layout, err := planUnix(n)
		if err != nil {
			return Estimate{}, err
		}
		return Estimate{DataBlocks: n, IndexBlocks: layout.indexBlocks()}, nil
	default:
		return Estimate{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

// Allocate reserves blocks for owner under strategy. Candidate blocks are chosen
// before anything is marked, so a failed allocation leaves the disk untouched.
func Allocate(d *disk.Disk, strategy Strategy, sizeBytes int64, owner int) (*Allocation, error) {
	if sizeBytes < 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidSize, sizeBytes)
	}
	n := BlocksNeeded(sizeBytes, d.BlockSize)

	switch strategy {
	case Contiguous:
		return allocateContiguous(d, n, owner)
	case Linked:
		return allocateLinked(d, n, owner)
	case Indexed:
		return allocateIndexed(d, n, owner)
	case Unix:
		return allocateUnix(d, n, owner)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

// placement is one block of a planned allocation.
type placement struct {
	id        int
	blockType disk.BlockType
	next      *int
}

// commit marks every planned block. Plans are built from free blocks only, so a
// failure here means the disk changed underneath us; already marked blocks are
// released before returning.
func commit(d *disk.Disk, owner int, plan []placement) error {
	for i, p := range plan {
		if err := d.MarkUsed(p.id, owner, p.blockType); err != nil {
			for _, done := range plan[:i] {
				_ = d.MarkFree(done.id)
			}
			return err
		}
		if p.next != nil {
			if err := d.SetNext(p.id, p.next); err != nil {
				for _, done := range plan[:i+1] {
					_ = d.MarkFree(done.id)
				}
				return err
			}
		}
	}
	return nil
}

// firstFree collects up to n free block ids in id order. n may exceed the
// disk size for oversized files.
func firstFree(d *disk.Disk, n int) []int {
	out := make([]int, 0, math.Min(n, d.FreeCount()))
	for i := 0; i < d.TotalBlocks && len(out) < n; i++ {
		if d.IsFree(i) {
			out = append(out, i)
		}
	}
	return out
}

// Free releases every listed block. All ids are validated first so an invalid
// list frees nothing.
func Free(d *disk.Disk, blocks []int) error {
	for _, id := range blocks {
		if !d.InRange(id) {
			return fmt.Errorf("%w: %d", disk.ErrBlockOutOfRange, id)
		}
	}
	for _, id := range blocks {
		if err := d.MarkFree(id); err != nil {
			return err
		}
	}
	return nil
}

// RebuildPointers reconstructs the pointer structure of an allocation from its
// flattened block list. dataBlocks is the number of data blocks the file needs;
// indexBlockID is only consulted for indexed allocations.
func RebuildPointers(strategy Strategy, blocks []int, dataBlocks int, indexBlockID *int) (Pointers, error) {
	if len(blocks) == 0 {
		return nil, nil
	}

	switch strategy {
	case Contiguous:
		for i := 1; i < len(blocks); i++ {
			if blocks[i] != blocks[i-1]+1 {
				return nil, fmt.Errorf("%w: contiguous run broken at %d", ErrInvalidLayout, blocks[i])
			}
		}
		return ContiguousPointers{Start: blocks[0], Length: len(blocks)}, nil
	case Linked:
		return LinkedPointers{Head: blocks[0], Tail: blocks[len(blocks)-1]}, nil
	case Indexed:
		if indexBlockID == nil {
			return nil, fmt.Errorf("%w: indexed allocation without index block", ErrInvalidLayout)
		}
		return IndexedPointers{IndexBlockID: *indexBlockID, Entries: append([]int(nil), blocks...)}, nil
	case Unix:
		layout, err := planUnix(dataBlocks)
		if err != nil {
			return nil, err
		}
		if len(blocks) != layout.total() {
			return nil, fmt.Errorf("%w: %d blocks for a %d block unix layout", ErrInvalidLayout, len(blocks), layout.total())
		}
		p, _ := layout.assign(blocks)
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

// WalkChain follows next pointers from head and returns the visited block ids.
// A chain longer than the disk means a cycle.
func WalkChain(d *disk.Disk, head int) ([]int, error) {
	var out []int
	cur := &head
	for cur != nil {
		if !d.InRange(*cur) {
			return out, fmt.Errorf("%w: %d", disk.ErrBlockOutOfRange, *cur)
		}
		if len(out) == d.TotalBlocks {
			return out, fmt.Errorf("%w: chain from %d does not terminate", ErrBrokenChain, head)
		}
		b := d.Blocks[*cur]
		if !b.Used {
			return out, fmt.Errorf("%w: block %d is free", ErrBrokenChain, *cur)
		}
		out = append(out, *cur)
		cur = b.NextBlockPointer
	}
	return out, nil
}
