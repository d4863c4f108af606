package allocator

import (
	"fmt"

	"github.com/AnishMulay/blockfs/internal/disk"
)

func allocateLinked(d *disk.Disk, n, owner int) (*Allocation, error) {
	blocks := firstFree(d, n)
	if len(blocks) < n {
		return nil, fmt.Errorf("%w: need %d blocks, %d free", ErrInsufficientSpace, n, len(blocks))
	}

	plan := make([]placement, n)
	for i, id := range blocks {
		plan[i] = placement{id: id, blockType: disk.BlockTypeData}
		if i < n-1 {
			next := blocks[i+1]
			plan[i].next = &next
		}
	}
	if err := commit(d, owner, plan); err != nil {
		return nil, err
	}

	return &Allocation{
		Strategy: Linked,
		Blocks:   blocks,
		Pointers: LinkedPointers{Head: blocks[0], Tail: blocks[n-1]},
	}, nil
}
