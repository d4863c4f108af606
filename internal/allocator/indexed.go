package allocator

import (
	"fmt"

	"github.com/AnishMulay/blockfs/internal/disk"
)

// allocateIndexed takes n+1 free blocks; the lowest becomes the index block.
func allocateIndexed(d *disk.Disk, n, owner int) (*Allocation, error) {
	total := n + 1
	candidates := firstFree(d, total)
	if len(candidates) < total {
		return nil, fmt.Errorf("%w: need %d blocks including 1 index block, %d free",
			ErrInsufficientSpace, total, len(candidates))
	}

	indexID := candidates[0]
	data := candidates[1:]

	plan := make([]placement, 0, total)
	plan = append(plan, placement{id: indexID, blockType: disk.BlockTypeIndex})
	for _, id := range data {
		plan = append(plan, placement{id: id, blockType: disk.BlockTypeData})
	}
	if err := commit(d, owner, plan); err != nil {
		return nil, err
	}

	return &Allocation{
		Strategy: Indexed,
		Blocks:   append([]int(nil), data...),
		Pointers: IndexedPointers{IndexBlockID: indexID, Entries: append([]int(nil), data...)},
	}, nil
}
