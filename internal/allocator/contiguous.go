package allocator

import (
	"fmt"

	"github.com/AnishMulay/blockfs/internal/disk"
)

// findContiguous returns the start of the first run of n free blocks, or -1.
func findContiguous(d *disk.Disk, n int) int {
	run := 0
	for i := 0; i < d.TotalBlocks; i++ {
		if !d.IsFree(i) {
			run = 0
			continue
		}
		run++
		if run == n {
			return i - n + 1
		}
	}
	return -1
}

func allocateContiguous(d *disk.Disk, n, owner int) (*Allocation, error) {
	start := findContiguous(d, n)
	if start < 0 {
		return nil, fmt.Errorf(
			"%w: need %d adjacent blocks, %d free in total; switch to linked allocation or defragment",
			ErrInsufficientContiguousSpace, n, d.FreeCount(),
		)
	}

	plan := make([]placement, n)
	blocks := make([]int, n)
	for i := range plan {
		plan[i] = placement{id: start + i, blockType: disk.BlockTypeData}
		blocks[i] = start + i
	}
	if err := commit(d, owner, plan); err != nil {
		return nil, err
	}

	return &Allocation{
		Strategy: Contiguous,
		Blocks:   blocks,
		Pointers: ContiguousPointers{Start: start, Length: n},
	}, nil
}
