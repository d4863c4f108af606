// Package fragmentation measures how usable the free space of a disk is.
//
// The metric is external fragmentation as seen by a contiguous allocator:
// 0% when every free block sits in one run, rising toward 100% as free space
// scatters into short runs. It is independent of which strategy produced the
// layout.
package fragmentation

import (
	"math"

	"github.com/AnishMulay/blockfs/internal/disk"
)

type DiskStats struct {
	TotalBlocks    int     `json:"totalBlocks"`
	UsedBlocks     int     `json:"usedBlocks"`
	FreeBlocks     int     `json:"freeBlocks"`
	TotalSizeKB    float64 `json:"totalSizeKB"`
	UsedSizeKB     float64 `json:"usedSizeKB"`
	FreeSizeKB     float64 `json:"freeSizeKB"`
	LargestFreeRun int     `json:"largestFreeRun"`
	Fragmentation  int     `json:"fragmentation"`
}

// scan returns the number of free blocks and the longest run of them. A block
// is free when its bitmap bit is false.
func scan(d *disk.Disk) (totalFree, maxRun int) {
	run := 0
	for i := 0; i < d.TotalBlocks; i++ {
		if d.FreeBitmap[i] {
			run = 0
			continue
		}
		totalFree++
		run++
		if run > maxRun {
			maxRun = run
		}
	}
	return totalFree, maxRun
}

// Calculate returns round((1 - maxRun/totalFree) * 100), or 0 for a full disk.
func Calculate(d *disk.Disk) int {
	totalFree, maxRun := scan(d)
	if totalFree == 0 {
		return 0
	}
	return int(math.Round((1 - float64(maxRun)/float64(totalFree)) * 100))
}

func LargestFreeRun(d *disk.Disk) int {
	_, maxRun := scan(d)
	return maxRun
}

func Stats(d *disk.Disk) DiskStats {
	totalFree, maxRun := scan(d)
	used := d.TotalBlocks - totalFree

	frag := 0
	if totalFree > 0 {
		frag = int(math.Round((1 - float64(maxRun)/float64(totalFree)) * 100))
	}

	kb := float64(d.BlockSize) / 1024
	return DiskStats{
		TotalBlocks:    d.TotalBlocks,
		UsedBlocks:     used,
		FreeBlocks:     totalFree,
		TotalSizeKB:    float64(d.TotalBlocks) * kb,
		UsedSizeKB:     float64(used) * kb,
		FreeSizeKB:     float64(totalFree) * kb,
		LargestFreeRun: maxRun,
		Fragmentation:  frag,
	}
}
