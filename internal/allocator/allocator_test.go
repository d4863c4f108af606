package allocator

import (
	"errors"
	"testing"

	"github.com/AnishMulay/blockfs/internal/disk"
)

func newDisk(t *testing.T, total int) *disk.Disk {
	t.Helper()
	d, err := disk.New(total, 4096)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

// fill marks the listed blocks as used by owner 999.
func fill(t *testing.T, d *disk.Disk, ids ...int) {
	t.Helper()
	for _, id := range ids {
		if err := d.MarkUsed(id, 999, disk.BlockTypeData); err != nil {
			t.Fatal(err)
		}
	}
}

func checkOwned(t *testing.T, d *disk.Disk, a *Allocation, owner int) {
	t.Helper()
	for _, id := range a.Owned() {
		b := d.Blocks[id]
		if !b.Used || b.OwnerInodeID == nil || *b.OwnerInodeID != owner {
			t.Errorf("block %d = %+v, want used by %d", id, b, owner)
		}
	}
	if err := d.Check(); err != nil {
		t.Errorf("disk invariants broken: %v", err)
	}
}

func TestBlocksNeeded(t *testing.T) {
	tests := []struct {
		size int64
		want int
	}{
		{0, 1},
		{1, 1},
		{256, 1},
		{4096, 1},
		{4097, 2},
		{12288, 3},
		{81920, 20},
	}
	for _, tt := range tests {
		if got := BlocksNeeded(tt.size, 4096); got != tt.want {
			t.Errorf("BlocksNeeded(%d) = %d, want %d", tt.size, got, tt.want)
		}
	}
}

func TestAllocate_Contiguous(t *testing.T) {
	tests := []struct {
		name      string
		used      []int
		size      int64
		wantStart int
		wantErr   error
	}{
		{
			name:      "three blocks on an empty disk",
			size:      12288,
			wantStart: 0,
		},
		{
			name:      "skips a run that is too short",
			used:      []int{2},
			size:      12288,
			wantStart: 3,
		},
		{
			name:    "no run long enough",
			used:    []int{1, 3, 5, 7},
			size:    8192,
			wantErr: ErrInsufficientContiguousSpace,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDisk(t, 8)
			fill(t, d, tt.used...)

			a, err := Allocate(d, Contiguous, tt.size, 1)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Allocate() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if d.UsedCount() != len(tt.used) {
					t.Errorf("failed allocation changed the disk: %d used", d.UsedCount())
				}
				return
			}

			n := BlocksNeeded(tt.size, d.BlockSize)
			if len(a.Blocks) != n {
				t.Fatalf("len(Blocks) = %d, want %d", len(a.Blocks), n)
			}
			for i, id := range a.Blocks {
				if id != tt.wantStart+i {
					t.Errorf("Blocks[%d] = %d, want %d", i, id, tt.wantStart+i)
				}
			}
			p, ok := a.Pointers.(ContiguousPointers)
			if !ok || p.Start != tt.wantStart || p.Length != n {
				t.Errorf("Pointers = %#v", a.Pointers)
			}
			checkOwned(t, d, a, 1)
		})
	}
}

func TestAllocate_ContiguousScatteredFreeSpace(t *testing.T) {
	d := newDisk(t, 512)
	for i := 0; i < 512; i++ {
		if i != 5 && i != 50 {
			fill(t, d, i)
		}
	}

	_, err := Allocate(d, Contiguous, 8192, 1)
	if !errors.Is(err, ErrInsufficientContiguousSpace) {
		t.Fatalf("Allocate() error = %v, want %v", err, ErrInsufficientContiguousSpace)
	}
	if d.FreeCount() != 2 {
		t.Errorf("FreeCount() = %d, want 2", d.FreeCount())
	}

	// the same request fits when the blocks need not be adjacent
	a, err := Allocate(d, Linked, 8192, 1)
	if err != nil {
		t.Fatalf("linked Allocate() = %v", err)
	}
	if a.Blocks[0] != 5 || a.Blocks[1] != 50 {
		t.Errorf("Blocks = %v, want [5 50]", a.Blocks)
	}
}

func TestAllocate_Linked(t *testing.T) {
	d := newDisk(t, 16)
	fill(t, d, 0, 2, 4)

	a, err := Allocate(d, Linked, 3*4096, 7)
	if err != nil {
		t.Fatal(err)
	}

	want := []int{1, 3, 5}
	for i, id := range want {
		if a.Blocks[i] != id {
			t.Fatalf("Blocks = %v, want %v", a.Blocks, want)
		}
	}
	chain, err := WalkChain(d, a.Blocks[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(chain) != 3 || chain[2] != 5 {
		t.Errorf("WalkChain() = %v, want %v", chain, want)
	}
	if d.Blocks[5].NextBlockPointer != nil {
		t.Error("last block should have a nil next pointer")
	}
	if p := a.Pointers.(LinkedPointers); p.Head != 1 || p.Tail != 5 {
		t.Errorf("Pointers = %+v", p)
	}
	checkOwned(t, d, a, 7)

	if _, err := Allocate(d, Linked, 20*4096, 8); !errors.Is(err, ErrInsufficientSpace) {
		t.Errorf("Allocate() too large = %v, want %v", err, ErrInsufficientSpace)
	}
}

func TestAllocate_Indexed(t *testing.T) {
	d := newDisk(t, 8)

	a, err := Allocate(d, Indexed, 2*4096, 3)
	if err != nil {
		t.Fatal(err)
	}
	p := a.Pointers.(IndexedPointers)
	if p.IndexBlockID != 0 {
		t.Errorf("IndexBlockID = %d, want 0", p.IndexBlockID)
	}
	if len(a.Blocks) != 2 || a.Blocks[0] != 1 || a.Blocks[1] != 2 {
		t.Errorf("Blocks = %v, want [1 2]", a.Blocks)
	}
	if d.Blocks[0].Type != disk.BlockTypeIndex || d.Blocks[1].Type != disk.BlockTypeData {
		t.Errorf("block types = %q %q", d.Blocks[0].Type, d.Blocks[1].Type)
	}
	if len(a.Owned()) != 3 {
		t.Errorf("Owned() = %v, want 3 blocks", a.Owned())
	}
	checkOwned(t, d, a, 3)

	// 5 free blocks left, 5 data blocks need 6
	if _, err := Allocate(d, Indexed, 5*4096, 4); !errors.Is(err, ErrInsufficientSpace) {
		t.Errorf("Allocate() = %v, want %v", err, ErrInsufficientSpace)
	}
	if d.UsedCount() != 3 {
		t.Errorf("failed allocation changed the disk: %d used", d.UsedCount())
	}
}

func TestAllocate_UnixSingleIndirect(t *testing.T) {
	d := newDisk(t, 512)

	a, err := Allocate(d, Unix, 20*4096, 1)
	if err != nil {
		t.Fatal(err)
	}
	p := a.Pointers.(UnixPointers)

	if len(p.Direct) != MaxDirect {
		t.Errorf("len(Direct) = %d, want %d", len(p.Direct), MaxDirect)
	}
	if p.SingleIndirect == nil {
		t.Fatal("SingleIndirect is nil")
	}
	if len(p.SingleIndirect.Entries) != 8 {
		t.Errorf("single indirect entries = %d, want 8", len(p.SingleIndirect.Entries))
	}
	if p.DoubleIndirect != nil {
		t.Error("DoubleIndirect should be nil")
	}
	if len(a.Blocks) != 21 {
		t.Errorf("len(Blocks) = %d, want 21", len(a.Blocks))
	}
	if d.Blocks[p.SingleIndirect.ID].Type != disk.BlockTypeIndex {
		t.Error("single indirect block should be an index block")
	}
	if len(p.DataBlocks()) != 20 {
		t.Errorf("DataBlocks() = %d, want 20", len(p.DataBlocks()))
	}
	checkOwned(t, d, a, 1)
}

func TestAllocate_UnixDoubleIndirect(t *testing.T) {
	d := newDisk(t, 512)

	// 12 direct + 16 single + 20 double
	n := 48
	a, err := Allocate(d, Unix, int64(n)*4096, 1)
	if err != nil {
		t.Fatal(err)
	}
	p := a.Pointers.(UnixPointers)

	if p.DoubleIndirect == nil {
		t.Fatal("DoubleIndirect is nil")
	}
	children := p.DoubleIndirect.Children
	if len(children) != 2 {
		t.Fatalf("second level blocks = %d, want 2", len(children))
	}
	if len(children[0].Entries) != PointersPerBlock || len(children[1].Entries) != 4 {
		t.Errorf("second level spans = %d, %d, want 16, 4", len(children[0].Entries), len(children[1].Entries))
	}
	// 48 data + single + double top + 2 second level
	if len(a.Blocks) != 52 {
		t.Errorf("len(Blocks) = %d, want 52", len(a.Blocks))
	}
	if got := len(p.IndexBlocks()); got != 4 {
		t.Errorf("IndexBlocks() = %d, want 4", got)
	}
	for _, id := range p.IndexBlocks() {
		if d.Blocks[id].Type != disk.BlockTypeIndex {
			t.Errorf("block %d type = %q, want index", id, d.Blocks[id].Type)
		}
	}
	checkOwned(t, d, a, 1)
}

func TestAllocate_UnixLimits(t *testing.T) {
	d := newDisk(t, 512)

	if _, err := Allocate(d, Unix, int64(MaxUnixBlocks+1)*4096, 1); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("Allocate() = %v, want %v", err, ErrFileTooLarge)
	}

	small := newDisk(t, 20)
	if _, err := Allocate(small, Unix, 20*4096, 1); !errors.Is(err, ErrInsufficientSpace) {
		t.Errorf("Allocate() = %v, want %v", err, ErrInsufficientSpace)
	}
	if small.UsedCount() != 0 {
		t.Error("failed allocation changed the disk")
	}
}

func TestAllocate_OversizedFile(t *testing.T) {
	tests := []struct {
		strategy Strategy
		want     error
	}{
		{Contiguous, ErrInsufficientContiguousSpace},
		{Linked, ErrInsufficientSpace},
		{Indexed, ErrInsufficientSpace},
		{Unix, ErrFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			d := newDisk(t, 512)
			if _, err := Allocate(d, tt.strategy, 1<<62, 1); !errors.Is(err, tt.want) {
				t.Errorf("Allocate() = %v, want %v", err, tt.want)
			}
			if d.UsedCount() != 0 {
				t.Error("failed allocation changed the disk")
			}
		})
	}
}

func TestAllocate_UnknownStrategy(t *testing.T) {
	d := newDisk(t, 8)
	if _, err := Allocate(d, Strategy("fat"), 10, 1); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("Allocate() = %v, want %v", err, ErrUnknownStrategy)
	}
	if _, err := Allocate(d, Linked, -1, 1); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Allocate() = %v, want %v", err, ErrInvalidSize)
	}
}

func TestFree(t *testing.T) {
	for _, strategy := range Strategies() {
		t.Run(string(strategy), func(t *testing.T) {
			d := newDisk(t, 64)
			a, err := Allocate(d, strategy, 30*4096, 2)
			if err != nil {
				t.Fatal(err)
			}
			if err := Free(d, a.Owned()); err != nil {
				t.Fatal(err)
			}
			if d.UsedCount() != 0 {
				t.Errorf("UsedCount() = %d after free, want 0", d.UsedCount())
			}
			if err := d.Check(); err != nil {
				t.Error(err)
			}
		})
	}

	d := newDisk(t, 4)
	fill(t, d, 0)
	if err := Free(d, []int{0, 9}); !errors.Is(err, disk.ErrBlockOutOfRange) {
		t.Errorf("Free() = %v, want %v", err, disk.ErrBlockOutOfRange)
	}
	if d.IsFree(0) {
		t.Error("invalid free list must not free anything")
	}
}

func TestEstimateBlocks(t *testing.T) {
	tests := []struct {
		strategy  Strategy
		size      int64
		wantTotal int
	}{
		{Contiguous, 256, 1},
		{Linked, 3 * 4096, 3},
		{Indexed, 3 * 4096, 4},
		{Unix, 12 * 4096, 12},
		{Unix, 20 * 4096, 21},
		{Unix, 48 * 4096, 52},
	}
	for _, tt := range tests {
		e, err := EstimateBlocks(tt.strategy, tt.size, 4096)
		if err != nil {
			t.Fatalf("EstimateBlocks(%s, %d) = %v", tt.strategy, tt.size, err)
		}
		if e.Total() != tt.wantTotal {
			t.Errorf("EstimateBlocks(%s, %d).Total() = %d, want %d", tt.strategy, tt.size, e.Total(), tt.wantTotal)
		}
	}
}

func TestRebuildPointers(t *testing.T) {
	for _, strategy := range Strategies() {
		t.Run(string(strategy), func(t *testing.T) {
			d := newDisk(t, 512)
			fill(t, d, 1, 4)
			if strategy == Contiguous {
				d = newDisk(t, 512)
			}

			size := int64(45 * 4096)
			a, err := Allocate(d, strategy, size, 1)
			if err != nil {
				t.Fatal(err)
			}

			var indexID *int
			if p, ok := a.Pointers.(IndexedPointers); ok {
				indexID = &p.IndexBlockID
			}
			got, err := RebuildPointers(strategy, a.Blocks, BlocksNeeded(size, 4096), indexID)
			if err != nil {
				t.Fatal(err)
			}
			if !equalInts(OwnedBlocks(a.Blocks, got), a.Owned()) {
				t.Errorf("rebuilt owned blocks differ: %v vs %v", OwnedBlocks(a.Blocks, got), a.Owned())
			}
			if got.Strategy() != strategy {
				t.Errorf("Strategy() = %s, want %s", got.Strategy(), strategy)
			}
		})
	}

	if _, err := RebuildPointers(Contiguous, []int{1, 3}, 2, nil); !errors.Is(err, ErrInvalidLayout) {
		t.Errorf("RebuildPointers() = %v, want %v", err, ErrInvalidLayout)
	}
	if _, err := RebuildPointers(Unix, []int{1, 2, 3}, 20, nil); !errors.Is(err, ErrInvalidLayout) {
		t.Errorf("RebuildPointers() = %v, want %v", err, ErrInvalidLayout)
	}
}

func TestWalkChainDetectsCycle(t *testing.T) {
	d := newDisk(t, 4)
	fill(t, d, 0, 1)
	one, zero := 1, 0
	_ = d.SetNext(0, &one)
	_ = d.SetNext(1, &zero)

	if _, err := WalkChain(d, 0); !errors.Is(err, ErrBrokenChain) {
		t.Errorf("WalkChain() = %v, want %v", err, ErrBrokenChain)
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy(" Unix ")
	if err != nil || s != Unix {
		t.Errorf("ParseStrategy() = %q, %v", s, err)
	}
	if _, err := ParseStrategy("fat32"); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("ParseStrategy() = %v, want %v", err, ErrUnknownStrategy)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
