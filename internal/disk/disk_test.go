package disk

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		totalBlocks int
		blockSize   int
		wantErr     error
	}{
		{name: "default geometry", totalBlocks: DefaultTotalBlocks, blockSize: DefaultBlockSize},
		{name: "single block", totalBlocks: 1, blockSize: 512},
		{name: "zero blocks", totalBlocks: 0, blockSize: 4096, wantErr: ErrInvalidGeometry},
		{name: "negative block size", totalBlocks: 8, blockSize: -1, wantErr: ErrInvalidGeometry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.totalBlocks, tt.blockSize)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if d.FreeCount() != tt.totalBlocks {
				t.Errorf("FreeCount() = %d, want %d", d.FreeCount(), tt.totalBlocks)
			}
			for i := 0; i < tt.totalBlocks; i++ {
				if !d.IsFree(i) {
					t.Errorf("block %d should be free", i)
				}
			}
			if err := d.Check(); err != nil {
				t.Errorf("Check() = %v", err)
			}
		})
	}
}

func TestMarkUsedAndFree(t *testing.T) {
	d, err := New(16, 4096)
	if err != nil {
		t.Fatal(err)
	}

	if err := d.MarkUsed(3, 7, BlockTypeIndex); err != nil {
		t.Fatalf("MarkUsed() = %v", err)
	}
	if d.IsFree(3) {
		t.Error("block 3 should be used")
	}
	b := d.Blocks[3]
	if !b.Used || b.OwnerInodeID == nil || *b.OwnerInodeID != 7 || b.Type != BlockTypeIndex {
		t.Errorf("block 3 = %+v, want used index block owned by 7", b)
	}
	if d.UsedCount() != 1 || d.FreeCount() != 15 {
		t.Errorf("counts = %d used / %d free, want 1 / 15", d.UsedCount(), d.FreeCount())
	}

	if err := d.MarkUsed(3, 8, BlockTypeData); !errors.Is(err, ErrBlockInUse) {
		t.Errorf("MarkUsed() on used block = %v, want %v", err, ErrBlockInUse)
	}

	next := 9
	if err := d.SetNext(3, &next); err != nil {
		t.Fatal(err)
	}
	next = 10
	if *d.Blocks[3].NextBlockPointer != 9 {
		t.Error("SetNext() should copy the pointer target")
	}

	if err := d.MarkFree(3); err != nil {
		t.Fatalf("MarkFree() = %v", err)
	}
	b = d.Blocks[3]
	if b.Used || b.OwnerInodeID != nil || b.NextBlockPointer != nil || b.Type != BlockTypeNone {
		t.Errorf("freed block 3 = %+v, want zero block", b)
	}
	if err := d.Check(); err != nil {
		t.Errorf("Check() = %v", err)
	}
}

func TestOutOfRange(t *testing.T) {
	d, _ := New(4, 4096)

	if d.IsFree(-1) || d.IsFree(4) {
		t.Error("out of range ids must not report free")
	}
	if err := d.MarkUsed(4, 1, BlockTypeData); !errors.Is(err, ErrBlockOutOfRange) {
		t.Errorf("MarkUsed(4) = %v, want %v", err, ErrBlockOutOfRange)
	}
	if err := d.MarkFree(-1); !errors.Is(err, ErrBlockOutOfRange) {
		t.Errorf("MarkFree(-1) = %v, want %v", err, ErrBlockOutOfRange)
	}
	bad := 99
	if err := d.SetNext(0, &bad); !errors.Is(err, ErrBlockOutOfRange) {
		t.Errorf("SetNext(0, 99) = %v, want %v", err, ErrBlockOutOfRange)
	}
}

func TestCheckDetectsDrift(t *testing.T) {
	d, _ := New(4, 4096)
	d.FreeBitmap[2] = true
	if err := d.Check(); !errors.Is(err, ErrInconsistent) {
		t.Errorf("Check() = %v, want %v", err, ErrInconsistent)
	}

	d, _ = New(4, 4096)
	owner := 1
	d.Blocks[1].OwnerInodeID = &owner
	if err := d.Check(); !errors.Is(err, ErrInconsistent) {
		t.Errorf("Check() with owner on free block = %v, want %v", err, ErrInconsistent)
	}
}

func TestClone(t *testing.T) {
	d, _ := New(4, 4096)
	_ = d.MarkUsed(0, 1, BlockTypeData)

	c := d.Clone()
	_ = c.MarkFree(0)

	if d.IsFree(0) {
		t.Error("mutating the clone changed the original")
	}
	if *d.Blocks[0].OwnerInodeID != 1 {
		t.Error("original owner changed")
	}
}
