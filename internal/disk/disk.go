package disk

import "fmt"

const (
	DefaultTotalBlocks = 512
	DefaultBlockSize   = 4096
)

type BlockType string

const (
	BlockTypeNone  BlockType = ""
	BlockTypeData  BlockType = "data"
	BlockTypeIndex BlockType = "index"
)

// Block is one slot of the simulated disk. OwnerInodeID is set iff Used.
// NextBlockPointer is only meaningful for linked allocations.
type Block struct {
	ID               int       `json:"id"`
	Used             bool      `json:"used"`
	OwnerInodeID     *int      `json:"inodeId"`
	NextBlockPointer *int      `json:"nextBlockPointer,omitempty"`
	Type             BlockType `json:"blockType,omitempty"`
}

// Disk is a fixed array of blocks plus a bitmap in which true means used. The
// bitmap is authoritative and Blocks[i].Used always mirrors it.
type Disk struct {
	TotalBlocks int     `json:"totalBlocks"`
	BlockSize   int     `json:"blockSize"`
	Blocks      []Block `json:"blocks"`
	FreeBitmap  []bool  `json:"freeBlockBitmap"`
}

func New(totalBlocks, blockSize int) (*Disk, error) {
	if totalBlocks <= 0 {
		return nil, fmt.Errorf("%w: total blocks %d", ErrInvalidGeometry, totalBlocks)
	}
	if blockSize <= 0 {
		return nil, fmt.Errorf("%w: block size %d", ErrInvalidGeometry, blockSize)
	}

	d := &Disk{
		TotalBlocks: totalBlocks,
		BlockSize:   blockSize,
		Blocks:      make([]Block, totalBlocks),
		FreeBitmap:  make([]bool, totalBlocks),
	}
	for i := range d.Blocks {
		d.Blocks[i] = Block{ID: i}
	}
	return d, nil
}

func (d *Disk) InRange(id int) bool {
	return id >= 0 && id < d.TotalBlocks
}

func (d *Disk) IsFree(id int) bool {
	return d.InRange(id) && !d.FreeBitmap[id]
}

func (d *Disk) MarkUsed(id, owner int, blockType BlockType) error {
	if !d.InRange(id) {
		return fmt.Errorf("%w: %d", ErrBlockOutOfRange, id)
	}
	if d.FreeBitmap[id] {
		return fmt.Errorf("%w: %d", ErrBlockInUse, id)
	}

	d.FreeBitmap[id] = true
	b := &d.Blocks[id]
	b.Used = true
	b.OwnerInodeID = &owner
	b.Type = blockType
	b.NextBlockPointer = nil
	return nil
}

// MarkFree releases a block. Freeing a free block is a no-op.
func (d *Disk) MarkFree(id int) error {
	if !d.InRange(id) {
		return fmt.Errorf("%w: %d", ErrBlockOutOfRange, id)
	}

	d.FreeBitmap[id] = false
	d.Blocks[id] = Block{ID: id}
	return nil
}

// SetNext links a used block to the next block of a linked allocation. A nil
// next marks the end of the chain.
func (d *Disk) SetNext(id int, next *int) error {
	if !d.InRange(id) {
		return fmt.Errorf("%w: %d", ErrBlockOutOfRange, id)
	}
	if next != nil && !d.InRange(*next) {
		return fmt.Errorf("%w: %d", ErrBlockOutOfRange, *next)
	}
	if next != nil {
		n := *next
		next = &n
	}
	d.Blocks[id].NextBlockPointer = next
	return nil
}

func (d *Disk) UsedCount() int {
	n := 0
	for _, used := range d.FreeBitmap {
		if used {
			n++
		}
	}
	return n
}

func (d *Disk) FreeCount() int {
	return d.TotalBlocks - d.UsedCount()
}

// Check verifies the structural invariants: the block array and bitmap match
// TotalBlocks, every block sits at its own id, the bitmap agrees with the used
// flags, and owners are set exactly on used blocks.
func (d *Disk) Check() error {
	if d.TotalBlocks <= 0 || d.BlockSize <= 0 {
		return fmt.Errorf("%w: %d blocks of %d bytes", ErrInvalidGeometry, d.TotalBlocks, d.BlockSize)
	}
	if len(d.Blocks) != d.TotalBlocks || len(d.FreeBitmap) != d.TotalBlocks {
		return fmt.Errorf("%w: %d blocks, %d bitmap bits, want %d",
			ErrInconsistent, len(d.Blocks), len(d.FreeBitmap), d.TotalBlocks)
	}
	for i, b := range d.Blocks {
		if b.ID != i {
			return fmt.Errorf("%w: block at %d has id %d", ErrInconsistent, i, b.ID)
		}
		if b.Used != d.FreeBitmap[i] {
			return fmt.Errorf("%w: block %d used=%t bitmap=%t", ErrInconsistent, i, b.Used, d.FreeBitmap[i])
		}
		if (b.OwnerInodeID != nil) != b.Used {
			return fmt.Errorf("%w: block %d owner does not match used flag", ErrInconsistent, i)
		}
	}
	return nil
}

// Clone returns a deep copy of the disk.
func (d *Disk) Clone() *Disk {
	out := &Disk{
		TotalBlocks: d.TotalBlocks,
		BlockSize:   d.BlockSize,
		Blocks:      make([]Block, len(d.Blocks)),
		FreeBitmap:  make([]bool, len(d.FreeBitmap)),
	}
	copy(out.FreeBitmap, d.FreeBitmap)
	for i, b := range d.Blocks {
		out.Blocks[i] = b.clone()
	}
	return out
}

func (b Block) clone() Block {
	if b.OwnerInodeID != nil {
		owner := *b.OwnerInodeID
		b.OwnerInodeID = &owner
	}
	if b.NextBlockPointer != nil {
		next := *b.NextBlockPointer
		b.NextBlockPointer = &next
	}
	return b
}
