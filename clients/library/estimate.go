package blocklib

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/AnishMulay/blockfs/internal/allocator"
	pfs "github.com/AnishMulay/blockfs/internal/file_service"
)

// ExplainCreateFailure annotates a space error from CreateFile with the blocks
// the file costs under the current strategy. Other errors are returned as is.
func ExplainCreateFailure(ctx context.Context, svc pfs.FileService, sizeBytes int64, err error) error {
	if !errors.Is(err, pfs.ErrInsufficientSpace) && !errors.Is(err, pfs.ErrInsufficientContiguousSpace) {
		return err
	}
	strategy, serr := svc.Strategy(ctx)
	if serr != nil {
		return err
	}
	sb, serr := svc.Superblock(ctx)
	if serr != nil {
		return err
	}
	est, serr := allocator.EstimateBlocks(strategy, sizeBytes, sb.BlockSize)
	if serr != nil {
		return err
	}
	return fmt.Errorf("%w (%s allocation needs %d blocks, %d index)", err, strategy, est.Total(), est.IndexBlocks)
}

// KBToBytes converts a size given in KB. NaN and sizes beyond the int64 range
// fail with ErrInvalidSize.
func KBToBytes(kb float64) (int64, error) {
	b := kb * 1024
	if math.IsNaN(b) || b >= math.MaxInt64 || b <= math.MinInt64 {
		return 0, fmt.Errorf("%w: %v KB", pfs.ErrInvalidSize, kb)
	}
	return int64(b), nil
}
