package allocator

import "errors"

var (
	ErrInsufficientContiguousSpace = errors.New("not enough contiguous space")
	ErrInsufficientSpace           = errors.New("not enough disk space")
	ErrFileTooLarge                = errors.New("file too large for allocation structure")
	ErrUnknownStrategy             = errors.New("unknown allocation strategy")
	ErrInvalidSize                 = errors.New("invalid file size")
	ErrInvalidLayout               = errors.New("invalid block layout")
	ErrBrokenChain                 = errors.New("broken block chain")
)
