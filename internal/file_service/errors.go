package file_service

import (
	"errors"

	"github.com/AnishMulay/blockfs/internal/allocator"
	ms "github.com/AnishMulay/blockfs/internal/metadata_service"
)

var (
	ErrPermissionDenied  = errors.New("permission denied")
	ErrNonEmptyDirectory = errors.New("directory not empty")
	ErrInvalidName       = errors.New("invalid name")

	// Re-exported so callers only need this package.
	ErrNotFound                    = ms.ErrNotFound
	ErrDuplicateName               = ms.ErrDuplicateName
	ErrNotADirectory               = ms.ErrNotADirectory
	ErrInsufficientContiguousSpace = allocator.ErrInsufficientContiguousSpace
	ErrInsufficientSpace           = allocator.ErrInsufficientSpace
	ErrFileTooLarge                = allocator.ErrFileTooLarge
	ErrUnknownStrategy             = allocator.ErrUnknownStrategy
	ErrInvalidSize                 = allocator.ErrInvalidSize
)
