package blob_store

import "errors"

var (
	ErrBlobNotFound     = errors.New("blob not found")
	ErrBlobWriteFailed  = errors.New("failed to write blob")
	ErrBlobReadFailed   = errors.New("failed to read blob")
	ErrBlobDeleteFailed = errors.New("failed to delete blob")
	ErrInvalidKey       = errors.New("invalid blob key")
)
