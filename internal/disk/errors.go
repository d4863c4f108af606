package disk

import "errors"

var (
	ErrInvalidGeometry = errors.New("invalid disk geometry")
	ErrBlockOutOfRange = errors.New("block out of range")
	ErrBlockInUse      = errors.New("block already in use")
	ErrInconsistent    = errors.New("disk bitmap inconsistent with blocks")
)
