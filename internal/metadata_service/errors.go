package metadata_service

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateName = errors.New("a file or folder with that name already exists")
	ErrNotADirectory = errors.New("not a directory")
	ErrInvalidState  = errors.New("invalid filesystem state")

	ErrInvalidPermissions = errors.New("invalid permissions")
)
