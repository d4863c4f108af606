package blocklib

import (
	"github.com/AnishMulay/blockfs/internal/communication"
)

// BlockfsClient talks to one blockfs server. It implements
// file_service.FileService, so callers can swap it for a local FileSystem.
type BlockfsClient struct {
	ServerAddr string
	Comm       communication.Communicator
	// From identifies the client in server logs.
	From string
}
