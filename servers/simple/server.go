// Package simple wires a config into a running blockfs node: the log
// service, the state store, the filesystem and its server.
package simple

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/AnishMulay/blockfs/internal/blob_store"
	"github.com/AnishMulay/blockfs/internal/blob_store/inmemory"
	"github.com/AnishMulay/blockfs/internal/blob_store/localdisc"
	"github.com/AnishMulay/blockfs/internal/blob_store/postgres"
	"github.com/AnishMulay/blockfs/internal/blob_store/s3"
	"github.com/AnishMulay/blockfs/internal/communication"
	grpccomm "github.com/AnishMulay/blockfs/internal/communication/grpc"
	httpcomm "github.com/AnishMulay/blockfs/internal/communication/http"
	"github.com/AnishMulay/blockfs/internal/config"
	pfs "github.com/AnishMulay/blockfs/internal/file_service"
	"github.com/AnishMulay/blockfs/internal/log_service"
	logdisc "github.com/AnishMulay/blockfs/internal/log_service/localdisc"
	"github.com/AnishMulay/blockfs/internal/server"
	simpleserver "github.com/AnishMulay/blockfs/internal/server/simple"
)

// OpenLog logs to <Log.Dir>/<NodeID>.log, or to stderr when no directory is
// configured.
func OpenLog(cfg *config.Config) (log_service.LogService, io.Closer, error) {
	if cfg.Log.Dir == "" {
		return logdisc.NewWriterLogService(os.Stderr, cfg.Server.NodeID, cfg.Log.Level), nil, nil
	}
	ls, err := logdisc.NewLocalDiscLogService(cfg.Log.Dir, cfg.Server.NodeID, cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	return ls, ls, nil
}

// OpenStore builds the blob store named by Store.Type. The closer is nil for
// stores that hold no connection.
func OpenStore(ctx context.Context, cfg *config.Config, ls log_service.LogService) (blob_store.BlobStore, io.Closer, error) {
	switch cfg.Store.Type {
	case config.StoreMemory:
		return inmemory.NewInMemoryBlobStore(), nil, nil
	case config.StoreFile:
		store, err := localdisc.NewLocalDiscBlobStore(cfg.Store.Path, ls)
		return store, nil, err
	case config.StoreS3:
		store, err := s3.NewS3BlobStore(s3.Options{
			Bucket:   cfg.Store.Bucket,
			Prefix:   cfg.Store.Prefix,
			Region:   cfg.Store.Region,
			Endpoint: cfg.Store.Endpoint,
		}, ls)
		return store, nil, err
	case config.StorePostgres:
		store, err := postgres.Open(ctx, cfg.Store.DSN, cfg.Store.Table, ls)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown store.type %q", config.ErrInvalidConfig, cfg.Store.Type)
	}
}

// Options maps the disk section of cfg onto filesystem options.
func Options(cfg *config.Config) pfs.Options {
	return pfs.Options{
		TotalBlocks:     cfg.Disk.TotalBlocks,
		BlockSize:       cfg.Disk.BlockSize,
		DefaultStrategy: cfg.Strategy(),
	}
}

// Local is a filesystem opened in process together with the resources it
// holds.
type Local struct {
	FS      *pfs.FileSystem
	Logs    log_service.LogService
	closers []io.Closer
}

// OpenLocal opens the log, the store and the filesystem described by cfg.
func OpenLocal(ctx context.Context, cfg *config.Config) (*Local, error) {
	l := &Local{}
	ls, closer, err := OpenLog(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening log service: %w", err)
	}
	l.Logs = ls
	l.push(closer)

	store, closer, err := OpenStore(ctx, cfg, ls)
	if err != nil {
		l.Close()
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Type, err)
	}
	l.push(closer)

	fsys, err := pfs.Open(ctx, Options(cfg), store, ls)
	if err != nil {
		l.Close()
		return nil, err
	}
	l.FS = fsys
	return l, nil
}

func (l *Local) push(c io.Closer) {
	if c != nil {
		l.closers = append(l.closers, c)
	}
}

// Close releases resources in reverse order of acquisition.
func (l *Local) Close() error {
	var errs []error
	for i := len(l.closers) - 1; i >= 0; i-- {
		if err := l.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	l.closers = nil
	return errors.Join(errs...)
}

// NewCommunicator returns the transport named by Server.Transport listening
// on addr. Clients pass an empty addr.
func NewCommunicator(cfg *config.Config, addr string, ls log_service.LogService) (communication.Communicator, error) {
	switch cfg.Server.Transport {
	case communication.TransportGRPC, "":
		return grpccomm.NewGRPCCommunicator(addr, ls), nil
	case communication.TransportHTTP:
		return httpcomm.NewHTTPCommunicator(addr, ls), nil
	default:
		return nil, fmt.Errorf("%w: unknown server.transport %q", config.ErrInvalidConfig, cfg.Server.Transport)
	}
}

// Node is a Local filesystem served on Server.Address.
type Node struct {
	*Local
	Comm   communication.Communicator
	server server.Server
}

func Build(ctx context.Context, cfg *config.Config) (*Node, error) {
	local, err := OpenLocal(ctx, cfg)
	if err != nil {
		return nil, err
	}
	comm, err := NewCommunicator(cfg, cfg.Server.Address, local.Logs)
	if err != nil {
		local.Close()
		return nil, err
	}
	return &Node{
		Local:  local,
		Comm:   comm,
		server: simpleserver.NewSimpleServer(comm, local.FS, local.Logs),
	}, nil
}

func (n *Node) Start() error { return n.server.Start() }

// Stop shuts the server down and then releases the Local resources.
func (n *Node) Stop() error {
	n.Logs.Info(log_service.LogEvent{
		Message:  "Shutting down",
		Metadata: map[string]any{"address": n.Comm.Address(), "fragmentation": n.FS.Fragmentation()},
	})
	return errors.Join(n.server.Stop(), n.Close())
}

// Run starts the node and blocks until SIGINT or SIGTERM.
func (n *Node) Run() error {
	if err := n.Start(); err != nil {
		n.Close()
		return err
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	return n.Stop()
}
