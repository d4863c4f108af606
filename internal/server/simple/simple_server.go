package simple

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/AnishMulay/blockfs/internal/communication"
	pfs "github.com/AnishMulay/blockfs/internal/file_service"
	"github.com/AnishMulay/blockfs/internal/log_service"
	ms "github.com/AnishMulay/blockfs/internal/metadata_service"
	ps "github.com/AnishMulay/blockfs/internal/server"
)

// SimpleServer exposes one FileService over a communicator.
type SimpleServer struct {
	comm communication.Communicator
	fs   pfs.FileService
	ls   log_service.LogService
}

func NewSimpleServer(comm communication.Communicator, fs pfs.FileService, ls log_service.LogService) *SimpleServer {
	return &SimpleServer{comm: comm, fs: fs, ls: ls}
}

func (s *SimpleServer) Start() error {
	s.ls.Info(log_service.LogEvent{Message: "Starting blockfs server"})

	for msgType, payloadType := range ps.PayloadTypes {
		s.comm.RegisterPayloadType(msgType, payloadType)
	}

	if err := s.comm.Start(s.handleMessage); err != nil {
		return fmt.Errorf("%w: %w", ps.ErrServerStartFailed, err)
	}
	s.ls.Info(log_service.LogEvent{
		Message:  "blockfs server listening",
		Metadata: map[string]any{"address": s.comm.Address()},
	})
	return nil
}

func (s *SimpleServer) Stop() error {
	s.ls.Info(log_service.LogEvent{Message: "Stopping blockfs server"})
	if err := s.comm.Stop(); err != nil {
		return fmt.Errorf("%w: %w", ps.ErrServerStopFailed, err)
	}
	return nil
}

// handleMessage is the central router for all incoming messages.
func (s *SimpleServer) handleMessage(ctx context.Context, msg communication.Message) (*communication.Response, error) {
	id := uuid.NewString()
	s.ls.Debug(log_service.LogEvent{
		Message:  "Handling message",
		Metadata: map[string]any{"type": msg.Type, "from": msg.From, "handlerId": id},
	})

	resp, err := s.route(ctx, msg)
	if err != nil {
		return nil, err
	}
	if resp.Code != communication.CodeOK {
		s.ls.Debug(log_service.LogEvent{
			Message:  "Message failed",
			Metadata: map[string]any{"type": msg.Type, "handlerId": id, "code": resp.Code},
		})
	}
	return resp, nil
}

func (s *SimpleServer) route(ctx context.Context, msg communication.Message) (*communication.Response, error) {
	switch msg.Type {
	case ps.MsgCreateFile:
		req, ok := msg.Payload.(ps.CreateFileRequest)
		if !ok {
			return badPayload(msg)
		}
		n, err := s.fs.CreateFile(ctx, req.ParentID, req.Name, req.SizeBytes)
		return s.respondInode(n, err)

	case ps.MsgCreateDirectory:
		req, ok := msg.Payload.(ps.CreateDirectoryRequest)
		if !ok {
			return badPayload(msg)
		}
		n, err := s.fs.CreateDirectory(ctx, req.ParentID, req.Name)
		return s.respondInode(n, err)

	case ps.MsgRenameEntry:
		req, ok := msg.Payload.(ps.RenameEntryRequest)
		if !ok {
			return badPayload(msg)
		}
		return s.respond(nil, s.fs.RenameEntry(ctx, req.ParentID, req.OldName, req.NewName))

	case ps.MsgDeleteEntry:
		req, ok := msg.Payload.(ps.DeleteEntryRequest)
		if !ok {
			return badPayload(msg)
		}
		return s.respond(nil, s.fs.DeleteEntry(ctx, req.ParentID, req.Name))

	case ps.MsgUpdatePermissions:
		req, ok := msg.Payload.(ps.UpdatePermissionsRequest)
		if !ok {
			return badPayload(msg)
		}
		return s.respond(nil, s.fs.UpdatePermissions(ctx, req.InodeID, req.Permissions))

	case ps.MsgSwitchStrategy:
		req, ok := msg.Payload.(ps.SwitchStrategyRequest)
		if !ok {
			return badPayload(msg)
		}
		return s.respond(nil, s.fs.SwitchAllocationStrategy(ctx, req.Strategy))

	case ps.MsgReset:
		return s.respond(nil, s.fs.Reset(ctx))

	case ps.MsgGetInode:
		req, ok := msg.Payload.(ps.InodeRequest)
		if !ok {
			return badPayload(msg)
		}
		n, err := s.fs.GetInode(ctx, req.InodeID)
		return s.respondInode(n, err)

	case ps.MsgLookup:
		req, ok := msg.Payload.(ps.LookupRequest)
		if !ok {
			return badPayload(msg)
		}
		n, err := s.fs.Lookup(ctx, req.ParentID, req.Name)
		return s.respondInode(n, err)

	case ps.MsgResolvePath:
		req, ok := msg.Payload.(ps.ResolvePathRequest)
		if !ok {
			return badPayload(msg)
		}
		// Partial resolutions are still answered OK so the visited steps
		// reach the caller.
		steps, err := s.fs.ResolvePath(ctx, req.Path)
		res := ps.ResolvePathResponse{Steps: steps}
		if err != nil {
			_, res.Error = ps.EncodeError(err)
		}
		return s.respond(res, nil)

	case ps.MsgListDirectory:
		req, ok := msg.Payload.(ps.InodeRequest)
		if !ok {
			return badPayload(msg)
		}
		entries, err := s.fs.ListDirectory(ctx, req.InodeID)
		return s.respond(entries, err)

	case ps.MsgPath:
		req, ok := msg.Payload.(ps.InodeRequest)
		if !ok {
			return badPayload(msg)
		}
		p, err := s.fs.Path(ctx, req.InodeID)
		return s.respond(ps.PathResponse{Path: p}, err)

	case ps.MsgBlockChain:
		req, ok := msg.Payload.(ps.InodeRequest)
		if !ok {
			return badPayload(msg)
		}
		chain, err := s.fs.BlockChain(ctx, req.InodeID)
		return s.respond(chain, err)

	case ps.MsgBlockMap:
		blocks, err := s.fs.BlockMap(ctx)
		return s.respond(blocks, err)

	case ps.MsgStats:
		stats, err := s.fs.Stats(ctx)
		return s.respond(stats, err)

	case ps.MsgStrategy:
		strategy, err := s.fs.Strategy(ctx)
		return s.respond(ps.StrategyResponse{Strategy: strategy}, err)

	case ps.MsgSuperblock:
		sb, err := s.fs.Superblock(ctx)
		return s.respond(sb, err)

	default:
		return errorResponse(communication.CodeBadRequest, &ps.ErrorBody{
			Kind:    "invalid_payload",
			Message: "unknown message type: " + msg.Type,
		}), nil
	}
}

func (s *SimpleServer) respondInode(n *ms.Inode, err error) (*communication.Response, error) {
	if err != nil {
		return s.respond(nil, err)
	}
	return s.respond(ps.NewInodeView(n), nil)
}

func badPayload(msg communication.Message) (*communication.Response, error) {
	code, body := ps.EncodeError(fmt.Errorf("%w: %s got %T", ps.ErrInvalidPayloadType, msg.Type, msg.Payload))
	return errorResponse(code, body), nil
}

func errorResponse(code communication.SandCode, body *ps.ErrorBody) *communication.Response {
	data, _ := json.Marshal(body)
	return &communication.Response{Code: code, Body: data}
}

// respond standardizes JSON responses and error codes.
func (s *SimpleServer) respond(data any, err error) (*communication.Response, error) {
	if err != nil {
		code, body := ps.EncodeError(err)
		if code == communication.CodeInternal {
			s.ls.Error(log_service.LogEvent{
				Message:  "Unclassified filesystem error",
				Metadata: map[string]any{"error": err.Error()},
			})
		}
		return errorResponse(code, body), nil
	}

	if data == nil {
		return &communication.Response{Code: communication.CodeOK}, nil
	}

	bytes, marshalErr := json.Marshal(data)
	if marshalErr != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", marshalErr)
	}
	return &communication.Response{Code: communication.CodeOK, Body: bytes}, nil
}
