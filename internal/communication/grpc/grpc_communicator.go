package grpccomm

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/AnishMulay/blockfs/internal/communication"
	"github.com/AnishMulay/blockfs/internal/log_service"
)

type GRPCCommunicator struct {
	listenAddress string
	handler       communication.MessageHandler
	grpcServer    *grpc.Server
	health        *health.Server
	ls            log_service.LogService

	clientLock sync.RWMutex
	clients    map[string]*grpc.ClientConn

	payloadLock  sync.RWMutex
	payloadTypes map[string]reflect.Type

	stopped   bool
	stopMutex sync.RWMutex
}

func NewGRPCCommunicator(addr string, ls log_service.LogService) *GRPCCommunicator {
	return &GRPCCommunicator{
		listenAddress: addr,
		ls:            ls,
		clients:       make(map[string]*grpc.ClientConn),
		payloadTypes:  make(map[string]reflect.Type),
	}
}

// Address is the listen address. After Start it reflects the bound port, so
// ":0" can be used to pick a free one.
func (c *GRPCCommunicator) Address() string {
	c.stopMutex.RLock()
	defer c.stopMutex.RUnlock()
	return c.listenAddress
}

func (c *GRPCCommunicator) RegisterPayloadType(msgType string, payloadType reflect.Type) {
	c.payloadLock.Lock()
	defer c.payloadLock.Unlock()
	c.payloadTypes[msgType] = payloadType
}

func (c *GRPCCommunicator) payloadType(msgType string) (reflect.Type, bool) {
	c.payloadLock.RLock()
	defer c.payloadLock.RUnlock()
	t, ok := c.payloadTypes[msgType]
	return t, ok
}

func (c *GRPCCommunicator) Start(handler communication.MessageHandler) error {
	c.ls.Info(log_service.LogEvent{
		Message:  "Starting GRPC communicator",
		Metadata: map[string]any{"address": c.listenAddress},
	})

	lis, err := net.Listen("tcp", c.listenAddress)
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to listen on address",
			Metadata: map[string]any{"address": c.listenAddress, "error": err.Error()},
		})
		return fmt.Errorf("%w: %s: %w", communication.ErrListenFailed, c.listenAddress, err)
	}

	c.stopMutex.Lock()
	c.handler = handler
	c.listenAddress = lis.Addr().String()
	c.grpcServer = grpc.NewServer()
	c.grpcServer.RegisterService(&messageServiceDesc, &grpcServer{comm: c})
	c.health = health.NewServer()
	healthpb.RegisterHealthServer(c.grpcServer, c.health)
	c.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	c.health.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	c.stopped = false
	srv := c.grpcServer
	c.stopMutex.Unlock()

	c.ls.Info(log_service.LogEvent{
		Message:  "GRPC communicator started successfully",
		Metadata: map[string]any{"address": lis.Addr().String()},
	})

	go func() {
		if err := srv.Serve(lis); err != nil {
			c.ls.Error(log_service.LogEvent{
				Message:  "GRPC server error",
				Metadata: map[string]any{"address": lis.Addr().String(), "error": err.Error()},
			})
		}
	}()
	return nil
}

func (c *GRPCCommunicator) Stop() error {
	c.stopMutex.Lock()
	if c.stopped {
		c.stopMutex.Unlock()
		c.ls.Debug(log_service.LogEvent{
			Message:  "GRPC communicator already stopped, skipping",
			Metadata: map[string]any{"address": c.listenAddress},
		})
		return nil
	}
	c.stopped = true
	srv, hs, addr := c.grpcServer, c.health, c.listenAddress
	c.stopMutex.Unlock()

	c.ls.Info(log_service.LogEvent{
		Message:  "Stopping GRPC communicator",
		Metadata: map[string]any{"address": addr},
	})

	if hs != nil {
		hs.Shutdown()
	}
	if srv != nil {
		srv.GracefulStop()
	}

	c.clientLock.Lock()
	for to, conn := range c.clients {
		if err := conn.Close(); err != nil {
			c.ls.Warn(log_service.LogEvent{
				Message:  "Failed to close GRPC client connection",
				Metadata: map[string]any{"to": to, "error": err.Error()},
			})
		}
		delete(c.clients, to)
	}
	c.clientLock.Unlock()

	c.ls.Info(log_service.LogEvent{
		Message:  "GRPC communicator stopped successfully",
		Metadata: map[string]any{"address": addr},
	})
	return nil
}

func (c *GRPCCommunicator) conn(to string) (*grpc.ClientConn, error) {
	c.clientLock.RLock()
	conn, ok := c.clients[to]
	c.clientLock.RUnlock()
	if ok {
		return conn, nil
	}

	c.clientLock.Lock()
	defer c.clientLock.Unlock()
	if conn, ok := c.clients[to]; ok {
		return conn, nil
	}

	c.ls.Debug(log_service.LogEvent{
		Message:  "Creating new GRPC client",
		Metadata: map[string]any{"to": to},
	})
	conn, err := grpc.NewClient(to,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to create GRPC client",
			Metadata: map[string]any{"to": to, "error": err.Error()},
		})
		return nil, fmt.Errorf("%w: %w", communication.ErrClientCreateFailed, err)
	}
	c.clients[to] = conn
	return conn, nil
}

// Send delivers msg to the node at to. A failed operation on the remote side
// comes back as a Response with a non OK code; only transport failures are
// returned as errors.
func (c *GRPCCommunicator) Send(ctx context.Context, to string, msg communication.Message) (*communication.Response, error) {
	requestID := uuid.NewString()
	c.ls.Debug(log_service.LogEvent{
		Message:  "Sending GRPC message",
		Metadata: map[string]any{"to": to, "type": msg.Type, "from": msg.From, "requestId": requestID},
	})

	conn, err := c.conn(to)
	if err != nil {
		return nil, err
	}

	req := &MessageRequest{RequestID: requestID, From: msg.From, Type: msg.Type}
	if msg.Payload != nil {
		req.Payload, err = json.Marshal(msg.Payload)
		if err != nil {
			c.ls.Error(log_service.LogEvent{
				Message:  "Failed to marshal payload",
				Metadata: map[string]any{"to": to, "type": msg.Type, "error": err.Error()},
			})
			return nil, fmt.Errorf("%w: %w", communication.ErrPayloadMarshalFailed, err)
		}
	}

	resp := new(MessageResponse)
	if err := conn.Invoke(ctx, sendMessageMethod, req, resp); err != nil {
		if r, ok := responseFromStatus(err); ok {
			c.ls.Debug(log_service.LogEvent{
				Message:  "GRPC message rejected by remote handler",
				Metadata: map[string]any{"to": to, "type": msg.Type, "requestId": requestID, "responseCode": r.Code},
			})
			return r, nil
		}
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to send GRPC message",
			Metadata: map[string]any{"to": to, "type": msg.Type, "requestId": requestID, "error": err.Error()},
		})
		return nil, fmt.Errorf("%w: %w", communication.ErrMessageSendFailed, err)
	}

	c.ls.Debug(log_service.LogEvent{
		Message:  "GRPC message sent successfully",
		Metadata: map[string]any{"to": to, "type": msg.Type, "requestId": requestID, "responseCode": resp.Code},
	})
	return &communication.Response{Code: communication.SandCode(resp.Code), Body: resp.Body}, nil
}

// Ping checks that a node is reachable and serving.
func (c *GRPCCommunicator) Ping(ctx context.Context, to string) error {
	conn, err := c.conn(to)
	if err != nil {
		return err
	}
	if err := conn.Invoke(ctx, pingMethod, &emptypb.Empty{}, &emptypb.Empty{}); err != nil {
		return fmt.Errorf("%w: %w", communication.ErrConnectionFailed, err)
	}
	return nil
}

type grpcServer struct {
	comm *GRPCCommunicator
}

func (s *grpcServer) Ping(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	return &emptypb.Empty{}, nil
}

func (s *grpcServer) SendMessage(ctx context.Context, req *MessageRequest) (*MessageResponse, error) {
	s.comm.stopMutex.RLock()
	handler := s.comm.handler
	s.comm.stopMutex.RUnlock()
	if handler == nil {
		return nil, status.Error(codes.Unavailable, communication.ErrHandlerNotSet.Error())
	}

	msg := communication.Message{From: req.From, Type: req.Type}

	payloadType, ok := s.comm.payloadType(req.Type)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "%v: %s", communication.ErrUnknownMessageType, req.Type)
	}
	payload := reflect.New(payloadType).Interface()
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, payload); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "%v: %v", communication.ErrPayloadUnmarshalFailed, err)
		}
	}
	msg.Payload = reflect.ValueOf(payload).Elem().Interface()

	resp, err := handler(ctx, msg)
	if err != nil {
		s.comm.ls.Error(log_service.LogEvent{
			Message:  "Message handler failed",
			Metadata: map[string]any{"type": req.Type, "requestId": req.RequestID, "error": err.Error()},
		})
		return nil, status.Error(codes.Internal, err.Error())
	}
	if resp == nil {
		return nil, status.Error(codes.Internal, "handler returned nil response")
	}
	if resp.Code != communication.CodeOK {
		return nil, statusFromResponse(resp)
	}

	return &MessageResponse{Code: string(resp.Code), Body: resp.Body}, nil
}

var _ communication.Communicator = (*GRPCCommunicator)(nil)
