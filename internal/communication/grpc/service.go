package grpccomm

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

const (
	serviceName       = "blockfs.communication.MessageService"
	sendMessageMethod = "/" + serviceName + "/SendMessage"
	pingMethod        = "/" + serviceName + "/Ping"
)

type MessageRequest struct {
	RequestID string          `json:"requestId"`
	From      string          `json:"from"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type MessageResponse struct {
	Code string `json:"code"`
	Body []byte `json:"body,omitempty"`
}

type messageServiceServer interface {
	SendMessage(ctx context.Context, req *MessageRequest) (*MessageResponse, error)
	Ping(ctx context.Context, req *emptypb.Empty) (*emptypb.Empty, error)
}

var messageServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*messageServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SendMessage", Handler: sendMessageHandler},
		{MethodName: "Ping", Handler: pingHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "blockfs/communication.proto",
}

func sendMessageHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(MessageRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(messageServiceServer).SendMessage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: sendMessageMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(messageServiceServer).SendMessage(ctx, req.(*MessageRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func pingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(messageServiceServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: pingMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(messageServiceServer).Ping(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}
