package grpccomm

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/AnishMulay/blockfs/internal/communication"
)

var sandToGRPC = map[communication.SandCode]codes.Code{
	communication.CodeBadRequest:         codes.InvalidArgument,
	communication.CodeNotFound:           codes.NotFound,
	communication.CodeAlreadyExists:      codes.AlreadyExists,
	communication.CodePermissionDenied:   codes.PermissionDenied,
	communication.CodeFailedPrecondition: codes.FailedPrecondition,
	communication.CodeResourceExhausted:  codes.ResourceExhausted,
	communication.CodeUnavailable:        codes.Unavailable,
	communication.CodeInternal:           codes.Internal,
}

var grpcToSand = map[codes.Code]communication.SandCode{
	codes.InvalidArgument:    communication.CodeBadRequest,
	codes.NotFound:           communication.CodeNotFound,
	codes.AlreadyExists:      communication.CodeAlreadyExists,
	codes.PermissionDenied:   communication.CodePermissionDenied,
	codes.FailedPrecondition: communication.CodeFailedPrecondition,
	codes.ResourceExhausted:  communication.CodeResourceExhausted,
	codes.Internal:           communication.CodeInternal,
}

// statusFromResponse turns a failed response into a gRPC status error. The body
// becomes the status message.
func statusFromResponse(resp *communication.Response) error {
	code, ok := sandToGRPC[resp.Code]
	if !ok {
		code = codes.Unknown
	}
	return status.Error(code, string(resp.Body))
}

// responseFromStatus recovers the response a handler produced. Transport level
// failures such as Unavailable or DeadlineExceeded are not responses and report
// false.
func responseFromStatus(err error) (*communication.Response, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return nil, false
	}
	code, ok := grpcToSand[st.Code()]
	if !ok {
		return nil, false
	}
	return &communication.Response{Code: code, Body: []byte(st.Message())}, true
}
