package communication

import (
	"context"
	"reflect"
)

// Message is one request sent between a client and a node. Payload holds a
// typed request on the receiving side and anything JSON encodable on the
// sending side.
type Message struct {
	From    string
	Type    string
	Payload any
}

// SandCode is the outcome of a handled message.
type SandCode string

const (
	CodeOK                 SandCode = "OK"
	CodeBadRequest         SandCode = "BAD_REQUEST"
	CodeNotFound           SandCode = "NOT_FOUND"
	CodeAlreadyExists      SandCode = "ALREADY_EXISTS"
	CodePermissionDenied   SandCode = "PERMISSION_DENIED"
	CodeFailedPrecondition SandCode = "FAILED_PRECONDITION"
	CodeResourceExhausted  SandCode = "RESOURCE_EXHAUSTED"
	CodeUnavailable        SandCode = "UNAVAILABLE"
	CodeInternal           SandCode = "INTERNAL"
)

type Response struct {
	Code SandCode
	Body []byte
}

type Communicator interface {
	Start(handler MessageHandler) error
	Stop() error
	Send(ctx context.Context, to string, msg Message) (*Response, error)
	// Ping checks that the node at to is reachable and serving.
	Ping(ctx context.Context, to string) error
	// RegisterPayloadType tells the receiving side which type to decode the
	// payload of msgType into.
	RegisterPayloadType(msgType string, payloadType reflect.Type)
	Address() string
}

// Transport names accepted by NewCommunicator style factories.
const (
	TransportGRPC = "grpc"
	TransportHTTP = "http"
)
