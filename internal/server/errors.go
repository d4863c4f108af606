package server

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/AnishMulay/blockfs/internal/communication"
	fs "github.com/AnishMulay/blockfs/internal/file_service"
)

var (
	// Server lifecycle errors
	ErrServerStartFailed = errors.New("failed to start server")
	ErrServerStopFailed  = errors.New("failed to stop server")

	// Message handling errors
	ErrInvalidPayloadType = errors.New("invalid payload type for message")
	ErrRemote             = errors.New("remote operation failed")
)

// ErrorBody is the body of every failed response.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorKind struct {
	name string
	err  error
	code communication.SandCode
}

// errorKinds lists the filesystem errors that survive a round trip. Order
// matters: the first match wins.
var errorKinds = []errorKind{
	{"not_found", fs.ErrNotFound, communication.CodeNotFound},
	{"duplicate_name", fs.ErrDuplicateName, communication.CodeAlreadyExists},
	{"permission_denied", fs.ErrPermissionDenied, communication.CodePermissionDenied},
	{"not_a_directory", fs.ErrNotADirectory, communication.CodeFailedPrecondition},
	{"non_empty_directory", fs.ErrNonEmptyDirectory, communication.CodeFailedPrecondition},
	{"insufficient_contiguous_space", fs.ErrInsufficientContiguousSpace, communication.CodeResourceExhausted},
	{"insufficient_space", fs.ErrInsufficientSpace, communication.CodeResourceExhausted},
	{"file_too_large", fs.ErrFileTooLarge, communication.CodeResourceExhausted},
	{"invalid_name", fs.ErrInvalidName, communication.CodeBadRequest},
	{"unknown_strategy", fs.ErrUnknownStrategy, communication.CodeBadRequest},
	{"invalid_size", fs.ErrInvalidSize, communication.CodeBadRequest},
	{"invalid_payload", ErrInvalidPayloadType, communication.CodeBadRequest},
}

// EncodeError classifies err and renders the body that carries it.
func EncodeError(err error) (communication.SandCode, *ErrorBody) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.code, &ErrorBody{Kind: k.name, Message: err.Error()}
		}
	}
	return communication.CodeInternal, &ErrorBody{Kind: "internal", Message: err.Error()}
}

// DecodeError rebuilds the error a failed response describes. Known kinds
// unwrap to their filesystem sentinel; anything else unwraps to ErrRemote.
func DecodeError(resp *communication.Response) error {
	var body ErrorBody
	if err := json.Unmarshal(resp.Body, &body); err != nil || body.Message == "" {
		body = ErrorBody{Message: strings.TrimSpace(string(resp.Body))}
		if body.Message == "" {
			body.Message = string(resp.Code)
		}
	}
	return body.Err()
}

func (b *ErrorBody) Err() error {
	for _, k := range errorKinds {
		if k.name == b.Kind {
			return &remoteError{msg: b.Message, err: k.err}
		}
	}
	return &remoteError{msg: b.Message, err: ErrRemote}
}

type remoteError struct {
	msg string
	err error
}

func (e *remoteError) Error() string { return e.msg }
func (e *remoteError) Unwrap() error { return e.err }
