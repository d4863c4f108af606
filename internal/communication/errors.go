package communication

import "errors"

var (
	// Server startup/shutdown errors
	ErrServerStartFailed = errors.New("failed to start server")
	ErrServerStopFailed  = errors.New("failed to stop server")

	// Client connection errors
	ErrClientCreateFailed = errors.New("failed to create client")
	ErrConnectionFailed   = errors.New("failed to connect to server")

	// Message handling errors
	ErrHandlerNotSet        = errors.New("message handler not set")
	ErrMessageSendFailed    = errors.New("failed to send message")
	ErrMessageHandlerFailed = errors.New("message handler failed")
	ErrUnknownMessageType   = errors.New("unknown message type")

	// Serialization/deserialization errors
	ErrPayloadMarshalFailed   = errors.New("failed to marshal payload")
	ErrPayloadUnmarshalFailed = errors.New("failed to unmarshal payload")

	ErrListenFailed = errors.New("failed to listen on address")
)
