package httpcomm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AnishMulay/blockfs/internal/communication"
	"github.com/AnishMulay/blockfs/internal/log_service"
)

const (
	messagePath = "/message"
	healthPath  = "/healthz"
)

// wireMessage is the POST body of /message.
type wireMessage struct {
	RequestID string          `json:"requestId"`
	From      string          `json:"from"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type HTTPCommunicator struct {
	listenAddress string
	httpServer    *http.Server
	handler       communication.MessageHandler
	ls            log_service.LogService
	client        *http.Client

	payloadLock  sync.RWMutex
	payloadTypes map[string]reflect.Type

	stateLock sync.RWMutex
}

func NewHTTPCommunicator(listenAddress string, ls log_service.LogService) *HTTPCommunicator {
	return &HTTPCommunicator{
		listenAddress: listenAddress,
		ls:            ls,
		client:        &http.Client{Timeout: 5 * time.Second},
		payloadTypes:  make(map[string]reflect.Type),
	}
}

func (c *HTTPCommunicator) Address() string {
	c.stateLock.RLock()
	defer c.stateLock.RUnlock()
	return c.listenAddress
}

func (c *HTTPCommunicator) RegisterPayloadType(msgType string, payloadType reflect.Type) {
	c.payloadLock.Lock()
	defer c.payloadLock.Unlock()
	c.payloadTypes[msgType] = payloadType
}

func (c *HTTPCommunicator) payloadType(msgType string) (reflect.Type, bool) {
	c.payloadLock.RLock()
	defer c.payloadLock.RUnlock()
	t, ok := c.payloadTypes[msgType]
	return t, ok
}

func (c *HTTPCommunicator) Start(handler communication.MessageHandler) error {
	c.ls.Info(log_service.LogEvent{
		Message:  "Starting HTTP communicator",
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

	mux := http.NewServeMux()
	mux.HandleFunc(messagePath, c.handleHTTPMessage)
	mux.HandleFunc(healthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	c.stateLock.Lock()
	c.handler = handler
	c.listenAddress = lis.Addr().String()
	c.httpServer = &http.Server{Handler: mux}
	srv := c.httpServer
	c.stateLock.Unlock()

	c.ls.Info(log_service.LogEvent{
		Message:  "HTTP communicator started successfully",
		Metadata: map[string]any{"address": lis.Addr().String()},
	})

	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.ls.Error(log_service.LogEvent{
				Message:  "HTTP server error",
				Metadata: map[string]any{"address": lis.Addr().String(), "error": err.Error()},
			})
		}
	}()
	return nil
}

// Stop shuts the listener down. It is a no-op for a communicator that was
// never started or is already stopped.
func (c *HTTPCommunicator) Stop() error {
	c.stateLock.Lock()
	srv, addr := c.httpServer, c.listenAddress
	c.httpServer = nil
	c.stateLock.Unlock()

	c.client.CloseIdleConnections()
	if srv == nil {
		return nil
	}

	c.ls.Info(log_service.LogEvent{
		Message:  "Stopping HTTP communicator",
		Metadata: map[string]any{"address": addr},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to stop HTTP server",
			Metadata: map[string]any{"address": addr, "error": err.Error()},
		})
		return fmt.Errorf("%w: %w", communication.ErrServerStopFailed, err)
	}

	c.ls.Info(log_service.LogEvent{
		Message:  "HTTP communicator stopped successfully",
		Metadata: map[string]any{"address": addr},
	})
	return nil
}

var statusByCode = map[communication.SandCode]int{
	communication.CodeOK:                 http.StatusOK,
	communication.CodeBadRequest:         http.StatusBadRequest,
	communication.CodeNotFound:           http.StatusNotFound,
	communication.CodeAlreadyExists:      http.StatusConflict,
	communication.CodePermissionDenied:   http.StatusForbidden,
	communication.CodeFailedPrecondition: http.StatusPreconditionFailed,
	communication.CodeResourceExhausted:  http.StatusInsufficientStorage,
	communication.CodeUnavailable:        http.StatusServiceUnavailable,
	communication.CodeInternal:           http.StatusInternalServerError,
}

func mapToHTTPCode(code communication.SandCode) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func mapFromHTTPCode(status int) communication.SandCode {
	for code, s := range statusByCode {
		if s == status {
			return code
		}
	}
	return communication.CodeInternal
}

// Send posts msg to the node at to. Like the gRPC transport, remote handler
// failures come back as a Response and only transport failures as errors.
func (c *HTTPCommunicator) Send(ctx context.Context, to string, msg communication.Message) (*communication.Response, error) {
	requestID := uuid.NewString()
	c.ls.Debug(log_service.LogEvent{
		Message:  "Sending HTTP message",
		Metadata: map[string]any{"to": to, "type": msg.Type, "from": msg.From, "requestId": requestID},
	})

	wire := wireMessage{RequestID: requestID, From: msg.From, Type: msg.Type}
	if msg.Payload != nil {
		payload, err := json.Marshal(msg.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", communication.ErrPayloadMarshalFailed, err)
		}
		wire.Payload = payload
	}
	jsonData, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", communication.ErrPayloadMarshalFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+to+messagePath, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", communication.ErrClientCreateFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to send HTTP request",
			Metadata: map[string]any{"to": to, "type": msg.Type, "requestId": requestID, "error": err.Error()},
		})
		return nil, fmt.Errorf("%w: %w", communication.ErrMessageSendFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", communication.ErrMessageSendFailed, err)
	}

	code := mapFromHTTPCode(resp.StatusCode)
	c.ls.Debug(log_service.LogEvent{
		Message:  "HTTP message sent successfully",
		Metadata: map[string]any{"to": to, "type": msg.Type, "requestId": requestID, "status": resp.StatusCode, "responseCode": code},
	})
	return &communication.Response{Code: code, Body: body}, nil
}

func (c *HTTPCommunicator) Ping(ctx context.Context, to string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+to+healthPath, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", communication.ErrClientCreateFailed, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", communication.ErrConnectionFailed, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health check returned %s", communication.ErrConnectionFailed, resp.Status)
	}
	return nil
}

func writeResponse(w http.ResponseWriter, code communication.SandCode, body []byte) {
	w.WriteHeader(mapToHTTPCode(code))
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}

func (c *HTTPCommunicator) handleHTTPMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var wire wireMessage
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Invalid JSON in request",
			Metadata: map[string]any{"error": err.Error()},
		})
		writeResponse(w, communication.CodeBadRequest, []byte(communication.ErrPayloadUnmarshalFailed.Error()))
		return
	}

	c.stateLock.RLock()
	handler := c.handler
	c.stateLock.RUnlock()
	if handler == nil {
		writeResponse(w, communication.CodeUnavailable, []byte(communication.ErrHandlerNotSet.Error()))
		return
	}

	payloadType, ok := c.payloadType(wire.Type)
	if !ok {
		writeResponse(w, communication.CodeBadRequest, []byte(fmt.Sprintf("%v: %s", communication.ErrUnknownMessageType, wire.Type)))
		return
	}
	payload := reflect.New(payloadType).Interface()
	if len(wire.Payload) > 0 {
		if err := json.Unmarshal(wire.Payload, payload); err != nil {
			writeResponse(w, communication.CodeBadRequest, []byte(fmt.Sprintf("%v: %v", communication.ErrPayloadUnmarshalFailed, err)))
			return
		}
	}
	msg := communication.Message{
		From:    wire.From,
		Type:    wire.Type,
		Payload: reflect.ValueOf(payload).Elem().Interface(),
	}

	resp, err := handler(r.Context(), msg)
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Message handler failed",
			Metadata: map[string]any{"type": wire.Type, "requestId": wire.RequestID, "error": err.Error()},
		})
		writeResponse(w, communication.CodeInternal, []byte(err.Error()))
		return
	}
	if resp == nil {
		writeResponse(w, communication.CodeInternal, []byte("handler returned nil response"))
		return
	}
	writeResponse(w, resp.Code, resp.Body)
}

var _ communication.Communicator = (*HTTPCommunicator)(nil)
