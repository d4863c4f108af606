// Package mcp_server exposes a FileService as Model Context Protocol tools so
// an assistant can create files, switch allocation strategies and inspect the
// resulting disk layout.
package mcp_server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	pfs "github.com/AnishMulay/blockfs/internal/file_service"
	"github.com/AnishMulay/blockfs/internal/log_service"
)

const (
	ServerName    = "blockfs"
	ServerVersion = "1.0.0"
)

type toolHandler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Tools holds the handlers behind every registered tool.
type Tools struct {
	fs pfs.FileService
	ls log_service.LogService
}

func NewTools(svc pfs.FileService, ls log_service.LogService) *Tools {
	return &Tools{fs: svc, ls: ls}
}

// NewMCPServer builds a server with every blockfs tool registered.
func NewMCPServer(svc pfs.FileService, ls log_service.LogService) *server.MCPServer {
	s := server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false))
	NewTools(svc, ls).Register(s)
	return s
}

// ServeStdio blocks serving the tools over stdin and stdout.
func ServeStdio(svc pfs.FileService, ls log_service.LogService) error {
	return server.ServeStdio(NewMCPServer(svc, ls))
}

func (t *Tools) Register(s *server.MCPServer) {
	for _, def := range t.definitions() {
		s.AddTool(def.tool, t.logged(def.tool.Name, def.handler))
	}
}

func (t *Tools) logged(name string, h toolHandler) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		t.ls.Debug(log_service.LogEvent{
			Message:  "MCP tool called",
			Metadata: map[string]any{"tool": name},
		})
		res, err := h(ctx, request)
		if err == nil && res != nil && res.IsError {
			t.ls.Info(log_service.LogEvent{
				Message:  "MCP tool reported an error",
				Metadata: map[string]any{"tool": name},
			})
		}
		return res, err
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func errorResult(op string, err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", op, err)), nil
}
