// Package mcp is the tool surface: it publishes every memory core operation
// as an MCP tool and is the only package aware of the transport's request
// and response types.
package mcp

import (
	"context"

	mcp "github.com/fredcamaral/gomcp-sdk"
	"github.com/fredcamaral/gomcp-sdk/protocol"
	"github.com/fredcamaral/gomcp-sdk/server"

	"dementia-mcp/internal/logging"
	"dementia-mcp/internal/memory"
	"dementia-mcp/internal/session"
)

const (
	serverName    = "dementia"
	serverVersion = "1.0.0"
)

// MemoryServer wires the memory engine to the MCP protocol server. Every
// tool call flows through the session middleware before reaching the
// engine.
type MemoryServer struct {
	mcpServer  *server.Server
	engine     *memory.Engine
	middleware *session.Middleware
	logger     logging.Logger
}

// NewMemoryServer creates the server and registers every tool.
func NewMemoryServer(engine *memory.Engine, middleware *session.Middleware) *MemoryServer {
	ms := &MemoryServer{
		mcpServer:  mcp.NewServer(serverName, serverVersion),
		engine:     engine,
		middleware: middleware,
		logger:     logging.WithComponent("mcp"),
	}
	ms.registerTools()
	return ms
}

// GetMCPServer exposes the protocol server for transport binding.
func (ms *MemoryServer) GetMCPServer() *server.Server {
	return ms.mcpServer
}

// register wraps a handler with session middleware and envelope formatting
// and adds it under the tool's name. Operation failures become
// {success:false} payloads; the protocol call itself always succeeds.
func (ms *MemoryServer) register(tool protocol.Tool, handler session.ToolHandler) {
	wrapped := ms.middleware.Wrap(tool.Name, handler)
	ms.mcpServer.AddTool(tool, protocol.ToolHandlerFunc(
		func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			result, err := wrapped(ctx, params)
			if err != nil {
				ms.logger.WarnContext(ctx, "tool call failed",
					"tool", tool.Name, "error", err)
				return errorEnvelope(err), nil
			}
			return successEnvelope(result), nil
		}))
}
