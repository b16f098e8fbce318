// Package mcp implements the Model Context Protocol server for QuestWeaver.
//
// The MCP server exposes the agent runtime through MCP tools and resources,
// letting MCP-compatible clients drive sessions and inspect their state
// without the HTTP API.
package mcp

import (
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/questweaver-ai/questweaver/internal/runtime"
)

// Server wraps the MCP server with the agent runtime.
type Server struct {
	mcpServer *mcpserver.MCPServer
	runtime   *runtime.Runtime
	logger    *slog.Logger
	version   string
}

// New creates and configures a new MCP server with all resources and tools.
func New(rt *runtime.Runtime, logger *slog.Logger, version string) *Server {
	s := &Server{
		runtime: rt,
		logger:  logger,
		version: version,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"questweaver",
		version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
	)

	s.registerResources()
	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

func textResult(text string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: text},
		},
	}
}
