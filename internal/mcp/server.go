package mcpserver

import (
	"encoding/json"
	"fmt"

	"gridkit/internal/logger"
	"gridkit/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const mcpModule = "mcp"

// Server is the MCP server for gridkit.
// It exposes tools, resources, and prompts so agents can build and explore grids.
type Server struct {
	mcp *server.MCPServer
	log logger.ILogger

	// Services (injected from app layer)
	catalog     *service.CatalogService
	grids       *service.GridService
	connections *service.ConnectionService
}

// Deps holds all dependencies passed from the App layer to the MCP server.
type Deps struct {
	Catalog     *service.CatalogService
	Grids       *service.GridService
	Connections *service.ConnectionService
	Log         logger.ILogger
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}
	s := &Server{
		log:         log,
		catalog:     deps.Catalog,
		grids:       deps.Grids,
		connections: deps.Connections,
	}

	s.mcp = server.NewMCPServer(
		"gridkit-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerTableTools()
	s.registerGridTools()
	if s.connections != nil {
		s.registerConnectionTools()
	}
	s.registerResources()
	s.registerPrompts()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.log.Info(mcpModule, "starting stdio transport", nil)
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// requireTable returns the "table" argument (id or name).
func requireTable(req mcp.CallToolRequest) (string, error) {
	ref := req.GetString("table", "")
	if ref == "" {
		return "", fmt.Errorf("table is required")
	}
	return ref, nil
}
