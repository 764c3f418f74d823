// Package mcpserver exposes the table store to AI agents over the Model
// Context Protocol: tools for tables, rows, imports and backups, plus
// read-only resources for databases and table contents.
package mcpserver

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"tabledb/internal/domain"
	"tabledb/internal/service"
)

// Server is the MCP server for tabledb.
type Server struct {
	mcp *server.MCPServer

	storage *service.StorageService
	imports *service.ImportService
	backups *service.BackupService
}

// Deps holds the services passed in from the app layer. Imports and Backups
// may be nil; their tools are then not registered.
type Deps struct {
	Storage *service.StorageService
	Imports *service.ImportService
	Backups *service.BackupService
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	s := &Server{
		storage: deps.Storage,
		imports: deps.Imports,
		backups: deps.Backups,
	}

	s.mcp = server.NewMCPServer(
		"tabledb-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerTableTools()
	s.registerRowTools()
	s.registerResources()
	s.registerPrompts()

	if s.imports != nil {
		s.registerImportTools()
	}
	if s.backups != nil {
		s.registerBackupTools()
	}
	return s
}

// MCP returns the underlying server, e.g. for an SSE or in-process transport.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	log.Println("[MCP] Starting stdio server...")
	return server.ServeStdio(s.mcp)
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

// toolError reports errors the caller can fix (bad names, invalid values,
// missing tables) as an error result carrying the same body the HTTP API
// returns. Anything else is a protocol-level failure.
func toolError(action string, err error) (*mcp.CallToolResult, error) {
	if domain.KindOf(err) == domain.KindInternal {
		log.Printf("[MCP] %s: %v", action, err)
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	_, body := service.ErrorResponse(err)
	data, _ := json.Marshal(body)
	return mcp.NewToolResultError(string(data)), nil
}
