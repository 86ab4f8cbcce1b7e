// Package mcpserver exposes the usage analysis over the Model Context
// Protocol so agents can lint C/C++ without shelling out.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server and registers the varflow tools.
type Server struct {
	server *mcp.Server
}

// NewServer creates an MCP server with all tools registered.
func NewServer(version string) *Server {
	if version == "" {
		version = "dev"
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "varflow",
			Version: version,
		},
		nil,
	)

	s := &Server{server: server}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "check_files",
		Description: describeCheckFiles(),
	}, handleCheckFiles)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "check_source",
		Description: describeCheckSource(),
	}, handleCheckSource)
}
