package mcp

import (
	"net/http"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const ServerName = "trigconv"

// NewSDKServer creates the MCP server that tools are registered on.
func NewSDKServer(version string) *sdkmcp.Server {
	return sdkmcp.NewServer(&sdkmcp.Implementation{Name: ServerName, Version: version}, nil)
}

// NewHTTPHandler serves s over Streamable HTTP in stateless mode.
func NewHTTPHandler(s *sdkmcp.Server) http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return s },
		&sdkmcp.StreamableHTTPOptions{Stateless: true},
	)
}
