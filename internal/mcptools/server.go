// Package mcptools exposes the newsroom as Model Context Protocol tools.
package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// Tool names.
const (
	ToolGenerateEditorial = "generate_editorial"
	ToolFetchNews         = "fetch_news"
)

// NewNewsroomMCPServer creates an MCP server with the newsroom tools
// registered.
func NewNewsroomMCPServer(svc *NewsroomService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "newsroom",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolGenerateEditorial,
		Description: "Pick a trending technology topic from the latest headlines, summarize it and write an editorial. Returns the topic, summary and editorial, or the stage that failed.",
	}, svc.GenerateEditorial)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolFetchNews,
		Description: "Search recent news articles. Returns up to the configured number of articles with title, description, source and publication date.",
	}, svc.FetchNews)

	return server
}

// RunStdio runs the MCP server on stdio, blocking until stdin is closed or
// ctx is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler serves server over the streamable HTTP transport.
func HTTPHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)
}
