// Package mcpserver exposes toolboxes to MCP hosts, letting an editor or
// another agent start huddle sessions as a tool.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"

	"github.com/germanamz/huddle/pkg/tools/toolbox"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPServer serves registered tools over MCP.
type MCPServer struct {
	server *mcp.Server
	names  []string
}

// New creates a server announcing itself as name/version.
func New(name, version string) *MCPServer {
	return &MCPServer{
		server: mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
	}
}

// Register publishes every tool of tb.
func (s *MCPServer) Register(tb *toolbox.ToolBox) {
	for _, t := range tb.Tools() {
		s.server.AddTool(&mcp.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		}, handler(t.Handler))
		s.names = append(s.names, t.Name)
	}
}

// ToolNames lists the published tools in registration order.
func (s *MCPServer) ToolNames() []string { return s.names }

// ServeStdio serves on the process's stdin and stdout until ctx is done or
// the host disconnects.
func (s *MCPServer) ServeStdio(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Serve serves on an arbitrary reader/writer pair.
func (s *MCPServer) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return s.server.Run(ctx, &mcp.IOTransport{
		Reader: io.NopCloser(in),
		Writer: writeCloser{out},
	})
}

// handler adapts a toolbox handler; handler failures are reported to the
// host as error results rather than protocol errors.
func handler(h toolbox.Handler) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.Params.Arguments
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}

		out, err := h(ctx, args)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
				IsError: true,
			}, nil
		}

		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: out}}}, nil
	}
}

type writeCloser struct {
	io.Writer
}

func (writeCloser) Close() error { return nil }
