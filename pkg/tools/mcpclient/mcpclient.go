// Package mcpclient connects to MCP servers and exposes their tools as a
// [toolbox.ToolBox] that assistants can call.
package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/germanamz/huddle/pkg/tools/toolbox"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ErrNoTransport is returned when a server config has neither a command nor a URL.
var ErrNoTransport = errors.New("mcpclient: server needs a command or a url")

// ServerConfig describes how to reach one MCP server.
type ServerConfig struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
	URL     string            `yaml:"url"` // Streamable HTTP endpoint; used when Command is empty.
}

// MCPClient is a live session with one MCP server.
type MCPClient struct {
	name    string
	session *mcp.ClientSession
}

// Connect starts (or dials) the server described by cfg.
func Connect(ctx context.Context, cfg ServerConfig) (*MCPClient, error) {
	var transport mcp.Transport

	switch {
	case cfg.Command != "":
		cmd := exec.Command(cfg.Command, cfg.Args...) //nolint:gosec // command comes from the user's config
		if len(cfg.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range cfg.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
		transport = &mcp.CommandTransport{Command: cmd}
	case cfg.URL != "":
		transport = &mcp.StreamableClientTransport{Endpoint: cfg.URL}
	default:
		return nil, fmt.Errorf("%w: %q", ErrNoTransport, cfg.Name)
	}

	return connect(ctx, cfg.Name, transport)
}

func connect(ctx context.Context, name string, transport mcp.Transport) (*MCPClient, error) {
	client := mcp.NewClient(&mcp.Implementation{Name: "huddle", Version: "0.1.0"}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: connect %q: %w", name, err)
	}

	return &MCPClient{name: name, session: session}, nil
}

// Name returns the configured server name.
func (c *MCPClient) Name() string { return c.name }

// Toolbox lists the server's tools and wraps them in a toolbox whose handlers
// call back into this session.
func (c *MCPClient) Toolbox(ctx context.Context) (*toolbox.ToolBox, error) {
	result, err := c.session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: %s: list tools: %w", c.name, err)
	}

	tb := toolbox.New()
	for _, t := range result.Tools {
		tool, err := c.convert(t)
		if err != nil {
			return nil, fmt.Errorf("mcpclient: %s: tool %q: %w", c.name, t.Name, err)
		}
		tb.Register(tool)
	}

	return tb, nil
}

// Call invokes a tool by name. A result flagged as an error by the server is
// returned as a Go error carrying the server's text.
func (c *MCPClient) Call(ctx context.Context, name string, arguments json.RawMessage) (string, error) {
	var args map[string]any
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			return "", fmt.Errorf("mcpclient: %s: decode arguments: %w", c.name, err)
		}
	}

	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", fmt.Errorf("mcpclient: %s: call %s: %w", c.name, name, err)
	}

	text := joinText(result)
	if result.IsError {
		return "", fmt.Errorf("mcpclient: %s: %s failed: %s", c.name, name, text)
	}

	return text, nil
}

// Close ends the session; command servers are stopped by the SDK.
func (c *MCPClient) Close() error {
	return c.session.Close()
}

func (c *MCPClient) convert(t *mcp.Tool) (toolbox.Tool, error) {
	schema, err := json.Marshal(t.InputSchema)
	if err != nil {
		return toolbox.Tool{}, fmt.Errorf("encode input schema: %w", err)
	}

	name := t.Name

	return toolbox.Tool{
		Name:        name,
		Description: t.Description,
		InputSchema: schema,
		Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
			return c.Call(ctx, name, input)
		},
	}, nil
}

func joinText(result *mcp.CallToolResult) string {
	var texts []string
	for _, item := range result.Content {
		if tc, ok := item.(*mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}

	return strings.Join(texts, "\n")
}
