package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/germanamz/huddle/pkg/tools/toolbox"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startChatTool(h toolbox.Handler) toolbox.Tool {
	return toolbox.Tool{
		Name:        "start_chat",
		Description: "Start a huddle session",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"message":{"type":"string"}}}`),
		Handler:     h,
	}
}

// connectClient runs s on in-memory transports and returns a client session.
func connectClient(t *testing.T, s *MCPServer) *mcp.ClientSession {
	t.Helper()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.server.Run(ctx, serverTransport) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	client := mcp.NewClient(&mcp.Implementation{Name: "host", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return session
}

func TestRegister_ListsTools(t *testing.T) {
	tb := toolbox.New()
	tb.Register(startChatTool(func(context.Context, json.RawMessage) (string, error) { return "", nil }))

	s := New("huddle", "test")
	s.Register(tb)
	assert.Equal(t, []string{"start_chat"}, s.ToolNames())

	session := connectClient(t, s)
	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, res.Tools, 1)
	assert.Equal(t, "start_chat", res.Tools[0].Name)
}

func TestCallTool_Success(t *testing.T) {
	tb := toolbox.New()
	tb.Register(startChatTool(func(_ context.Context, in json.RawMessage) (string, error) {
		var args struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(in, &args); err != nil {
			return "", err
		}
		return "started: " + args.Message, nil
	}))

	s := New("huddle", "test")
	s.Register(tb)

	res, err := connectClient(t, s).CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "start_chat",
		Arguments: map[string]any{"message": "plot"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "started: plot", text.Text)
}

func TestCallTool_HandlerErrorIsResult(t *testing.T) {
	tb := toolbox.New()
	tb.Register(startChatTool(func(context.Context, json.RawMessage) (string, error) {
		return "", errors.New("backend down")
	}))

	s := New("huddle", "test")
	s.Register(tb)

	res, err := connectClient(t, s).CallTool(context.Background(), &mcp.CallToolParams{Name: "start_chat"})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "backend down", text.Text)
}
