package toolbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/germanamz/huddle/pkg/chats/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fn(name, reply string) Tool {
	return Tool{
		Name:        name,
		Description: "returns " + reply,
		Handler: func(context.Context, json.RawMessage) (string, error) {
			return reply, nil
		},
	}
}

func TestRegister_OrderAndReplace(t *testing.T) {
	tb := New()
	tb.Register(fn("send_message", "a"), fn("archival_memory_search", "b"))
	tb.Register(fn("send_message", "c"))

	assert.Equal(t, []string{"send_message", "archival_memory_search"}, tb.Names())
	assert.Equal(t, 2, tb.Len())

	got, ok := tb.Get("send_message")
	require.True(t, ok)
	assert.Equal(t, "returns c", got.Description)

	_, ok = tb.Get("missing")
	assert.False(t, ok)
}

func TestMerge_EarlierBoxWins(t *testing.T) {
	memory := New()
	memory.Register(fn("send_message", "memory"))

	mcp := New()
	mcp.Register(fn("send_message", "mcp"), fn("read_file", "mcp"))

	tb := Merge(memory, nil, mcp)
	assert.Equal(t, []string{"send_message", "read_file"}, tb.Names())

	res := tb.Call(context.Background(), content.ToolCall{ID: "1", Name: "send_message"})
	assert.Equal(t, "memory", res.Content)
	assert.False(t, res.IsError)

	assert.Equal(t, 0, Merge().Len())
}

func TestCall(t *testing.T) {
	echo := Tool{
		Name: "echo",
		Handler: func(_ context.Context, in json.RawMessage) (string, error) {
			return string(in), nil
		},
	}
	fail := Tool{
		Name: "fail",
		Handler: func(context.Context, json.RawMessage) (string, error) {
			return "", errors.New("disk full")
		},
	}

	tb := New()
	tb.Register(echo, fail)

	tests := []struct {
		name    string
		call    content.ToolCall
		want    string
		isError bool
	}{
		{"arguments passed through", content.ToolCall{ID: "1", Name: "echo", Arguments: `{"x":1}`}, `{"x":1}`, false},
		{"empty arguments become an object", content.ToolCall{ID: "2", Name: "echo"}, `{}`, false},
		{"invalid json", content.ToolCall{ID: "3", Name: "echo", Arguments: `{"x":`}, `function "echo": arguments are not valid JSON`, true},
		{"unknown function", content.ToolCall{ID: "4", Name: "nope"}, `function "nope" does not exist`, true},
		{"handler error", content.ToolCall{ID: "5", Name: "fail"}, "disk full", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tb.Call(context.Background(), tt.call)
			assert.Equal(t, tt.call.ID, res.ToolCallID)
			assert.Equal(t, tt.call.Name, res.Name)
			assert.Equal(t, tt.want, res.Content)
			assert.Equal(t, tt.isError, res.IsError)
		})
	}
}

func TestObject(t *testing.T) {
	schema := Object(
		Param{Name: "query", Type: "string", Description: "String to search for.", Required: true},
		Param{Name: "page", Type: "integer"},
		Param{Name: "options", Type: "array", Items: "string"},
	)

	assert.JSONEq(t, `{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "String to search for."},
			"page": {"type": "integer"},
			"options": {"type": "array", "items": {"type": "string"}}
		},
		"required": ["query"]
	}`, string(schema))

	assert.Regexp(t, `"query".*"page".*"options"`, string(schema))
}

func TestObject_NoParams(t *testing.T) {
	assert.JSONEq(t, `{"type":"object","properties":{}}`, string(Object()))
}

func TestTool_Schema(t *testing.T) {
	assert.JSONEq(t, `{"type":"object"}`, string(Tool{}.Schema()))

	s := Object(Param{Name: "q", Type: "string"})
	assert.Equal(t, s, Tool{InputSchema: s}.Schema())
}
