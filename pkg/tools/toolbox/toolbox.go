// Package toolbox holds the functions an agent may call: memory functions,
// the ask tool and tools proxied from MCP servers.
package toolbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/germanamz/huddle/pkg/chats/content"
)

// ToolBox is an ordered set of tools. Tools are listed in registration order
// so prompts built from them are stable across runs.
type ToolBox struct {
	order []string
	tools map[string]Tool
}

// New creates an empty ToolBox.
func New() *ToolBox {
	return &ToolBox{tools: make(map[string]Tool)}
}

// Merge combines boxes into a new ToolBox. When two boxes carry a tool with
// the same name the earlier box wins. nil boxes are skipped.
func Merge(boxes ...*ToolBox) *ToolBox {
	out := New()
	for _, tb := range boxes {
		if tb == nil {
			continue
		}
		for _, t := range tb.Tools() {
			if _, ok := out.tools[t.Name]; !ok {
				out.Register(t)
			}
		}
	}
	return out
}

// Register adds tools, replacing same-named ones in place.
func (tb *ToolBox) Register(tools ...Tool) {
	for _, t := range tools {
		if _, ok := tb.tools[t.Name]; !ok {
			tb.order = append(tb.order, t.Name)
		}
		tb.tools[t.Name] = t
	}
}

// Get returns the named tool.
func (tb *ToolBox) Get(name string) (Tool, bool) {
	t, ok := tb.tools[name]
	return t, ok
}

// Len returns the number of tools.
func (tb *ToolBox) Len() int { return len(tb.order) }

// Names lists tool names in registration order.
func (tb *ToolBox) Names() []string {
	return append([]string(nil), tb.order...)
}

// Tools returns all tools in registration order.
func (tb *ToolBox) Tools() []Tool {
	out := make([]Tool, 0, len(tb.order))
	for _, n := range tb.order {
		out = append(out, tb.tools[n])
	}
	return out
}

// Call runs a function call. Unknown functions and handler errors come back
// as error results so the model can correct itself.
func (tb *ToolBox) Call(ctx context.Context, tc content.ToolCall) content.ToolResult {
	res := content.ToolResult{ToolCallID: tc.ID, Name: tc.Name}

	t, ok := tb.tools[tc.Name]
	if !ok {
		res.Content = fmt.Sprintf("function %q does not exist", tc.Name)
		res.IsError = true
		return res
	}

	args := json.RawMessage(tc.Arguments)
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if !json.Valid(args) {
		res.Content = fmt.Sprintf("function %q: arguments are not valid JSON", tc.Name)
		res.IsError = true
		return res
	}

	out, err := t.Handler(ctx, args)
	if err != nil {
		res.Content = err.Error()
		res.IsError = true
		return res
	}

	res.Content = out
	return res
}
