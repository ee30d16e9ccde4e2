// Package content defines the content parts carried by chat messages.
package content

// Part is a piece of content within a message.
type Part interface {
	PartKind() string
}

// Text is a plain text content part.
type Text struct {
	Text string
}

func (t Text) PartKind() string { return "text" }

// ToolCall represents an agent's request to invoke a function.
// Arguments holds the raw JSON object string.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

func (tc ToolCall) PartKind() string { return "tool_call" }

// ToolResult holds the output of a function invocation. Name repeats the
// function name so completion-only wrappers can render the return without
// looking up the originating call.
type ToolResult struct {
	ToolCallID string
	Name       string
	Content    string
	IsError    bool
}

func (tr ToolResult) PartKind() string { return "tool_result" }
