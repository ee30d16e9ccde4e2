package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/germanamz/huddle/pkg/chats/chat"
	"github.com/germanamz/huddle/pkg/chats/content"
	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/chats/role"
	"github.com/germanamz/huddle/pkg/modeladapter"
)

// ReflectionPrompt asks for a summary of a finished conversation.
const ReflectionPrompt = "Summarize the takeaway from the conversation. Do not add any introductory phrases."

const (
	maxToolArgs   = 200
	maxToolResult = 500
)

// RenderTranscript converts messages into a compact text transcript,
// skipping system messages and truncating tool traffic.
func RenderTranscript(msgs []message.Message) string {
	var b strings.Builder

	for _, m := range msgs {
		if m.Role == role.System {
			continue
		}

		speaker := m.Sender
		if speaker == "" {
			speaker = string(m.Role)
		}

		for _, p := range m.Parts {
			switch v := p.(type) {
			case content.Text:
				fmt.Fprintf(&b, "[%s] %s\n", speaker, v.Text)
			case content.ToolCall:
				fmt.Fprintf(&b, "[%s] called %s(%s)\n", speaker, v.Name, truncate(v.Arguments, maxToolArgs))
			case content.ToolResult:
				label := "result"
				if v.IsError {
					label = "error"
				}
				fmt.Fprintf(&b, "[%s %s] %s\n", v.Name, label, truncate(v.Content, maxToolResult))
			}
		}
	}

	return b.String()
}

// Summarize asks completer to condense msgs following instruction.
func Summarize(ctx context.Context, completer modeladapter.Completer, msgs []message.Message, instruction string) (string, error) {
	tmp := chat.New(
		message.NewText("", role.System, instruction),
		message.NewText("", role.User, RenderTranscript(msgs)),
	)

	reply, err := completer.Complete(ctx, tmp, nil)
	if err != nil {
		return "", fmt.Errorf("agent: summarize: %w", err)
	}

	return strings.TrimSpace(reply.TextContent()), nil
}

// truncate returns s cut to maxLen bytes with "…" appended when shortened.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	return s[:maxLen] + "…"
}
