package wrapper

import (
	"strings"

	"github.com/germanamz/huddle/pkg/chats/chat"
	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/chats/role"
	"github.com/germanamz/huddle/pkg/tools/toolbox"
)

const (
	imStart = "<|im_start|>"
	imEnd   = "<|im_end|>"
)

// chatML renders <|im_start|>role ... <|im_end|> turns.
type chatML struct {
	name string
}

func (w *chatML) Name() string { return w.name }

func turn(b *strings.Builder, r, text string) {
	b.WriteString(imStart)
	b.WriteString(r)
	b.WriteString("\n")
	b.WriteString(text)
	b.WriteString(imEnd)
	b.WriteString("\n")
}

func (w *chatML) Format(c *chat.Chat, tools []toolbox.Tool) string {
	var b strings.Builder

	var sys strings.Builder
	sys.WriteString(c.SystemPrompt())
	if len(tools) > 0 {
		if sys.Len() > 0 {
			sys.WriteString("\n")
		}
		sys.WriteString(airoborosInstruction)
		sys.WriteString("\n")
		renderFunctions(&sys, tools)
	}
	if sys.Len() > 0 {
		turn(&b, "system", strings.TrimRight(sys.String(), "\n"))
	}

	firstSystem := true
	c.Each(func(_ int, m message.Message) bool {
		switch m.Role {
		case role.System:
			if firstSystem {
				firstSystem = false
				return true
			}
			turn(&b, "system", m.TextContent())
		case role.User:
			turn(&b, "user", userLine(m))
		case role.Assistant:
			turn(&b, "assistant", renderCall(m))
		case role.Tool:
			for _, tr := range m.ToolResults() {
				turn(&b, "function", tr.Content)
			}
		}
		return true
	})

	b.WriteString(imStart)
	b.WriteString("assistant\n")

	return b.String()
}

func (w *chatML) Parse(text string) message.Message {
	text, _, _ = strings.Cut(text, imEnd)
	return parseOutput(text)
}

func (w *chatML) Stop() []string { return []string{imEnd, imStart} }

func (w *chatML) Grammar([]toolbox.Tool) string { return "" }
