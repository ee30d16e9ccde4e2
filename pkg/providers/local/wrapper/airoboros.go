package wrapper

import (
	"strings"

	"github.com/germanamz/huddle/pkg/chats/chat"
	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/chats/role"
	"github.com/germanamz/huddle/pkg/tools/toolbox"
)

const airoborosInstruction = "Please select the most suitable function and parameters from the list of available functions below, based on the ongoing conversation. Provide your response in JSON format."

// airoboros renders USER:/ASSISTANT:/FUNCTION RETURN: turns.
type airoboros struct {
	name string
}

func (w *airoboros) Name() string { return w.name }

func (w *airoboros) Format(c *chat.Chat, tools []toolbox.Tool) string {
	var b strings.Builder

	firstSystem := true
	c.Each(func(_ int, m message.Message) bool {
		switch m.Role {
		case role.System:
			if firstSystem {
				firstSystem = false
				b.WriteString(m.TextContent())
				b.WriteString("\n")
				if len(tools) > 0 {
					b.WriteString(airoborosInstruction)
					b.WriteString("\n")
					renderFunctions(&b, tools)
				}
				return true
			}
			b.WriteString("\nSYSTEM: ")
			b.WriteString(m.TextContent())
		case role.User:
			b.WriteString("\nUSER: ")
			b.WriteString(userLine(m))
		case role.Assistant:
			b.WriteString("\nASSISTANT: ")
			b.WriteString(renderCall(m))
		case role.Tool:
			for _, tr := range m.ToolResults() {
				b.WriteString("\nFUNCTION RETURN: ")
				b.WriteString(tr.Content)
			}
		}
		return true
	})

	if firstSystem && len(tools) > 0 {
		// No system message: still declare the functions up front.
		var head strings.Builder
		head.WriteString(airoborosInstruction)
		head.WriteString("\n")
		renderFunctions(&head, tools)
		return head.String() + b.String() + "\nASSISTANT:"
	}

	b.WriteString("\nASSISTANT:")
	return b.String()
}

func (w *airoboros) Parse(text string) message.Message { return parseOutput(text) }

func (w *airoboros) Stop() []string {
	return []string{"\nUSER:", "\nASSISTANT:", "\nFUNCTION RETURN:"}
}

func (w *airoboros) Grammar([]toolbox.Tool) string { return "" }
