package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/germanamz/huddle/pkg/tools/toolbox"
)

// ToolStartChat is the tool that runs a conversation for an MCP host.
const ToolStartChat = "start_chat"

// chatOutcome is the result of start_chat.
type chatOutcome struct {
	Session string `json:"session"`
	Summary string `json:"summary"`
	Turns   int    `json:"turns"`
	Reason  string `json:"reason"`
}

// Tools returns the toolbox huddle publishes to MCP hosts.
func (e *Engine) Tools() *toolbox.ToolBox {
	tb := toolbox.New()
	tb.Register(toolbox.Tool{
		Name:        ToolStartChat,
		Description: "Start a conversation between the configured agents and return its summary. Without a message the configured opening message is used.",
		InputSchema: toolbox.Object(toolbox.Param{Name: "message", Type: "string", Description: "Opening message sent by the initiator"}),
		Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
			var in struct {
				Message string `json:"message"`
			}
			if len(input) > 0 {
				if err := json.Unmarshal(input, &in); err != nil {
					return "", fmt.Errorf("%s: invalid input: %w", ToolStartChat, err)
				}
			}

			res, err := e.Run(ctx, in.Message)
			if err != nil {
				return "", fmt.Errorf("%s: %w", ToolStartChat, err)
			}

			out, err := json.Marshal(chatOutcome{Session: res.Session, Summary: res.Summary, Turns: res.Turns, Reason: res.Reason})
			if err != nil {
				return "", fmt.Errorf("%s: %w", ToolStartChat, err)
			}
			return string(out), nil
		},
	})

	return tb
}
