package memagent

import (
	"context"
	"fmt"

	"github.com/germanamz/huddle/pkg/agent"
	"github.com/germanamz/huddle/pkg/chats/chat"
	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/chats/role"
	"github.com/germanamz/huddle/pkg/tools/toolbox"
	"go.uber.org/zap"
)

const summaryPrompt = `Your job is to summarize a history of previous messages in a conversation between an AI persona and a human.
The conversation you are given is from a fixed context window and may not be complete.
Summarize what happened in the conversation from the perspective of the AI (use the first person).
Keep your summary less than 100 words, do NOT exceed this word limit.
Only output the summary, do NOT include anything else in your output.`

// compact summarises the oldest half of the window when prompt exceeds
// CompactThreshold of the context window. The summarised messages remain
// in recall memory.
func (a *Agent) compact(ctx context.Context, prompt *chat.Chat, tools []toolbox.Tool) error {
	limit := int(float64(a.opts.ContextWindow) * CompactThreshold)
	used := a.opts.Counter.CountTotal(prompt, tools)
	if used <= limit {
		return nil
	}

	msgs := a.window.Messages()
	cut := len(msgs) / 2
	// Tool results stay with the call that produced them.
	for cut < len(msgs) && msgs[cut].Role == role.Tool {
		cut++
	}
	if cut == 0 {
		return nil
	}

	summary, err := agent.Summarize(ctx, a.completer, msgs[:cut], summaryPrompt)
	if err != nil {
		return fmt.Errorf("memagent: %s: compact: %w", a.name, err)
	}

	kept := append([]message.Message{
		message.NewText("", role.User, packageSummary(summary, cut, len(msgs), a.opts.Now())),
	}, msgs[cut:]...)
	a.window.Replace(kept)

	a.opts.Logger.Info("context window compacted",
		zap.String("agent", a.name),
		zap.Int("tokens", used),
		zap.Int("limit", limit),
		zap.Int("summarized", cut),
	)

	return nil
}
