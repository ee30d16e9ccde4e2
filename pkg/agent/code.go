package agent

import (
	"context"
	"fmt"

	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/chats/role"
	"github.com/germanamz/huddle/pkg/codeexec"
	"github.com/germanamz/huddle/pkg/events"
	"go.uber.org/zap"
)

// executeCode runs the code blocks of the most recent message (within the
// last LastNMessages from the peer) that contains any. ok is false when no
// runnable code was found.
func (c *Conversable) executeCode(ctx context.Context, peer string) (message.Message, bool, error) {
	msgs := c.Chat(peer).Messages()
	n := c.executor.Config().LastNMessages

	scanned := 0
	for i := len(msgs) - 1; i >= 0 && scanned < n; i-- {
		m := msgs[i]
		if m.Role == role.System || m.Sender == c.name {
			continue
		}
		scanned++

		text := m.TextContent()
		if text == "" {
			continue
		}

		blocks := codeexec.Extract(text)
		if len(blocks) == 0 {
			continue
		}

		c.opts.Logger.Info("executing code",
			zap.String("agent", c.name),
			zap.String("from", m.Sender),
			zap.Int("blocks", len(blocks)),
		)

		res, err := c.executor.Run(ctx, blocks)
		if err != nil {
			return message.Message{}, false, fmt.Errorf("agent: %s: %w", c.name, err)
		}

		events.Emit(c.opts.Events, events.KindCodeExecuted, c.name, events.CodeData{
			Blocks:   len(blocks),
			ExitCode: res.ExitCode,
			Output:   res.Output,
		})

		return message.NewText(c.name, role.Assistant, res.String()), true, nil
	}

	return message.Message{}, false, nil
}
