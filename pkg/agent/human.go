package agent

import (
	"context"
	"fmt"

	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/chats/role"
	"go.uber.org/zap"
)

// exitCommand typed by the human ends the conversation.
const exitCommand = "exit"

// checkHuman applies the human input mode to the latest message from peer.
// When final is true the pipeline stops: reply is the human's message, or
// nil when the conversation ends. When final is false the auto reply
// counter has been advanced and the pipeline continues.
func (c *Conversable) checkHuman(ctx context.Context, peer string) (reply *message.Message, final bool, err error) {
	last, _ := c.lastFrom(peer)

	c.mu.Lock()
	count := c.counters[peer]
	c.mu.Unlock()

	limitReached := count >= c.opts.MaxConsecutiveAutoReply
	answer := ""

	switch c.opts.HumanInputMode {
	case Always:
		answer, err = c.ask(ctx, fmt.Sprintf("Provide feedback to %s. Press enter to skip and use auto-reply, or type 'exit' to end the conversation: ", peer))
		if err != nil {
			return nil, false, err
		}
		if answer == "" && (limitReached || c.opts.IsTermination(last)) {
			answer = exitCommand
		}

	case Never:
		if limitReached || c.opts.IsTermination(last) {
			answer = exitCommand
		}

	default: // Terminate
		terminating := c.opts.IsTermination(last)
		switch {
		case limitReached:
			prompt := fmt.Sprintf("Please give feedback to %s. Press enter to skip and use auto-reply, or type 'exit' to stop the conversation: ", peer)
			if terminating {
				prompt = fmt.Sprintf("Please give feedback to %s. Press enter or type 'exit' to stop the conversation: ", peer)
			}
			answer, err = c.ask(ctx, prompt)
			if err != nil {
				return nil, false, err
			}
			if answer == "" && terminating {
				answer = exitCommand
			}
		case terminating:
			answer, err = c.ask(ctx, fmt.Sprintf("Please give feedback to %s. Press enter or type 'exit' to stop the conversation: ", peer))
			if err != nil {
				return nil, false, err
			}
			if answer == "" {
				answer = exitCommand
			}
		}
	}

	if answer == exitCommand {
		c.ResetCounter(peer)
		c.opts.Logger.Debug("conversation ended", zap.String("agent", c.name), zap.String("peer", peer))
		return nil, true, nil
	}

	if answer != "" {
		c.ResetCounter(peer)
		msg := message.NewText(c.name, role.Assistant, answer)
		return &msg, true, nil
	}

	c.mu.Lock()
	c.counters[peer]++
	c.mu.Unlock()

	if c.opts.HumanInputMode != Never {
		c.opts.Logger.Debug("using auto reply", zap.String("agent", c.name), zap.String("peer", peer))
	}

	return nil, false, nil
}

// ask reads the human's answer; without an input function the human is
// treated as silent.
func (c *Conversable) ask(ctx context.Context, prompt string) (string, error) {
	if c.opts.Input == nil {
		return "", nil
	}

	answer, err := c.opts.Input(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("agent: %s: human input: %w", c.name, err)
	}
	return answer, nil
}
