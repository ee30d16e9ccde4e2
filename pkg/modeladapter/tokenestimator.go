package modeladapter

import (
	"github.com/germanamz/huddle/pkg/chats/chat"
	"github.com/germanamz/huddle/pkg/chats/content"
	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/tools/toolbox"
)

// perMessageOverhead is the estimated token overhead for each message (role,
// structure delimiters, etc.).
const perMessageOverhead = 4

// perToolOverhead is the estimated token overhead for each tool definition.
const perToolOverhead = 10

// TokenCounter counts the prompt tokens a request would consume.
type TokenCounter interface {
	CountTotal(c *chat.Chat, tools []toolbox.Tool) int
}

// TokenEstimator estimates token counts with a 1-token-per-4-characters
// heuristic. The zero value is ready to use.
type TokenEstimator struct{}

// charsToTokens converts a character count to an estimated token count.
func charsToTokens(chars int) int {
	return (chars + 3) / 4 // round up
}

// EstimateText estimates the tokens of a single string.
func (e *TokenEstimator) EstimateText(s string) int {
	return charsToTokens(len(s))
}

// EstimateChat estimates the total input tokens for a chat conversation.
func (e *TokenEstimator) EstimateChat(c *chat.Chat) int {
	return e.estimateMessages(c.Messages(), charsToTokens)
}

func (e *TokenEstimator) estimateMessages(msgs []message.Message, count func(int) int) int {
	tokens := 0

	for _, m := range msgs {
		tokens += perMessageOverhead

		for _, p := range m.Parts {
			switch v := p.(type) {
			case content.Text:
				tokens += count(len(v.Text))
			case content.ToolCall:
				tokens += count(len(v.ID) + len(v.Name) + len(v.Arguments))
			case content.ToolResult:
				tokens += count(len(v.ToolCallID) + len(v.Content))
			}
		}
	}

	return tokens
}

// EstimateTools estimates the token cost of tool definitions.
func (e *TokenEstimator) EstimateTools(tools []toolbox.Tool) int {
	tokens := 0

	for _, t := range tools {
		chars := len(t.Name) + len(t.Description) + len(t.InputSchema)
		tokens += charsToTokens(chars) + perToolOverhead
	}

	return tokens
}

// EstimateTotal estimates total input tokens for a chat conversation combined
// with tool definitions.
func (e *TokenEstimator) EstimateTotal(c *chat.Chat, tools []toolbox.Tool) int {
	return e.EstimateChat(c) + e.EstimateTools(tools)
}

// CountTotal implements TokenCounter.
func (e *TokenEstimator) CountTotal(c *chat.Chat, tools []toolbox.Tool) int {
	return e.EstimateTotal(c, tools)
}
