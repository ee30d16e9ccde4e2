package modeladapter

import (
	"sync"

	"github.com/germanamz/huddle/pkg/chats/chat"
	"github.com/germanamz/huddle/pkg/chats/content"
	"github.com/germanamz/huddle/pkg/tools/toolbox"
	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE encoding used when none is configured.
const DefaultEncoding = "cl100k_base"

var _ TokenCounter = (*TiktokenCounter)(nil)

// TiktokenCounter counts tokens with a BPE encoding. The encoding is loaded
// lazily on first use; when it cannot be loaded (e.g. offline without a
// cached vocabulary) the counter falls back to the character heuristic.
type TiktokenCounter struct {
	encoding string
	loader   func(string) (*tiktoken.Tiktoken, error)

	once     sync.Once
	enc      *tiktoken.Tiktoken
	fallback TokenEstimator
}

// NewTiktokenCounter creates a counter for the named encoding.
func NewTiktokenCounter(encoding string) *TiktokenCounter {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &TiktokenCounter{encoding: encoding, loader: tiktoken.GetEncoding}
}

func (t *TiktokenCounter) init() {
	t.once.Do(func() {
		enc, err := t.loader(t.encoding)
		if err == nil {
			t.enc = enc
		}
	})
}

// Exact reports whether the BPE encoding is in use.
func (t *TiktokenCounter) Exact() bool {
	t.init()
	return t.enc != nil
}

// CountText counts the tokens of s.
func (t *TiktokenCounter) CountText(s string) int {
	t.init()
	if t.enc == nil {
		return t.fallback.EstimateText(s)
	}
	return len(t.enc.Encode(s, nil, nil))
}

// CountTotal implements TokenCounter.
func (t *TiktokenCounter) CountTotal(c *chat.Chat, tools []toolbox.Tool) int {
	t.init()
	if t.enc == nil {
		return t.fallback.EstimateTotal(c, tools)
	}

	tokens := 0
	for _, m := range c.Messages() {
		tokens += perMessageOverhead
		for _, p := range m.Parts {
			switch v := p.(type) {
			case content.Text:
				tokens += t.CountText(v.Text)
			case content.ToolCall:
				tokens += t.CountText(v.Name + v.Arguments)
			case content.ToolResult:
				tokens += t.CountText(v.Content)
			}
		}
	}

	for _, tool := range tools {
		tokens += t.CountText(tool.Name+tool.Description+string(tool.InputSchema)) + perToolOverhead
	}

	return tokens
}
