// Package chat provides an append-only conversation log shared between the
// agents of a session and its observers.
package chat

import (
	"context"
	"sync"

	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/chats/role"
)

// Chat is a conversation log. The zero value is ready to use and all methods
// are safe for concurrent use.
type Chat struct {
	mu       sync.RWMutex
	messages []message.Message
	notify   chan struct{}
}

// New creates a Chat pre-populated with the given messages.
func New(msgs ...message.Message) *Chat {
	return &Chat{messages: msgs}
}

// Append adds one or more messages to the conversation and wakes any Wait
// callers.
func (c *Chat) Append(msgs ...message.Message) {
	if len(msgs) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append(c.messages, msgs...)
	if c.notify != nil {
		close(c.notify)
		c.notify = nil
	}
}

// Len returns the number of messages in the conversation.
func (c *Chat) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.messages)
}

// At returns the message at the given index.
// It panics if the index is out of range.
func (c *Chat) At(index int) message.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.messages[index]
}

// Last returns the most recent message and true, or a zero Message and false
// if the conversation is empty.
func (c *Chat) Last() (message.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.messages) == 0 {
		return message.Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// Messages returns a copy of all messages in the conversation.
func (c *Chat) Messages() []message.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cp := make([]message.Message, len(c.messages))
	copy(cp, c.messages)
	return cp
}

// Since returns a copy of the messages at index offset and later. An offset
// past the end yields nil.
func (c *Chat) Since(offset int) []message.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if offset < 0 {
		offset = 0
	}
	if offset >= len(c.messages) {
		return nil
	}

	cp := make([]message.Message, len(c.messages)-offset)
	copy(cp, c.messages[offset:])
	return cp
}

// Tail returns a copy of the last n messages (fewer if the chat is shorter).
func (c *Chat) Tail(n int) []message.Message {
	c.mu.RLock()
	total := len(c.messages)
	c.mu.RUnlock()

	return c.Since(total - n)
}

// Replace swaps the whole conversation for msgs. It is used by context
// compaction, which rewrites the in-context window.
func (c *Chat) Replace(msgs []message.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append([]message.Message(nil), msgs...)
	if c.notify != nil {
		close(c.notify)
		c.notify = nil
	}
}

// Reset removes all messages.
func (c *Chat) Reset() {
	c.Replace(nil)
}

// Wait blocks until the chat holds more than n messages or ctx is done. It
// returns the current length.
func (c *Chat) Wait(ctx context.Context, n int) (int, error) {
	for {
		c.mu.Lock()
		if len(c.messages) > n {
			l := len(c.messages)
			c.mu.Unlock()
			return l, nil
		}
		if c.notify == nil {
			c.notify = make(chan struct{})
		}
		ch := c.notify
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return c.Len(), ctx.Err()
		case <-ch:
		}
	}
}

// Each iterates over messages, calling fn for each one. If fn returns false,
// iteration stops early.
func (c *Chat) Each(fn func(int, message.Message) bool) {
	for i, m := range c.Messages() {
		if !fn(i, m) {
			return
		}
	}
}

// BySender returns all messages from the given sender.
func (c *Chat) BySender(sender string) []message.Message {
	var out []message.Message
	for _, m := range c.Messages() {
		if m.Sender == sender {
			out = append(out, m)
		}
	}
	return out
}

// SystemPrompt returns the text content of the first system message, or an
// empty string if there is none.
func (c *Chat) SystemPrompt() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, m := range c.messages {
		if m.Role == role.System {
			return m.TextContent()
		}
	}
	return ""
}
