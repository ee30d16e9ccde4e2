package groupchat

import (
	"context"
	"sync"

	"github.com/germanamz/huddle/pkg/agent"
	"github.com/germanamz/huddle/pkg/chats/chat"
	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/chats/role"
	"github.com/germanamz/huddle/pkg/tools/toolbox"
)

// fakeAgent replies with scripted texts and records what it receives.
type fakeAgent struct {
	name     string
	replies  []string
	decline  bool
	calls    int
	received []message.Message
	resets   int
}

var _ agent.Agent = (*fakeAgent)(nil)

func newFake(name string, replies ...string) *fakeAgent {
	return &fakeAgent{name: name, replies: replies}
}

func (f *fakeAgent) Name() string        { return f.name }
func (f *fakeAgent) Description() string { return "I am " + f.name + "." }
func (f *fakeAgent) Reset()              { f.resets++ }

func (f *fakeAgent) Receive(_ context.Context, _ string, msg message.Message) error {
	f.received = append(f.received, msg)
	return nil
}

func (f *fakeAgent) Reply(context.Context, string) (message.Message, bool, error) {
	if f.decline {
		return message.Message{}, false, nil
	}
	text := f.name + " speaks"
	if len(f.replies) > 0 {
		text = f.replies[min(f.calls, len(f.replies)-1)]
	}
	f.calls++
	return message.NewText(f.name, role.Assistant, text), true, nil
}

// textCompleter answers every request with the same text.
type textCompleter struct {
	mu    sync.Mutex
	texts []string
	seen  []*chat.Chat
}

func (c *textCompleter) Complete(_ context.Context, ch *chat.Chat, _ []toolbox.Tool) (message.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := min(len(c.seen), len(c.texts)-1)
	c.seen = append(c.seen, ch)
	return message.NewText("", role.Assistant, c.texts[i]), nil
}

func senders(msgs []message.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Sender
	}
	return out
}

func agents(as ...*fakeAgent) []agent.Agent {
	out := make([]agent.Agent, len(as))
	for i, a := range as {
		out[i] = a
	}
	return out
}
