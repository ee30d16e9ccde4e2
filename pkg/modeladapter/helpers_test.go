package modeladapter_test

import (
	"context"

	"github.com/germanamz/huddle/pkg/chats/chat"
	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/chats/role"
	"github.com/germanamz/huddle/pkg/modeladapter/usage"
	"github.com/germanamz/huddle/pkg/tools/toolbox"
)

// fakeCompleter is a test double for modeladapter.Completer that also
// implements UsageReporter.
type fakeCompleter struct {
	tracker   usage.Tracker
	maxTokens int
	calls     int
	handler   func(ctx context.Context, c *chat.Chat) (message.Message, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, c *chat.Chat, _ []toolbox.Tool) (message.Message, error) {
	f.calls++
	return f.handler(ctx, c)
}

func (f *fakeCompleter) UsageTracker() *usage.Tracker { return &f.tracker }
func (f *fakeCompleter) ModelMaxTokens() int          { return f.maxTokens }

func okMessage(text string) message.Message {
	return message.NewText("", role.Assistant, text)
}
