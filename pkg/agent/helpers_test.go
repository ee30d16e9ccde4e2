package agent

import (
	"context"
	"sync"

	"github.com/germanamz/huddle/pkg/chats/chat"
	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/chats/role"
	"github.com/germanamz/huddle/pkg/events"
	"github.com/germanamz/huddle/pkg/tools/toolbox"
)

// scriptedCompleter replays replies in order, repeating the last one.
type scriptedCompleter struct {
	mu      sync.Mutex
	replies []message.Message
	calls   int
	seen    [][]message.Message
}

func script(texts ...string) *scriptedCompleter {
	s := &scriptedCompleter{}
	for _, t := range texts {
		s.replies = append(s.replies, message.NewText("", role.Assistant, t))
	}
	return s
}

func (s *scriptedCompleter) Complete(_ context.Context, c *chat.Chat, _ []toolbox.Tool) (message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen = append(s.seen, c.Messages())

	i := min(s.calls, len(s.replies)-1)
	s.calls++
	return s.replies[i], nil
}

// answers returns an InputFunc replaying answers, then "".
func answers(list ...string) (InputFunc, *[]string) {
	var prompts []string
	i := 0
	return func(_ context.Context, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		if i >= len(list) {
			return "", nil
		}
		a := list[i]
		i++
		return a, nil
	}, &prompts
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func countFrom(history []message.Message, sender string) int {
	n := 0
	for _, m := range history {
		if m.Sender == sender {
			n++
		}
	}
	return n
}
