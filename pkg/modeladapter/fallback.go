package modeladapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/germanamz/huddle/pkg/chats/chat"
	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/modeladapter/usage"
	"github.com/germanamz/huddle/pkg/tools/toolbox"
)

var _ Completer = (*Fallback)(nil)

// ErrNoCompleters is returned by a Fallback built from an empty list.
var ErrNoCompleters = errors.New("modeladapter: no completers configured")

// Named pairs a completer with the config name it was built from.
type Named struct {
	Name      string
	Completer Completer
}

// Fallback tries each completer of a config list in order and returns the
// first successful reply. Non-retryable errors (e.g. cancellation) stop the
// walk immediately.
type Fallback struct {
	list    []Named
	tracker usage.Tracker
}

// NewFallback creates a Fallback over list.
func NewFallback(list ...Named) *Fallback {
	return &Fallback{list: list}
}

// Complete implements Completer.
func (f *Fallback) Complete(ctx context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	if len(f.list) == 0 {
		return message.Message{}, ErrNoCompleters
	}

	var errs []error
	for _, n := range f.list {
		var before usage.TokenCount
		ur, hasUsage := n.Completer.(UsageReporter)
		if hasUsage {
			before = ur.UsageTracker().Total()
		}

		msg, err := n.Completer.Complete(ctx, c, tools)
		if err == nil {
			if hasUsage {
				after := ur.UsageTracker().Total()
				f.tracker.Add(usage.TokenCount{
					InputTokens:  after.InputTokens - before.InputTokens,
					OutputTokens: after.OutputTokens - before.OutputTokens,
				})
			}
			return msg, nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", n.Name, err))
		if !IsRetryable(err) {
			break
		}
	}

	return message.Message{}, fmt.Errorf("modeladapter: all completers failed: %w", errors.Join(errs...))
}

// UsageTracker returns usage aggregated over every successful call.
func (f *Fallback) UsageTracker() *usage.Tracker { return &f.tracker }

// ModelMaxTokens reports the first completer's limit.
func (f *Fallback) ModelMaxTokens() int {
	if len(f.list) == 0 {
		return 0
	}
	if ur, ok := f.list[0].Completer.(UsageReporter); ok {
		return ur.ModelMaxTokens()
	}
	return 0
}
