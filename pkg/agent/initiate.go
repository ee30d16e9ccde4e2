package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/chats/role"
	"github.com/germanamz/huddle/pkg/events"
	"github.com/germanamz/huddle/pkg/modeladapter"
)

// SummaryMethod selects how a ChatResult summary is produced.
type SummaryMethod string

const (
	// SummaryLast uses the last message, without the termination token.
	SummaryLast SummaryMethod = "last_msg"
	// SummaryReflection asks an LLM to summarise the conversation.
	SummaryReflection SummaryMethod = "reflection_with_llm"
)

// ChatOptions configures InitiateChat.
type ChatOptions struct {
	MaxTurns      int           // Bound on replies (0 = unbounded).
	KeepHistory   bool          // Keep earlier conversations of both agents.
	SummaryMethod SummaryMethod // Default SummaryLast.
	Summarizer    modeladapter.Completer
	Events        events.Publisher
}

// ChatResult describes a finished two-party conversation.
type ChatResult struct {
	History []message.Message
	Summary string
	// Turns counts replies; the opening message is not a turn.
	Turns int
	// Reason tells why the conversation stopped.
	Reason string
}

// Stop reasons reported in ChatResult.Reason.
const (
	ReasonDeclined = "no reply"
	ReasonMaxTurns = "max turns reached"
)

// InitiateChat sends text from sender to recipient and alternates replies
// until one side declines to reply or MaxTurns replies were produced.
func InitiateChat(ctx context.Context, sender, recipient Agent, text string, opts ChatOptions) (ChatResult, error) {
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	if !opts.KeepHistory {
		sender.Reset()
		recipient.Reset()
	}

	msg := message.NewText(sender.Name(), role.User, text)
	if rec, ok := sender.(Recorder); ok {
		rec.Sent(recipient.Name(), msg)
	}

	res := ChatResult{Reason: ReasonMaxTurns}
	from, to := sender, recipient

	for {
		res.History = append(res.History, msg)
		PublishMessage(opts.Events, from.Name(), to.Name(), msg)

		if err := to.Receive(ctx, from.Name(), msg); err != nil {
			return res, fmt.Errorf("agent: deliver to %s: %w", to.Name(), err)
		}

		if opts.MaxTurns > 0 && res.Turns >= opts.MaxTurns {
			break
		}

		reply, ok, err := to.Reply(ctx, from.Name())
		if err != nil {
			return res, err
		}
		if !ok {
			res.Reason = ReasonDeclined
			break
		}

		res.Turns++
		msg = reply
		from, to = to, from
	}

	summary, err := SummarizeChat(ctx, res.History, opts)
	if err != nil {
		return res, err
	}
	res.Summary = summary

	return res, nil
}

// SummarizeChat produces the summary of history selected by
// opts.SummaryMethod.
func SummarizeChat(ctx context.Context, history []message.Message, opts ChatOptions) (string, error) {
	if opts.SummaryMethod == SummaryReflection && opts.Summarizer != nil {
		return Summarize(ctx, opts.Summarizer, history, ReflectionPrompt)
	}

	if len(history) == 0 {
		return "", nil
	}

	last := history[len(history)-1].TextContent()
	return strings.TrimSpace(strings.ReplaceAll(last, TerminationToken, "")), nil
}

// PublishMessage emits a KindMessage event for m travelling from -> to.
func PublishMessage(p events.Publisher, from, to string, m message.Message) {
	var calls []string
	for _, tc := range m.ToolCalls() {
		calls = append(calls, tc.Name)
	}

	events.Emit(p, events.KindMessage, from, events.MessageData{
		From:      from,
		To:        to,
		Role:      string(m.Role),
		Text:      m.TextContent(),
		ToolCalls: calls,
	})
}
