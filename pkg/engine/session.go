package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/germanamz/huddle/pkg/agent"
	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/events"
	"github.com/germanamz/huddle/pkg/modeladapter/usage"
	"go.uber.org/zap"
)

var (
	// ErrNoMessage is returned by Run when neither the caller nor the config
	// provides an opening message.
	ErrNoMessage = errors.New("engine: no opening message")
	// ErrBusy is returned when Run is called while a conversation is active.
	ErrBusy = errors.New("engine: a conversation is already running")
)

// Result describes a finished conversation.
type Result struct {
	Session string
	// History is the group transcript, or the pair conversation.
	History []message.Message
	Summary string
	// Turns counts replies; in group chats it counts speaker rounds.
	Turns  int
	Reason string
	// Usage is cumulative for the engine, not only this run.
	Usage usage.Summary
}

// Run sends text (or the configured message when text is empty) from the
// initiator to the group chat manager or the pair recipient, and blocks
// until the conversation ends. Only one Run may be active at a time.
func (e *Engine) Run(ctx context.Context, text string) (Result, error) {
	if text == "" {
		text = e.cfg.Message
	}
	if text == "" {
		return Result{}, ErrNoMessage
	}

	if err := e.acquire(); err != nil {
		return Result{}, err
	}
	defer e.release()

	method, _ := parseSummaryMethod(e.cfg.SummaryMethod)
	opts := agent.ChatOptions{
		MaxTurns:      e.cfg.MaxTurns,
		SummaryMethod: method,
		Events:        e.bus,
	}
	if method == agent.SummaryReflection {
		s, err := e.completer(e.cfg.LLM)
		if err != nil {
			return Result{}, fmt.Errorf("engine: summary: %w", err)
		}
		opts.Summarizer = s
	}

	e.logger.Info("conversation started",
		zap.String("initiator", e.initiator.Name()),
		zap.String("recipient", e.recipient.Name()),
	)

	cr, err := agent.InitiateChat(ctx, e.initiator, e.recipient, text, opts)
	res := Result{Session: e.session, History: cr.History, Summary: cr.Summary, Turns: cr.Turns, Reason: cr.Reason}

	if err == nil && e.manager != nil {
		gr := e.manager.Result()
		res.History = e.manager.GroupChat().Messages()
		res.Turns, res.Reason = gr.Rounds, gr.Reason
		res.Summary, err = agent.SummarizeChat(ctx, res.History, opts)
	}

	res.Usage = e.Usage()

	if err != nil {
		events.Emit(e.bus, events.KindError, "", events.ErrorData{Error: err.Error()})
		e.logger.Error("conversation failed", zap.Error(err))
		return res, err
	}

	events.Emit(e.bus, events.KindChatEnd, "", events.EndData{Turns: res.Turns, Summary: res.Summary, Reason: res.Reason})
	e.logger.Info("conversation finished", zap.Int("turns", res.Turns), zap.String("reason", res.Reason))

	return res, nil
}

func (e *Engine) acquire() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrBusy
	}
	e.running = true
	return nil
}

func (e *Engine) release() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.running = false
}
