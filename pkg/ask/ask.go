// Package ask routes questions for the human to whichever frontend is
// attached. Agents in a human input mode block in Ask until the frontend calls
// Respond; assistants can reach the same human through the ask_user tool.
package ask

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/germanamz/huddle/pkg/agent"
	"github.com/germanamz/huddle/pkg/tools/toolbox"
)

var (
	// ErrQuestionRequired is returned for an empty question.
	ErrQuestionRequired = errors.New("ask: question is required")
	// ErrUnknownQuestion is returned by Respond for an id nobody waits on.
	ErrUnknownQuestion = errors.New("ask: question not found")
)

// Question is a prompt waiting for the human.
type Question struct {
	ID      string   `json:"id"`
	Agent   string   `json:"agent,omitempty"`
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
}

// OnAskFunc is called for each new question so the frontend can show it.
type OnAskFunc func(ctx context.Context, q Question)

// Responder keeps pending questions and their reply channels.
type Responder struct {
	mu      sync.Mutex
	pending map[string]pending
	onAsk   OnAskFunc
	nextID  atomic.Int64
}

type pending struct {
	q  Question
	ch chan string
}

// NewResponder creates a Responder. A nil onAsk still registers questions;
// callers then discover them through Pending.
func NewResponder(onAsk OnAskFunc) *Responder {
	return &Responder{
		pending: make(map[string]pending),
		onAsk:   onAsk,
	}
}

// Respond delivers an answer to a pending question.
func (r *Responder) Respond(questionID, answer string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[questionID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownQuestion, questionID)
	}

	// Buffered with size 1 and removed on first send, so this never blocks.
	p.ch <- answer
	delete(r.pending, questionID)

	return nil
}

// Pending lists unanswered questions in the order they were asked.
func (r *Responder) Pending() []Question {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Question, 0, len(r.pending))
	for _, p := range r.pending {
		out = append(out, p.q)
	}
	sort.Slice(out, func(i, j int) bool { return questionSeq(out[i].ID) < questionSeq(out[j].ID) })

	return out
}

// Ask poses a question on behalf of agentName and blocks until Respond is
// called or ctx is done.
func (r *Responder) Ask(ctx context.Context, agentName, text string, options []string) (string, error) {
	if text == "" {
		return "", ErrQuestionRequired
	}

	q := Question{
		ID:      fmt.Sprintf("q-%d", r.nextID.Add(1)),
		Agent:   agentName,
		Text:    text,
		Options: options,
	}
	ch := make(chan string, 1)

	r.mu.Lock()
	r.pending[q.ID] = pending{q: q, ch: ch}
	r.mu.Unlock()

	if r.onAsk != nil {
		r.onAsk(ctx, q)
	}

	select {
	case <-ctx.Done():
		// An answer may have landed together with the cancellation.
		select {
		case resp := <-ch:
			return resp, nil
		default:
		}

		r.mu.Lock()
		delete(r.pending, q.ID)
		r.mu.Unlock()

		return "", ctx.Err()
	case resp := <-ch:
		return resp, nil
	}
}

// Input returns the human input function for agentName.
func (r *Responder) Input(agentName string) agent.InputFunc {
	return func(ctx context.Context, prompt string) (string, error) {
		return r.Ask(ctx, agentName, prompt, nil)
	}
}

// Tools returns a ToolBox holding the ask_user tool for agentName.
func (r *Responder) Tools(agentName string) *toolbox.ToolBox {
	tb := toolbox.New()
	tb.Register(toolbox.Tool{
		Name:        "ask_user",
		Description: "Ask the human a question and wait for the answer. Optionally provide multiple-choice options.",
		InputSchema: toolbox.Object(
			toolbox.Param{Name: "question", Type: "string", Description: "The question to ask", Required: true},
			toolbox.Param{Name: "options", Type: "array", Items: "string", Description: "Optional choices"},
		),
		Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
			var in struct {
				Question string   `json:"question"`
				Options  []string `json:"options,omitempty"`
			}
			if err := json.Unmarshal(input, &in); err != nil {
				return "", fmt.Errorf("ask_user: invalid input: %w", err)
			}

			resp, err := r.Ask(ctx, agentName, in.Question, in.Options)
			if err != nil {
				return "", fmt.Errorf("ask_user: %w", err)
			}
			return resp, nil
		},
	})

	return tb
}

func questionSeq(id string) int {
	var n int
	_, _ = fmt.Sscanf(id, "q-%d", &n)
	return n
}
