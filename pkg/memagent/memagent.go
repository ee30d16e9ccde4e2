// Package memagent implements a memory-augmented chat participant. The agent
// keeps a bounded in-context window, persists everything it sees to
// [memory.Memory], and acts only through memory functions: it talks by
// calling send_message and keeps thinking for another step whenever a
// function call requests a heartbeat.
package memagent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/germanamz/huddle/pkg/agent"
	"github.com/germanamz/huddle/pkg/chats/chat"
	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/chats/role"
	"github.com/germanamz/huddle/pkg/events"
	"github.com/germanamz/huddle/pkg/memory"
	"github.com/germanamz/huddle/pkg/modeladapter"
	"github.com/germanamz/huddle/pkg/tools/toolbox"
	"go.uber.org/zap"
)

const (
	// DefaultMaxSteps bounds heartbeat-chained steps per reply.
	DefaultMaxSteps = 10
	// DefaultContextWindow is used when the backend does not report one.
	DefaultContextWindow = 8192
	// CompactThreshold is the fraction of the context window that triggers
	// summarisation of the oldest messages.
	CompactThreshold = 0.75
)

var (
	// ErrMaxSteps is returned when the model keeps requesting heartbeats
	// without ever sending a message.
	ErrMaxSteps = errors.New("memagent: max steps reached")
	// ErrUnknownPreset is returned for unregistered preset names.
	ErrUnknownPreset = errors.New("memagent: unknown preset")
)

// Options configures an Agent.
type Options struct {
	Description string
	// Preset names the base system prompt; SystemPrompt overrides it.
	Preset       string
	SystemPrompt string
	// Persona and Human seed core memory the first time the agent runs.
	Persona string
	Human   string

	DefaultAutoReply string
	MaxSteps         int
	ContextWindow    int
	Counter          modeladapter.TokenCounter // Default modeladapter.TokenEstimator.

	// ShowInnerThoughts and ShowFunctionOutputs add the agent's inner
	// monologue and function results to its visible reply.
	ShowInnerThoughts   bool
	ShowFunctionOutputs bool

	Events events.Publisher
	Logger *zap.Logger
	Now    func() time.Time
}

// Agent is a memory-augmented chat participant.
type Agent struct {
	name      string
	completer modeladapter.Completer
	mem       *memory.Memory
	opts      Options
	base      string
	ctl       *control
	tools     *toolbox.ToolBox

	mu     sync.Mutex
	window *chat.Chat
}

var (
	_ agent.Agent    = (*Agent)(nil)
	_ memory.Control = (*control)(nil)
)

// New creates the agent and seeds its core memory unless it already exists.
func New(ctx context.Context, name string, completer modeladapter.Completer, mem *memory.Memory, opts Options) (*Agent, error) {
	base := opts.SystemPrompt
	if base == "" {
		p, err := Preset(opts.Preset)
		if err != nil {
			return nil, err
		}
		base = p
	}

	if opts.Persona == "" {
		opts.Persona = DefaultPersona
	}
	if opts.Human == "" {
		opts.Human = DefaultHuman
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = DefaultContextWindow
	}
	if opts.Counter == nil {
		opts.Counter = &modeladapter.TokenEstimator{}
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	if err := mem.Init(ctx, opts.Persona, opts.Human); err != nil {
		return nil, fmt.Errorf("memagent: %s: %w", name, err)
	}

	a := &Agent{
		name:      name,
		completer: completer,
		mem:       mem,
		opts:      opts,
		base:      base,
		ctl:       &control{now: opts.Now},
		window:    chat.New(),
	}
	a.tools = memory.Functions(mem, a.ctl)

	return a, nil
}

// Name implements agent.Agent.
func (a *Agent) Name() string { return a.name }

// Description implements agent.Agent.
func (a *Agent) Description() string {
	if a.opts.Description != "" {
		return a.opts.Description
	}
	return a.opts.Persona
}

// Memory returns the agent's persistent memory.
func (a *Agent) Memory() *memory.Memory { return a.mem }

// PausedUntil reports when a pause requested through pause_heartbeats ends.
func (a *Agent) PausedUntil() time.Time {
	a.ctl.mu.Lock()
	defer a.ctl.mu.Unlock()

	return a.ctl.pausedUntil
}

// Window returns a copy of the in-context messages, excluding the system
// prompt which is rebuilt on every step.
func (a *Agent) Window() []message.Message {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.window.Messages()
}

// Receive implements agent.Agent. Every message goes to recall memory and
// into the context window as a packaged user event.
func (a *Agent) Receive(ctx context.Context, from string, msg message.Message) error {
	if msg.Sender == "" {
		msg.Sender = from
	}
	if err := a.mem.Record(ctx, msg); err != nil {
		return fmt.Errorf("memagent: %s: %w", a.name, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.window.Append(message.NewText(msg.Sender, role.User, packageUserMessage(msg.Sender, msg.TextContent(), a.opts.Now())))
	return nil
}

// Reply implements agent.Agent. It runs steps until the model stops
// requesting heartbeats and returns everything it sent, joined by newlines.
func (a *Agent) Reply(ctx context.Context, to string) (message.Message, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.ctl.begin()
	var lines []string

	steps, done, err := a.run(ctx, &lines)
	if err != nil {
		return message.Message{}, false, err
	}

	sent := a.ctl.drain()
	if len(sent) == 0 && !done {
		return message.Message{}, false, fmt.Errorf("%w: %s after %d steps", ErrMaxSteps, a.name, steps)
	}

	if len(sent) == 0 {
		sent = []string{a.opts.DefaultAutoReply}
	}
	text := strings.TrimSpace(strings.Join(append(lines, sent...), "\n"))

	a.opts.Logger.Debug("memory agent replied",
		zap.String("agent", a.name),
		zap.String("to", to),
		zap.Int("steps", steps),
		zap.Int("chars", len(text)),
	)

	return message.NewText(a.name, role.Assistant, text), true, nil
}

// Reset implements agent.Agent. Only the context window is cleared; memory
// persists.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.window.Reset()
}

// run executes steps and returns how many ran. done is false when the step
// budget ran out with a heartbeat still pending.
func (a *Agent) run(ctx context.Context, lines *[]string) (steps int, done bool, err error) {
	tools := a.tools.Tools()

	for step := range a.opts.MaxSteps {
		if err := ctx.Err(); err != nil {
			return step, false, err
		}

		prompt, err := a.prompt(ctx)
		if err != nil {
			return step, false, err
		}

		if err := a.compact(ctx, prompt, tools); err != nil {
			return step, false, err
		}
		prompt, err = a.prompt(ctx)
		if err != nil {
			return step, false, err
		}

		reply, err := a.completer.Complete(ctx, prompt, tools)
		if err != nil {
			return step, false, fmt.Errorf("memagent: %s: %w", a.name, err)
		}
		reply.Sender = a.name
		reply.Role = role.Assistant

		if err := a.remember(ctx, reply); err != nil {
			return step, false, err
		}

		calls := reply.ToolCalls()
		thoughts := strings.TrimSpace(reply.TextContent())

		if len(calls) == 0 {
			// A plain answer counts as a message to the group.
			if thoughts != "" {
				_ = a.ctl.SendMessage(ctx, thoughts)
			}
			return step + 1, true, nil
		}

		if thoughts != "" {
			events.Emit(a.opts.Events, events.KindInnerThoughts, a.name, events.ThoughtData{Text: thoughts})
			if a.opts.ShowInnerThoughts {
				*lines = append(*lines, "💭 "+thoughts)
			}
		}

		heartbeat, failed := false, false
		for _, tc := range calls {
			events.Emit(a.opts.Events, events.KindFunctionCall, a.name, events.FunctionData{Name: tc.Name, Arguments: tc.Arguments})

			res := a.tools.Call(ctx, tc)

			events.Emit(a.opts.Events, events.KindFunctionReturn, a.name, events.FunctionData{Name: tc.Name, Result: res.Content, IsError: res.IsError})
			if a.opts.ShowFunctionOutputs && tc.Name != memory.FnSendMessage {
				*lines = append(*lines, fmt.Sprintf("⚡ [function] %s: %s", tc.Name, res.Content))
			}

			res.Content = packageFunctionResponse(!res.IsError, res.Content, a.opts.Now())
			if err := a.remember(ctx, message.New(a.name, role.Tool, res)); err != nil {
				return step, false, err
			}

			switch {
			case res.IsError:
				heartbeat, failed = true, true
				a.opts.Logger.Warn("memory function failed", zap.String("agent", a.name), zap.String("function", tc.Name))
			case memory.RequestsHeartbeat(tc.Arguments):
				heartbeat = true
			}
		}

		if !heartbeat {
			return step + 1, true, nil
		}

		reason := heartbeatReason
		if failed {
			reason = failedReason
		}
		a.window.Append(message.NewText("", role.User, packageHeartbeat(reason, a.opts.Now())))
	}

	return a.opts.MaxSteps, false, nil
}

// remember appends msg to the window and recall memory.
func (a *Agent) remember(ctx context.Context, msg message.Message) error {
	a.window.Append(msg)
	if err := a.mem.Record(ctx, msg); err != nil {
		return fmt.Errorf("memagent: %s: %w", a.name, err)
	}
	return nil
}

// prompt builds the chat sent to the model: the base prompt and rendered
// core memory, followed by the window.
func (a *Agent) prompt(ctx context.Context) (*chat.Chat, error) {
	core, err := a.mem.Render(ctx)
	if err != nil {
		return nil, fmt.Errorf("memagent: %s: %w", a.name, err)
	}

	c := chat.New(message.NewText(a.name, role.System, a.base+"\n\n"+core))
	c.Append(a.window.Messages()...)
	return c, nil
}

// control collects send_message output during one reply.
type control struct {
	now func() time.Time

	mu          sync.Mutex
	sent        []string
	pausedUntil time.Time
}

func (c *control) begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
}

func (c *control) drain() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.sent
	c.sent = nil
	return out
}

// SendMessage implements memory.Control.
func (c *control) SendMessage(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return nil
}

// PauseHeartbeats implements memory.Control. Timed heartbeats are never
// scheduled inside a chat, so the pause is only recorded.
func (c *control) PauseHeartbeats(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pausedUntil = c.now().Add(d)
	return nil
}
