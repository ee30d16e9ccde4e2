package agent

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/germanamz/huddle/pkg/chats/chat"
	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/chats/role"
	"github.com/germanamz/huddle/pkg/codeexec"
	"github.com/germanamz/huddle/pkg/events"
	"github.com/germanamz/huddle/pkg/modeladapter"
	"github.com/germanamz/huddle/pkg/tools/toolbox"
	"go.uber.org/zap"
)

// DefaultAssistantSystemMessage instructs an assistant to solve tasks with
// code and signal completion.
const DefaultAssistantSystemMessage = `You are a helpful AI assistant.
Solve tasks using your coding and language skills.
In the following cases, suggest python code (in a python coding block) or shell script (in a sh coding block) for the user to execute.
    1. When you need to collect info, use the code to output the info you need, for example, browse or search the web, download/read a file, print the content of a webpage or a file, get the current date/time, check the operating system. After sufficient info is printed and the task is ready to be solved based on your language skill, you can solve the task by yourself.
    2. When you need to perform some task with code, use the code to perform the task and output the result. Finish the task smartly.
Solve the task step by step if you need to. If a plan is not provided, explain your plan first. Be clear which step uses code, and which step uses your language skill.
When using code, you must indicate the script type in the code block. The user cannot provide any other feedback or perform any other action beyond executing the code you suggest. The user can't modify your code. So do not suggest incomplete code which requires users to modify. Don't use a code block if it's not intended to be executed by the user.
If you want the user to save the code in a file before executing it, put # filename: <filename> inside the code block as the first line. Don't include multiple code blocks in one response. Do not ask users to copy and paste the result. Instead, use 'print' function for the output when relevant. Check the execution result returned by the user.
If the result indicates there is an error, fix the error and output the code again. Suggest the full code instead of partial code or code changes. If the error can't be fixed or if the task is not solved even after the code is executed successfully, analyze the problem, revisit your assumption, collect additional info you need, and think of a different approach to try.
When you find an answer, verify the answer carefully. Include verifiable evidence in your response if possible.
Reply "TERMINATE" in the end when everything is done.`

// DefaultMaxToolIterations bounds tool-call rounds inside one LLM reply.
const DefaultMaxToolIterations = 10

// Options configures a Conversable.
type Options struct {
	Description             string
	SystemMessage           string
	HumanInputMode          HumanInputMode // Default Never for assistants, Always for user proxies.
	MaxConsecutiveAutoReply int            // 0 selects DefaultMaxConsecutiveAutoReply.
	DefaultAutoReply        string
	IsTermination           TerminationFunc // Default IsTermination.

	Completer         modeladapter.Completer // nil disables LLM replies.
	ToolBoxes         []*toolbox.ToolBox
	MaxToolIterations int // 0 selects DefaultMaxToolIterations.

	CodeExecution *codeexec.Config // nil disables code execution.

	Input      InputFunc
	Events     events.Publisher
	Logger     *zap.Logger
	Middleware []Middleware
}

// Conversable is an agent keeping one private chat per peer.
type Conversable struct {
	name     string
	opts     Options
	executor *codeexec.Executor
	tools    *toolbox.ToolBox
	reply    ReplyFunc

	mu       sync.Mutex
	chats    map[string]*chat.Chat
	counters map[string]int
}

var (
	_ Agent    = (*Conversable)(nil)
	_ Recorder = (*Conversable)(nil)
)

// NewConversable creates an agent with opts as given, filling only
// mode-independent defaults.
func NewConversable(name string, opts Options) *Conversable {
	if opts.HumanInputMode == "" {
		opts.HumanInputMode = Terminate
	}
	if opts.MaxConsecutiveAutoReply <= 0 {
		opts.MaxConsecutiveAutoReply = DefaultMaxConsecutiveAutoReply
	}
	if opts.IsTermination == nil {
		opts.IsTermination = IsTermination
	}
	if opts.MaxToolIterations <= 0 {
		opts.MaxToolIterations = DefaultMaxToolIterations
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}

	c := &Conversable{
		name:     name,
		opts:     opts,
		tools:    toolbox.Merge(opts.ToolBoxes...),
		chats:    make(map[string]*chat.Chat),
		counters: make(map[string]int),
	}

	if opts.CodeExecution != nil {
		c.executor = codeexec.New(*opts.CodeExecution)
	}

	c.reply = Chain(c.generateReply, opts.Middleware...)

	return c
}

// NewAssistant creates an LLM-backed agent that never asks a human by
// default and uses DefaultAssistantSystemMessage when none is set.
func NewAssistant(name string, completer modeladapter.Completer, opts Options) *Conversable {
	opts.Completer = completer
	if opts.SystemMessage == "" {
		opts.SystemMessage = DefaultAssistantSystemMessage
	}
	if opts.HumanInputMode == "" {
		opts.HumanInputMode = Never
	}
	return NewConversable(name, opts)
}

// NewUserProxy creates an agent standing in for the human: no LLM, asks on
// every turn by default, and executes code it receives. Pass a non-nil
// CodeExecution to change where code runs.
func NewUserProxy(name string, opts Options) *Conversable {
	if opts.HumanInputMode == "" {
		opts.HumanInputMode = Always
	}
	if opts.CodeExecution == nil {
		opts.CodeExecution = &codeexec.Config{}
	}
	return NewConversable(name, opts)
}

// Name implements Agent.
func (c *Conversable) Name() string { return c.name }

// Description implements Agent. It falls back to the system message.
func (c *Conversable) Description() string {
	if c.opts.Description != "" {
		return c.opts.Description
	}
	return c.opts.SystemMessage
}

// SystemMessage returns the configured system message.
func (c *Conversable) SystemMessage() string { return c.opts.SystemMessage }

// HumanInputMode returns the effective mode.
func (c *Conversable) HumanInputMode() HumanInputMode { return c.opts.HumanInputMode }

// Executor returns the code executor, or nil when code execution is off.
func (c *Conversable) Executor() *codeexec.Executor { return c.executor }

// Chat returns the conversation with peer, creating it on first use.
func (c *Conversable) Chat(peer string) *chat.Chat {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.chatLocked(peer)
}

func (c *Conversable) chatLocked(peer string) *chat.Chat {
	ch, ok := c.chats[peer]
	if !ok {
		ch = chat.New()
		if c.opts.SystemMessage != "" {
			ch.Append(message.NewText(c.name, role.System, c.opts.SystemMessage))
		}
		c.chats[peer] = ch
	}
	return ch
}

// Peers lists peers with a conversation, sorted.
func (c *Conversable) Peers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	peers := make([]string, 0, len(c.chats))
	for p := range c.chats {
		peers = append(peers, p)
	}
	slices.Sort(peers)
	return peers
}

// Receive implements Agent.
func (c *Conversable) Receive(_ context.Context, from string, msg message.Message) error {
	if msg.Sender == "" {
		msg.Sender = from
	}
	c.Chat(from).Append(msg.WithRole(role.Of(msg.Sender, c.name)))
	return nil
}

// Sent implements Recorder.
func (c *Conversable) Sent(to string, msg message.Message) {
	c.Chat(to).Append(msg.WithRole(role.Assistant))
}

// Reply implements Agent.
func (c *Conversable) Reply(ctx context.Context, to string) (message.Message, bool, error) {
	msg, ok, err := c.reply(ctx, to)
	if err != nil || !ok {
		return message.Message{}, ok, err
	}

	msg.Sender = c.name
	msg.Role = role.Assistant
	c.Sent(to, msg)

	return msg, true, nil
}

// Reset implements Agent.
func (c *Conversable) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.chats)
	clear(c.counters)
}

// ResetCounter restarts the consecutive auto-reply count for peer.
func (c *Conversable) ResetCounter(peer string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.counters, peer)
}

// AutoReplies returns the consecutive auto-reply count for peer.
func (c *Conversable) AutoReplies(peer string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.counters[peer]
}

// generateReply is the reply pipeline: human input, code execution, LLM,
// default auto reply.
func (c *Conversable) generateReply(ctx context.Context, to string) (message.Message, bool, error) {
	human, final, err := c.checkHuman(ctx, to)
	if err != nil {
		return message.Message{}, false, err
	}
	if final {
		if human == nil {
			return message.Message{}, false, nil
		}
		return *human, true, nil
	}

	if c.executor != nil {
		msg, ok, err := c.executeCode(ctx, to)
		if err != nil || ok {
			return msg, ok, err
		}
	}

	if c.opts.Completer != nil {
		msg, err := c.complete(ctx, to)
		if err != nil {
			return message.Message{}, false, fmt.Errorf("agent: %s: %w", c.name, err)
		}
		return msg, true, nil
	}

	return message.NewText(c.name, role.Assistant, c.opts.DefaultAutoReply), true, nil
}

// complete asks the LLM for a reply, executing tool calls until the model
// answers without one.
func (c *Conversable) complete(ctx context.Context, to string) (message.Message, error) {
	ch := c.Chat(to)

	tools := c.tools.Tools()

	for range c.opts.MaxToolIterations {
		reply, err := c.opts.Completer.Complete(ctx, ch, tools)
		if err != nil {
			return message.Message{}, err
		}
		reply.Sender = c.name

		calls := reply.ToolCalls()
		if len(calls) == 0 || len(tools) == 0 {
			return reply, nil
		}

		ch.Append(reply)
		for _, tc := range calls {
			events.Emit(c.opts.Events, events.KindFunctionCall, c.name, events.FunctionData{Name: tc.Name, Arguments: tc.Arguments})

			result := c.tools.Call(ctx, tc)
			events.Emit(c.opts.Events, events.KindFunctionReturn, c.name, events.FunctionData{Name: tc.Name, Result: result.Content, IsError: result.IsError})

			ch.Append(message.New(c.name, role.Tool, result))
		}
	}

	return message.Message{}, ErrMaxToolIterations
}

// lastFrom returns the last message in the chat with peer not sent by c.
func (c *Conversable) lastFrom(peer string) (message.Message, bool) {
	msgs := c.Chat(peer).Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != role.System && msgs[i].Sender != c.name {
			return msgs[i], true
		}
	}
	return message.Message{}, false
}
