package memagent

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/germanamz/huddle/pkg/chats/chat"
	"github.com/germanamz/huddle/pkg/chats/content"
	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/chats/role"
	"github.com/germanamz/huddle/pkg/events"
	"github.com/germanamz/huddle/pkg/memory"
	"github.com/germanamz/huddle/pkg/tools/toolbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepCompleter replays steps for tool-enabled calls and answers summary
// requests (no tools) with summary.
type stepCompleter struct {
	mu      sync.Mutex
	steps   []message.Message
	calls   int
	summary string
	prompts []*chat.Chat
}

func (s *stepCompleter) Complete(_ context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(tools) == 0 {
		return message.NewText("", role.Assistant, s.summary), nil
	}

	s.prompts = append(s.prompts, c)
	i := min(s.calls, len(s.steps)-1)
	s.calls++
	return s.steps[i], nil
}

func fn(thoughts, name string, args map[string]any) message.Message {
	data, _ := json.Marshal(args)
	var parts []content.Part
	if thoughts != "" {
		parts = append(parts, content.Text{Text: thoughts})
	}
	parts = append(parts, content.ToolCall{ID: "call_" + name, Name: name, Arguments: string(data)})
	return message.New("", role.Assistant, parts...)
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func fixedNow() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

func newAgent(t *testing.T, c *stepCompleter, opts Options) (*Agent, *memory.Store) {
	t.Helper()
	store, err := memory.OpenDir(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	if opts.Now == nil {
		opts.Now = fixedNow
	}
	a, err := New(context.Background(), "MemGPT_coder", c, store.For("MemGPT_coder"), opts)
	require.NoError(t, err)
	return a, store
}

func TestReply_SendMessage(t *testing.T) {
	c := &stepCompleter{steps: []message.Message{
		fn("User wants a plot.", memory.FnSendMessage, map[string]any{"message": "Here is the code."}),
	}}
	a, _ := newAgent(t, c, Options{})
	ctx := context.Background()

	require.NoError(t, a.Receive(ctx, "User_proxy", message.NewText("User_proxy", role.User, "plot data")))
	reply, ok, err := a.Reply(ctx, "chat_manager")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "Here is the code.", reply.TextContent())
	assert.Equal(t, "MemGPT_coder", reply.Sender)
	assert.Equal(t, 1, c.calls)

	sys := c.prompts[0].Messages()[0]
	assert.Equal(t, role.System, sys.Role)
	assert.Contains(t, sys.TextContent(), "You are MemGPT")
	assert.Contains(t, sys.TextContent(), "<persona characters=")
	assert.Contains(t, c.prompts[0].Messages()[1].TextContent(), `"name":"User_proxy"`)
}

func TestReply_HeartbeatChainsSteps(t *testing.T) {
	c := &stepCompleter{steps: []message.Message{
		fn("Remember the preference.", memory.FnCoreMemoryAppend, map[string]any{"name": "human", "content": "Wants png output.", "request_heartbeat": true}),
		fn("", memory.FnSendMessage, map[string]any{"message": "Noted, png it is."}),
	}}
	a, _ := newAgent(t, c, Options{})
	ctx := context.Background()

	reply, ok, err := a.Reply(ctx, "User_proxy")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Noted, png it is.", reply.TextContent())
	assert.Equal(t, 2, c.calls)

	b, err := a.Memory().Block(ctx, memory.BlockHuman)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(b.Value, "Wants png output."))

	second := c.prompts[1].Messages()
	assert.Contains(t, second[len(second)-1].TextContent(), "request_heartbeat=true")
	assert.Contains(t, second[0].TextContent(), "Wants png output.")
}

func TestReply_FailedFunctionGetsHeartbeat(t *testing.T) {
	c := &stepCompleter{steps: []message.Message{
		fn("", memory.FnCoreMemoryReplace, map[string]any{"name": "human", "old_content": "nope", "new_content": "x"}),
		fn("", memory.FnSendMessage, map[string]any{"message": "done"}),
	}}
	a, _ := newAgent(t, c, Options{})

	reply, _, err := a.Reply(context.Background(), "User_proxy")
	require.NoError(t, err)
	assert.Equal(t, "done", reply.TextContent())

	second := c.prompts[1].Messages()
	assert.Contains(t, second[len(second)-1].TextContent(), "Function call failed")
	results := second[len(second)-2].ToolResults()
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Content, `"status":"Failed"`)
}

func TestReply_MaxSteps(t *testing.T) {
	c := &stepCompleter{steps: []message.Message{
		fn("", memory.FnArchivalMemoryInsert, map[string]any{"content": "note", "request_heartbeat": true}),
	}}
	a, _ := newAgent(t, c, Options{MaxSteps: 3})

	_, _, err := a.Reply(context.Background(), "User_proxy")
	require.ErrorIs(t, err, ErrMaxSteps)
	assert.Equal(t, 3, c.calls)
}

func TestReply_DefaultAutoReply(t *testing.T) {
	c := &stepCompleter{steps: []message.Message{
		fn("", memory.FnArchivalMemoryInsert, map[string]any{"content": "the user likes plots"}),
	}}
	a, _ := newAgent(t, c, Options{DefaultAutoReply: "..."})

	reply, ok, err := a.Reply(context.Background(), "User_proxy")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "...", reply.TextContent())

	n, err := a.Memory().ArchivalCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReply_PlainAnswerIsMessage(t *testing.T) {
	c := &stepCompleter{steps: []message.Message{message.NewText("", role.Assistant, "Sure thing.")}}
	a, _ := newAgent(t, c, Options{DefaultAutoReply: "..."})

	reply, _, err := a.Reply(context.Background(), "User_proxy")
	require.NoError(t, err)
	assert.Equal(t, "Sure thing.", reply.TextContent())
}

func TestReply_ShowsInnerWorkings(t *testing.T) {
	rec := &recorder{}
	c := &stepCompleter{steps: []message.Message{
		fn("Check memory first.", memory.FnArchivalMemorySearch, map[string]any{"query": "plot", "request_heartbeat": true}),
		fn("", memory.FnSendMessage, map[string]any{"message": "Nothing stored yet."}),
	}}
	a, _ := newAgent(t, c, Options{ShowInnerThoughts: true, ShowFunctionOutputs: true, Events: rec})

	reply, _, err := a.Reply(context.Background(), "User_proxy")
	require.NoError(t, err)
	assert.Equal(t, "💭 Check memory first.\n⚡ [function] archival_memory_search: No results found.\nNothing stored yet.", reply.TextContent())

	var kinds []events.Kind
	for _, e := range rec.events {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []events.Kind{
		events.KindInnerThoughts, events.KindFunctionCall, events.KindFunctionReturn,
		events.KindFunctionCall, events.KindFunctionReturn,
	}, kinds)
}

func TestReceive_RecordsRecall(t *testing.T) {
	c := &stepCompleter{steps: []message.Message{message.NewText("", role.Assistant, "ok")}}
	a, _ := newAgent(t, c, Options{})
	ctx := context.Background()

	require.NoError(t, a.Receive(ctx, "Product_manager", message.NewText("", role.User, "add a title")))

	p, err := a.Memory().SearchRecall(ctx, "title", 0)
	require.NoError(t, err)
	require.Len(t, p.Entries, 1)
	assert.Equal(t, "Product_manager", p.Entries[0].Sender)

	require.Len(t, a.Window(), 1)
	a.Reset()
	assert.Empty(t, a.Window())

	n, err := a.Memory().RecallCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// fixedCounter reports a constant token count.
type fixedCounter int

func (f fixedCounter) CountTotal(*chat.Chat, []toolbox.Tool) int { return int(f) }

func TestCompact_SummarizesOldestHalf(t *testing.T) {
	c := &stepCompleter{
		steps:   []message.Message{fn("", memory.FnSendMessage, map[string]any{"message": "hi"})},
		summary: "We talked about plots.",
	}
	a, _ := newAgent(t, c, Options{ContextWindow: 100, Counter: fixedCounter(90)})
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three", "four"} {
		require.NoError(t, a.Receive(ctx, "User_proxy", message.NewText("User_proxy", role.User, text)))
	}

	_, _, err := a.Reply(ctx, "User_proxy")
	require.NoError(t, err)

	window := c.prompts[0].Messages()
	require.Len(t, window, 4) // system, summary, three, four
	assert.Contains(t, window[1].TextContent(), "prior messages (2 of 4 total messages)")
	assert.Contains(t, window[1].TextContent(), "We talked about plots.")
	assert.Contains(t, window[2].TextContent(), "three")
}

func TestCompact_BelowThresholdKeepsWindow(t *testing.T) {
	c := &stepCompleter{steps: []message.Message{fn("", memory.FnSendMessage, map[string]any{"message": "hi"})}}
	a, _ := newAgent(t, c, Options{ContextWindow: 100, Counter: fixedCounter(75)})
	ctx := context.Background()

	require.NoError(t, a.Receive(ctx, "User_proxy", message.NewText("User_proxy", role.User, "one")))
	require.NoError(t, a.Receive(ctx, "User_proxy", message.NewText("User_proxy", role.User, "two")))

	_, _, err := a.Reply(ctx, "User_proxy")
	require.NoError(t, err)
	assert.Len(t, c.prompts[0].Messages(), 3)
}

func TestNew_KeepsExistingMemory(t *testing.T) {
	ctx := context.Background()
	store, err := memory.OpenDir(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	mem := store.For("MemGPT_coder")
	_, err = New(ctx, "MemGPT_coder", &stepCompleter{}, mem, Options{Persona: "I am a 10x engineer."})
	require.NoError(t, err)
	_, err = mem.Append(ctx, memory.BlockPersona, "I like Go.")
	require.NoError(t, err)

	a, err := New(ctx, "MemGPT_coder", &stepCompleter{}, mem, Options{Persona: "Someone else."})
	require.NoError(t, err)

	b, err := a.Memory().Block(ctx, memory.BlockPersona)
	require.NoError(t, err)
	assert.Equal(t, "I am a 10x engineer.\nI like Go.", b.Value)
	assert.Equal(t, "Someone else.", a.Description())
}

func TestPreset(t *testing.T) {
	p, err := Preset("")
	require.NoError(t, err)
	assert.Contains(t, p, "send_message")

	_, err = Preset("nope")
	require.ErrorIs(t, err, ErrUnknownPreset)
	assert.Equal(t, []string{"memgpt_chat", "memgpt_docs"}, Presets())

	_, err = New(context.Background(), "x", &stepCompleter{}, nil, Options{Preset: "nope"})
	require.ErrorIs(t, err, ErrUnknownPreset)
}

func TestPauseHeartbeats(t *testing.T) {
	c := &stepCompleter{steps: []message.Message{
		fn("", memory.FnPauseHeartbeats, map[string]any{"minutes": 30}),
	}}
	a, _ := newAgent(t, c, Options{DefaultAutoReply: "..."})

	_, _, err := a.Reply(context.Background(), "User_proxy")
	require.NoError(t, err)
	assert.Equal(t, fixedNow().Add(30*time.Minute), a.PausedUntil())
}
