package format

import (
	"strings"
	"testing"
	"time"

	"github.com/germanamz/huddle/pkg/events"
	"github.com/stretchr/testify/assert"
)

func TestFmtDuration(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{100 * time.Millisecond, "0.1s"},
		{30 * time.Second, "30.0s"},
		{65 * time.Second, "1m 5s"},
		{125 * time.Second, "2m 5s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, FmtDuration(tt.input), "FmtDuration(%v)", tt.input)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "hello...", Truncate("hello world", 8))
	assert.Equal(t, "a b", Truncate("a\nb", 10))
	// Wide runes count as two cells.
	assert.Equal(t, "日本...", Truncate("日本語テキスト", 7))
}

func TestTailLines(t *testing.T) {
	assert.Nil(t, TailLines("", 3))
	assert.Equal(t, []string{"a", "b"}, TailLines("a\nb\n", 3))
	assert.Equal(t, []string{"...", "c", "d"}, TailLines("a\nb\nc\nd", 2))
}

func TestRenderer_Event(t *testing.T) {
	var r Renderer

	tests := []struct {
		name  string
		event events.Event
		want  []string
	}{
		{
			"message",
			events.Event{Kind: events.KindMessage, Data: events.MessageData{From: "Coder", To: "chat_manager", Text: "Here is the code.", ToolCalls: []string{"send_message"}}},
			[]string{"Coder", "chat_manager", "Here is the code.", "calls send_message"},
		},
		{
			"speaker",
			events.Event{Kind: events.KindSpeakerSelected, Agent: "chat_manager", Data: events.SpeakerData{Speaker: "Coder", Round: 2, Method: "auto"}},
			[]string{"chat_manager picked Coder", "round 2", "auto"},
		},
		{
			"thoughts",
			events.Event{Kind: events.KindInnerThoughts, Agent: "MemGPT_coder", Data: events.ThoughtData{Text: "User wants a plot."}},
			[]string{"MemGPT_coder thinks: User wants a plot."},
		},
		{
			"function call",
			events.Event{Kind: events.KindFunctionCall, Data: events.FunctionData{Name: "archival_memory_search", Arguments: `{"query":"plot"}`}},
			[]string{"archival_memory_search", `{"query":"plot"}`},
		},
		{
			"function error",
			events.Event{Kind: events.KindFunctionReturn, Data: events.FunctionData{Name: "core_memory_append", Result: "limit exceeded", IsError: true}},
			[]string{"core_memory_append failed: limit exceeded"},
		},
		{
			"code failed",
			events.Event{Kind: events.KindCodeExecuted, Data: events.CodeData{Blocks: 1, ExitCode: 1, Output: "Traceback"}},
			[]string{"exit code 1", "Traceback"},
		},
		{
			"chat end",
			events.Event{Kind: events.KindChatEnd, Data: events.EndData{Turns: 3, Summary: "Plot saved.", Reason: "termination message"}},
			[]string{"3 turn(s)", "termination message", "Plot saved."},
		},
		{
			"error",
			events.Event{Kind: events.KindError, Data: events.ErrorData{Error: "boom"}},
			[]string{"error: boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := r.Event(tt.event)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestRenderer_SkipsAskUser(t *testing.T) {
	var r Renderer
	assert.Empty(t, r.Event(events.Event{Kind: events.KindAskUser, Data: events.AskData{Text: "?"}}))
}

func TestRenderer_Markdown(t *testing.T) {
	r := NewRenderer(60, true)
	out := r.Markdown("# Title\n\nSome **bold** text.")
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "bold")
	assert.False(t, strings.HasSuffix(out, "\n"))
	assert.Equal(t, 60, r.Width())
}
