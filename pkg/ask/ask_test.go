package ask

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/germanamz/huddle/pkg/chats/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	timeout = time.Second
	tick    = 5 * time.Millisecond
)

func autoResponder(answer string) (*Responder, *[]Question) {
	var (
		mu    sync.Mutex
		asked []Question
		r     *Responder
	)
	r = NewResponder(func(_ context.Context, q Question) {
		mu.Lock()
		asked = append(asked, q)
		mu.Unlock()
		go func() { _ = r.Respond(q.ID, answer) }()
	})
	return r, &asked
}

func TestResponder_Ask(t *testing.T) {
	r, asked := autoResponder("yes")

	resp, err := r.Ask(context.Background(), "User_proxy", "Continue?", []string{"yes", "no"})
	require.NoError(t, err)
	assert.Equal(t, "yes", resp)

	require.Len(t, *asked, 1)
	assert.Equal(t, "User_proxy", (*asked)[0].Agent)
	assert.Equal(t, []string{"yes", "no"}, (*asked)[0].Options)
	assert.Empty(t, r.Pending())
}

func TestResponder_Input(t *testing.T) {
	r, asked := autoResponder("exit")

	resp, err := r.Input("user")(context.Background(), "Provide feedback to assistant.")
	require.NoError(t, err)
	assert.Equal(t, "exit", resp)
	assert.Equal(t, "Provide feedback to assistant.", (*asked)[0].Text)
}

func TestResponder_AskUserTool(t *testing.T) {
	r, asked := autoResponder("blue")

	tr := r.Tools("Coder").Call(context.Background(), content.ToolCall{
		ID:        "tc1",
		Name:      "ask_user",
		Arguments: `{"question":"Pick a color","options":["red","blue"]}`,
	})

	assert.False(t, tr.IsError, tr.Content)
	assert.Equal(t, "blue", tr.Content)
	assert.Equal(t, "Coder", (*asked)[0].Agent)
}

func TestResponder_ToolErrors(t *testing.T) {
	r := NewResponder(nil)
	tb := r.Tools("Coder")

	tr := tb.Call(context.Background(), content.ToolCall{ID: "1", Name: "ask_user", Arguments: `not json`})
	assert.True(t, tr.IsError)
	assert.Contains(t, tr.Content, "not valid JSON")

	tr = tb.Call(context.Background(), content.ToolCall{ID: "2", Name: "ask_user", Arguments: `{"question":""}`})
	assert.True(t, tr.IsError)
	assert.Contains(t, tr.Content, "question is required")
}

func TestResponder_PendingAndRespond(t *testing.T) {
	r := NewResponder(nil)
	done := make(chan string, 2)

	for _, text := range []string{"first?", "second?"} {
		go func() {
			resp, _ := r.Ask(context.Background(), "user", text, nil)
			done <- resp
		}()
		require.Eventually(t, func() bool {
			for _, q := range r.Pending() {
				if q.Text == text {
					return true
				}
			}
			return false
		}, timeout, tick)
	}

	pending := r.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "first?", pending[0].Text)
	assert.Equal(t, "second?", pending[1].Text)

	require.NoError(t, r.Respond(pending[0].ID, "a"))
	assert.Equal(t, "a", <-done)
	require.NoError(t, r.Respond(pending[1].ID, "b"))
	assert.Equal(t, "b", <-done)

	err := r.Respond(pending[0].ID, "again")
	require.ErrorIs(t, err, ErrUnknownQuestion)
}

func TestResponder_ContextCancelled(t *testing.T) {
	r := NewResponder(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Ask(ctx, "user", "hello?", nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, r.Pending())
}

func TestResponder_EmptyQuestion(t *testing.T) {
	_, err := NewResponder(nil).Ask(context.Background(), "user", "", nil)
	require.ErrorIs(t, err, ErrQuestionRequired)
}
