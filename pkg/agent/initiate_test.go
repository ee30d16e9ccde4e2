package agent

import (
	"context"
	"testing"

	"github.com/germanamz/huddle/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitiateChat_MaxTurns(t *testing.T) {
	a := NewAssistant("a", script("ping"), Options{})
	b := NewAssistant("b", script("pong"), Options{})

	res, err := InitiateChat(context.Background(), a, b, "hello", ChatOptions{MaxTurns: 3})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Turns)
	assert.Equal(t, ReasonMaxTurns, res.Reason)
	require.Len(t, res.History, 4)
	assert.Equal(t, []string{"a", "b", "a", "b"}, []string{
		res.History[0].Sender, res.History[1].Sender, res.History[2].Sender, res.History[3].Sender,
	})
	assert.Equal(t, "pong", res.Summary)
}

func TestInitiateChat_RecordsOpeningMessage(t *testing.T) {
	a := NewAssistant("a", script("ping"), Options{SystemMessage: "sys"})
	b := NewAssistant("b", script("pong"), Options{})

	_, err := InitiateChat(context.Background(), a, b, "hello", ChatOptions{MaxTurns: 1})
	require.NoError(t, err)

	msgs := a.Chat("b").Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "hello", msgs[1].TextContent())
	assert.Equal(t, "pong", msgs[2].TextContent())
}

func TestInitiateChat_ResetsUnlessKeepHistory(t *testing.T) {
	ctx := context.Background()
	a := NewAssistant("a", script("ping"), Options{})
	b := NewAssistant("b", script("pong"), Options{})

	_, err := InitiateChat(ctx, a, b, "one", ChatOptions{MaxTurns: 1})
	require.NoError(t, err)
	_, err = InitiateChat(ctx, a, b, "two", ChatOptions{MaxTurns: 1, KeepHistory: true})
	require.NoError(t, err)
	assert.Equal(t, 5, b.Chat("a").Len()) // system + one, pong, two, pong

	_, err = InitiateChat(ctx, a, b, "three", ChatOptions{MaxTurns: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, b.Chat("a").Len())
}

func TestInitiateChat_ReflectionSummary(t *testing.T) {
	proxy := NewUserProxy("user_proxy", Options{HumanInputMode: Never})
	assistant := NewAssistant("assistant", script("done TERMINATE"), Options{})
	summarizer := script("The task was completed.")

	res, err := InitiateChat(context.Background(), proxy, assistant, "task", ChatOptions{
		SummaryMethod: SummaryReflection,
		Summarizer:    summarizer,
	})
	require.NoError(t, err)

	assert.Equal(t, "The task was completed.", res.Summary)
	require.Len(t, summarizer.seen, 1)
	assert.Equal(t, ReflectionPrompt, summarizer.seen[0][0].TextContent())
	assert.Contains(t, summarizer.seen[0][1].TextContent(), "[user_proxy] task")
}

func TestInitiateChat_PublishesMessages(t *testing.T) {
	rec := &recorder{}
	a := NewAssistant("a", script("ping"), Options{})
	b := NewAssistant("b", script("pong"), Options{})

	_, err := InitiateChat(context.Background(), a, b, "hello", ChatOptions{MaxTurns: 2, Events: rec})
	require.NoError(t, err)

	require.Len(t, rec.events, 3)
	data, ok := rec.events[1].Data.(events.MessageData)
	require.True(t, ok)
	assert.Equal(t, "b", data.From)
	assert.Equal(t, "a", data.To)
	assert.Equal(t, "pong", data.Text)
}
