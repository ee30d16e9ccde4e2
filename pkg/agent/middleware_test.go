package agent

import (
	"context"
	"testing"
	"time"

	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/chats/role"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next ReplyFunc) ReplyFunc {
			return func(ctx context.Context, to string) (message.Message, bool, error) {
				order = append(order, name)
				return next(ctx, to)
			}
		}
	}

	base := func(context.Context, string) (message.Message, bool, error) {
		order = append(order, "base")
		return message.Message{}, true, nil
	}

	_, _, err := Chain(base, mark("outer"), mark("inner"))(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "base"}, order)
}

func TestRecovery(t *testing.T) {
	base := func(context.Context, string) (message.Message, bool, error) {
		panic("boom")
	}

	_, _, err := Chain(base, Recovery())(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestTimeout(t *testing.T) {
	base := func(ctx context.Context, _ string) (message.Message, bool, error) {
		<-ctx.Done()
		return message.Message{}, false, ctx.Err()
	}

	_, _, err := Chain(base, Timeout(10*time.Millisecond))(context.Background(), "x")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := func(context.Context, string) (message.Message, bool, error) {
		return message.NewText("a", role.Assistant, "hello"), true, nil
	}

	_, _, err := Chain(base, Logger(zap.New(core), "a"))(context.Background(), "b")
	require.NoError(t, err)

	entries := logs.FilterMessage("replied").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].ContextMap()["to"])
}

func TestConversable_UsesMiddleware(t *testing.T) {
	calls := 0
	count := func(next ReplyFunc) ReplyFunc {
		return func(ctx context.Context, to string) (message.Message, bool, error) {
			calls++
			return next(ctx, to)
		}
	}

	a := NewAssistant("a", script("hi"), Options{Middleware: []Middleware{count}})
	_, _, err := a.Reply(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
