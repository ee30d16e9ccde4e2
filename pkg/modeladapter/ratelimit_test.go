package modeladapter_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/germanamz/huddle/pkg/chats/chat"
	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/modeladapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitedCompleter_PassthroughOnSuccess(t *testing.T) {
	fc := &fakeCompleter{
		maxTokens: 4096,
		handler: func(_ context.Context, _ *chat.Chat) (message.Message, error) {
			return okMessage("hi"), nil
		},
	}

	rl := modeladapter.NewRateLimitedCompleter(fc, modeladapter.RateLimitOpts{})
	msg, err := rl.Complete(context.Background(), chat.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", msg.TextContent())
	assert.Equal(t, 4096, rl.ModelMaxTokens())
	assert.Same(t, &fc.tracker, rl.UsageTracker())
}

func TestRateLimitedCompleter_RetriesOn429(t *testing.T) {
	attempts := 0
	fc := &fakeCompleter{
		handler: func(_ context.Context, _ *chat.Chat) (message.Message, error) {
			attempts++
			if attempts < 3 {
				return message.Message{}, &modeladapter.RateLimitError{RetryAfter: 5 * time.Second}
			}
			return okMessage("finally"), nil
		},
	}

	var sleeps []time.Duration
	rl := modeladapter.NewRateLimitedCompleter(fc, modeladapter.RateLimitOpts{BaseDelay: time.Second})
	rl.SetSleepFunc(func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	})
	rl.SetRandFunc(func() float64 { return 0.5 }) // factor 1.0

	msg, err := rl.Complete(context.Background(), chat.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, "finally", msg.TextContent())
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, sleeps)
}

func TestRateLimitedCompleter_ExponentialBackoff(t *testing.T) {
	fc := &fakeCompleter{
		handler: func(_ context.Context, _ *chat.Chat) (message.Message, error) {
			return message.Message{}, &modeladapter.RateLimitError{}
		},
	}

	var sleeps []time.Duration
	rl := modeladapter.NewRateLimitedCompleter(fc, modeladapter.RateLimitOpts{MaxRetries: 3, BaseDelay: time.Second})
	rl.SetSleepFunc(func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	})
	rl.SetRandFunc(func() float64 { return 0.5 })

	_, err := rl.Complete(context.Background(), chat.New(), nil)
	var rle *modeladapter.RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, 4, fc.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, sleeps)
}

func TestRateLimitedCompleter_NonRateLimitErrorNotRetried(t *testing.T) {
	boom := errors.New("boom")
	fc := &fakeCompleter{
		handler: func(_ context.Context, _ *chat.Chat) (message.Message, error) {
			return message.Message{}, boom
		},
	}

	rl := modeladapter.NewRateLimitedCompleter(fc, modeladapter.RateLimitOpts{})
	_, err := rl.Complete(context.Background(), chat.New(), nil)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, fc.calls)
}

func TestRateLimitedCompleter_SleepCancelled(t *testing.T) {
	fc := &fakeCompleter{
		handler: func(_ context.Context, _ *chat.Chat) (message.Message, error) {
			return message.Message{}, &modeladapter.RateLimitError{}
		},
	}

	rl := modeladapter.NewRateLimitedCompleter(fc, modeladapter.RateLimitOpts{})
	rl.SetSleepFunc(func(_ context.Context, _ time.Duration) error { return context.Canceled })

	_, err := rl.Complete(context.Background(), chat.New(), nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRateLimitedCompleter_BackoffCapped(t *testing.T) {
	fc := &fakeCompleter{
		handler: func(_ context.Context, _ *chat.Chat) (message.Message, error) {
			return message.Message{}, &modeladapter.RateLimitError{RetryAfter: time.Hour}
		},
	}

	var sleeps []time.Duration
	rl := modeladapter.NewRateLimitedCompleter(fc, modeladapter.RateLimitOpts{MaxRetries: 1, MaxDelay: 30 * time.Second})
	rl.SetSleepFunc(func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	})
	rl.SetRandFunc(func() float64 { return 0.99 })

	_, err := rl.Complete(context.Background(), chat.New(), nil)
	require.Error(t, err)
	assert.Equal(t, []time.Duration{30 * time.Second}, sleeps)
}
