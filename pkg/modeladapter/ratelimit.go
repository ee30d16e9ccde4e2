package modeladapter

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/germanamz/huddle/pkg/chats/chat"
	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/tools/toolbox"
	"golang.org/x/time/rate"
)

// Retry defaults for backends that answer 429.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultMaxDelay   = time.Minute
)

var _ Completer = (*RateLimitedCompleter)(nil)

// RateLimitOpts configures a RateLimitedCompleter.
type RateLimitOpts struct {
	RPM        int           // Requests per minute; 0 disables throttling.
	MaxRetries int           // Retries after a 429; 0 selects DefaultMaxRetries.
	BaseDelay  time.Duration // First backoff; doubled on each retry.
	MaxDelay   time.Duration // Upper bound of a single backoff.
}

// RateLimitedCompleter spaces requests to stay under an RPM budget and
// retries 429 responses with exponential backoff. Other errors pass through
// so a Fallback can move on to the next backend.
type RateLimitedCompleter struct {
	wrapped

	opts    RateLimitOpts
	limiter *rate.Limiter

	sleep  func(ctx context.Context, d time.Duration) error
	random func() float64
}

// NewRateLimitedCompleter wraps inner.
func NewRateLimitedCompleter(inner Completer, opts RateLimitOpts) *RateLimitedCompleter {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}

	r := &RateLimitedCompleter{
		wrapped: wrapped{inner: inner},
		opts:    opts,
		sleep:   sleepCtx,
		random:  rand.Float64,
	}
	if opts.RPM > 0 {
		r.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RPM)), 1)
	}

	return r
}

// SetSleepFunc replaces the backoff sleep; tests use it to record delays.
func (r *RateLimitedCompleter) SetSleepFunc(fn func(ctx context.Context, d time.Duration) error) {
	r.sleep = fn
}

// SetRandFunc replaces the jitter source, which returns values in [0,1).
func (r *RateLimitedCompleter) SetRandFunc(fn func() float64) { r.random = fn }

// Complete implements Completer.
func (r *RateLimitedCompleter) Complete(ctx context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	for attempt := 0; ; attempt++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return message.Message{}, err
			}
		}

		msg, err := r.inner.Complete(ctx, c, tools)
		if err == nil {
			return msg, nil
		}

		var rle *RateLimitError
		if !errors.As(err, &rle) || attempt >= r.opts.MaxRetries {
			return message.Message{}, err
		}

		if err := r.sleep(ctx, r.backoff(attempt, rle.RetryAfter)); err != nil {
			return message.Message{}, err
		}
	}
}

// backoff is BaseDelay doubled per attempt, raised to the server's
// Retry-After, jittered by ±25% and capped at MaxDelay.
func (r *RateLimitedCompleter) backoff(attempt int, retryAfter time.Duration) time.Duration {
	d := max(r.opts.BaseDelay<<attempt, retryAfter)
	d = time.Duration(float64(d) * (0.75 + r.random()*0.5)) //nolint:mnd // ±25%
	return min(d, r.opts.MaxDelay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
