package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/germanamz/huddle/pkg/chats/message"
	"go.uber.org/zap"
)

// ReplyFunc produces a reply for the peer named to.
type ReplyFunc func(ctx context.Context, to string) (message.Message, bool, error)

// Middleware wraps a ReplyFunc with added behaviour.
type Middleware func(next ReplyFunc) ReplyFunc

// Chain applies mws around base so that the first middleware is outermost.
func Chain(base ReplyFunc, mws ...Middleware) ReplyFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		base = mws[i](base)
	}
	return base
}

// Timeout bounds each reply with a deadline.
func Timeout(d time.Duration) Middleware {
	return func(next ReplyFunc) ReplyFunc {
		return func(ctx context.Context, to string) (message.Message, bool, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			return next(ctx, to)
		}
	}
}

// Recovery converts panics in the reply pipeline into errors.
func Recovery() Middleware {
	return func(next ReplyFunc) ReplyFunc {
		return func(ctx context.Context, to string) (msg message.Message, ok bool, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("agent: reply panicked: %v", r)
				}
			}()

			return next(ctx, to)
		}
	}
}

// Logger logs every reply with its duration.
func Logger(log *zap.Logger, name string) Middleware {
	return func(next ReplyFunc) ReplyFunc {
		return func(ctx context.Context, to string) (message.Message, bool, error) {
			start := time.Now()

			msg, ok, err := next(ctx, to)

			fields := []zap.Field{
				zap.String("agent", name),
				zap.String("to", to),
				zap.Duration("duration", time.Since(start)),
			}

			switch {
			case err != nil:
				log.Error("reply failed", append(fields, zap.Error(err))...)
			case !ok:
				log.Info("declined to reply", fields...)
			default:
				log.Info("replied", append(fields, zap.Int("chars", len(msg.TextContent())))...)
			}

			return msg, ok, err
		}
	}
}
