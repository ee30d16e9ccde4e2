package engine

import (
	"context"

	"github.com/germanamz/huddle/pkg/transcript"
	"go.uber.org/zap"
)

// observerBuffer is the event buffer of each bus observer.
const observerBuffer = 1024

// startObservers subscribes metrics and the configured transcript outputs
// to the bus. Subscribers stop when Close closes the bus; servers stop when
// it cancels their context.
func (e *Engine) startObservers() error {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	sub := e.bus.Subscribe(observerBuffer)
	e.goObserve(func() { e.metrics.Run(context.Background(), sub) })

	if e.cfg.MetricsAddr != "" {
		addr := e.cfg.MetricsAddr
		e.goObserve(func() {
			if err := e.metrics.Serve(ctx, addr); err != nil {
				e.logger.Error("metrics server stopped", zap.Error(err))
			}
		})
	}

	if path := e.cfg.Transcript.Path; path != "" {
		w, err := transcript.OpenFile(path)
		if err != nil {
			return err
		}
		e.closers = append(e.closers, w)

		tsub := e.bus.Subscribe(observerBuffer)
		e.goObserve(func() {
			if err := w.Follow(context.Background(), tsub); err != nil {
				e.logger.Error("transcript writer stopped", zap.Error(err))
			}
		})
	}

	if addr := e.cfg.Transcript.Addr; addr != "" {
		srv := transcript.NewServer(e.bus, e.logger)
		e.goObserve(func() {
			if err := srv.ListenAndServe(ctx, addr); err != nil {
				e.logger.Error("transcript server stopped", zap.Error(err))
			}
		})
	}

	return nil
}

func (e *Engine) goObserve(fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
}
