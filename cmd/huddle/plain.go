package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/huh"
	"github.com/fatih/color"
	"github.com/germanamz/huddle/cmd/huddle/internal/format"
	"github.com/germanamz/huddle/pkg/ask"
	"github.com/germanamz/huddle/pkg/engine"
	"github.com/germanamz/huddle/pkg/events"
	"go.uber.org/zap"
)

// promptFunc asks the human a question and returns the answer.
type promptFunc func(ctx context.Context, q ask.Question) (string, error)

// plainUI prints events as they arrive and answers questions through huh.
type plainUI struct {
	out      io.Writer
	renderer *format.Renderer
	prompt   promptFunc

	mu sync.Mutex
	wg sync.WaitGroup
}

func newPlainUI(out io.Writer, prompt promptFunc) *plainUI {
	return &plainUI{out: out, renderer: &format.Renderer{}, prompt: prompt}
}

// follow prints every event of sub until the bus is closed.
func (u *plainUI) follow(sub *events.Subscription) {
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		for e := range sub.C {
			u.print(e)
		}
	}()
}

func (u *plainUI) print(e events.Event) {
	text := u.renderer.Event(e)
	if text == "" {
		return
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	_, _ = fmt.Fprintln(u.out, text)
	_, _ = fmt.Fprintln(u.out)
}

// answer prompts for q and delivers the answer to r. A failed prompt counts
// as an empty answer so the agent falls back to its auto reply.
func (u *plainUI) answer(ctx context.Context, r *ask.Responder, q ask.Question) {
	u.mu.Lock()
	answer, err := u.prompt(ctx, q)
	u.mu.Unlock()
	if err != nil {
		answer = ""
	}
	_ = r.Respond(q.ID, answer)
}

// wait blocks until the printer has drained the closed subscription.
func (u *plainUI) wait() { u.wg.Wait() }

// huhPrompt asks through a huh form; accessible mode reads plain lines when
// stdin is not a terminal.
func huhPrompt(ctx context.Context, q ask.Question) (string, error) {
	var answer string

	title := fmt.Sprintf("[%s asks]", q.Agent)
	var field huh.Field
	if len(q.Options) > 0 {
		field = huh.NewSelect[string]().
			Title(title).
			Description(q.Text).
			Options(huh.NewOptions(q.Options...)...).
			Value(&answer)
	} else {
		field = huh.NewInput().
			Title(title).
			Description(q.Text).
			Placeholder("enter to skip, exit to end").
			Value(&answer)
	}

	form := huh.NewForm(huh.NewGroup(field)).WithAccessible(!isTerminal(os.Stdin))
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "exit", nil
		}
		return "", err
	}
	return answer, nil
}

func runPlain(ctx context.Context, cfg engine.Config, logger *zap.Logger, message string, out io.Writer) error {
	return runPlainWith(ctx, cfg, logger, message, out, huhPrompt)
}

func runPlainWith(ctx context.Context, cfg engine.Config, logger *zap.Logger, message string, out io.Writer, prompt promptFunc) error {
	ui := newPlainUI(out, prompt)

	var eng *engine.Engine
	eng, err := engine.New(ctx, cfg, engine.Options{
		Logger: logger,
		OnAsk: func(ctx context.Context, q ask.Question) {
			ui.answer(ctx, eng.Responder(), q)
		},
	})
	if err != nil {
		return err
	}

	ui.follow(eng.Events().Subscribe(1024))

	res, runErr := eng.Run(ctx, message)

	closeErr := eng.Close()
	ui.wait()

	if runErr != nil {
		return runErr
	}
	_, _ = color.New(color.Faint).Fprintf(out, "usage: %s\n", res.Usage)
	return closeErr
}
