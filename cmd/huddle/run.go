package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/germanamz/huddle/cmd/huddle/internal/app"
	"github.com/germanamz/huddle/cmd/huddle/internal/bridge"
	"github.com/germanamz/huddle/cmd/huddle/internal/format"
	"github.com/germanamz/huddle/pkg/engine"
	"github.com/germanamz/huddle/pkg/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

type runOptions struct {
	plain    bool
	message  string
	logLevel string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured conversation",
		Long:  "Run sends the opening message from the initiator to the recipient or the group chat manager and shows the conversation until it ends.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context(), root, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.plain, "plain", false, "print the conversation as plain text instead of the TUI")
	cmd.Flags().StringVarP(&opts.message, "message", "m", "", "opening message (default: message from the config)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "override log.level from the config")

	return cmd
}

func runChat(ctx context.Context, root *rootOptions, opts *runOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	logger, err := logging.New(cfg.Log, cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	interactive := !opts.plain && isTerminal(os.Stdin) && isTerminal(os.Stdout)
	if !interactive {
		return runPlain(ctx, cfg, logger, opts.message, out)
	}

	return runTUI(ctx, cfg, logger, opts.message, out)
}

func runTUI(ctx context.Context, cfg engine.Config, logger *zap.Logger, message string, out io.Writer) error {
	// Detect the background before bubbletea takes over the terminal.
	dark := lipgloss.HasDarkBackground()

	eng, err := engine.New(ctx, cfg, engine.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	model := app.New(ctx, eng, eng.Responder(), app.Options{Message: message, Dark: dark})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	stop := bridge.Start(ctx, p, eng.Events())
	final, err := p.Run()
	stop()
	if err != nil {
		return err
	}

	m, ok := final.(app.Model)
	if !ok || !m.Done() {
		return nil
	}
	if m.Err() != nil {
		return m.Err()
	}

	res := m.Result()
	r := format.NewRenderer(format.DefaultWidth, dark)
	_, _ = fmt.Fprintln(out, r.Markdown(res.Summary))
	_, _ = fmt.Fprintf(out, "%d turn(s): %s\n", res.Turns, res.Reason)
	_, _ = fmt.Fprintf(out, "usage: %s\n", res.Usage)

	return nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // file descriptors fit in int
}
