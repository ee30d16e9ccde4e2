package main

import (
	"context"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/germanamz/huddle/pkg/ask"
	"github.com/germanamz/huddle/pkg/engine"
	"github.com/germanamz/huddle/pkg/logging"
	"github.com/germanamz/huddle/pkg/tools/mcpserver"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the configured conversation as an MCP tool over stdio",
		Long:  "mcp exposes a start_chat tool that runs the configured conversation and returns its summary. Questions for the human get an empty answer.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			// stdout carries the protocol.
			cfg.Log.Output = slices.DeleteFunc(slices.Clone(cfg.Log.Output), func(o string) bool { return o == "stdout" })
			logger, err := logging.New(cfg.Log, cfg.DataDir)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return serveMCP(ctx, cfg, logger)
		},
	}
}

func serveMCP(ctx context.Context, cfg engine.Config, logger *zap.Logger) error {
	var eng *engine.Engine
	eng, err := engine.New(ctx, cfg, engine.Options{
		Logger: logger,
		OnAsk: func(_ context.Context, q ask.Question) {
			_ = eng.Responder().Respond(q.ID, "")
		},
	})
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	srv := mcpserver.New("huddle", Version)
	srv.Register(eng.Tools())

	logger.Info("mcp server started", zap.Strings("tools", srv.ToolNames()))

	return srv.ServeStdio(ctx)
}
