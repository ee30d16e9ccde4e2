package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/germanamz/huddle/pkg/engine"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is reported by the MCP server and --version.
const Version = "0.1.0"

// DefaultConfig is the config file looked up in the working directory.
const DefaultConfig = "huddle.yaml"

// rootOptions holds the persistent flags.
type rootOptions struct {
	configPath string
	envFile    string
	dataDir    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "huddle",
		Short:         "Multi-agent conversations with memory",
		Long:          "huddle runs conversations between a user proxy and LLM agents, in pairs or group chats, with optional memory-augmented agents.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return loadDotEnv(opts.envFile)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", DefaultConfig, "path to configuration file")
	root.PersistentFlags().StringVar(&opts.envFile, "env", ".env", "path to .env file (ignored if missing)")
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "override data_dir from the config")

	root.AddCommand(
		newRunCmd(opts),
		newInitCmd(),
		newMCPCmd(opts),
		newMemoryCmd(opts),
	)

	return root
}

// loadConfig reads and validates the config, applying flag overrides.
func (o *rootOptions) loadConfig() (engine.Config, error) {
	cfg, err := engine.LoadConfig(o.configPath)
	if err != nil {
		return engine.Config{}, err
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(filepath.Dir(o.configPath), engine.DefaultDataDir)
	}
	if err := cfg.Validate(); err != nil {
		return engine.Config{}, err
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
