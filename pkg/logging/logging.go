// Package logging builds the zap logger shared by the engine and agents.
// Logs go to a file by default so the terminal belongs to the TUI.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultFile is the log file name inside the data directory.
const DefaultFile = "huddle.log"

// Config selects level, format and destinations.
type Config struct {
	Level  string   `yaml:"level"`  // debug, info, warn or error (default info).
	Format string   `yaml:"format"` // json or console (default json).
	Output []string `yaml:"output"` // Paths, "stdout" or "stderr"; empty selects File.
	File   string   `yaml:"file"`   // Default <data_dir>/huddle.log.
}

// ParseLevel maps a level name to a zapcore.Level.
func ParseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return lvl, fmt.Errorf("logging: level %q: %w", s, err)
	}
	return lvl, nil
}

// New builds a logger from cfg. dataDir anchors the default log file.
func New(cfg Config, dataDir string) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var enc zapcore.EncoderConfig
	switch cfg.Format {
	case "console":
		enc = zap.NewDevelopmentEncoderConfig()
	case "", "json":
		cfg.Format = "json"
		enc = zap.NewProductionEncoderConfig()
		enc.TimeKey = "timestamp"
		enc.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("logging: unknown format %q", cfg.Format)
	}

	outputs := cfg.Output
	if len(outputs) == 0 {
		file := cfg.File
		if file == "" {
			file = filepath.Join(dataDir, DefaultFile)
		}
		if err := os.MkdirAll(filepath.Dir(file), 0o750); err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
		outputs = []string{file}
	}

	zc := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         cfg.Format,
		EncoderConfig:    enc,
		OutputPaths:      outputs,
		ErrorOutputPaths: outputs,
	}

	logger, err := zc.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("logging: build: %w", err)
	}

	return logger, nil
}
