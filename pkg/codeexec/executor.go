package codeexec

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // used for stable file names, not security
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	osexec "os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultImage is the container image used when UseDocker is set.
const DefaultImage = "python:3-slim"

// DefaultTimeout bounds a single block.
const DefaultTimeout = time.Minute

// ExitTimeout is reported when a block exceeds its timeout.
const ExitTimeout = 124

// ErrOutsideWorkDir is returned when a block's filename hint escapes the work dir.
var ErrOutsideWorkDir = errors.New("codeexec: filename escapes work dir")

// Config configures an Executor.
type Config struct {
	WorkDir       string        `yaml:"work_dir"`
	LastNMessages int           `yaml:"last_n_messages"`
	UseDocker     bool          `yaml:"use_docker"`
	Image         string        `yaml:"image"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Result is the outcome of running a list of blocks.
type Result struct {
	ExitCode int
	Output   string
}

// String renders the result the way it is reported back to the model.
func (r Result) String() string {
	status := "execution succeeded"
	if r.ExitCode != 0 {
		status = "execution failed"
	}
	return fmt.Sprintf("exitcode: %d (%s)\nCode output: %s", r.ExitCode, status, r.Output)
}

// Executor runs code blocks in a work dir.
type Executor struct {
	cfg Config

	// command builds the process for a script; replaced in tests.
	command func(ctx context.Context, name string, args ...string) *osexec.Cmd
}

// New creates an Executor, filling defaults.
func New(cfg Config) *Executor {
	if cfg.WorkDir == "" {
		cfg.WorkDir = "extensions"
	}
	if cfg.LastNMessages <= 0 {
		cfg.LastNMessages = 1
	}
	if cfg.Image == "" {
		cfg.Image = DefaultImage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Executor{cfg: cfg, command: osexec.CommandContext}
}

// Config returns the effective configuration.
func (e *Executor) Config() Config { return e.cfg }

func interpreter(lang string) (bin, ext string, ok bool) {
	switch lang {
	case "python", "py", "python3":
		return "python3", "py", true
	case "sh", "bash", "shell", "console":
		return "sh", "sh", true
	}
	return "", "", false
}

// Run executes blocks in order and stops at the first failure. The combined
// output of every executed block is returned.
func (e *Executor) Run(ctx context.Context, blocks []Block) (Result, error) {
	if err := os.MkdirAll(e.cfg.WorkDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("codeexec: create work dir: %w", err)
	}

	var out strings.Builder
	for _, b := range blocks {
		bin, ext, ok := interpreter(b.Lang)
		if !ok {
			out.WriteString("unknown language " + b.Lang)
			return Result{ExitCode: 1, Output: out.String()}, nil
		}

		file, err := e.writeFile(b, ext)
		if err != nil {
			return Result{}, err
		}

		code, output, err := e.exec(ctx, bin, file)
		if err != nil {
			return Result{}, err
		}

		out.WriteString(output)
		if code != 0 {
			return Result{ExitCode: code, Output: out.String()}, nil
		}
	}

	return Result{Output: out.String()}, nil
}

func (e *Executor) writeFile(b Block, ext string) (string, error) {
	name := filenameHint(b.Code)
	if name == "" {
		sum := md5.Sum([]byte(b.Code)) //nolint:gosec // see import
		name = "tmp_code_" + hex.EncodeToString(sum[:]) + "." + ext
	}

	path := filepath.Join(e.cfg.WorkDir, name)
	rel, err := filepath.Rel(e.cfg.WorkDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %s", ErrOutsideWorkDir, name)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("codeexec: create dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(b.Code), 0o600); err != nil {
		return "", fmt.Errorf("codeexec: write %s: %w", name, err)
	}

	return rel, nil
}

// exec runs one script (path relative to the work dir) and returns its exit
// code and combined output. Only failures to start the process are errors.
func (e *Executor) exec(ctx context.Context, bin, file string) (int, string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	var cmd *osexec.Cmd
	if e.cfg.UseDocker {
		abs, err := filepath.Abs(e.cfg.WorkDir)
		if err != nil {
			return 0, "", fmt.Errorf("codeexec: resolve work dir: %w", err)
		}
		cmd = e.command(ctx, "docker", "run", "--rm",
			"-v", abs+":/workspace", "-w", "/workspace",
			e.cfg.Image, bin, filepath.ToSlash(file))
	} else {
		cmd = e.command(ctx, bin, file)
		cmd.Dir = e.cfg.WorkDir
	}

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	cmd.WaitDelay = time.Second

	err := cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ExitTimeout, buf.String() + "\nTimeout", nil
	}

	var exitErr *osexec.ExitError
	switch {
	case err == nil:
		return 0, buf.String(), nil
	case errors.As(err, &exitErr):
		return exitErr.ExitCode(), buf.String(), nil
	default:
		return 0, "", fmt.Errorf("codeexec: start %s: %w", bin, err)
	}
}
