// Package localexec runs a local text-recognition command from an allowlist.
package localexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/fentz26/classmate/internal/connectors"
)

// ImagePlaceholder is replaced by the image path in configured arguments.
const ImagePlaceholder = "{image}"

// allowedCommands defines the strict allowlist of recognizer binaries.
// cat serves text files that were recognized elsewhere.
var allowedCommands = map[string]bool{
	"tesseract": true,
	"cat":       true,
}

// ErrNotAllowed is returned for commands outside the allowlist.
var ErrNotAllowed = errors.New("command not allowed")

// Config selects the recognizer command.
type Config struct {
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args"`
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig runs tesseract and reads its output from stdout.
func DefaultConfig() Config {
	return Config{
		Command: "tesseract",
		Args:    []string{ImagePlaceholder, "stdout"},
		Timeout: 60 * time.Second,
	}
}

// LocalExec implements connectors.Recognizer with a local command.
type LocalExec struct {
	config Config
}

// New creates a new LocalExec recognizer.
func New(cfg Config) *LocalExec {
	if cfg.Command == "" {
		cfg = DefaultConfig()
	}
	if len(cfg.Args) == 0 {
		cfg.Args = []string{ImagePlaceholder}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &LocalExec{config: cfg}
}

// Name returns the recognizer identifier.
func (l *LocalExec) Name() string {
	return "localexec:" + l.config.Command
}

// IsAllowed checks the command against the allowlist and refuses arguments
// that would be read as options.
func (l *LocalExec) IsAllowed(cmd string, args []string) bool {
	if !allowedCommands[filepath.Base(cmd)] || filepath.Base(cmd) != cmd {
		return false
	}
	for _, a := range args {
		if a == "" {
			return false
		}
	}
	return true
}

// Recognize runs the configured command on the image and returns stdout.
func (l *LocalExec) Recognize(ctx context.Context, path string) (string, error) {
	if path == "" || strings.HasPrefix(path, "-") {
		return "", fmt.Errorf("invalid image path %q", path)
	}
	ctx, cancel := context.WithTimeout(ctx, l.config.Timeout)
	defer cancel()

	res, err := l.Execute(ctx, l.config.Command, expandArgs(l.config.Args, path))
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("%s exited with %d: %s", res.Command, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return res.Stdout, nil
}

// Execute runs a command if it's in the allowlist.
func (l *LocalExec) Execute(ctx context.Context, cmd string, args []string) (*connectors.ExecResult, error) {
	if !l.IsAllowed(cmd, args) {
		return nil, fmt.Errorf("%w: %s %s", ErrNotAllowed, cmd, strings.Join(args, " "))
	}

	execCmd := exec.CommandContext(ctx, cmd, args...)

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	err := execCmd.Run()

	exitCode := 0
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			exitCode = exitError.ExitCode()
		} else {
			return nil, fmt.Errorf("exec error: %w", err)
		}
	}

	return &connectors.ExecResult{
		Command:  cmd,
		Args:     args,
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

func expandArgs(args []string, path string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = strings.ReplaceAll(a, ImagePlaceholder, path)
	}
	return out
}

var _ connectors.Recognizer = (*LocalExec)(nil)
