// Package command executes external commands and records their outcome. Every
// remote or database action in nestbackup goes through this runner, so the log
// is a complete, reproducible trail of what was executed.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/nestbackup/nestbackup/internal/models"
	"github.com/rs/zerolog"
)

// Captured output is truncated to this many bytes before it is logged or
// stored on a CommandResult.
const maxCapturedOutput = 4096

// stderrTailLen bounds the stderr excerpt carried by Error.
const stderrTailLen = 512

// Spec describes one external command invocation. Secrets must only ever be
// placed in Env: the argument vector is logged verbatim.
type Spec struct {
	Name   string
	Args   []string
	Env    []string  // KEY=value pairs appended to the process environment
	Stdout io.Writer // optional; streams stdout instead of capturing it
	Stdin  io.Reader // optional
}

func (s Spec) argv() []string {
	return append([]string{s.Name}, s.Args...)
}

// Error reports a command that exited non-zero (or could not be started).
type Error struct {
	Argv       []string
	ExitCode   int
	StderrTail string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("command %q exited with code %d", strings.Join(e.Argv, " "), e.ExitCode)
	if e.StderrTail != "" {
		msg += ": " + e.StderrTail
	}
	return msg
}

// Service defines the interface for running external commands.
type Service interface {
	Run(ctx context.Context, spec Spec) (*models.CommandResult, error)
}

// Executor allows mocking process execution in tests.
type Executor interface {
	Execute(ctx context.Context, spec Spec) (exitCode int, captured []byte, err error)
}

// DefaultExecutor is the default executor using os/exec.
type DefaultExecutor struct{}

// Execute runs the command. When spec.Stdout is set, stdout streams there and
// only stderr is captured; otherwise combined output is captured.
func (e *DefaultExecutor) Execute(ctx context.Context, spec Spec) (int, []byte, error) {
	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...) //nolint:gosec // argv comes from config, not remote input
	cmd.Env = append(os.Environ(), spec.Env...)

	var captured bytes.Buffer
	if spec.Stdout != nil {
		cmd.Stdout = spec.Stdout
		cmd.Stderr = &captured
	} else {
		cmd.Stdout = &captured
		cmd.Stderr = &captured
	}
	cmd.Stdin = spec.Stdin

	err := cmd.Run()
	if err == nil {
		return 0, captured.Bytes(), nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), captured.Bytes(), nil
	}
	// Start failure (binary missing, etc.) — there is no exit code.
	return -1, captured.Bytes(), err
}

// Impl implements the command runner Service.
type Impl struct {
	executor Executor
	logger   zerolog.Logger
}

// New creates a new command runner.
func New(logger zerolog.Logger) *Impl {
	return &Impl{executor: &DefaultExecutor{}, logger: logger}
}

// NewWithExecutor creates a command runner with a custom executor (for testing).
func NewWithExecutor(logger zerolog.Logger, executor Executor) *Impl {
	return &Impl{executor: executor, logger: logger}
}

// Run executes the command synchronously. The argument vector is logged
// before execution; exit code, duration and truncated output after. A
// non-zero exit returns the partially filled result together with an *Error,
// and the caller decides whether that aborts the job.
func (s *Impl) Run(ctx context.Context, spec Spec) (*models.CommandResult, error) {
	argv := spec.argv()
	s.logger.Info().Strs("argv", argv).Msg("run")

	start := time.Now()
	exitCode, captured, execErr := s.executor.Execute(ctx, spec)

	result := &models.CommandResult{
		Argv:     argv,
		ExitCode: exitCode,
		Output:   truncate(captured, maxCapturedOutput),
		Duration: time.Since(start),
	}

	if execErr != nil {
		s.logger.Error().Strs("argv", argv).Err(execErr).Msg("command could not be run")
		return result, &Error{Argv: argv, ExitCode: exitCode, StderrTail: execErr.Error()}
	}

	s.logger.Info().
		Int("exit_code", exitCode).
		Dur("duration", result.Duration).
		Msg("command finished")
	if result.Output != "" {
		s.logger.Debug().Str("output", result.Output).Msg("command output")
	}

	if exitCode != 0 {
		return result, &Error{
			Argv:       argv,
			ExitCode:   exitCode,
			StderrTail: tail(result.Output, stderrTailLen),
		}
	}
	return result, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "... (truncated)"
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
