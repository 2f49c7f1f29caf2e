package command

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	exitCode int
	captured []byte
	err      error

	gotSpec Spec
}

func (f *fakeExecutor) Execute(_ context.Context, spec Spec) (int, []byte, error) {
	f.gotSpec = spec
	if spec.Stdout != nil && len(f.captured) == 0 {
		_, _ = spec.Stdout.Write([]byte("streamed"))
	}
	return f.exitCode, f.captured, f.err
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestRunSuccess(t *testing.T) {
	executor := &fakeExecutor{captured: []byte("3 files transferred\n")}
	runner := NewWithExecutor(testLogger(), executor)

	result, err := runner.Run(context.Background(), Spec{
		Name: "aws",
		Args: []string{"s3", "sync", "/var/www", "s3://backup/host/media/www"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"aws", "s3", "sync", "/var/www", "s3://backup/host/media/www"}, result.Argv)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "3 files transferred\n", result.Output)
}

func TestRunNonZeroExit(t *testing.T) {
	executor := &fakeExecutor{exitCode: 2, captured: []byte("fatal: access denied\n")}
	runner := NewWithExecutor(testLogger(), executor)

	result, err := runner.Run(context.Background(), Spec{Name: "pg_dump", Args: []string{"--dbname", "app"}})
	require.Error(t, err)

	var cmdErr *Error
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 2, cmdErr.ExitCode)
	assert.Contains(t, cmdErr.StderrTail, "access denied")
	assert.Equal(t, []string{"pg_dump", "--dbname", "app"}, cmdErr.Argv)

	// The result is still returned so callers can record the failed step.
	require.NotNil(t, result)
	assert.Equal(t, 2, result.ExitCode)
}

func TestRunStartFailure(t *testing.T) {
	executor := &fakeExecutor{exitCode: -1, err: errors.New("executable not found")}
	runner := NewWithExecutor(testLogger(), executor)

	_, err := runner.Run(context.Background(), Spec{Name: "mysqldump"})
	require.Error(t, err)

	var cmdErr *Error
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, -1, cmdErr.ExitCode)
}

func TestRunPassesEnvAndStreams(t *testing.T) {
	executor := &fakeExecutor{}
	runner := NewWithExecutor(testLogger(), executor)

	var out captureWriter
	_, err := runner.Run(context.Background(), Spec{
		Name:   "pg_dump",
		Env:    []string{"PGPASSWORD=secret"},
		Stdout: &out,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"PGPASSWORD=secret"}, executor.gotSpec.Env)
	assert.Equal(t, "streamed", string(out))
}

func TestTruncateLongOutput(t *testing.T) {
	executor := &fakeExecutor{captured: make([]byte, maxCapturedOutput*2)}
	runner := NewWithExecutor(testLogger(), executor)

	result, err := runner.Run(context.Background(), Spec{Name: "aws"})
	require.NoError(t, err)
	assert.Contains(t, result.Output, "(truncated)")
	assert.Less(t, len(result.Output), maxCapturedOutput*2)
}

type captureWriter []byte

func (w *captureWriter) Write(p []byte) (int, error) {
	*w = append(*w, p...)
	return len(p), nil
}
