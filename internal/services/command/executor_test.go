package command

import (
	"context"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestDefaultExecutorCapturesOutput(t *testing.T) {
	skipOnWindows(t)

	executor := &DefaultExecutor{}
	exitCode, captured, err := executor.Execute(context.Background(), Spec{
		Name: "sh",
		Args: []string{"-c", "echo hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, exitCode)
	assert.Equal(t, "hello\n", string(captured))
}

func TestDefaultExecutorExitCode(t *testing.T) {
	skipOnWindows(t)

	executor := &DefaultExecutor{}
	exitCode, _, err := executor.Execute(context.Background(), Spec{
		Name: "sh",
		Args: []string{"-c", "echo oops >&2; exit 3"},
	})
	require.NoError(t, err, "a non-zero exit is not an execution error")
	assert.Equal(t, 3, exitCode)
}

func TestDefaultExecutorMissingBinary(t *testing.T) {
	executor := &DefaultExecutor{}
	exitCode, _, err := executor.Execute(context.Background(), Spec{
		Name: "definitely-not-a-real-binary-710",
	})
	require.Error(t, err)
	assert.Equal(t, -1, exitCode)
}

func TestDefaultExecutorPassesEnv(t *testing.T) {
	skipOnWindows(t)

	executor := &DefaultExecutor{}
	_, captured, err := executor.Execute(context.Background(), Spec{
		Name: "sh",
		Args: []string{"-c", "printf %s \"$NESTBACKUP_TEST_VAR\""},
		Env:  []string{"NESTBACKUP_TEST_VAR=from-env"},
	})
	require.NoError(t, err)
	assert.Equal(t, "from-env", string(captured))
}

func TestDefaultExecutorStreamsStdout(t *testing.T) {
	skipOnWindows(t)

	executor := &DefaultExecutor{}
	var out captureWriter
	_, captured, err := executor.Execute(context.Background(), Spec{
		Name:   "sh",
		Args:   []string{"-c", "echo out; echo err >&2"},
		Stdout: &out,
	})
	require.NoError(t, err)
	assert.Equal(t, "out\n", string(out))
	assert.Equal(t, "err\n", string(captured), "only stderr is captured when stdout streams")
}

func TestDefaultExecutorStdin(t *testing.T) {
	skipOnWindows(t)

	executor := &DefaultExecutor{}
	_, captured, err := executor.Execute(context.Background(), Spec{
		Name:  "sh",
		Args:  []string{"-c", "cat"},
		Stdin: strings.NewReader("piped in"),
	})
	require.NoError(t, err)
	assert.Equal(t, "piped in", string(captured))
}
