package runner

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/appbuilder/internal/foundation/errors"
)

func TestExec_StreamsToConsoleAndLog(t *testing.T) {
	var console bytes.Buffer
	e := &Exec{Console: &console, KillDelay: time.Second}
	logPath := filepath.Join(t.TempDir(), "nested", "build.log")

	res, err := e.Run(context.Background(), Command{
		Name:    "sh",
		Args:    []string{"-c", "echo out; echo err >&2; echo \"$APPBUILDER_TEST_VALUE\""},
		Env:     []string{"APPBUILDER_TEST_VALUE=passed"},
		LogPath: logPath,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, []string{"out", "err", "passed"}, res.Tail)
	assert.Contains(t, console.String(), "passed")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "out\nerr\npassed\n", string(data))
}

func TestExec_CapturesOutputWithoutLog(t *testing.T) {
	e := &Exec{KillDelay: time.Second}
	res, err := e.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "printf 'a\\nb'"}, Quiet: true})
	require.NoError(t, err)
	assert.Equal(t, "a\nb", res.Output)
	assert.Equal(t, []string{"a", "b"}, res.Tail)
}

func TestExec_NonZeroExit(t *testing.T) {
	e := &Exec{Console: &bytes.Buffer{}, KillDelay: time.Second}
	res, err := e.Run(context.Background(), Command{
		Name:      "sh",
		Args:      []string{"-c", "for i in 1 2 3 4 5; do echo line$i; done; exit 3"},
		TailLines: 2,
	})
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, stderrors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.ExitCode)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, []string{"line4", "line5"}, exitErr.Tail)
	assert.Contains(t, err.Error(), "exited with code 3")
}

func TestExec_MissingBinary(t *testing.T) {
	e := &Exec{KillDelay: time.Second}
	_, err := e.Run(context.Background(), Command{Name: filepath.Join(t.TempDir(), "nope")})
	require.Error(t, err)
	var exitErr *ExitError
	assert.False(t, stderrors.As(err, &exitErr))
}

func TestExec_CancelKillsProcessGroup(t *testing.T) {
	e := &Exec{Console: &bytes.Buffer{}, KillDelay: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	// The child sleep keeps the pipe open unless the whole group is killed.
	_, err := e.Run(ctx, Command{Name: "sh", Args: []string{"-c", "sleep 30 & sleep 30; wait"}})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryCanceled))
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestTail(t *testing.T) {
	tail := NewTail(3)
	_, _ = tail.Write([]byte("one\ntwo\r\nthr"))
	_, _ = tail.Write([]byte("ee\nfour\nfi"))

	assert.Equal(t, []string{"four", "fi"}, tail.Lines()[1:])
	assert.Equal(t, []string{"three", "four", "fi"}, tail.Lines())
	assert.Equal(t, "three\nfour\nfi", tail.String())
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "editor -batchmode -quit", Command{Name: "editor", Args: []string{"-batchmode", "-quit"}}.String())
}
