package preprocess

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/appbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/appbuilder/internal/runner"
)

type recordingRunner struct {
	commands []runner.Command
	err      error
}

func (r *recordingRunner) Run(_ context.Context, cmd runner.Command) (runner.Result, error) {
	r.commands = append(r.commands, cmd)
	return runner.Result{}, r.err
}

func TestCommandRunner_SubstitutesProfile(t *testing.T) {
	rec := &recordingRunner{}
	r := &CommandRunner{
		Exec:    rec,
		Command: []string{"make", "import", "PROFILE={profile}"},
		Dir:     "/proj",
		LogPath: func(profile string) (string, string) { return "/logs/pre-" + profile + ".log", "" },
	}

	require.NoError(t, r.RunPreprocessing(context.Background(), "prod"))
	require.Len(t, rec.commands, 1)
	assert.Equal(t, "make", rec.commands[0].Name)
	assert.Equal(t, []string{"import", "PROFILE=prod"}, rec.commands[0].Args)
	assert.Equal(t, "/proj", rec.commands[0].Dir)
	assert.Equal(t, "/logs/pre-prod.log", rec.commands[0].LogPath)
}

func TestToolchainRunner_BuildsEditorInvocation(t *testing.T) {
	rec := &recordingRunner{}
	r := &ToolchainRunner{
		Exec:          rec,
		Editor:        "/editors/2022.3/Editor/Unity",
		ProjectPath:   "/proj",
		ExecuteMethod: "DataImport.Run",
		LogPath:       func(profile string) (string, string) { return "/logs/out.log", "/logs/editor.log" },
	}

	require.NoError(t, r.RunPreprocessing(context.Background(), "dev"))
	require.Len(t, rec.commands, 1)
	cmd := rec.commands[0]
	assert.Equal(t, "/editors/2022.3/Editor/Unity", cmd.Name)
	assert.Equal(t, []string{
		"-batchmode", "-nographics", "-quit",
		"-projectPath", "/proj",
		"-logFile", "/logs/editor.log",
		"-executeMethod", "DataImport.Run",
		"-profile", "dev",
	}, cmd.Args)
	assert.Equal(t, "/logs/out.log", cmd.LogPath)
}

func TestToolchainRunner_RequiresEditor(t *testing.T) {
	err := (&ToolchainRunner{Exec: &recordingRunner{}, ExecuteMethod: "X"}).RunPreprocessing(context.Background(), "dev")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestRun_FailureIsPreprocessingError(t *testing.T) {
	rec := &recordingRunner{err: &runner.ExitError{Command: "make", ExitCode: 2, Tail: []string{"boom"}}}
	r := &CommandRunner{
		Exec:    rec,
		Command: []string{"make"},
		LogPath: func(string) (string, string) { return "/logs/pre.log", "" },
	}

	err := r.RunPreprocessing(context.Background(), "dev")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryPreprocessing))
	assert.Equal(t, "/logs/pre.log", errors.ContextString(err, errors.KeyLogPath))
	assert.Equal(t, "boom", errors.ContextString(err, "tail"))
	assert.Equal(t, errors.ExitPreprocessing, errors.ExitCodeForCategory(errors.GetCategory(err)))
}

func TestRun_CancelPassesThrough(t *testing.T) {
	rec := &recordingRunner{err: errors.CanceledError("process canceled").Build()}
	err := (&CommandRunner{Exec: rec, Command: []string{"x"}}).RunPreprocessing(context.Background(), "dev")
	assert.True(t, errors.HasCategory(err, errors.CategoryCanceled))
}

func TestCommandRunner_RealProcess(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "pre.log")
	r := &CommandRunner{
		Exec:    &runner.Exec{},
		Command: []string{"sh", "-c", "echo importing {profile}"},
		Dir:     dir,
		LogPath: func(string) (string, string) { return logPath, "" },
	}

	require.NoError(t, r.RunPreprocessing(context.Background(), "qa"))
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "importing qa\n", string(data))
}

func TestFunc(t *testing.T) {
	var got string
	var r Runner = Func(func(_ context.Context, profile string) error { got = profile; return nil })
	require.NoError(t, r.RunPreprocessing(context.Background(), "dev"))
	assert.Equal(t, "dev", got)
}

func TestRunnerDescriptions(t *testing.T) {
	assert.Equal(t, "command(./tools/import.sh --profile {profile})",
		(&CommandRunner{Command: []string{"./tools/import.sh", "--profile", "{profile}"}}).String())
	assert.Equal(t, "execute-method(DataImport.RunFromCommandLine)",
		(&ToolchainRunner{ExecuteMethod: "DataImport.RunFromCommandLine"}).String())
}
