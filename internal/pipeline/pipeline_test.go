package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/appbuilder/internal/buildlog"
	"git.home.luguber.info/inful/appbuilder/internal/config"
	"git.home.luguber.info/inful/appbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/appbuilder/internal/manifest"
	"git.home.luguber.info/inful/appbuilder/internal/platform"
	"git.home.luguber.info/inful/appbuilder/internal/prompt"
	"git.home.luguber.info/inful/appbuilder/internal/runner"
	"git.home.luguber.info/inful/appbuilder/internal/toolchain"
	"git.home.luguber.info/inful/appbuilder/internal/workspace"
)

const generatedPodfile = `source 'https://github.com/CocoaPods/Specs.git'
source 'https://cdn.cocoapods.org/'
platform :ios, '13.0'

target 'UnityFramework' do
  pod 'Firebase/Analytics', '10.0.0'
end
`

// fakeToolchain imitates the editor: it writes the editor log and the build output.
type fakeToolchain struct {
	mu       sync.Mutex
	commands []runner.Command
	fail     bool
	podfile  string
	symbols  bool
}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func (f *fakeToolchain) Run(_ context.Context, cmd runner.Command) (runner.Result, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()

	if editorLog := argValue(cmd.Args, "-logFile"); editorLog != "" {
		if err := os.WriteFile(editorLog, []byte("Building Player\nerror CS0246: type not found\n"), 0o600); err != nil {
			return runner.Result{}, err
		}
	}
	if f.fail {
		tail := []string{"Aborting batchmode due to failure"}
		return runner.Result{ExitCode: 1, Tail: tail}, &runner.ExitError{Command: "Unity", ExitCode: 1, Tail: tail}
	}

	out := argValue(cmd.Args, "-customBuildPath")
	if argValue(cmd.Args, "-buildTarget") == "iOS" {
		if err := os.MkdirAll(out, 0o750); err != nil {
			return runner.Result{}, err
		}
		if f.podfile != "" {
			if err := os.WriteFile(filepath.Join(out, "Podfile"), []byte(f.podfile), 0o600); err != nil {
				return runner.Result{}, err
			}
		}
		return runner.Result{}, nil
	}

	if err := os.WriteFile(out, []byte("aab"), 0o600); err != nil {
		return runner.Result{}, err
	}
	if f.symbols {
		symbols := strings.TrimSuffix(out, ".aab") + ".symbols.zip"
		if err := os.WriteFile(symbols, []byte("zip"), 0o600); err != nil {
			return runner.Result{}, err
		}
	}
	return runner.Result{}, nil
}

func newDeps(t *testing.T, r runner.Runner) Deps {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Toolchain.PassthroughEnv = []string{"ANDROID_KEYSTORE_PASS", "UNSET_VAR"}

	root := t.TempDir()
	layout := workspace.NewLayout(root, cfg.Staleness.Dir, cfg.Logging.Dir)
	require.NoError(t, layout.Create())

	session := newSession(t, newTracker(t), prompt.NonInteractivePolicy{}, &countingPreprocessor{})
	return Deps{
		Config:    cfg,
		Layout:    layout,
		Toolchain: toolchain.Installation{Path: "/opt/unity/2022.3.10f1/Editor/Unity", Version: "2022.3.10f1"},
		Runner:    r,
		Session:   session,
		Sanitizer: manifest.FromConfig(cfg.Manifest),
		Logs:      buildlog.NewNamer(layout.LogDir(), "0f8c2a1e-run", time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)),
		Getenv: func(name string) (string, bool) {
			if name == "ANDROID_KEYSTORE_PASS" {
				return "hunter2", true
			}
			return "", false
		},
	}
}

func TestPipeline_IOSSanitizesManifest(t *testing.T) {
	tc := &fakeToolchain{podfile: generatedPodfile}
	deps := newDeps(t, tc)
	var console bytes.Buffer
	deps.Console = &console

	res := New(platform.IOS, deps).Run(context.Background(), Request{Profile: "dev"})

	require.NoError(t, res.Err)
	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, []State{StateStart, StateDecide, StateSkipPreprocess, StateToolchainBuild,
		StateManifestSanitize, StatePublish, StateDone}, res.States)
	require.NotNil(t, res.Sanitize)
	assert.Equal(t, 1, res.Sanitize.RemovedDuplicateSources)
	require.NotNil(t, res.Artifact)
	assert.Equal(t, deps.Layout.Resolve("build/ios/xcode"), res.Artifact.Path)
	assert.Empty(t, res.Artifact.SymbolsPath)

	data, err := os.ReadFile(filepath.Join(res.Artifact.Path, "Podfile"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "source '"))

	assert.Contains(t, console.String(), "[ios] Building Player")
	assert.True(t, strings.HasPrefix(filepath.Base(res.LogPath), "ios-dev-20260314-093000"))
}

func TestPipeline_BuildCommandLine(t *testing.T) {
	tc := &fakeToolchain{symbols: true}
	deps := newDeps(t, tc)

	res := New(platform.Android, deps).Run(context.Background(), Request{Profile: "prod"})
	require.NoError(t, res.Err)
	require.Len(t, tc.commands, 1)

	cmd := tc.commands[0]
	assert.Equal(t, deps.Toolchain.Path, cmd.Name)
	assert.Equal(t, deps.Layout.Root(), cmd.Dir)
	assert.Equal(t, res.LogPath, cmd.LogPath)
	assert.Equal(t, []string{"-batchmode", "-nographics", "-quit"}, cmd.Args[:3])
	assert.Equal(t, "Android", argValue(cmd.Args, "-buildTarget"))
	assert.Equal(t, "prod", argValue(cmd.Args, "-profile"))
	assert.Equal(t, res.EditorLogPath, argValue(cmd.Args, "-logFile"))
	assert.Contains(t, cmd.Args, "-buildAppBundle")
	assert.Equal(t, []string{"ANDROID_KEYSTORE_PASS=hunter2"}, cmd.Env)
}

func TestPipeline_AndroidPublishesSymbols(t *testing.T) {
	deps := newDeps(t, &fakeToolchain{symbols: true})

	res := New(platform.Android, deps).Run(context.Background(), Request{Profile: "dev"})

	require.NoError(t, res.Err)
	require.NotNil(t, res.Artifact)
	assert.Equal(t, deps.Layout.Resolve("build/android/App.aab"), res.Artifact.Path)
	assert.Equal(t, deps.Layout.Resolve("build/android/App.symbols.zip"), res.Artifact.SymbolsPath)
	assert.Nil(t, res.Sanitize)
	assert.NotContains(t, res.States, StateManifestSanitize)
}

func TestPipeline_BuildFailure(t *testing.T) {
	deps := newDeps(t, &fakeToolchain{fail: true})

	res := New(platform.Android, deps).Run(context.Background(), Request{Profile: "dev"})

	require.Error(t, res.Err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, errors.HasCategory(res.Err, errors.CategoryBuild))
	assert.Equal(t, errors.ExitBuild, errors.ExitCodeForCategory(errors.GetCategory(res.Err)))
	assert.Equal(t, res.LogPath, errors.ContextString(res.Err, errors.KeyLogPath))
	assert.Contains(t, errors.ContextString(res.Err, "error_lines"), "error CS0246")
	assert.Contains(t, errors.ContextString(res.Err, "tail"), "Aborting batchmode")
	assert.Equal(t, StateFailed, res.States[len(res.States)-1])
	assert.Nil(t, res.Artifact)
}

func TestPipeline_MissingOutputIsBuildError(t *testing.T) {
	deps := newDeps(t, runnerFunc(func(context.Context, runner.Command) (runner.Result, error) {
		return runner.Result{}, nil
	}))

	res := New(platform.Android, deps).Run(context.Background(), Request{Profile: "dev"})
	require.Error(t, res.Err)
	assert.True(t, errors.HasCategory(res.Err, errors.CategoryBuild))
}

func TestPipeline_MissingManifest(t *testing.T) {
	t.Run("warning by default", func(t *testing.T) {
		deps := newDeps(t, &fakeToolchain{})
		res := New(platform.IOS, deps).Run(context.Background(), Request{Profile: "dev"})

		require.NoError(t, res.Err)
		assert.Equal(t, StatusWarning, res.Status)
		require.Len(t, res.Warnings, 1)
		assert.True(t, errors.HasCategory(res.Warnings[0], errors.CategorySanitize))
		require.NotNil(t, res.Artifact)
	})

	t.Run("failure when strict", func(t *testing.T) {
		deps := newDeps(t, &fakeToolchain{})
		res := New(platform.IOS, deps).Run(context.Background(), Request{Profile: "dev", StrictManifest: true})

		require.Error(t, res.Err)
		assert.Equal(t, StatusFailed, res.Status)
		assert.Equal(t, errors.ExitSanitize, errors.ExitCodeForCategory(errors.GetCategory(res.Err)))
	})
}

func TestPipeline_RunAfterBuildWithoutDeviceWarns(t *testing.T) {
	deps := newDeps(t, &fakeToolchain{})

	res := New(platform.Android, deps).Run(context.Background(), Request{Profile: "dev", RunAfterBuild: true})

	require.NoError(t, res.Err)
	assert.Equal(t, StatusWarning, res.Status)
	assert.Contains(t, res.States, StateRunAfterBuild)
	require.Len(t, res.Warnings, 1)
	assert.True(t, errors.HasCategory(res.Warnings[0], errors.CategoryDevice))
}

func TestPipeline_RunAfterBuildIgnoredForIOS(t *testing.T) {
	deps := newDeps(t, &fakeToolchain{podfile: generatedPodfile})

	res := New(platform.IOS, deps).Run(context.Background(), Request{Profile: "dev", RunAfterBuild: true})

	require.NoError(t, res.Err)
	assert.NotContains(t, res.States, StateRunAfterBuild)
}

func TestPipeline_CanceledBeforeBuild(t *testing.T) {
	tc := &fakeToolchain{}
	deps := newDeps(t, tc)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := New(platform.Android, deps).Run(ctx, Request{Profile: "dev"})

	assert.Equal(t, StatusCanceled, res.Status)
	assert.Empty(t, tc.commands)
}

func TestPipeline_PreprocessingFailureStopsPlatform(t *testing.T) {
	tc := &fakeToolchain{}
	deps := newDeps(t, tc)
	deps.Session = newSession(t, newTracker(t), prompt.NonInteractivePolicy{},
		&countingPreprocessor{err: errors.PreprocessingError("import failed").Build()})

	res := New(platform.Android, deps).Run(context.Background(), Request{Profile: "dev", ForcePreprocessing: true})

	require.Error(t, res.Err)
	assert.Equal(t, DecisionFailed, res.Preprocessing)
	assert.Equal(t, []State{StateStart, StateDecide, StateFailed}, res.States)
	assert.Empty(t, tc.commands)
}

func TestState_CanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateStart, StateDecide, true},
		{StateDecide, StatePreprocess, true},
		{StateDecide, StateToolchainBuild, false},
		{StateToolchainBuild, StatePublish, true},
		{StatePublish, StateDone, true},
		{StateManifestSanitize, StateFailed, true},
		{StateDone, StateFailed, false},
		{StateFailed, StateStart, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

type runnerFunc func(context.Context, runner.Command) (runner.Result, error)

func (f runnerFunc) Run(ctx context.Context, cmd runner.Command) (runner.Result, error) {
	return f(ctx, cmd)
}
