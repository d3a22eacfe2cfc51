package device

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"git.home.luguber.info/inful/appbuilder/internal/config"
	"git.home.luguber.info/inful/appbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/appbuilder/internal/retry"
	"git.home.luguber.info/inful/appbuilder/internal/runner"
)

// StartFunc launches a long-running process that must outlive the build.
type StartFunc func(name string, args ...string) error

// Android drives bundletool, adb and the emulator.
type Android struct {
	cfg    config.DeviceConfig
	exec   runner.Runner
	out    io.Writer
	policy retry.Policy
	start  StartFunc
}

// Option customizes Android.
type Option func(*Android)

// WithOutput sets where progress is drawn (default stderr).
func WithOutput(w io.Writer) Option { return func(a *Android) { a.out = w } }

// WithStart replaces how the emulator process is started.
func WithStart(start StartFunc) Option { return func(a *Android) { a.start = start } }

// WithPolicy replaces the retry policy used for adb commands.
func WithPolicy(p retry.Policy) Option { return func(a *Android) { a.policy = p } }

// NewAndroid creates the android tooling.
func NewAndroid(cfg config.DeviceConfig, exec runner.Runner, opts ...Option) *Android {
	a := &Android{
		cfg:    cfg,
		exec:   exec,
		out:    os.Stderr,
		policy: retry.NewPolicy(retry.ModeLinear, time.Second, 5*time.Second, 2),
		start:  startDetached,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Android) run(ctx context.Context, name string, args ...string) (string, error) {
	res, err := a.exec.Run(ctx, runner.Command{Name: name, Args: args, Quiet: true})
	return strings.TrimSpace(res.Output), err
}

func (a *Android) adb(ctx context.Context, serial string, args ...string) (string, error) {
	if serial != "" {
		args = append([]string{"-s", serial}, args...)
	}
	return a.run(ctx, a.cfg.ADB, args...)
}

// ConvertBundleToInstallable runs `bundletool build-apks --mode=universal`.
func (a *Android) ConvertBundleToInstallable(ctx context.Context, bundle string) (string, error) {
	apks := apksPath(bundle)
	_ = os.Remove(apks) // bundletool refuses to overwrite
	_, err := a.run(ctx, a.cfg.Bundletool, "build-apks",
		"--bundle="+bundle,
		"--output="+apks,
		"--mode=universal")
	if err != nil {
		return "", err
	}
	return apks, nil
}

// Devices lists attached devices in the "device" state.
func (a *Android) Devices(ctx context.Context) ([]string, error) {
	out, err := a.adb(ctx, "", "devices")
	if err != nil {
		return nil, err
	}
	return parseDevices(out), nil
}

// EnsureDevice returns the first attached device or boots the configured AVD
// and waits for it to finish booting.
func (a *Android) EnsureDevice(ctx context.Context) (string, error) {
	devices, err := a.Devices(ctx)
	if err != nil {
		return "", err
	}
	if len(devices) > 0 {
		return devices[0], nil
	}
	if a.cfg.AVD == "" {
		return "", errors.DeviceError("no device attached and device.avd is not configured").Build()
	}

	slog.Info("No device attached, starting emulator", slog.String("avd", a.cfg.AVD))
	if err := a.start(a.cfg.Emulator, "-avd", a.cfg.AVD, "-no-snapshot-save"); err != nil {
		return "", errors.WrapError(err, errors.CategoryDevice, "failed to start emulator").
			Warning().
			WithContext("avd", a.cfg.AVD).
			Build()
	}
	return a.waitForBoot(ctx)
}

func (a *Android) waitForBoot(ctx context.Context) (string, error) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(a.out),
		progressbar.OptionSetDescription("Waiting for emulator to boot"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	defer func() { _ = bar.Finish() }()

	var serial string
	err := retry.Until(ctx, a.cfg.PollInterval, a.cfg.BootTimeout, func(ctx context.Context) (bool, error) {
		_ = bar.Add(1)
		devices, err := a.Devices(ctx)
		if err != nil || len(devices) == 0 {
			// adb may not see the emulator yet.
			return false, nil
		}
		booted, err := a.adb(ctx, devices[0], "shell", "getprop", "sys.boot_completed")
		if err != nil {
			return false, nil
		}
		if booted == "1" {
			serial = devices[0]
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.WrapError(ctx.Err(), errors.CategoryCanceled, "emulator wait canceled").Fatal().Build()
		}
		return "", errors.WrapError(err, errors.CategoryDevice, "emulator did not finish booting").
			Warning().
			WithContext("timeout", a.cfg.BootTimeout.String()).
			Build()
	}
	slog.Info("Emulator ready", slog.String("serial", serial))
	return serial, nil
}

// Uninstall removes pkg from the device.
func (a *Android) Uninstall(ctx context.Context, serial, pkg string) error {
	_, err := a.adb(ctx, serial, "uninstall", pkg)
	return err
}

// Install installs an .apks set, retrying while the device settles.
func (a *Android) Install(ctx context.Context, serial, apks string) error {
	return a.policy.Do(ctx, func(attempt int) error {
		if attempt > 0 {
			slog.Debug("Retrying install", slog.Int("attempt", attempt))
		}
		args := []string{"install-apks", "--apks=" + apks}
		if serial != "" {
			args = append(args, "--device-id="+serial)
		}
		_, err := a.run(ctx, a.cfg.Bundletool, args...)
		return err
	})
}

// Launch starts the app's launcher activity via monkey.
func (a *Android) Launch(ctx context.Context, serial, pkg string) error {
	_, err := a.adb(ctx, serial, "shell", "monkey", "-p", pkg, "-c", "android.intent.category.LAUNCHER", "1")
	return err
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...) // #nosec G204 -- emulator path from configuration
	cmd.Stdout = nil
	cmd.Stderr = nil
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
