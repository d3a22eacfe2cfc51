// Package device installs and launches a freshly built android bundle on a
// connected device or emulator (--run).
//
// Everything here is best effort: failures are reported as device-category
// warnings and never fail the build that produced the bundle.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/appbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/appbuilder/internal/logfields"
)

// Tooling is the device collaborator used after an android build.
type Tooling interface {
	// EnsureDevice returns the serial of a ready device, booting an emulator if needed.
	EnsureDevice(ctx context.Context) (string, error)
	// ConvertBundleToInstallable turns an .aab into a universal .apks set.
	ConvertBundleToInstallable(ctx context.Context, bundle string) (string, error)
	Uninstall(ctx context.Context, serial, pkg string) error
	Install(ctx context.Context, serial, apks string) error
	Launch(ctx context.Context, serial, pkg string) error
}

// RunAfterBuild converts, reinstalls and launches bundle. The returned error,
// if any, is a device-category warning.
func RunAfterBuild(ctx context.Context, t Tooling, bundle, pkg string) error {
	if pkg == "" {
		return errors.DeviceError("cannot run app: device.package_id (or project.bundle_id) is not configured").Build()
	}

	apks, err := t.ConvertBundleToInstallable(ctx, bundle)
	if err != nil {
		return wrap(err, "failed to convert bundle to installable APKs", bundle)
	}

	serial, err := t.EnsureDevice(ctx)
	if err != nil {
		return wrap(err, "no device available", "")
	}

	// A missing package is the normal first-install case.
	if err := t.Uninstall(ctx, serial, pkg); err != nil {
		slog.Debug("Uninstall before install failed", slog.String("package", pkg), logfields.Error(err))
	}
	if err := t.Install(ctx, serial, apks); err != nil {
		return wrap(err, "failed to install app", apks)
	}
	if err := t.Launch(ctx, serial, pkg); err != nil {
		return wrap(err, "failed to launch app", pkg)
	}

	slog.Info("App launched on device", slog.String("serial", serial), slog.String("package", pkg))
	return nil
}

func wrap(err error, msg, subject string) error {
	if errors.HasCategory(err, errors.CategoryCanceled) || errors.HasCategory(err, errors.CategoryDevice) {
		return err
	}
	b := errors.WrapError(err, errors.CategoryDevice, msg).Warning()
	if subject != "" {
		b = b.WithContext("subject", subject)
	}
	return b.Build()
}

// parseDevices extracts serials in the "device" state from `adb devices` output.
func parseDevices(out string) []string {
	var serials []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == "device" {
			serials = append(serials, fields[0])
		}
	}
	return serials
}

// apksPath derives the .apks output next to the bundle.
func apksPath(bundle string) string {
	return fmt.Sprintf("%s.apks", strings.TrimSuffix(bundle, ".aab"))
}
