package installer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/huanfeng/xapk-installer/internal/errors"
)

// ADB installs packages on a connected device with "adb install".
type ADB struct {
	Path      string
	Device    string
	Replace   bool
	Downgrade bool
	Grant     bool

	logger Logger
	run    runner
}

// NewADB creates an adb installer. An empty path means "adb" from PATH and
// an empty device lets adb pick the only connected one.
func NewADB(path, device string, logger Logger) *ADB {
	if path == "" {
		path = "adb"
	}
	return &ADB{
		Path:    path,
		Device:  device,
		Replace: true,
		logger:  logger,
		run:     execRunner,
	}
}

func (a *ADB) Name() string { return KindADB }

// Device is one line of "adb devices"
type Device struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Model  string `json:"model,omitempty"`
}

// Devices lists attached devices
func (a *ADB) Devices(ctx context.Context) ([]Device, error) {
	output, err := a.run(ctx, a.Path, "devices", "-l")
	if err != nil {
		return nil, fmt.Errorf("failed to run adb devices: %w", err)
	}
	return parseDevices(string(output)), nil
}

func parseDevices(output string) []Device {
	var devices []Device
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}

		device := Device{ID: parts[0], Status: parts[1]}
		for _, part := range parts[2:] {
			if strings.HasPrefix(part, "model:") {
				device.Model = strings.TrimPrefix(part, "model:")
			}
		}
		devices = append(devices, device)
	}
	return devices
}

// validateDevice checks that the configured device is online
func (a *ADB) validateDevice(ctx context.Context) error {
	devices, err := a.Devices(ctx)
	if err != nil {
		return err
	}

	for _, device := range devices {
		if device.ID != a.Device {
			continue
		}
		switch device.Status {
		case "device":
			return nil
		case "offline":
			return fmt.Errorf("device %s is offline", a.Device)
		case "unauthorized":
			return fmt.Errorf("device %s is unauthorized - please allow USB debugging", a.Device)
		default:
			return fmt.Errorf("device %s has status: %s", a.Device, device.Status)
		}
	}
	return fmt.Errorf("device %s not found", a.Device)
}

// Args returns the adb arguments used to install apkPath
func (a *ADB) Args(apkPath string) []string {
	var args []string
	if a.Device != "" {
		args = append(args, "-s", a.Device)
	}
	args = append(args, "install")
	if a.Replace {
		args = append(args, "-r")
	}
	if a.Downgrade {
		args = append(args, "-d")
	}
	if a.Grant {
		args = append(args, "-g")
	}
	return append(args, apkPath)
}

func (a *ADB) Install(ctx context.Context, apkPath string) error {
	if a.Device != "" {
		if err := a.validateDevice(ctx); err != nil {
			return errors.WrapError(err, errors.ErrorTypeInstaller, "ADB_DEVICE", "device is not available").
				WithSuggestions([]string{
					"Check device connection with 'adb devices'",
					"Enable USB debugging on the device",
				})
		}
	}

	args := a.Args(apkPath)
	if a.logger != nil {
		a.logger.Debug("Running: %s %s", a.Path, strings.Join(args, " "))
	}

	output, err := a.run(ctx, a.Path, args...)
	if err != nil && !strings.Contains(string(output), "INSTALL_FAILED") {
		return errors.WrapError(err, errors.ErrorTypeInstaller, "ADB_EXEC", "failed to run adb").
			WithContext("output", strings.TrimSpace(string(output))).
			WithSuggestions([]string{
				"Check if ADB is properly installed",
				"Try running 'adb kill-server && adb start-server'",
			})
	}
	if strings.Contains(string(output), "Success") {
		if a.logger != nil {
			a.logger.Info("adb install succeeded for %s", apkPath)
		}
		return nil
	}

	code, message, suggestions := parseInstallError(string(output))
	return errors.NewError(errors.ErrorTypeInstaller, "ADB_"+code, message).
		WithSuggestions(suggestions)
}

var installFailedPattern = regexp.MustCompile(`INSTALL_FAILED_([A-Z_]+)`)

// parseInstallError maps adb install output to a code, a message and
// suggestions.
func parseInstallError(output string) (string, string, []string) {
	upper := strings.ToUpper(output)

	knownErrors := []struct {
		pattern     string
		code        string
		message     string
		suggestions []string
	}{
		{"INSTALL_FAILED_ALREADY_EXISTS", "ALREADY_EXISTS", "App already installed",
			[]string{"Uninstall the existing app first"}},
		{"INSTALL_FAILED_VERSION_DOWNGRADE", "VERSION_DOWNGRADE", "Cannot downgrade app version",
			[]string{"Uninstall the existing app first", "Install a newer version instead"}},
		{"INSTALL_FAILED_INSUFFICIENT_STORAGE", "INSUFFICIENT_STORAGE", "Not enough storage space on device",
			[]string{"Free up storage space on the device", "OBB files need room on the device as well"}},
		{"INSTALL_FAILED_INVALID_APK", "INVALID_APK", "APK file is invalid or corrupted",
			[]string{"Re-download the XAPK file", "Check if the APK is compatible with the device architecture"}},
		{"INSTALL_FAILED_OLDER_SDK", "OLDER_SDK", "APK requires a newer Android version",
			[]string{"Find a version compatible with your Android version"}},
		{"INSTALL_FAILED_NO_MATCHING_ABIS", "NO_MATCHING_ABIS", "APK architecture not compatible with device",
			[]string{"Download an XAPK built for the device architecture"}},
		{"INSTALL_FAILED_MISSING_SPLIT", "MISSING_SPLIT", "APK needs split packages that were not installed",
			[]string{"Install all APKs of the archive with 'adb install-multiple'"}},
	}

	for _, known := range knownErrors {
		if strings.Contains(upper, known.pattern) {
			return known.code, known.message, known.suggestions
		}
	}

	if matches := installFailedPattern.FindStringSubmatch(upper); len(matches) > 1 {
		return matches[1], fmt.Sprintf("Installation failed: %s", matches[1]), []string{
			"Check device logs for more details",
		}
	}

	return "UNKNOWN", fmt.Sprintf("Unknown installation error: %s", strings.TrimSpace(output)), []string{
		"Check ADB connection",
		"Try restarting ADB server",
	}
}
