package installer

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/huanfeng/xapk-installer/internal/errors"
)

// Kinds accepted by New and the installer.kind setting.
const (
	KindNone    = "none"
	KindADB     = "adb"
	KindCommand = "command"
)

// ApkPlaceholder is replaced by the APK path in a command template.
const ApkPlaceholder = "{apk}"

// Installer hands an extracted APK to whatever performs the installation.
// Install returns once the handoff is done; it does not track the result
// on the device beyond what the tool itself reports.
type Installer interface {
	Install(ctx context.Context, apkPath string) error
	Name() string
}

// Logger interface for installers
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
}

// runner executes a command and returns its combined output
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Config selects and configures an installer
type Config struct {
	Kind    string
	ADBPath string
	Device  string
	Command string
}

// New creates the installer named by cfg.Kind
func New(cfg Config, logger Logger) (Installer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", KindNone:
		return Noop{}, nil
	case KindADB:
		return NewADB(cfg.ADBPath, cfg.Device, logger), nil
	case KindCommand:
		return NewCommand(cfg.Command, logger)
	default:
		return nil, errors.NewConfigurationError("UNKNOWN_INSTALLER",
			fmt.Sprintf("unknown installer %q (expected none, adb or command)", cfg.Kind))
	}
}

// Noop accepts every APK and does nothing, for extract-and-place runs.
type Noop struct{}

func (Noop) Install(context.Context, string) error { return nil }

func (Noop) Name() string { return KindNone }

// Command runs an external program for each APK, e.g. "pm install -r {apk}".
// Without a placeholder the APK path is appended as the last argument.
type Command struct {
	argv   []string
	logger Logger
	run    runner
}

// NewCommand parses a whitespace separated command template
func NewCommand(template string, logger Logger) (*Command, error) {
	argv := strings.Fields(template)
	if len(argv) == 0 {
		return nil, errors.NewConfigurationError("INSTALLER_COMMAND_EMPTY", "installer.command is empty")
	}
	return &Command{argv: argv, logger: logger, run: execRunner}, nil
}

// Args returns the command line used for apkPath
func (c *Command) Args(apkPath string) []string {
	args := make([]string, 0, len(c.argv)+1)
	substituted := false
	for _, a := range c.argv {
		if strings.Contains(a, ApkPlaceholder) {
			a = strings.ReplaceAll(a, ApkPlaceholder, apkPath)
			substituted = true
		}
		args = append(args, a)
	}
	if !substituted {
		args = append(args, apkPath)
	}
	return args
}

func (c *Command) Install(ctx context.Context, apkPath string) error {
	args := c.Args(apkPath)
	if c.logger != nil {
		c.logger.Debug("Running installer: %s", strings.Join(args, " "))
	}

	output, err := c.run(ctx, args[0], args[1:]...)
	if err != nil {
		return fmt.Errorf("%s failed: %w, output: %s", args[0], err, strings.TrimSpace(string(output)))
	}
	return nil
}

func (c *Command) Name() string { return KindCommand }
