package cmd

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/huanfeng/xapk-installer/internal/config"
	"github.com/huanfeng/xapk-installer/internal/errors"
	"github.com/huanfeng/xapk-installer/internal/i18n"
	"github.com/huanfeng/xapk-installer/internal/version"
	"github.com/huanfeng/xapk-installer/pkg/models"
	"github.com/huanfeng/xapk-installer/pkg/utils"
)

var (
	cfgFile      string
	verbose      bool
	debugMode    bool
	logFile      string
	noColor      bool
	langOverride string
	outputFormat string

	appConfig *models.Config
	appViper  *viper.Viper
)

// skipConfigAnnotation marks commands that must run with a broken config file.
const skipConfigAnnotation = "xapk/skip-config"

var rootCmd = &cobra.Command{
	Use:   "xapk",
	Short: "XAPK Installer - extract XAPK archives and install their APK and OBB files",
	Long: `XAPK Installer reads an XAPK archive as a stream, hands the contained APK
to an installer and copies the OBB expansion files to the directory Android expects.`,
	Version:       version.Short(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if err := i18n.Init(langFromArgs(args)); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	applyCommandLocalization()

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	var se *statusError
	if stderrors.As(err, &se) {
		// The report has already been printed.
		return se.code
	}

	var xe *errors.XapkError
	if stderrors.As(err, &xe) && (verbose || debugMode) {
		fmt.Fprint(os.Stderr, xe.FormatDetailed())
	} else {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
	}
	return 1
}

func init() {
	// setup refers back to rootCmd, so it cannot be set in the literal.
	rootCmd.PersistentPreRunE = setup
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./xapk.yaml or ~/.config/xapk/xapk.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.BoolVar(&debugMode, "debug", false, "debug output")
	flags.StringVar(&logFile, "log-file", "", "write log output to this file")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")
	flags.StringVar(&langOverride, "lang", "", "interface language (en, zh)")
	flags.StringVarP(&outputFormat, "output", "o", "text", "output format: text, json or yaml")
}

// setup loads configuration and initializes logging and localization
// before any subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	if noColor {
		color.NoColor = true
	}

	switch outputFormat {
	case "text", "json", "yaml":
	default:
		return errors.NewValidationError("INVALID_OUTPUT", fmt.Sprintf("unknown output format %q", outputFormat))
	}

	appViper = viper.New()
	cfg, err := config.Load(appViper, cfgFile)
	if err != nil {
		if cmd.Annotations[skipConfigAnnotation] == "" {
			return err
		}
		def := config.Default()
		cfg = &def
	}
	appConfig = cfg

	if langOverride == "" && cfg.Lang != "" {
		if err := i18n.Init(cfg.Lang); err == nil {
			applyCommandLocalization()
		}
	}

	return initLogger(cfg)
}

func initLogger(cfg *models.Config) error {
	loggerCfg := utils.DefaultLoggerConfig()
	loggerCfg.EnableColor = !noColor

	level, err := utils.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return errors.NewConfigurationError("INVALID_LOG_LEVEL", err.Error())
	}
	switch {
	case debugMode:
		level = utils.LogLevelDebug
	case verbose && level > utils.LogLevelInfo:
		level = utils.LogLevelInfo
	}
	loggerCfg.Level = level

	loggerCfg.FilePath = cfg.Log.File
	if logFile != "" {
		loggerCfg.FilePath = logFile
	}
	if debugMode {
		loggerCfg.Format = utils.LogFormatText
	} else {
		loggerCfg.Format = utils.LogFormatCompact
	}

	return utils.InitGlobalLogger(loggerCfg)
}

// langFromArgs finds --lang before cobra has parsed anything, so help text
// is already localized.
func langFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		if v, ok := strings.CutPrefix(arg, "--lang="); ok {
			return v
		}
		if arg == "--lang" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// statusError carries a process exit code for a run whose report was
// already printed.
type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string { return e.msg }
