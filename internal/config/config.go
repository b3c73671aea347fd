package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/huanfeng/xapk-installer/internal/errors"
	"github.com/huanfeng/xapk-installer/pkg/models"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the config file base name looked up without an explicit path.
const FileName = "xapk"

// EnvPrefix prefixes environment overrides, e.g. XAPK_PLACEMENT_OBB_ROOT.
const EnvPrefix = "XAPK"

// Default returns the built-in configuration
func Default() models.Config {
	return models.Config{
		Extract: models.ExtractConfig{
			Dir:  "",
			Keep: false,
		},
		Placement: models.PlacementConfig{
			OBBRoot: DefaultOBBRoot(),
		},
		Installer: models.InstallerConfig{
			Kind:    "none",
			ADBPath: "adb",
		},
		Log: models.LogConfig{
			Level: "warn",
		},
	}
}

// DefaultOBBRoot is the OBB root used when nothing is configured: the
// shared-storage path on a device, a local directory elsewhere.
func DefaultOBBRoot() string {
	if dir := "/sdcard/Android/obb"; isDir(dir) {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".xapk", "obb")
	}
	return filepath.Join("Android", "obb")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Load reads configuration from defaults, an optional file and XAPK_*
// environment variables, in increasing priority.
func Load(v *viper.Viper, configPath string) (*models.Config, error) {
	if v == nil {
		v = viper.GetViper()
	}
	v.SetConfigType("yaml")

	def := Default()
	v.SetDefault("extract.dir", def.Extract.Dir)
	v.SetDefault("extract.keep", def.Extract.Keep)
	v.SetDefault("placement.obb_root", def.Placement.OBBRoot)
	v.SetDefault("installer.kind", def.Installer.Kind)
	v.SetDefault("installer.adb_path", def.Installer.ADBPath)
	v.SetDefault("installer.device", def.Installer.Device)
	v.SetDefault("installer.command", def.Installer.Command)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("lang", def.Lang)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "xapk"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			e := errors.NewConfigurationError("CONFIG_READ", "failed to read config file")
			e.Cause = err
			return nil, e
		}
		// Config file not found is not an error, we'll use defaults
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		e := errors.NewConfigurationError("CONFIG_DECODE", "failed to unmarshal config")
		e.Cause = err
		return nil, e
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot type-check
func Validate(cfg *models.Config) error {
	switch strings.ToLower(cfg.Installer.Kind) {
	case "", "none", "adb":
	case "command":
		if strings.TrimSpace(cfg.Installer.Command) == "" {
			return errors.NewConfigurationError("CONFIG_INVALID", "installer.command is required when installer.kind is command")
		}
	default:
		return errors.NewConfigurationError("CONFIG_INVALID",
			fmt.Sprintf("installer.kind must be none, adb or command, got %q", cfg.Installer.Kind))
	}
	return nil
}

// Marshal renders cfg as YAML for "config show"
func Marshal(cfg *models.Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// UsedFile returns the config file viper read, if any
func UsedFile(v *viper.Viper) string {
	if v == nil {
		v = viper.GetViper()
	}
	return v.ConfigFileUsed()
}

// SaveTemplate saves a configuration template
func SaveTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.NewValidationError("CONFIG_EXISTS", fmt.Sprintf("config file already exists: %s", path)).
				WithSuggestion("Use --force to overwrite it")
		}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	templateContent := `# XAPK Installer configuration file

extract:
  # Directory archives are extracted into.
  # Leave empty to use a new temporary directory for every run.
  dir: ""

  # Keep extracted files after the run (temporary directories are removed otherwise)
  keep: false

placement:
  # Base directory OBB files are copied to, as <obb_root>/<package>/<file>
  obb_root: '` + DefaultOBBRoot() + `'

installer:
  # How the APK is installed:
  # - "none": only extract and place OBB files
  # - "adb": run "adb install -r" against a connected device
  # - "command": run a custom command, {apk} is replaced by the APK path
  kind: "none"

  # adb executable
  adb_path: "adb"

  # Device serial for adb (empty = the only connected device)
  device: ""

  # Command template for kind "command", e.g. "pm install -r {apk}"
  command: ""

log:
  # debug, info, warn or error
  level: "warn"

  # Optional log file
  file: ""

# Interface language (en, zh); empty follows the environment
lang: ""
`

	return os.WriteFile(path, []byte(templateContent), 0644)
}
