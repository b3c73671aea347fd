package models

// Config represents the application configuration
type Config struct {
	Extract   ExtractConfig   `mapstructure:"extract" json:"extract" yaml:"extract"`
	Placement PlacementConfig `mapstructure:"placement" json:"placement" yaml:"placement"`
	Installer InstallerConfig `mapstructure:"installer" json:"installer" yaml:"installer"`
	Log       LogConfig       `mapstructure:"log" json:"log" yaml:"log"`
	Lang      string          `mapstructure:"lang" json:"lang" yaml:"lang"`
}

// ExtractConfig controls where archives are unpacked
type ExtractConfig struct {
	// Dir is the extraction root; empty means a fresh temporary directory per run.
	Dir  string `mapstructure:"dir" json:"dir" yaml:"dir"`
	Keep bool   `mapstructure:"keep" json:"keep" yaml:"keep"` // keep extracted files after the run
}

// PlacementConfig controls where OBB files end up
type PlacementConfig struct {
	OBBRoot string `mapstructure:"obb_root" json:"obb_root" yaml:"obb_root"`
}

// InstallerConfig selects how the APK is installed
type InstallerConfig struct {
	Kind    string `mapstructure:"kind" json:"kind" yaml:"kind"` // "none", "adb", "command"
	ADBPath string `mapstructure:"adb_path" json:"adb_path" yaml:"adb_path"`
	Device  string `mapstructure:"device" json:"device" yaml:"device"`
	Command string `mapstructure:"command" json:"command" yaml:"command"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level string `mapstructure:"level" json:"level" yaml:"level"`
	File  string `mapstructure:"file" json:"file" yaml:"file"`
}
