package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/huanfeng/xapk-installer/internal/config"
	"github.com/huanfeng/xapk-installer/internal/i18n"
	"github.com/huanfeng/xapk-installer/pkg/installer"
	"github.com/huanfeng/xapk-installer/pkg/system"
	"github.com/huanfeng/xapk-installer/pkg/utils"
)

// doctorResult is what the doctor command checked
type doctorResult struct {
	ConfigFile  string                `json:"config_file,omitempty" yaml:"config_file,omitempty"`
	Language    string                `json:"language" yaml:"language"`
	Installer   string                `json:"installer" yaml:"installer"`
	ADB         *system.ToolStatus    `json:"adb,omitempty" yaml:"adb,omitempty"`
	Directories []system.AccessReport `json:"directories" yaml:"directories"`
	Error       string                `json:"error,omitempty" yaml:"error,omitempty"`
}

// Healthy reports whether every check passed.
func (r *doctorResult) Healthy() bool {
	return r.Error == "" && (r.ADB == nil || r.ADB.Available)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that XAPK archives can be installed with the current configuration",
	Long: `Check the extraction and OBB directories are writable, and when the adb
installer is configured, that adb can be found.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		result := runDoctor()

		if outputFormat != "text" {
			if err := writeStructured(cmd.OutOrStdout(), outputFormat, result); err != nil {
				return err
			}
		} else {
			printDoctor(cmd, result)
		}

		if !result.Healthy() {
			return &statusError{code: 1, msg: "doctor found problems"}
		}
		return nil
	},
}

func runDoctor() *doctorResult {
	cfg := appConfig
	result := &doctorResult{
		ConfigFile: config.UsedFile(appViper),
		Language:   i18n.CurrentLanguage().String(),
		Installer:  cfg.Installer.Kind,
	}
	if result.Installer == "" {
		result.Installer = installer.KindNone
	}

	if result.Installer == installer.KindADB {
		adb := system.FindADB(cfg.Installer.ADBPath)
		result.ADB = &adb
	}

	extractDir := cfg.Extract.Dir
	if extractDir == "" {
		extractDir = os.TempDir()
	}
	reports, err := system.NewAccessChecker(utils.GetGlobalLogger()).Check(
		system.DirRequirement{Path: extractDir, Purpose: "extraction"},
		system.DirRequirement{Path: cfg.Placement.OBBRoot, Purpose: "obb"},
	)
	result.Directories = reports
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

func printDoctor(cmd *cobra.Command, r *doctorResult) {
	out := cmd.OutOrStdout()

	if r.ConfigFile != "" {
		fmt.Fprintf(out, "Config:    %s\n", r.ConfigFile)
	} else {
		fmt.Fprintf(out, "Config:    %s\n", dimColor.Sprint("defaults"))
	}
	fmt.Fprintf(out, "Language:  %s\n", r.Language)
	fmt.Fprintf(out, "Installer: %s\n", r.Installer)

	if r.ADB != nil {
		if r.ADB.Available {
			fmt.Fprintf(out, "%s adb %s (%s)\n", okColor.Sprint("✓"), r.ADB.Version, r.ADB.Path)
		} else {
			fmt.Fprintf(out, "%s adb: %s\n", failColor.Sprint("✗"), r.ADB.Error)
		}
	}

	for _, d := range r.Directories {
		line := fmt.Sprintf("%s directory %s", d.Purpose, d.Path)
		if d.Disk != nil {
			line += dimColor.Sprintf(" (%s free)", utils.FormatSize(int64(d.Disk.Available)))
		}
		switch {
		case !d.Writable:
			fmt.Fprintf(out, "%s %s\n", failColor.Sprint("✗"), line)
		case d.Warning != "":
			fmt.Fprintf(out, "%s %s: %s\n", warnColor.Sprint("!"), line, d.Warning)
		default:
			fmt.Fprintf(out, "%s %s\n", okColor.Sprint("✓"), line)
		}
	}

	if r.Error != "" {
		fmt.Fprintf(out, "%s %s\n", failColor.Sprint("✗"), r.Error)
	}
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
