package cmd

import (
	"github.com/spf13/cobra"

	"github.com/huanfeng/xapk-installer/pkg/installer"
	"github.com/huanfeng/xapk-installer/pkg/utils"
)

var (
	installName       string
	installExtractDir string
	installOBBRoot    string
	installKind       string
	installDevice     string
	installCommand    string
	installKeep       bool
)

var installCmd = &cobra.Command{
	Use:   "install <file.xapk|->",
	Short: "Install an XAPK archive",
	Long: `Extract an XAPK archive (a file path, or - for standard input), hand the APK to
the configured installer and place the OBB files under <obb-root>/<package>/.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig

		instCfg := installer.Config{
			Kind:    cfg.Installer.Kind,
			ADBPath: cfg.Installer.ADBPath,
			Device:  cfg.Installer.Device,
			Command: cfg.Installer.Command,
		}
		if cmd.Flags().Changed("installer") {
			instCfg.Kind = installKind
		}
		if installDevice != "" {
			instCfg.Device = installDevice
		}
		if installCommand != "" {
			instCfg.Command = installCommand
		}
		inst, err := installer.New(instCfg, utils.GetGlobalLogger())
		if err != nil {
			return err
		}

		opts := runOptions{
			source:     args[0],
			name:       installName,
			extractDir: cfg.Extract.Dir,
			keep:       cfg.Extract.Keep || installKeep,
			obbRoot:    cfg.Placement.OBBRoot,
			installer:  inst,
		}
		if installExtractDir != "" {
			opts.extractDir = installExtractDir
		}
		if installOBBRoot != "" {
			opts.obbRoot = installOBBRoot
		}

		_, err = runArchive(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		return err
	},
}

func init() {
	rootCmd.AddCommand(installCmd)

	installCmd.Flags().StringVar(&installName, "name", "", "Archive file name, used to guess the package name (needed with -)")
	installCmd.Flags().StringVar(&installExtractDir, "extract-dir", "", "Directory to extract into (default: temporary directory)")
	installCmd.Flags().StringVar(&installOBBRoot, "obb-root", "", "Base directory for OBB files")
	installCmd.Flags().StringVarP(&installKind, "installer", "i", "", "Installer to use: none, adb or command")
	installCmd.Flags().StringVarP(&installDevice, "device", "s", "", "Target device serial for adb")
	installCmd.Flags().StringVar(&installCommand, "command", "", "Installer command template, {apk} is replaced by the APK path")
	installCmd.Flags().BoolVarP(&installKeep, "keep", "k", false, "Keep extracted files")
}
