package cmd

import (
	"github.com/spf13/cobra"
)

var (
	inspectName       string
	inspectKeep       bool
	inspectExtractDir string
	inspectOBBRoot    string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.xapk|->",
	Short: "Show what an XAPK archive contains without installing it",
	Long: `Extract an XAPK archive into a temporary directory, classify its entries and
resolve the package name. Nothing is installed and no OBB file is copied.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions{
			source:     args[0],
			name:       inspectName,
			extractDir: appConfig.Extract.Dir,
			keep:       inspectKeep,
			obbRoot:    appConfig.Placement.OBBRoot,
			dryRun:     true,
			inspect:    true,
		}
		if inspectExtractDir != "" {
			opts.extractDir = inspectExtractDir
		}
		if inspectOBBRoot != "" {
			opts.obbRoot = inspectOBBRoot
		}

		_, err := runArchive(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		return err
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVar(&inspectName, "name", "", "Archive file name, used to guess the package name (needed with -)")
	inspectCmd.Flags().BoolVarP(&inspectKeep, "keep", "k", false, "Keep extracted files")
	inspectCmd.Flags().StringVar(&inspectExtractDir, "extract-dir", "", "Directory to extract into (default: temporary directory)")
	inspectCmd.Flags().StringVar(&inspectOBBRoot, "obb-root", "", "Base directory used for the planned OBB destinations")
}
