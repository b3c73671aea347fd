package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huanfeng/xapk-installer/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display detailed version information about XAPK Installer.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if outputFormat != "text" {
			return writeStructured(cmd.OutOrStdout(), outputFormat, version.Get())
		}
		fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
