package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huanfeng/xapk-installer/internal/config"
	"github.com/huanfeng/xapk-installer/internal/i18n"
	"github.com/huanfeng/xapk-installer/pkg/models"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
	Long:  "Create a configuration template or show the effective configuration.",
}

var configInitCmd = &cobra.Command{
	Use:         "init [path]",
	Short:       "Write a configuration template",
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{skipConfigAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.FileName + ".yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.SaveTemplate(path, configForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okColor.Sprint("✓"),
			i18n.T("msg.configWritten", map[string]interface{}{"Path": path}))
		return nil
	},
}

// shownConfig is the effective configuration plus where it came from
type shownConfig struct {
	File   string         `json:"file,omitempty" yaml:"file,omitempty"`
	Config *models.Config `json:"config" yaml:"config"`
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		used := config.UsedFile(appViper)
		if outputFormat != "text" {
			return writeStructured(cmd.OutOrStdout(), outputFormat, shownConfig{File: used, Config: appConfig})
		}

		data, err := config.Marshal(appConfig)
		if err != nil {
			return err
		}
		if used != "" {
			fmt.Fprintln(cmd.OutOrStdout(), dimColor.Sprintf("# %s", used))
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite an existing file")
}
