package cmd

import "github.com/huanfeng/xapk-installer/internal/i18n"

// applyCommandLocalization updates command and flag descriptions after i18n is initialized.
func applyCommandLocalization() {
	rootCmd.Short = i18n.T("cmd.root.short")
	rootCmd.Long = i18n.T("cmd.root.long")

	for name, id := range map[string]string{
		"config":   "flags.config",
		"verbose":  "flags.verbose",
		"debug":    "flags.debug",
		"log-file": "flags.logFile",
		"no-color": "flags.noColor",
		"lang":     "flags.lang",
		"output":   "flags.output",
	} {
		if flag := rootCmd.PersistentFlags().Lookup(name); flag != nil {
			flag.Usage = i18n.T(id)
		}
	}

	installCmd.Short = i18n.T("cmd.install.short")
	installCmd.Long = i18n.T("cmd.install.long")

	inspectCmd.Short = i18n.T("cmd.inspect.short")
	inspectCmd.Long = i18n.T("cmd.inspect.long")

	placeCmd.Short = i18n.T("cmd.place.short")
	placeCmd.Long = i18n.T("cmd.place.long")

	configCmd.Short = i18n.T("cmd.config.short")
	configCmd.Long = i18n.T("cmd.config.long")
	configInitCmd.Short = i18n.T("cmd.configInit.short")
	configShowCmd.Short = i18n.T("cmd.configShow.short")

	doctorCmd.Short = i18n.T("cmd.doctor.short")
	doctorCmd.Long = i18n.T("cmd.doctor.long")

	versionCmd.Short = i18n.T("cmd.version.short")
	versionCmd.Long = i18n.T("cmd.version.long")
}
