package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/huanfeng/xapk-installer/internal/i18n"
	"github.com/huanfeng/xapk-installer/pkg/utils"
	"github.com/huanfeng/xapk-installer/pkg/xapk"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.Faint)
)

// writeStructured prints v as JSON or YAML
func writeStructured(w io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func statusColor(s xapk.Status) *color.Color {
	switch s {
	case xapk.StatusDone:
		return okColor
	case xapk.StatusIdentifierUnresolved, xapk.StatusPlacementFailed:
		return warnColor
	default:
		return failColor
	}
}

func statusMark(s xapk.Status) string {
	switch s {
	case xapk.StatusDone:
		return "✓"
	case xapk.StatusIdentifierUnresolved, xapk.StatusPlacementFailed:
		return "!"
	default:
		return "✗"
	}
}

// writeReport prints a pipeline report in the selected format
func writeReport(w io.Writer, format string, report *xapk.Report, showEntries bool) error {
	if format != "text" {
		return writeStructured(w, format, report.Summary())
	}

	c := statusColor(report.Status)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(statusMark(report.Status)), c.Sprint(report.Message()))

	if report.Result == nil {
		return nil
	}
	res := report.Result

	if showEntries {
		fmt.Fprintln(w)
		for _, e := range res.Entries {
			if e.IsDir {
				continue
			}
			fmt.Fprintf(w, "  %-9s %10s  %s\n", e.Kind, utils.FormatSize(e.Size), e.Path)
		}
		fmt.Fprintln(w)
	}

	if res.PrimaryPackagePath != "" {
		fmt.Fprintf(w, "  %s: %s\n", i18n.T("label.apk"), res.PrimaryPackagePath)
	}
	if report.Resolution != nil {
		fmt.Fprintf(w, "  %s: %s %s\n", i18n.T("label.identifier"), report.Resolution.Identifier,
			dimColor.Sprintf("(%s)", report.Resolution.Source))
	}

	switch {
	case report.InstallErr != nil:
		fmt.Fprintf(w, "  %s: %s\n", i18n.T("label.installer"),
			failColor.Sprint(i18n.T("msg.installFailed", map[string]interface{}{"Error": report.InstallErr.Error()})))
	case report.HandedOff:
		fmt.Fprintf(w, "  %s: %s\n", i18n.T("label.installer"), i18n.T("msg.handedOff"))
	}

	for _, pl := range report.Placements {
		switch {
		case pl.Err != nil:
			fmt.Fprintf(w, "  %s: %s %s\n", i18n.T("label.obb"), pl.Asset.FileName, failColor.Sprint(pl.Err.Error()))
		case pl.Planned:
			fmt.Fprintf(w, "  %s: %s -> %s %s\n", i18n.T("label.obb"), pl.Asset.FileName, pl.Destination,
				dimColor.Sprintf("(%s)", i18n.T("label.planned")))
		default:
			fmt.Fprintf(w, "  %s: %s -> %s\n", i18n.T("label.obb"), pl.Asset.FileName, pl.Destination)
		}
	}

	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "  %s %s\n", warnColor.Sprintf("%s:", i18n.T("label.warning")), warning)
	}
	return nil
}
