package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"golang.org/x/term"

	"github.com/huanfeng/xapk-installer/internal/errors"
	"github.com/huanfeng/xapk-installer/internal/i18n"
	"github.com/huanfeng/xapk-installer/pkg/installer"
	"github.com/huanfeng/xapk-installer/pkg/system"
	"github.com/huanfeng/xapk-installer/pkg/utils"
	"github.com/huanfeng/xapk-installer/pkg/xapk"
)

// runOptions is what install and inspect need to run the pipeline once
type runOptions struct {
	source     string
	name       string
	extractDir string
	keep       bool
	obbRoot    string
	dryRun     bool
	installer  installer.Installer
	inspect    bool
}

// source is an opened archive and the name used for identifier fallback
type source struct {
	r    io.Reader
	name string
	size int64
	c    io.Closer
}

func openSource(stdin io.Reader, path, name string) (*source, error) {
	if path == "-" {
		if name == "" {
			name = "-"
		}
		return &source{r: stdin, name: name}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewError(errors.ErrorTypeNotFound, "ARCHIVE_NOT_FOUND", fmt.Sprintf("archive not found: %s", path))
		}
		return nil, errors.WrapError(err, errors.ErrorTypeExtraction, errors.CodeSourceUnreadable, "failed to open archive")
	}

	src := &source{r: f, name: name, c: f}
	if src.name == "" {
		src.name = filepath.Base(path)
	}
	if info, err := f.Stat(); err == nil {
		src.size = info.Size()
	}
	return src, nil
}

// prepareExtractDir returns a fresh directory under base (the system temp
// dir when empty). It is removed by the caller unless kept.
func prepareExtractDir(base string) (string, error) {
	if base != "" {
		if err := os.MkdirAll(base, 0755); err != nil {
			return "", errors.NewPermissionError("EXTRACT_DIR", fmt.Sprintf("cannot create extraction directory: %v", err))
		}
	}
	dir, err := os.MkdirTemp(base, "xapk-")
	if err != nil {
		return "", errors.NewPermissionError("EXTRACT_DIR", fmt.Sprintf("cannot create extraction directory: %v", err))
	}
	return dir, nil
}

// keepExtracted reports whether extracted files are still needed after a
// run: OBB files that were not placed can only be placed from there, and an
// APK nobody installed is the result the user asked for.
func keepExtracted(report *xapk.Report, dryRun bool) bool {
	if report == nil || dryRun {
		return false
	}
	switch report.Status {
	case xapk.StatusIdentifierUnresolved, xapk.StatusPlacementFailed:
		return true
	case xapk.StatusDone:
		return !report.HandedOff
	default:
		return false
	}
}

func runArchive(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, opts runOptions) (*xapk.Report, error) {
	logger := utils.GetGlobalLogger()

	src, err := openSource(stdin, opts.source, opts.name)
	if err != nil {
		return nil, err
	}
	if src.c != nil {
		defer src.c.Close()
	}

	workDir, err := prepareExtractDir(opts.extractDir)
	if err != nil {
		return nil, err
	}

	reqs := []system.DirRequirement{{Path: workDir, Purpose: "extraction", MinFree: uint64(src.size) * 2}}
	if !opts.dryRun {
		reqs = append(reqs, system.DirRequirement{Path: opts.obbRoot, Purpose: "obb", MinFree: uint64(src.size)})
	}
	if _, err := system.NewAccessChecker(logger).Check(reqs...); err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}

	var bar *utils.ProgressBar
	reader := src.r
	if src.size > 0 && outputFormat == "text" && isTerminal(stderr) {
		bar = utils.NewProgressBar(stderr, src.size, src.name)
		reader = &utils.CountingReader{R: reader, Bar: bar}
	}

	var pkgInstaller xapk.PackageInstaller
	if opts.installer != nil && opts.installer.Name() != installer.KindNone {
		pkgInstaller = opts.installer
	}

	pipeline := xapk.NewPipeline(xapk.Options{
		ExtractDir:    workDir,
		AuxiliaryRoot: opts.obbRoot,
		DryRun:        opts.dryRun,
		Installer:     pkgInstaller,
		Inspector:     installer.ManifestInspector{},
		Logger:        logger,
		OnEntry: func(e xapk.Entry) {
			logger.Debug("Extracted %s (%s)", e.Path, utils.FormatSize(e.Size))
		},
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	report, runErr := pipeline.Run(ctx, reader, src.name)
	if bar != nil {
		bar.Finish()
	}

	if opts.keep || keepExtracted(report, opts.dryRun) {
		fmt.Fprintln(stderr, i18n.T("msg.extractedTo", map[string]interface{}{"Dir": workDir}))
	} else if err := os.RemoveAll(workDir); err != nil {
		logger.Warn("Failed to remove %s: %v", workDir, err)
	}

	if err := writeReport(stdout, outputFormat, report, opts.inspect); err != nil {
		return report, err
	}
	if runErr != nil && (verbose || debugMode) {
		if xe, ok := runErr.(*errors.XapkError); ok {
			fmt.Fprint(stderr, xe.FormatDetailed())
		}
	}

	return report, exitStatus(report)
}

// exitStatus maps a finished report to the process exit code
func exitStatus(report *xapk.Report) error {
	switch report.Status {
	case xapk.StatusFailed:
		return &statusError{code: 1, msg: report.Message()}
	case xapk.StatusNoPackageFound:
		return &statusError{code: 2, msg: report.Message()}
	default:
		return nil
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
