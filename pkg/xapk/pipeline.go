package xapk

import (
	"context"
	"io"
	"time"

	xerrors "github.com/huanfeng/xapk-installer/internal/errors"
)

// State is a step of the installation pipeline
type State int

const (
	StateIdle State = iota
	StateExtracting
	StateClassifying
	StateResolvingIdentifier
	StatePlacing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExtracting:
		return "extracting"
	case StateClassifying:
		return "classifying"
	case StateResolvingIdentifier:
		return "resolving-identifier"
	case StatePlacing:
		return "placing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText lets reports print the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// PackageInstaller receives the extracted primary package. The pipeline
// hands the path off and records a failure, but never waits on or reacts
// to the install outcome.
type PackageInstaller interface {
	Install(ctx context.Context, apkPath string) error
}

// PackageInspector reads the package name declared inside an APK.
type PackageInspector interface {
	PackageName(apkPath string) (string, error)
}

// Options configures a Pipeline
type Options struct {
	// ExtractDir receives the archive contents. Required.
	ExtractDir string
	// AuxiliaryRoot is the base directory OBB files are placed under.
	AuxiliaryRoot string
	// DryRun computes placement targets without copying anything.
	DryRun bool

	Installer PackageInstaller
	Inspector PackageInspector
	Logger    Logger
	OnEntry   func(Entry)
}

// Pipeline runs extract, classify, resolve and place for one archive at a
// time. It is not safe for concurrent use.
type Pipeline struct {
	opts      Options
	logger    Logger
	extractor *Extractor
	resolver  *Resolver
	placer    *Placer

	state  State
	report *Report
}

// NewPipeline creates a pipeline
func NewPipeline(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	extractor := NewExtractor(logger)
	extractor.OnEntry(opts.OnEntry)

	return &Pipeline{
		opts:      opts,
		logger:    logger,
		extractor: extractor,
		resolver:  NewResolver(logger),
		placer:    NewPlacer(opts.AuxiliaryRoot, logger),
		state:     StateIdle,
	}
}

// State returns the current state
func (p *Pipeline) State() State {
	return p.state
}

func (p *Pipeline) transition(to State) {
	p.logger.Debug("Pipeline %s -> %s", p.state, to)
	p.state = to
	p.report.State = to
	p.report.Transitions = append(p.report.Transitions, to)
}

// Run processes one archive read from src. archiveName is only used as the
// last-resort identifier source. The returned error is non-nil only when
// the run failed during extraction; every other outcome is described by
// the report's Status.
func (p *Pipeline) Run(ctx context.Context, src io.Reader, archiveName string) (*Report, error) {
	start := time.Now()
	p.state = StateIdle
	p.report = &Report{Archive: archiveName, State: StateIdle, DryRun: p.opts.DryRun, Placements: []Placement{}}
	report := p.report
	defer func() { report.Duration = time.Since(start) }()

	p.transition(StateExtracting)
	p.logger.Info("Starting XAPK installation for: %s", archiveName)

	result, err := p.extractor.Extract(ctx, src, p.opts.ExtractDir)
	report.Result = result
	if err != nil {
		p.transition(StateFailed)
		report.Status = StatusFailed
		report.Err = err
		p.logger.Error("Error extracting XAPK: %v", err)
		return report, err
	}

	p.transition(StateClassifying)
	result.Classify()
	p.logger.Info("Archive holds %d entries, %d OBB files", len(result.Entries), len(result.AuxiliaryAssets))

	if result.PrimaryPackagePath == "" {
		report.Status = StatusNoPackageFound
		report.Err = xerrors.NewNoPackageError(archiveName)
		p.logger.Error("No APK found in XAPK: %s", archiveName)
		p.transition(StateDone)
		return report, nil
	}
	p.logger.Info("Found APK: %s", result.PrimaryPackagePath)
	for _, extra := range result.ExtraPackages {
		report.warn("additional APK extracted but not selected: %s", extra)
	}

	p.handOff(ctx, result.PrimaryPackagePath)

	p.transition(StateResolvingIdentifier)
	resolution, ok := p.resolver.Resolve(result.MetadataPath, result.AssetFileNames(), archiveName)
	if ok {
		report.Resolution = &resolution
		p.logger.Info("Resolved package name %s from %s", resolution.Identifier, resolution.Source)
	}
	p.crossCheck(result.PrimaryPackagePath, resolution, ok)

	if len(result.AuxiliaryAssets) == 0 {
		report.Status = StatusDone
		p.transition(StateDone)
		return report, nil
	}
	if !ok {
		report.Status = StatusIdentifierUnresolved
		report.Err = xerrors.NewIdentifierError(archiveName)
		p.logger.Warn("Could not determine package name for OBB files, manual placement required")
		p.transition(StateDone)
		return report, nil
	}

	p.transition(StatePlacing)
	p.placeAll(ctx, result.AuxiliaryAssets, resolution.Identifier)

	report.Status = StatusDone
	if report.FailedPlacements() > 0 {
		report.Status = StatusPlacementFailed
	}
	p.transition(StateDone)
	return report, nil
}

func (p *Pipeline) handOff(ctx context.Context, apkPath string) {
	if p.opts.Installer == nil || p.opts.DryRun {
		return
	}
	if err := p.opts.Installer.Install(ctx, apkPath); err != nil {
		p.report.InstallErr = xerrors.NewInstallerError(apkPath, err)
		p.logger.Error("Error starting APK installation: %v", err)
		return
	}
	p.report.HandedOff = true
	p.logger.Debug("Started APK installation for: %s", apkPath)
}

// crossCheck compares the resolved identifier with the package name the APK
// itself declares. A mismatch is only a warning.
func (p *Pipeline) crossCheck(apkPath string, res Resolution, resolved bool) {
	if p.opts.Inspector == nil {
		return
	}
	declared, err := p.opts.Inspector.PackageName(apkPath)
	if err != nil {
		p.logger.Debug("Could not read package name from APK: %v", err)
		return
	}
	p.report.DeclaredPackage = declared
	if resolved && declared != "" && declared != string(res.Identifier) {
		p.report.warn("APK declares package %s but OBB files will be placed for %s (%s)", declared, res.Identifier, res.Source)
	}
}

func (p *Pipeline) placeAll(ctx context.Context, assets []AuxiliaryAsset, id Identifier) {
	for _, asset := range assets {
		pl := Placement{Asset: asset}

		if err := ctx.Err(); err != nil {
			pl.Err = xerrors.NewPlacementError(asset.FileName, err).SetRetryable(true)
			p.report.Placements = append(p.report.Placements, pl)
			continue
		}

		if p.opts.DryRun {
			target, err := p.placer.Target(id, asset.FileName)
			if err != nil {
				pl.Err = xerrors.NewPlacementError(asset.FileName, err)
			} else {
				pl.Destination = target.Path()
				pl.Planned = true
			}
			p.report.Placements = append(p.report.Placements, pl)
			continue
		}

		dest, err := p.placer.Place(asset.ExtractedPath, id, asset.FileName)
		if err != nil {
			p.logger.Error("Error placing OBB file %s: %v", asset.FileName, err)
			pl.Err = err
		}
		pl.Destination = dest
		p.report.Placements = append(p.report.Placements, pl)
	}
}
