package xapk

import (
	"fmt"
	"time"

	"github.com/huanfeng/xapk-installer/internal/i18n"
)

// Status is the outcome of a pipeline run as shown to the user
type Status int

const (
	StatusPending Status = iota
	StatusDone
	StatusFailed
	StatusNoPackageFound
	StatusIdentifierUnresolved
	StatusPlacementFailed
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	case StatusNoPackageFound:
		return "no-package-found"
	case StatusIdentifierUnresolved:
		return "identifier-unresolved"
	case StatusPlacementFailed:
		return "placement-failed"
	default:
		return "pending"
	}
}

// MarshalText lets reports print the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// MessageID is the i18n key of the status line.
func (s Status) MessageID() string {
	return "status." + s.String()
}

// Success reports whether the primary package is installable.
func (s Status) Success() bool {
	return s == StatusDone || s == StatusIdentifierUnresolved || s == StatusPlacementFailed
}

// Placement is the outcome for one OBB file
type Placement struct {
	Asset       AuxiliaryAsset
	Destination string
	// Planned is set for dry runs, where Destination was computed only.
	Planned bool
	Err     error
}

// Report collects everything a run did
type Report struct {
	Archive         string
	State           State
	Transitions     []State
	Status          Status
	Result          *ExtractionResult
	Resolution      *Resolution
	DeclaredPackage string
	HandedOff       bool
	InstallErr      error
	DryRun          bool
	Placements      []Placement
	Warnings        []string
	Err             error
	Duration        time.Duration
}

func (r *Report) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// FailedPlacements counts OBB files that could not be placed
func (r *Report) FailedPlacements() int {
	n := 0
	for _, pl := range r.Placements {
		if pl.Err != nil {
			n++
		}
	}
	return n
}

// Visited reports whether the run passed through state s.
func (r *Report) Visited(s State) bool {
	for _, t := range r.Transitions {
		if t == s {
			return true
		}
	}
	return false
}

// Message renders the localized status line.
func (r *Report) Message() string {
	data := map[string]interface{}{
		"Archive": r.Archive,
		"Failed":  r.FailedPlacements(),
		"Assets":  len(r.Placements),
	}
	if r.Resolution != nil {
		data["Identifier"] = string(r.Resolution.Identifier)
	}
	if r.Err != nil {
		data["Error"] = r.Err.Error()
	}
	return i18n.T(r.MessageID(), data)
}

// MessageID is the i18n key of the status line. A finished run that did
// not hand the APK to an installer, or did not copy anything, gets its own
// wording.
func (r *Report) MessageID() string {
	if r.Status != StatusDone {
		return r.Status.MessageID()
	}
	switch {
	case r.DryRun:
		return "status.done-dry-run"
	case !r.HandedOff:
		return "status.done-not-installed"
	default:
		return r.Status.MessageID()
	}
}

// PlacementSummary is the printable form of a Placement
type PlacementSummary struct {
	File        string `json:"file" yaml:"file"`
	Destination string `json:"destination,omitempty" yaml:"destination,omitempty"`
	Planned     bool   `json:"planned,omitempty" yaml:"planned,omitempty"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Summary is the printable form of a Report
type Summary struct {
	Archive         string             `json:"archive" yaml:"archive"`
	Status          Status             `json:"status" yaml:"status"`
	Message         string             `json:"message" yaml:"message"`
	State           State              `json:"state" yaml:"state"`
	ExtractedRoot   string             `json:"extracted_root,omitempty" yaml:"extracted_root,omitempty"`
	PrimaryPackage  string             `json:"primary_package,omitempty" yaml:"primary_package,omitempty"`
	ExtraPackages   []string           `json:"extra_packages,omitempty" yaml:"extra_packages,omitempty"`
	Entries         []Entry            `json:"entries,omitempty" yaml:"entries,omitempty"`
	Resolution      *Resolution        `json:"resolution,omitempty" yaml:"resolution,omitempty"`
	DeclaredPackage string             `json:"declared_package,omitempty" yaml:"declared_package,omitempty"`
	HandedOff       bool               `json:"handed_off" yaml:"handed_off"`
	DryRun          bool               `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	InstallError    string             `json:"install_error,omitempty" yaml:"install_error,omitempty"`
	Placements      []PlacementSummary `json:"placements,omitempty" yaml:"placements,omitempty"`
	Warnings        []string           `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Error           string             `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMS      int64              `json:"duration_ms" yaml:"duration_ms"`
}

// Summary flattens the report for JSON/YAML output
func (r *Report) Summary() Summary {
	s := Summary{
		Archive:         r.Archive,
		Status:          r.Status,
		Message:         r.Message(),
		State:           r.State,
		Resolution:      r.Resolution,
		DeclaredPackage: r.DeclaredPackage,
		HandedOff:       r.HandedOff,
		DryRun:          r.DryRun,
		Warnings:        r.Warnings,
		DurationMS:      r.Duration.Milliseconds(),
	}
	if r.Result != nil {
		s.ExtractedRoot = r.Result.ExtractedRoot
		s.PrimaryPackage = r.Result.PrimaryPackagePath
		s.ExtraPackages = r.Result.ExtraPackages
		s.Entries = r.Result.Entries
	}
	if r.InstallErr != nil {
		s.InstallError = r.InstallErr.Error()
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	for _, pl := range r.Placements {
		ps := PlacementSummary{File: pl.Asset.FileName, Destination: pl.Destination, Planned: pl.Planned}
		if pl.Err != nil {
			ps.Error = pl.Err.Error()
		}
		s.Placements = append(s.Placements, ps)
	}
	return s
}
