package system

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/huanfeng/xapk-installer/internal/errors"
)

// Logger interface for the system checks
type Logger interface {
	Debug(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// DiskUsage is the space on the file system holding a path
type DiskUsage struct {
	Total     uint64 `json:"total"`
	Used      uint64 `json:"used"`
	Free      uint64 `json:"free"`
	Available uint64 `json:"available"`
}

// UsedPct returns the used share of the file system in percent
func (d *DiskUsage) UsedPct() float64 {
	if d.Total == 0 {
		return 0
	}
	return float64(d.Used) / float64(d.Total) * 100
}

// DirRequirement is a directory a run will write to
type DirRequirement struct {
	Path string `json:"path"`
	// Purpose names the directory in messages, e.g. "extraction".
	Purpose string `json:"purpose"`
	// MinFree is the free space needed below Path, 0 to skip the check.
	MinFree uint64 `json:"min_free"`
}

// AccessReport is the outcome of checking one directory
type AccessReport struct {
	Path     string     `json:"path"`
	Purpose  string     `json:"purpose"`
	Created  bool       `json:"created"`
	Writable bool       `json:"writable"`
	Disk     *DiskUsage `json:"disk,omitempty"`
	Warning  string     `json:"warning,omitempty"`
}

// AccessChecker verifies that output directories exist or can be created
// and accept writes before a pipeline run starts.
type AccessChecker struct {
	logger    Logger
	diskUsage func(path string) (*DiskUsage, error)
}

// NewAccessChecker creates a checker; logger may be nil.
func NewAccessChecker(logger Logger) *AccessChecker {
	return &AccessChecker{
		logger:    logger,
		diskUsage: getDiskUsage,
	}
}

// Check verifies every requirement and stops at the first directory that
// cannot be used. Low disk space is only a warning.
func (ac *AccessChecker) Check(reqs ...DirRequirement) ([]AccessReport, error) {
	reports := make([]AccessReport, 0, len(reqs))
	for _, req := range reqs {
		report, err := ac.checkDir(req)
		reports = append(reports, report)
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

func (ac *AccessChecker) checkDir(req DirRequirement) (AccessReport, error) {
	report := AccessReport{Path: req.Path, Purpose: req.Purpose}

	if req.Path == "" {
		return report, errors.NewValidationError("DIR_NOT_CONFIGURED",
			fmt.Sprintf("%s directory is not configured", req.Purpose))
	}

	abs, err := filepath.Abs(req.Path)
	if err != nil {
		return report, errors.NewValidationError("INVALID_PATH", fmt.Sprintf("invalid %s directory: %v", req.Purpose, err))
	}
	report.Path = abs
	ac.debug("Checking %s directory: %s", req.Purpose, abs)

	info, err := os.Stat(abs)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(abs, 0755); err != nil {
			return report, ac.permissionError(req.Purpose, abs, err)
		}
		report.Created = true
	case err != nil:
		return report, ac.permissionError(req.Purpose, abs, err)
	case !info.IsDir():
		return report, errors.NewValidationError("NOT_A_DIRECTORY",
			fmt.Sprintf("%s path is not a directory: %s", req.Purpose, abs))
	}

	if err := checkWritePermission(abs); err != nil {
		return report, ac.permissionError(req.Purpose, abs, err)
	}
	report.Writable = true

	usage, err := ac.diskUsage(abs)
	if err != nil {
		ac.debug("Could not read disk usage for %s: %v", abs, err)
		return report, nil
	}
	report.Disk = usage
	ac.debug("Disk space for %s: %.2f%% used (%.2f GB / %.2f GB)",
		abs, usage.UsedPct(), float64(usage.Used)/(1<<30), float64(usage.Total)/(1<<30))

	if req.MinFree > 0 && usage.Available < req.MinFree {
		report.Warning = fmt.Sprintf("only %d bytes available in %s, about %d needed", usage.Available, abs, req.MinFree)
		if ac.logger != nil {
			ac.logger.Warn("Low disk space for %s directory: %s", req.Purpose, report.Warning)
		}
	}
	return report, nil
}

func (ac *AccessChecker) permissionError(purpose, path string, err error) *errors.XapkError {
	if ac.logger != nil {
		ac.logger.Error("Cannot use %s directory %s: %v", purpose, path, err)
	}
	e := errors.NewPermissionError("DIR_NOT_WRITABLE", fmt.Sprintf("%s directory is not writable", purpose)).
		WithContext("path", path)
	e.Cause = err
	return e
}

func (ac *AccessChecker) debug(msg string, args ...interface{}) {
	if ac.logger != nil {
		ac.logger.Debug(msg, args...)
	}
}

// checkWritePermission creates and removes a probe file in dir
func checkWritePermission(dir string) error {
	f, err := os.CreateTemp(dir, ".xapk_write_test-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
