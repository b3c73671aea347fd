package xapk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	xerrors "github.com/huanfeng/xapk-installer/internal/errors"
)

// copyBufferSize is the bounded buffer used for every streaming copy.
const copyBufferSize = 32 * 1024

// Logger is the logging contract used by this package
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// Entry is one archive entry after it has been written to disk
type Entry struct {
	Path          string    `json:"path" yaml:"path"`
	IsDir         bool      `json:"is_dir,omitempty" yaml:"is_dir,omitempty"`
	Size          int64     `json:"size" yaml:"size"`
	ExtractedPath string    `json:"extracted_path" yaml:"extracted_path"`
	Kind          EntryKind `json:"kind" yaml:"kind"`
}

// AuxiliaryAsset is an extracted OBB file and the name it must be placed under
type AuxiliaryAsset struct {
	ExtractedPath string `json:"extracted_path" yaml:"extracted_path"`
	EntryPath     string `json:"entry_path" yaml:"entry_path"`
	FileName      string `json:"file_name" yaml:"file_name"`
}

// ExtractionResult describes everything one pass over an archive produced.
// Entries is filled during extraction; the remaining fields by Classify.
type ExtractionResult struct {
	ExtractedRoot      string           `json:"extracted_root" yaml:"extracted_root"`
	Entries            []Entry          `json:"entries" yaml:"entries"`
	PrimaryPackagePath string           `json:"primary_package_path,omitempty" yaml:"primary_package_path,omitempty"`
	ExtraPackages      []string         `json:"extra_packages,omitempty" yaml:"extra_packages,omitempty"`
	AuxiliaryAssets    []AuxiliaryAsset `json:"auxiliary_assets" yaml:"auxiliary_assets"`
	MetadataPath       string           `json:"metadata_path,omitempty" yaml:"metadata_path,omitempty"`
}

// Classify assigns a kind to every entry and selects the primary package.
// The first package in archive order wins; later ones stay on disk and are
// listed in ExtraPackages.
func (r *ExtractionResult) Classify() {
	r.PrimaryPackagePath = ""
	r.ExtraPackages = nil
	r.AuxiliaryAssets = []AuxiliaryAsset{}
	r.MetadataPath = ""

	for i := range r.Entries {
		e := &r.Entries[i]
		if e.IsDir {
			e.Kind = KindIgnorable
			continue
		}
		e.Kind = Classify(e.Path)

		switch e.Kind {
		case KindPrimaryPackage:
			if r.PrimaryPackagePath == "" {
				r.PrimaryPackagePath = e.ExtractedPath
			} else {
				r.ExtraPackages = append(r.ExtraPackages, e.ExtractedPath)
			}
		case KindAuxiliaryAsset:
			r.AuxiliaryAssets = append(r.AuxiliaryAssets, AuxiliaryAsset{
				ExtractedPath: e.ExtractedPath,
				EntryPath:     e.Path,
				FileName:      path.Base(e.Path),
			})
		case KindMetadata:
			r.MetadataPath = e.ExtractedPath
		}
	}
}

// AssetFileNames returns the OBB file names in archive order.
func (r *ExtractionResult) AssetFileNames() []string {
	names := make([]string, 0, len(r.AuxiliaryAssets))
	for _, a := range r.AuxiliaryAssets {
		names = append(names, a.FileName)
	}
	return names
}

// Extractor writes the entries of a zip stream below a destination root
type Extractor struct {
	logger  Logger
	onEntry func(Entry)
}

// NewExtractor creates an extractor; a nil logger discards output.
func NewExtractor(logger Logger) *Extractor {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Extractor{logger: logger}
}

// OnEntry registers a callback invoked after each entry has been written.
func (x *Extractor) OnEntry(fn func(Entry)) {
	x.onEntry = fn
}

// Extract reads src as a zip stream and writes every entry to
// destRoot/entry.path, in archive order, creating directories as needed.
// Any read or write failure aborts the whole pass with an extraction error;
// files already written stay in place and belong to the caller.
func (x *Extractor) Extract(ctx context.Context, src io.Reader, destRoot string) (*ExtractionResult, error) {
	root, err := filepath.Abs(destRoot)
	if err != nil {
		return nil, xerrors.NewExtractionError(xerrors.CodeDestinationWrite, "invalid extraction directory", err).
			WithContext("dir", destRoot)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, xerrors.NewExtractionError(xerrors.CodeDestinationWrite, "failed to create extraction directory", err).
			WithContext("dir", root)
	}

	result := &ExtractionResult{ExtractedRoot: root, Entries: []Entry{}}
	zs := newZipStream(src)
	buf := make([]byte, copyBufferSize)

	for {
		if err := ctx.Err(); err != nil {
			return result, xerrors.NewExtractionError(xerrors.CodeCanceled, "extraction canceled", err)
		}

		ze, err := zs.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return result, streamError(err)
		}

		entry, err := x.writeEntry(root, ze, buf)
		if err != nil {
			return result, err
		}
		result.Entries = append(result.Entries, entry)
		if x.onEntry != nil {
			x.onEntry(entry)
		}
	}

	x.logger.Debug("Extracted %d entries to %s", len(result.Entries), root)
	return result, nil
}

func (x *Extractor) writeEntry(root string, ze *streamEntry, buf []byte) (Entry, error) {
	target, err := safeJoin(root, ze.Name, ze.IsDir())
	if err != nil {
		return Entry{}, xerrors.NewExtractionError(xerrors.CodeUnsafePath, "archive entry escapes the extraction directory", err).
			WithContext("entry", ze.Name)
	}

	entry := Entry{Path: ze.Name, IsDir: ze.IsDir(), ExtractedPath: target}

	if entry.IsDir {
		if err := os.MkdirAll(target, 0755); err != nil {
			return entry, destinationError(ze.Name, err)
		}
		// Drain any bogus payload so the stream stays aligned.
		if _, err := io.Copy(io.Discard, ze.Open()); err != nil {
			return entry, streamError(err)
		}
		return entry, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return entry, destinationError(ze.Name, err)
	}

	x.logger.Debug("Extracting: %s to %s", ze.Name, target)

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return entry, destinationError(ze.Name, err)
	}

	w := &trackingWriter{w: f}
	n, copyErr := io.CopyBuffer(w, ze.Open(), buf)
	closeErr := f.Close()
	entry.Size = n

	switch {
	case w.err != nil:
		return entry, destinationError(ze.Name, w.err)
	case copyErr != nil:
		return entry, streamError(copyErr).WithContext("entry", ze.Name)
	case closeErr != nil:
		return entry, destinationError(ze.Name, closeErr)
	}
	return entry, nil
}

// trackingWriter remembers write failures so they can be told apart from
// read failures after io.CopyBuffer returns. It also hides os.File's
// ReadFrom so the copy goes through the bounded buffer.
type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		t.err = err
	}
	return n, err
}

// safeJoin maps an archive path below root, refusing absolute paths and
// anything that climbs out of root.
func safeJoin(root, name string, isDir bool) (string, error) {
	if name == "" {
		return "", errors.New("empty entry name")
	}
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("absolute entry path %q", name)
	}

	target := filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("entry path %q leaves the extraction directory", name)
	}
	if rel == "." && !isDir {
		return "", fmt.Errorf("entry path %q names the extraction directory", name)
	}
	return target, nil
}

func streamError(err error) *xerrors.XapkError {
	switch {
	case errors.Is(err, errAlgorithm), errors.Is(err, errEncrypted), errors.Is(err, errStoredDescriptor):
		return xerrors.NewExtractionError(xerrors.CodeUnsupportedEntry, "archive contains an entry that cannot be streamed", err)
	case errors.Is(err, errNotZip), errors.Is(err, errChecksum), errors.Is(err, errSizeMismatch):
		return xerrors.NewExtractionError(xerrors.CodeCorruptArchive, "archive is corrupt or not a zip file", err)
	default:
		return xerrors.NewExtractionError(xerrors.CodeSourceUnreadable, "failed to read archive", err)
	}
}

func destinationError(entry string, err error) *xerrors.XapkError {
	return xerrors.NewExtractionError(xerrors.CodeDestinationWrite, "failed to write extracted file", err).
		WithContext("entry", entry)
}
