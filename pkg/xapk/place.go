package xapk

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	xerrors "github.com/huanfeng/xapk-installer/internal/errors"
)

// PlacementTarget is where one OBB file ends up
type PlacementTarget struct {
	DestinationDirectory string `json:"destination_directory" yaml:"destination_directory"`
	DestinationFileName  string `json:"destination_file_name" yaml:"destination_file_name"`
}

// Path joins the directory and file name
func (t PlacementTarget) Path() string {
	return filepath.Join(t.DestinationDirectory, t.DestinationFileName)
}

// Placer copies extracted OBB files to <root>/<identifier>/<file name>
type Placer struct {
	root   string
	logger Logger
}

// NewPlacer creates a placer for the given auxiliary-asset root, e.g.
// /sdcard/Android/obb. A nil logger discards output.
func NewPlacer(root string, logger Logger) *Placer {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Placer{root: root, logger: logger}
}

// Root returns the auxiliary-asset root directory
func (p *Placer) Root() string {
	return p.root
}

// Target computes the destination for an asset without touching the disk.
func (p *Placer) Target(id Identifier, originalFileName string) (PlacementTarget, error) {
	if _, ok := ParseIdentifier(string(id)); !ok {
		return PlacementTarget{}, fmt.Errorf("invalid package identifier %q", id)
	}
	if originalFileName == "" || originalFileName == "." || originalFileName == ".." ||
		strings.ContainsAny(originalFileName, `/\`) {
		return PlacementTarget{}, fmt.Errorf("invalid OBB file name %q", originalFileName)
	}
	if p.root == "" {
		return PlacementTarget{}, fmt.Errorf("OBB root directory is not configured")
	}

	return PlacementTarget{
		DestinationDirectory: filepath.Join(p.root, string(id)),
		DestinationFileName:  originalFileName,
	}, nil
}

// Place copies extractedAssetPath to its destination and returns the
// destination path. The copy goes through a temporary file in the
// destination directory and is renamed into place, so re-running Place
// replaces the file whole. The source file is left untouched.
func (p *Placer) Place(extractedAssetPath string, id Identifier, originalFileName string) (string, error) {
	target, err := p.Target(id, originalFileName)
	if err != nil {
		return "", xerrors.NewPlacementError(originalFileName, err).SetRetryable(false)
	}
	dest := target.Path()

	p.logger.Debug("Placing OBB file from %s to %s", extractedAssetPath, dest)

	if err := os.MkdirAll(target.DestinationDirectory, 0755); err != nil {
		return "", xerrors.NewPlacementError(originalFileName, fmt.Errorf("failed to create OBB directory: %w", err)).
			WithContext("dir", target.DestinationDirectory)
	}

	if err := copyFileAtomic(extractedAssetPath, dest); err != nil {
		return "", xerrors.NewPlacementError(originalFileName, err).
			WithContext("destination", dest)
	}

	p.logger.Info("OBB file placed at %s", dest)
	return dest, nil
}

func copyFileAtomic(src, dest string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	buf := make([]byte, copyBufferSize)
	if _, err = io.CopyBuffer(&trackingWriter{w: tmp}, in, buf); err != nil {
		return fmt.Errorf("failed to copy: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync: %w", err)
	}
	if err = tmp.Chmod(0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close: %w", err)
	}
	if err = os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("failed to move into place: %w", err)
	}
	return nil
}
