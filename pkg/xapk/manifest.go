package xapk

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// maxMetadataSize bounds how much of manifest.json is read.
const maxMetadataSize = 1 << 20

// Metadata is the subset of an XAPK manifest.json this tool reads. Other
// fields are ignored.
type Metadata struct {
	PackageName string `json:"package_name"`
	Name        string `json:"name,omitempty"`
	VersionCode int64  `json:"version_code,omitempty"`
	VersionName string `json:"version_name,omitempty"`
}

// ReadMetadata parses an extracted manifest.json
func ReadMetadata(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return DecodeMetadata(io.LimitReader(f, maxMetadataSize))
}

// DecodeMetadata parses a manifest.json document. Fields of an unexpected
// JSON type are treated as absent instead of failing the whole document;
// version_code is accepted as a number or a quoted number.
func DecodeMetadata(r io.Reader) (*Metadata, error) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&fields); err != nil {
		return nil, fmt.Errorf("failed to parse manifest JSON: %w", err)
	}

	m := &Metadata{
		PackageName: stringField(fields["package_name"]),
		Name:        stringField(fields["name"]),
		VersionName: stringField(fields["version_name"]),
	}
	if raw := fields["version_code"]; len(raw) > 0 {
		s := strings.Trim(string(raw), `"`)
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			m.VersionCode = v
		}
	}
	return m, nil
}

func stringField(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
