package xapk

import (
	"path"
	"strings"
)

// Identifier is a reverse-domain package name such as com.example.app.
// Values produced by ParseIdentifier always have at least two segments,
// each matching [A-Za-z_][A-Za-z0-9_]*.
type Identifier string

func (id Identifier) String() string {
	return string(id)
}

// ParseIdentifier validates s against the package-name grammar.
func ParseIdentifier(s string) (Identifier, bool) {
	segments := strings.Split(s, ".")
	if len(segments) < 2 {
		return "", false
	}
	for _, seg := range segments {
		if !isIdentifierSegment(seg) {
			return "", false
		}
	}
	return Identifier(s), true
}

func isIdentifierSegment(seg string) bool {
	if seg == "" {
		return false
	}
	for i, c := range seg {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// AssetName is a parsed OBB file name: {main|patch}.{version}.{package}.obb
type AssetName struct {
	Kind    string
	Version string
	Package Identifier
}

// ParseAssetName splits an OBB file name into its parts. Only the base name
// is considered. The kind keyword is case-sensitive, the extension is not.
func ParseAssetName(fileName string) (AssetName, bool) {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))

	segments := strings.Split(base, ".")
	if len(segments) < 4 {
		return AssetName{}, false
	}

	kind, version, ext := segments[0], segments[1], segments[len(segments)-1]
	if kind != "main" && kind != "patch" {
		return AssetName{}, false
	}
	if !strings.EqualFold("."+ext, AssetExtension) || version == "" {
		return AssetName{}, false
	}

	id, ok := ParseIdentifier(strings.Join(segments[2:len(segments)-1], "."))
	if !ok {
		return AssetName{}, false
	}
	return AssetName{Kind: kind, Version: version, Package: id}, true
}

// IdentifierFromArchiveName strips the final extension from an archive file
// name and returns the remainder if it is a valid package name, e.g.
// com.example.app.xapk -> com.example.app.
func IdentifierFromArchiveName(archiveName string) (Identifier, bool) {
	base := path.Base(strings.ReplaceAll(archiveName, "\\", "/"))

	dot := strings.LastIndexByte(base, '.')
	if dot <= 0 {
		return "", false
	}
	return ParseIdentifier(base[:dot])
}

// IdentifierSource records which resolution stage produced an identifier.
type IdentifierSource string

const (
	SourceMetadata    IdentifierSource = "metadata"
	SourceAssetName   IdentifierSource = "asset-filename"
	SourceArchiveName IdentifierSource = "archive-filename"
	SourceExplicit    IdentifierSource = "explicit"
)

// Resolution is a resolved identifier together with where it came from.
type Resolution struct {
	Identifier Identifier       `json:"identifier" yaml:"identifier"`
	Source     IdentifierSource `json:"source" yaml:"source"`
	// Detail names the file the identifier was read from.
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Resolver determines the package identifier that OBB files are keyed by.
type Resolver struct {
	logger Logger
}

// NewResolver creates a resolver; a nil logger discards output.
func NewResolver(logger Logger) *Resolver {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Resolver{logger: logger}
}

// Resolve tries, in order, the metadata descriptor at metadataPath (may be
// empty), each auxiliary asset file name, and finally the archive file name.
// The first stage that yields a valid identifier wins.
func (r *Resolver) Resolve(metadataPath string, assetFileNames []string, archiveFileName string) (Resolution, bool) {
	if metadataPath != "" {
		m, err := ReadMetadata(metadataPath)
		switch {
		case err != nil:
			r.logger.Warn("Ignoring unreadable %s: %v", MetadataFileName, err)
		case m.PackageName == "":
			r.logger.Debug("%s has no package_name", MetadataFileName)
		default:
			if id, ok := ParseIdentifier(m.PackageName); ok {
				return Resolution{Identifier: id, Source: SourceMetadata, Detail: MetadataFileName}, true
			}
			r.logger.Warn("Ignoring malformed package_name %q in %s", m.PackageName, MetadataFileName)
		}
	}

	for _, name := range assetFileNames {
		if asset, ok := ParseAssetName(name); ok {
			return Resolution{Identifier: asset.Package, Source: SourceAssetName, Detail: path.Base(name)}, true
		}
		r.logger.Debug("OBB name %s does not carry a package name", name)
	}

	if id, ok := IdentifierFromArchiveName(archiveFileName); ok {
		return Resolution{Identifier: id, Source: SourceArchiveName, Detail: archiveFileName}, true
	}

	return Resolution{}, false
}
