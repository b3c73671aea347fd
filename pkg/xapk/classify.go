package xapk

import "strings"

// EntryKind is the role an archive entry plays in an XAPK
type EntryKind int

const (
	KindIgnorable EntryKind = iota
	KindPrimaryPackage
	KindAuxiliaryAsset
	KindMetadata
)

const (
	PackageExtension = ".apk"
	AssetExtension   = ".obb"
	AssetDirPrefix   = "android/obb/"
	MetadataFileName = "manifest.json"
)

func (k EntryKind) String() string {
	switch k {
	case KindPrimaryPackage:
		return "package"
	case KindAuxiliaryAsset:
		return "obb"
	case KindMetadata:
		return "metadata"
	default:
		return "ignored"
	}
}

// MarshalText lets reports print the kind by name.
func (k EntryKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Classify decides the role of an archive entry from its path alone.
// The first matching rule wins: .apk suffix, then Android/obb/*.obb, then
// the root manifest.json. Paths are compared case-insensitively except for
// the metadata file name.
func Classify(entryPath string) EntryKind {
	if strings.HasSuffix(entryPath, "/") {
		return KindIgnorable
	}

	lower := strings.ToLower(entryPath)
	switch {
	case strings.HasSuffix(lower, PackageExtension):
		return KindPrimaryPackage
	case strings.HasPrefix(lower, AssetDirPrefix) && strings.HasSuffix(lower, AssetExtension):
		return KindAuxiliaryAsset
	case entryPath == MetadataFileName:
		return KindMetadata
	default:
		return KindIgnorable
	}
}
