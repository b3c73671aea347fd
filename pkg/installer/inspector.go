package installer

import (
	"fmt"

	"github.com/shogo82148/androidbinary/apk"
)

// ManifestInspector reads the package name from an APK's binary manifest.
type ManifestInspector struct{}

// PackageName returns the package attribute of AndroidManifest.xml
func (ManifestInspector) PackageName(apkPath string) (string, error) {
	pkg, err := apk.OpenFile(apkPath)
	if err != nil {
		return "", fmt.Errorf("failed to open APK: %w", err)
	}
	defer pkg.Close()

	name := pkg.PackageName()
	if name == "" {
		manifest := pkg.Manifest()
		name = manifest.Package.MustString()
	}
	if name == "" {
		return "", fmt.Errorf("APK manifest has no package name")
	}
	return name, nil
}
