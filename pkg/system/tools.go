package system

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// ToolStatus describes an external executable the installers rely on
type ToolStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Path      string `json:"path,omitempty"`
	Error     string `json:"error,omitempty"`
}

const versionTimeout = 10 * time.Second

// FindADB locates adb. A configured path is tried first, then PATH, then
// the usual Android SDK locations.
func FindADB(configured string) ToolStatus {
	return findTool("adb", configured, []string{"version"}, commonADBPaths())
}

func findTool(name, configured string, versionArgs []string, commonPaths []string) ToolStatus {
	status := ToolStatus{Name: name}

	var candidates []string
	if configured != "" && configured != name {
		candidates = append(candidates, configured)
	} else if path, err := exec.LookPath(name); err == nil {
		candidates = append(candidates, path)
	}
	candidates = append(candidates, commonPaths...)

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if version := toolVersion(candidate, versionArgs); version != "" {
			status.Available = true
			status.Path = candidate
			status.Version = version
			return status
		}
	}

	status.Error = fmt.Sprintf("%s not found in PATH or common locations", name)
	return status
}

// toolVersion returns the first output line of the version command, or ""
// when the tool cannot be run.
func toolVersion(toolPath string, versionArgs []string) string {
	ctx, cancel := context.WithTimeout(context.Background(), versionTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, toolPath, versionArgs...).CombinedOutput()
	if err != nil {
		return ""
	}

	line, _, _ := strings.Cut(string(output), "\n")
	if line = strings.TrimSpace(line); line != "" {
		return line
	}
	return "unknown"
}

func commonADBPaths() []string {
	var paths []string

	switch runtime.GOOS {
	case "linux":
		paths = []string{
			"/usr/bin/adb",
			"/usr/local/bin/adb",
			"/opt/android-sdk/platform-tools/adb",
		}
		if home := os.Getenv("HOME"); home != "" {
			paths = append(paths,
				filepath.Join(home, "Android/Sdk/platform-tools/adb"),
				filepath.Join(home, ".android-sdk/platform-tools/adb"),
			)
		}

	case "darwin":
		paths = []string{
			"/usr/local/bin/adb",
			"/opt/homebrew/bin/adb",
		}
		if home := os.Getenv("HOME"); home != "" {
			paths = append(paths, filepath.Join(home, "Library/Android/sdk/platform-tools/adb"))
		}

	case "windows":
		paths = []string{`C:\Android\Sdk\platform-tools\adb.exe`}
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			paths = append(paths, filepath.Join(localAppData, `Android\Sdk\platform-tools\adb.exe`))
		}
	}

	return paths
}
