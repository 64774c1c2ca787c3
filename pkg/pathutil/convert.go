// Package pathutil converts between the absolute paths the engine keeps and
// the relative spellings shown to operators or written into project markup.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative converts an absolute path to one relative to rootDir.
// Falls back to the original path if conversion fails, if the path is
// already relative, or if it lies outside rootDir.
//
// Examples:
//   - ToRelative("/src/App/App.csproj", "/src") → "App/App.csproj"
//   - ToRelative("/other/Lib.csproj", "/src") → "/other/Lib.csproj" (outside root)
//   - ToRelative("App/App.csproj", "/src") → "App/App.csproj" (already relative)
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}
	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		// Different volumes on Windows
		return absPath
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return absPath
	}
	return relPath
}

// ToRelativeAll applies ToRelative to every path, returning a new slice.
func ToRelativeAll(paths []string, rootDir string) []string {
	if len(paths) == 0 {
		return paths
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = ToRelative(p, rootDir)
	}
	return out
}

// ToMSBuildRelative returns target relative to fromDir spelled the way
// project files spell paths, with backslash separators. Unlike ToRelative it
// climbs out of fromDir with ..\ segments.
func ToMSBuildRelative(target, fromDir string) (string, error) {
	rel, err := filepath.Rel(fromDir, target)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(filepath.ToSlash(rel), "/", `\`), nil
}
