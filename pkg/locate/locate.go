package locate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrNotFound is returned when no coverage export exists under a package.
var ErrNotFound = errors.New("coverage data not found")

// buildDirs are the codecov directories SwiftPM writes to, most specific first.
var buildDirs = []string{
	filepath.Join(".build", "arm64-apple-macosx", "debug", "codecov"),
	filepath.Join(".build", "x86_64-apple-macosx", "debug", "codecov"),
	filepath.Join(".build", "debug", "codecov"),
}

// fallbackPattern catches toolchains and configurations not listed above.
const fallbackPattern = ".build/**/codecov/*.json"

// CoverageFile returns the coverage export for the package at packagePath.
// Within each known build directory <package>.json is preferred over any
// other JSON file.
func CoverageFile(packagePath string) (string, error) {
	packageName := filepath.Base(packagePath)

	for _, dir := range buildDirs {
		buildDir := filepath.Join(packagePath, dir)
		if info, err := os.Stat(buildDir); err != nil || !info.IsDir() {
			continue
		}

		named := filepath.Join(buildDir, packageName+".json")
		if info, err := os.Stat(named); err == nil && !info.IsDir() {
			return named, nil
		}

		matches, err := filepath.Glob(filepath.Join(buildDir, "*.json"))
		if err != nil {
			return "", fmt.Errorf("glob %s: %w", buildDir, err)
		}
		if len(matches) > 0 {
			return matches[0], nil
		}
	}

	matches, err := doublestar.Glob(os.DirFS(packagePath), fallbackPattern, doublestar.WithFilesOnly())
	if err != nil {
		return "", fmt.Errorf("glob %s: %w", fallbackPattern, err)
	}
	if len(matches) > 0 {
		sort.Strings(matches)
		return filepath.Join(packagePath, filepath.FromSlash(matches[0])), nil
	}

	return "", fmt.Errorf("%w for %s (expected %s)", ErrNotFound, packageName,
		filepath.Join(packagePath, ".build", "...", "codecov", packageName+".json"))
}
