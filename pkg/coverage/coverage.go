package coverage

import (
	"path"
	"strings"

	"github.com/jupierce/swift-coverage-report/pkg/llvmcov"
)

// RootCategory is the category of files that sit directly under the source root.
const RootCategory = "Root"

// Metric is a covered/total pair with its percentage.
type Metric struct {
	Covered    int
	Total      int
	Percentage float64
}

// FileCoverage is the per-file result of Aggregate.
type FileCoverage struct {
	Path         string // filename as it appears in the export
	Category     string
	Name         string // file name without extension
	RelativePath string // path below the source root
	Lines        Metric
	Branches     Metric
	Overall      float64
	Uncovered    []Region
}

// Options controls which files Aggregate includes.
type Options struct {
	// PackageName selects files under /Sources/<PackageName>/.
	PackageName string
	// SourceRoot overrides the /Sources/<PackageName>/ marker.
	SourceRoot string
	// Filter, when set, must be a substring of the filename.
	Filter string
}

// Marker returns the path segment that identifies the package's sources.
func (o Options) Marker() string {
	if o.SourceRoot != "" {
		if strings.HasSuffix(o.SourceRoot, "/") {
			return o.SourceRoot
		}
		return o.SourceRoot + "/"
	}
	return "/Sources/" + o.PackageName + "/"
}

// Aggregate analyzes every included file in the export, keyed by filename.
// When a filename repeats across data units the last entry wins.
func Aggregate(export *llvmcov.Export, opts Options) map[string]FileCoverage {
	results := make(map[string]FileCoverage)
	if export == nil {
		return results
	}

	marker := opts.Marker()
	for _, data := range export.Data {
		for _, file := range data.Files {
			// A filename with the marker in it twice has no single relative path.
			if strings.Count(file.Filename, marker) != 1 {
				continue
			}
			if opts.Filter != "" && !strings.Contains(file.Filename, opts.Filter) {
				continue
			}

			_, relPath, _ := strings.Cut(file.Filename, marker)
			results[file.Filename] = newFileCoverage(file, relPath)
		}
	}

	return results
}

func newFileCoverage(file llvmcov.File, relPath string) FileCoverage {
	stats := Analyze(file.Segments)

	lines := fileMetric(stats.CoveredLines, stats.TotalLines)
	branches := fileMetric(stats.CoveredBranches, stats.TotalBranches)

	return FileCoverage{
		Path:         file.Filename,
		Category:     categoryOf(relPath),
		Name:         displayName(file.Filename),
		RelativePath: relPath,
		Lines:        lines,
		Branches:     branches,
		Overall:      combine(lines, branches, 100),
		Uncovered:    stats.Uncovered,
	}
}

func categoryOf(relPath string) string {
	parts := strings.Split(relPath, "/")
	if len(parts) > 1 {
		return parts[0]
	}
	return RootCategory
}

func displayName(filename string) string {
	base := path.Base(filename)
	if name := strings.TrimSuffix(base, path.Ext(base)); name != "" {
		return name
	}
	return base
}

// fileMetric treats a file without instrumented code as fully covered.
func fileMetric(covered, total int) Metric {
	m := Metric{Covered: covered, Total: total, Percentage: 100}
	if total > 0 {
		m.Percentage = float64(covered) / float64(total) * 100
	}
	return m
}

// aggregateMetric reports 0% when there is nothing to measure.
func aggregateMetric(covered, total int) Metric {
	m := Metric{Covered: covered, Total: total}
	if total > 0 {
		m.Percentage = float64(covered) / float64(total) * 100
	}
	return m
}

// combine weighs line and branch coverage equally, falling back to whichever
// has data, and to empty when neither does.
func combine(lines, branches Metric, empty float64) float64 {
	switch {
	case lines.Total > 0 && branches.Total > 0:
		return lines.Percentage*0.5 + branches.Percentage*0.5
	case lines.Total > 0:
		return lines.Percentage
	case branches.Total > 0:
		return branches.Percentage
	default:
		return empty
	}
}
