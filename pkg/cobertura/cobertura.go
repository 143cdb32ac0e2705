// Package cobertura writes aggregated coverage as Cobertura XML, the format CI
// systems (Jenkins, GitLab, Azure Pipelines) read for coverage annotations.
package cobertura

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/jupierce/swift-coverage-report/pkg/coverage"
	"github.com/jupierce/swift-coverage-report/pkg/llvmcov"
)

const version = "swift-coverage-report"

type Coverage struct {
	XMLName         xml.Name   `xml:"coverage"`
	LineRate        float32    `xml:"line-rate,attr"`
	BranchRate      float32    `xml:"branch-rate,attr"`
	LinesCovered    int        `xml:"lines-covered,attr"`
	LinesValid      int        `xml:"lines-valid,attr"`
	BranchesCovered int        `xml:"branches-covered,attr"`
	BranchesValid   int        `xml:"branches-valid,attr"`
	Complexity      float32    `xml:"complexity,attr"`
	Version         string     `xml:"version,attr"`
	Timestamp       int64      `xml:"timestamp,attr"`
	Sources         []*Source  `xml:"sources>source"`
	Packages        []*Package `xml:"packages>package"`
}

type Source struct {
	Path string `xml:",chardata"`
}

type Package struct {
	Name       string   `xml:"name,attr"`
	LineRate   float32  `xml:"line-rate,attr"`
	BranchRate float32  `xml:"branch-rate,attr"`
	Complexity float32  `xml:"complexity,attr"`
	Classes    []*Class `xml:"classes>class"`
}

type Class struct {
	Name       string    `xml:"name,attr"`
	Filename   string    `xml:"filename,attr"`
	LineRate   float32   `xml:"line-rate,attr"`
	BranchRate float32   `xml:"branch-rate,attr"`
	Complexity float32   `xml:"complexity,attr"`
	Methods    []*Method `xml:"methods>method"`
	Lines      []*Line   `xml:"lines>line"`
}

type Method struct {
	Name       string  `xml:"name,attr"`
	Signature  string  `xml:"signature,attr"`
	LineRate   float32 `xml:"line-rate,attr"`
	BranchRate float32 `xml:"branch-rate,attr"`
	Lines      []*Line `xml:"lines>line"`
}

// Line is the hit count of one source line. Lines with region entries are
// marked as branches with their covered/total region count.
type Line struct {
	Number            int    `xml:"number,attr"`
	Hits              int64  `xml:"hits,attr"`
	Branch            bool   `xml:"branch,attr"`
	ConditionCoverage string `xml:"condition-coverage,attr,omitempty"`
}

// Options describes the report being converted.
type Options struct {
	// Source is written as the single <source> entry, usually the package path.
	Source    string
	Timestamp time.Time
}

// Build converts the aggregated files into a Cobertura document. Each
// category becomes a package and each file a class; per-line hits come from
// the export's segments.
func Build(export *llvmcov.Export, files map[string]coverage.FileCoverage, opts Options) *Coverage {
	segments := segmentsByFile(export)
	summary := coverage.Summarize(coverage.Sorted(files))

	doc := &Coverage{
		LineRate:        rate(summary.Lines),
		BranchRate:      rate(summary.Branches),
		LinesCovered:    summary.Lines.Covered,
		LinesValid:      summary.Lines.Total,
		BranchesCovered: summary.Branches.Covered,
		BranchesValid:   summary.Branches.Total,
		Version:         version,
		Timestamp:       opts.Timestamp.UnixMilli(),
		Packages:        []*Package{},
	}
	if opts.Source != "" {
		doc.Sources = []*Source{{Path: opts.Source}}
	}

	for _, category := range coverage.Categories(files) {
		pkg := &Package{
			Name:       category.Name,
			LineRate:   rate(category.Lines),
			BranchRate: rate(category.Branches),
		}

		for _, f := range category.Files {
			pkg.Classes = append(pkg.Classes, &Class{
				Name:       f.Name,
				Filename:   f.RelativePath,
				LineRate:   float32(f.Lines.Percentage / 100),
				BranchRate: float32(f.Branches.Percentage / 100),
				Lines:      lines(segments[f.Path]),
			})
		}
		doc.Packages = append(doc.Packages, pkg)
	}

	return doc
}

// Write encodes doc as indented XML with the standard header.
func Write(w io.Writer, doc *Coverage) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("write xml header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode cobertura: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("encode cobertura: %w", err)
	}
	return nil
}

// WriteFile writes doc to path.
func WriteFile(path string, doc *Coverage) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create cobertura file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, 64*1024)
	if err := Write(w, doc); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write cobertura file: %w", err)
	}
	return f.Close()
}

// rate is an aggregate percentage as a 0..1 ratio.
func rate(m coverage.Metric) float32 {
	return float32(m.Percentage / 100)
}

func segmentsByFile(export *llvmcov.Export) map[string][]llvmcov.Segment {
	byFile := make(map[string][]llvmcov.Segment)
	if export == nil {
		return byFile
	}
	for _, data := range export.Data {
		for _, file := range data.Files {
			byFile[file.Filename] = file.Segments
		}
	}
	return byFile
}

type lineTally struct {
	hits           uint64
	regions        int
	coveredRegions int
}

// lines reports the highest count seen on each line, in line order.
func lines(segments []llvmcov.Segment) []*Line {
	tallies := make(map[int]*lineTally)
	for _, seg := range segments {
		t := tallies[seg.Line]
		if t == nil {
			t = &lineTally{}
			tallies[seg.Line] = t
		}
		if seg.Count > t.hits {
			t.hits = seg.Count
		}
		if seg.IsRegion && seg.HasCount {
			t.regions++
			if seg.Count > 0 {
				t.coveredRegions++
			}
		}
	}

	numbers := make([]int, 0, len(tallies))
	for n := range tallies {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	out := make([]*Line, 0, len(numbers))
	for _, n := range numbers {
		t := tallies[n]
		line := &Line{Number: n, Hits: int64(t.hits)}
		if t.regions > 0 {
			line.Branch = true
			line.ConditionCoverage = fmt.Sprintf("%d%% (%d/%d)",
				t.coveredRegions*100/t.regions, t.coveredRegions, t.regions)
		}
		out = append(out, line)
	}
	return out
}
