package coverage

import "github.com/jupierce/swift-coverage-report/pkg/llvmcov"

// Region is the location of a region entry that was never executed.
type Region struct {
	Line   int
	Column int
}

// SegmentStats is the line and branch tally for one file's segments.
type SegmentStats struct {
	CoveredLines    int
	TotalLines      int
	CoveredBranches int
	TotalBranches   int
	Uncovered       []Region
}

// Analyze tallies line and branch coverage for the segments of one file.
//
// A line is covered when any segment on it has a non-zero count. Only
// segments that are both region entries and carry a count are branches; each
// such segment is one branch sample, and the unexecuted ones are reported as
// uncovered regions in input order. A zero total means no data, not 0%.
func Analyze(segments []llvmcov.Segment) SegmentStats {
	stats := SegmentStats{Uncovered: []Region{}}

	lines := make(map[int]bool, len(segments))
	for _, seg := range segments {
		hit := seg.Count > 0
		lines[seg.Line] = lines[seg.Line] || hit

		if seg.IsRegion && seg.HasCount {
			stats.TotalBranches++
			if hit {
				stats.CoveredBranches++
			} else {
				stats.Uncovered = append(stats.Uncovered, Region{Line: seg.Line, Column: seg.Column})
			}
		}
	}

	stats.TotalLines = len(lines)
	for _, covered := range lines {
		if covered {
			stats.CoveredLines++
		}
	}

	return stats
}
