package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jupierce/swift-coverage-report/pkg/llvmcov"
)

func seg(line, col int, count uint64, isRegion, hasCount bool) llvmcov.Segment {
	return llvmcov.Segment{Line: line, Column: col, Count: count, IsRegion: isRegion, HasCount: hasCount}
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name     string
		segments []llvmcov.Segment
		want     SegmentStats
	}{
		{
			name:     "no segments",
			segments: nil,
			want:     SegmentStats{Uncovered: []Region{}},
		},
		{
			name: "shared line is covered by any hit",
			segments: []llvmcov.Segment{
				seg(5, 1, 0, false, false),
				seg(5, 2, 3, true, true),
			},
			want: SegmentStats{
				CoveredLines: 1, TotalLines: 1,
				CoveredBranches: 1, TotalBranches: 1,
				Uncovered: []Region{},
			},
		},
		{
			name: "a later zero does not uncover a line",
			segments: []llvmcov.Segment{
				seg(7, 1, 4, false, true),
				seg(7, 9, 0, false, true),
			},
			want: SegmentStats{CoveredLines: 1, TotalLines: 1, Uncovered: []Region{}},
		},
		{
			name: "line markers only",
			segments: []llvmcov.Segment{
				seg(1, 1, 1, false, true),
				seg(2, 1, 0, false, true),
				seg(3, 1, 0, true, false),
			},
			want: SegmentStats{CoveredLines: 1, TotalLines: 3, Uncovered: []Region{}},
		},
		{
			name: "branches are not deduplicated by line",
			segments: []llvmcov.Segment{
				seg(10, 3, 2, true, true),
				seg(10, 14, 0, true, true),
				seg(10, 20, 0, true, true),
				seg(12, 5, 1, true, true),
			},
			want: SegmentStats{
				CoveredLines: 2, TotalLines: 2,
				CoveredBranches: 2, TotalBranches: 4,
				Uncovered: []Region{{Line: 10, Column: 14}, {Line: 10, Column: 20}},
			},
		},
		{
			name: "uncovered regions keep input order",
			segments: []llvmcov.Segment{
				seg(30, 2, 0, true, true),
				seg(4, 8, 0, true, true),
				seg(17, 1, 0, true, true),
			},
			want: SegmentStats{
				TotalLines: 3, TotalBranches: 3,
				Uncovered: []Region{{Line: 30, Column: 2}, {Line: 4, Column: 8}, {Line: 17, Column: 1}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Analyze(tt.segments)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, got.CoveredLines, got.TotalLines)
			assert.LessOrEqual(t, got.CoveredBranches, got.TotalBranches)
		})
	}
}

func TestAnalyzeCoveredNeverExceedsTotal(t *testing.T) {
	var segments []llvmcov.Segment
	for i := 0; i < 200; i++ {
		segments = append(segments, seg(i%37, i%11, uint64(i%3), i%2 == 0, i%5 != 0))
	}

	got := Analyze(segments)
	assert.LessOrEqual(t, got.CoveredLines, got.TotalLines)
	assert.LessOrEqual(t, got.CoveredBranches, got.TotalBranches)
	assert.Equal(t, 37, got.TotalLines)
	assert.Len(t, got.Uncovered, got.TotalBranches-got.CoveredBranches)
}
