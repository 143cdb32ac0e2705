package coverage

import "sort"

// Tier buckets a file's overall percentage for display and filtering.
type Tier string

const (
	TierPerfect   Tier = "perfect"
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
	TierFair      Tier = "fair"
	TierPoor      Tier = "poor"
)

// Tiers lists every tier from best to worst.
var Tiers = []Tier{TierPerfect, TierExcellent, TierGood, TierFair, TierPoor}

// TierOf classifies an overall percentage. Lower bounds are inclusive.
func TierOf(pct float64) Tier {
	switch {
	case pct == 100:
		return TierPerfect
	case pct >= 95:
		return TierExcellent
	case pct >= 85:
		return TierGood
	case pct >= 70:
		return TierFair
	default:
		return TierPoor
	}
}

// Tier returns the file's tier.
func (f FileCoverage) Tier() Tier {
	return TierOf(f.Overall)
}

// TierCounts is the number of files in each tier.
type TierCounts struct {
	Perfect   int
	Excellent int
	Good      int
	Fair      int
	Poor      int
}

func (c *TierCounts) add(t Tier) {
	switch t {
	case TierPerfect:
		c.Perfect++
	case TierExcellent:
		c.Excellent++
	case TierGood:
		c.Good++
	case TierFair:
		c.Fair++
	default:
		c.Poor++
	}
}

// Count returns the number of files in tier t.
func (c TierCounts) Count(t Tier) int {
	switch t {
	case TierPerfect:
		return c.Perfect
	case TierExcellent:
		return c.Excellent
	case TierGood:
		return c.Good
	case TierFair:
		return c.Fair
	case TierPoor:
		return c.Poor
	}
	return 0
}

// Summary rolls up a set of files. It is used both per category and for the
// whole project; unlike a single file, an empty rollup is 0%, not 100%.
type Summary struct {
	Files    int
	Lines    Metric
	Branches Metric
	Overall  float64
	Tiers    TierCounts
}

// Summarize sums covered and total counts across files.
func Summarize(files []FileCoverage) Summary {
	var s Summary
	var coveredLines, totalLines, coveredBranches, totalBranches int
	for _, f := range files {
		coveredLines += f.Lines.Covered
		totalLines += f.Lines.Total
		coveredBranches += f.Branches.Covered
		totalBranches += f.Branches.Total
		s.Tiers.add(f.Tier())
	}

	s.Files = len(files)
	s.Lines = aggregateMetric(coveredLines, totalLines)
	s.Branches = aggregateMetric(coveredBranches, totalBranches)
	s.Overall = combine(s.Lines, s.Branches, 0)
	return s
}

// CategoryCoverage is the files of one category with their rollup.
type CategoryCoverage struct {
	Name  string
	Files []FileCoverage
	Summary
}

// Sorted returns the files ordered by display name, then relative path so
// that equal names still come out in a stable order.
func Sorted(files map[string]FileCoverage) []FileCoverage {
	sorted := make([]FileCoverage, 0, len(files))
	for _, f := range files {
		sorted = append(sorted, f)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		if sorted[i].RelativePath != sorted[j].RelativePath {
			return sorted[i].RelativePath < sorted[j].RelativePath
		}
		return sorted[i].Path < sorted[j].Path
	})
	return sorted
}

// Categories groups files by category. Categories are in ascending name order
// and files within each are ordered as by Sorted.
func Categories(files map[string]FileCoverage) []CategoryCoverage {
	byName := make(map[string][]FileCoverage)
	for _, f := range Sorted(files) {
		byName[f.Category] = append(byName[f.Category], f)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	categories := make([]CategoryCoverage, 0, len(names))
	for _, name := range names {
		categories = append(categories, CategoryCoverage{
			Name:    name,
			Files:   byName[name],
			Summary: Summarize(byName[name]),
		})
	}
	return categories
}
