// Package gocover converts Go coverprofiles into the llvm-cov export shape so
// Go modules can be reported with the same pipeline as Swift packages.
package gocover

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"
	"golang.org/x/tools/cover"

	"github.com/jupierce/swift-coverage-report/pkg/llvmcov"
)

// Load parses the coverprofile at path and converts it.
func Load(path string) (*llvmcov.Export, error) {
	profiles, err := cover.ParseProfiles(path)
	if err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	return Convert(profiles), nil
}

// Convert maps every profile block to one region segment at the block start
// plus a line marker for each following line the block spans. Region segments
// carry the block count, so a block that never ran is an uncovered region.
func Convert(profiles []*cover.Profile) *llvmcov.Export {
	files := make([]llvmcov.File, 0, len(profiles))
	for _, profile := range profiles {
		file := llvmcov.File{Filename: profile.FileName}
		for _, block := range profile.Blocks {
			count := uint64(0)
			if block.Count > 0 {
				count = uint64(block.Count)
			}

			file.Segments = append(file.Segments, llvmcov.Segment{
				Line:     block.StartLine,
				Column:   block.StartCol,
				Count:    count,
				IsRegion: true,
				HasCount: true,
			})
			for line := block.StartLine + 1; line <= block.EndLine; line++ {
				file.Segments = append(file.Segments, llvmcov.Segment{
					Line:     line,
					Column:   1,
					Count:    count,
					HasCount: true,
				})
			}
		}
		files = append(files, file)
	}

	return &llvmcov.Export{
		Type: "go.coverprofile",
		Data: []llvmcov.Data{{Files: files}},
	}
}

// ModulePath reads the module path from dir/go.mod.
func ModulePath(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return "", fmt.Errorf("read go.mod: %w", err)
	}
	path := modfile.ModulePath(data)
	if path == "" {
		return "", fmt.Errorf("no module directive in %s", filepath.Join(dir, "go.mod"))
	}
	return path, nil
}
