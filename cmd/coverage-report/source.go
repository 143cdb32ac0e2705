package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/jupierce/swift-coverage-report/pkg/coverage"
	"github.com/jupierce/swift-coverage-report/pkg/gocover"
	"github.com/jupierce/swift-coverage-report/pkg/llvmcov"
	"github.com/jupierce/swift-coverage-report/pkg/locate"
	"github.com/jupierce/swift-coverage-report/pkg/log"
)

const (
	formatLLVM = "llvm"
	formatGo   = "go"
)

// coverageSource says where coverage for a package comes from and which
// files to keep.
type coverageSource struct {
	packagePath  string
	coverageFile string
	format       string
	sourceRoot   string
	filter       string
}

// loadCoverage reads and aggregates the coverage for src.
func loadCoverage(logger *log.Logger, src coverageSource) (*llvmcov.Export, map[string]coverage.FileCoverage, error) {
	packageName := filepath.Base(src.packagePath)
	opts := coverage.Options{
		PackageName: packageName,
		SourceRoot:  src.sourceRoot,
		Filter:      src.filter,
	}

	var export *llvmcov.Export
	switch src.format {
	case formatLLVM, "":
		path := src.coverageFile
		if path == "" {
			found, err := locate.CoverageFile(src.packagePath)
			if err != nil {
				if errors.Is(err, locate.ErrNotFound) {
					logger.Error("No coverage data found. Run 'swift test --enable-code-coverage' first.")
				}
				return nil, nil, err
			}
			path = found
		}
		logger.Progress("Loading coverage data from %s (%s)", path, fileSize(path))

		var err error
		if export, err = llvmcov.Load(path); err != nil {
			return nil, nil, err
		}

	case formatGo:
		path := src.coverageFile
		if path == "" {
			path = filepath.Join(src.packagePath, "coverage.out")
		}
		logger.Progress("Loading Go coverprofile from %s (%s)", path, fileSize(path))

		var err error
		if export, err = gocover.Load(path); err != nil {
			return nil, nil, err
		}

		if opts.SourceRoot == "" {
			modulePath, err := gocover.ModulePath(src.packagePath)
			if err != nil {
				return nil, nil, fmt.Errorf("determine source root: %w", err)
			}
			opts.SourceRoot = modulePath
		}

	default:
		return nil, nil, fmt.Errorf("unknown coverage format %q (valid: %s, %s)", src.format, formatLLVM, formatGo)
	}

	logger.Debug("Export contains %d data unit(s), %d file entries", len(export.Data), export.Files())
	logger.Debug("Selecting files under %q", opts.Marker())

	files := coverage.Aggregate(export, opts)
	if len(files) == 0 {
		logger.Warning("No files matched %q%s", opts.Marker(), filterNote(src.filter))
	} else {
		logger.Info("Analyzed %s files%s", humanize.Comma(int64(len(files))), filterNote(src.filter))
	}

	return export, files, nil
}

func filterNote(filter string) string {
	if filter == "" {
		return ""
	}
	return fmt.Sprintf(" (filter: %s)", filter)
}

func fileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "size unknown"
	}
	return humanize.Bytes(uint64(info.Size()))
}
