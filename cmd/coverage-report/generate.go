package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jupierce/swift-coverage-report/pkg/cobertura"
	"github.com/jupierce/swift-coverage-report/pkg/coverage"
	"github.com/jupierce/swift-coverage-report/pkg/history"
	"github.com/jupierce/swift-coverage-report/pkg/log"
	"github.com/jupierce/swift-coverage-report/pkg/report"
)

// Generate command flags
var (
	genFilter       string
	genOutput       string
	genCoverageFile string
	genFormat       string
	genSourceRoot   string
	genCobertura    string
	genRecord       bool
	genDB           string
	genKeep         int
)

var generateCmd = &cobra.Command{
	Use:   "generate <package_path>",
	Short: "Generate an HTML coverage report for a package",
	Long: `Generate a self-contained HTML coverage report for the package at
<package_path>.

The coverage export is looked up under .build (arm64, then x86_64, then the
generic debug directory), preferring <package>.json. Files are grouped by the
first directory below Sources/<package>/.`,
	Example: `  # Report for the package in the current directory
  coverage-report generate .

  # Only files whose path contains "Entities"
  coverage-report generate ./MyPackage --filter Entities

  # Also write Cobertura XML and record a history snapshot
  coverage-report generate ./MyPackage --cobertura coverage.xml --record

  # Report a Go module from its coverprofile
  coverage-report generate ./mytool --format go --coverage-file cover.out`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&genFilter, "filter", "", "Only include files whose path contains this string")
	generateCmd.Flags().StringVarP(&genOutput, "output", "o", "", "Output HTML path (default <package>/coverage_report.html)")
	generateCmd.Flags().StringVar(&genCoverageFile, "coverage-file", "", "Coverage export to read instead of searching .build")
	generateCmd.Flags().StringVar(&genFormat, "format", formatLLVM, "Coverage input format (llvm, go)")
	generateCmd.Flags().StringVar(&genSourceRoot, "source-root", "", "Path prefix that marks package sources (default /Sources/<package>/, or the module path for go)")
	generateCmd.Flags().StringVar(&genCobertura, "cobertura", "", "Also write Cobertura XML to this path")
	generateCmd.Flags().BoolVar(&genRecord, "record", false, "Record a snapshot in the history database")
	generateCmd.Flags().StringVar(&genDB, "db", "", "History database path (default <package>/.build/coverage_history.db)")
	generateCmd.Flags().IntVar(&genKeep, "keep", 0, "With --record, keep only this many most recent runs (0 keeps all)")

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	logger, err := createLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	packagePath, err := resolvePackage(args[0])
	if err != nil {
		return err
	}
	packageName := filepath.Base(packagePath)

	logger.Info("🚀 Generating coverage report for %s", packageName)
	logger.Debug("Package path: %s", packagePath)

	export, files, err := loadCoverage(logger, coverageSource{
		packagePath:  packagePath,
		coverageFile: genCoverageFile,
		format:       genFormat,
		sourceRoot:   genSourceRoot,
		filter:       genFilter,
	})
	if err != nil {
		return err
	}

	output := genOutput
	if output == "" {
		output = filepath.Join(packagePath, "coverage_report.html")
	}

	logger.Progress("Rendering report")
	if err := report.WriteFile(output, files, report.Options{PackageName: packageName, Filter: genFilter}); err != nil {
		return err
	}
	logger.Success("HTML report written to %s", output)

	summary := coverage.Summarize(coverage.Sorted(files))
	printSummary(logger, summary)

	if genCobertura != "" {
		doc := cobertura.Build(export, files, cobertura.Options{Source: packagePath, Timestamp: time.Now()})
		if err := cobertura.WriteFile(genCobertura, doc); err != nil {
			return err
		}
		logger.Success("Cobertura XML written to %s", genCobertura)
	}

	if genRecord {
		dbPath := genDB
		if dbPath == "" {
			dbPath = cfg.HistoryDB(packagePath)
		}
		if err := recordRun(logger, dbPath, packageName, files); err != nil {
			return err
		}
	}

	logger.Info("\n🌐 Open HTML report: file://%s", output)
	return nil
}

func printSummary(logger *log.Logger, s coverage.Summary) {
	logger.Info("📊 Overall coverage: %.1f%%", s.Overall)
	logger.Info("   Lines:    %.1f%% (%s/%s)", s.Lines.Percentage,
		humanize.Comma(int64(s.Lines.Covered)), humanize.Comma(int64(s.Lines.Total)))
	logger.Info("   Branches: %.1f%% (%s/%s)", s.Branches.Percentage,
		humanize.Comma(int64(s.Branches.Covered)), humanize.Comma(int64(s.Branches.Total)))
	logger.Info("   Files:    %d (perfect %d, excellent %d, good %d, fair %d, poor %d)", s.Files,
		s.Tiers.Perfect, s.Tiers.Excellent, s.Tiers.Good, s.Tiers.Fair, s.Tiers.Poor)
}

func recordRun(logger *log.Logger, dbPath, packageName string, files map[string]coverage.FileCoverage) error {
	store, err := history.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.Record(packageName, genFilter, files, time.Now())
	if err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	logger.Success("Recorded run %s in %s", run.ID, dbPath)

	if genKeep > 0 {
		removed, err := store.Prune(packageName, genKeep)
		if err != nil {
			return err
		}
		if removed > 0 {
			logger.Info("   Pruned %d old run(s)", removed)
		}
	}

	recent, err := store.Recent(packageName, 1)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	if len(recent) == 1 && recent[0].HasPrevious {
		logger.Info("   Change since previous run: %s", formatDelta(recent[0].Delta))
	}
	return nil
}

func formatDelta(delta float64) string {
	return fmt.Sprintf("%+.1f%%", delta)
}
