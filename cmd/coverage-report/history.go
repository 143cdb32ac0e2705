package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jupierce/swift-coverage-report/pkg/history"
)

// History command flags
var (
	histDB    string
	histLimit int
	histRun   string
)

var historyCmd = &cobra.Command{
	Use:   "history <package_path>",
	Short: "Show recorded coverage runs for a package",
	Long: `List the most recent coverage snapshots recorded with
'generate --record', newest first, with the change in overall coverage
against the run before each one.`,
	Example: `  # Last 10 runs
  coverage-report history ./MyPackage

  # Last 3 runs from a shared database
  coverage-report history ./MyPackage --db /tmp/coverage.db --limit 3

  # Per-file coverage of one recorded run
  coverage-report history ./MyPackage --run 0b6d8a1e-5c8f-4a57-9d53-3f1f3b1c2a10`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&histDB, "db", "", "History database path (default <package>/.build/coverage_history.db)")
	historyCmd.Flags().IntVar(&histLimit, "limit", 10, "Number of runs to show")
	historyCmd.Flags().StringVar(&histRun, "run", "", "Show per-file coverage of this run ID instead of the run list")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
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

	dbPath := histDB
	if dbPath == "" {
		dbPath = cfg.HistoryDB(packagePath)
	}
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("history database not found at %s (run 'generate --record' first)", dbPath)
	}

	limit := histLimit
	if !cmd.Flags().Changed("limit") {
		limit = cfg.HistoryLimit
	}
	if limit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", limit)
	}

	store, err := history.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if histRun != "" {
		return printRunFiles(cmd, store, histRun)
	}

	runs, err := store.Recent(packageName, limit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	if len(runs) == 0 {
		logger.Warning("No recorded runs for %s in %s", packageName, dbPath)
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Coverage history for %s (%d run(s))\n\n", packageName, len(runs))
	fmt.Fprintf(out, "%-20s %8s %8s %8s %8s %6s  %s\n", "RECORDED", "OVERALL", "CHANGE", "LINES", "BRANCHES", "FILES", "FILTER")
	for _, r := range runs {
		change := "-"
		if r.HasPrevious {
			change = formatDelta(r.Delta)
		}
		fmt.Fprintf(out, "%-20s %7.1f%% %8s %7.1f%% %7.1f%% %6d  %s\n",
			r.RecordedAt.Local().Format("2006-01-02 15:04:05"),
			r.Summary.Overall, change,
			r.Summary.Lines.Percentage, r.Summary.Branches.Percentage,
			r.Summary.Files, r.Filter)
	}
	return nil
}

func printRunFiles(cmd *cobra.Command, store *history.Store, runID string) error {
	stats, err := store.Files(runID)
	if err != nil {
		return fmt.Errorf("load run files: %w", err)
	}
	if len(stats) == 0 {
		return fmt.Errorf("no files recorded for run %s", runID)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-12s %8s %11s %11s  %s\n", "CATEGORY", "OVERALL", "LINES", "BRANCHES", "FILE")
	for _, fs := range stats {
		fmt.Fprintf(out, "%-12s %7.1f%% %11s %11s  %s\n", fs.Category, fs.Overall,
			fmt.Sprintf("%d/%d", fs.Lines.Covered, fs.Lines.Total),
			fmt.Sprintf("%d/%d", fs.Branches.Covered, fs.Branches.Total),
			fs.Path)
	}
	return nil
}
