package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jupierce/swift-coverage-report/pkg/config"
	"github.com/jupierce/swift-coverage-report/pkg/log"
)

var (
	// Global flags
	verbosity string
	logDir    string

	// Environment defaults, loaded before any command runs
	cfg = config.FromEnv()

	rootCmd = &cobra.Command{
		Use:   "coverage-report",
		Short: "Generate HTML coverage reports for Swift packages",
		Long: `coverage-report turns the llvm-cov JSON export written by
'swift test --enable-code-coverage' into a self-contained HTML report with
per-category rollups, coverage tiers and uncovered regions.

Go coverprofiles can be reported the same way with --format go.

Defaults are read from COVERAGE_REPORT_* environment variables, which may
also be set in a .env file in the working directory. Flags take precedence.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.Load()
			if !cmd.Flags().Changed("verbosity") {
				verbosity = cfg.Verbosity
			}
			if !cmd.Flags().Changed("log-dir") {
				logDir = cfg.LogDir
			}
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&verbosity, "verbosity", "info", "Log verbosity (error, info, debug, trace)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Directory for a timestamped run log (disabled when empty)")
}

// createLogger creates the logger for one command run
func createLogger() (*log.Logger, error) {
	level, err := log.ParseLevel(verbosity)
	if err != nil {
		return nil, err
	}

	logger, err := log.New(level, logDir)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	if path := logger.Path(); path != "" {
		logger.Debug("Logging to %s", path)
	}
	return logger, nil
}

// resolvePackage returns the absolute path of an existing package directory.
func resolvePackage(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve package path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("package path does not exist: %s", path)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("package path is not a directory: %s", path)
	}
	return abs, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
