package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	EnvVerbosity    = "COVERAGE_REPORT_VERBOSITY"
	EnvLogDir       = "COVERAGE_REPORT_LOG_DIR"
	EnvDB           = "COVERAGE_REPORT_DB"
	EnvBQProject    = "COVERAGE_REPORT_BQ_PROJECT"
	EnvBQDataset    = "COVERAGE_REPORT_BQ_DATASET"
	EnvHistoryLimit = "COVERAGE_REPORT_HISTORY_LIMIT"
)

// Config holds the defaults command-line flags fall back to.
type Config struct {
	Verbosity    string
	LogDir       string
	DBPath       string // empty means <package>/.build/coverage_history.db
	BQProject    string
	BQDataset    string
	HistoryLimit int
}

// Load reads dotenv files into the environment, then builds a Config from it.
// Missing files are ignored and variables already set are left alone. With no
// arguments ".env" in the working directory is tried.
func Load(envFiles ...string) *Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	return FromEnv()
}

// FromEnv builds a Config from the current environment.
func FromEnv() *Config {
	cfg := &Config{
		Verbosity:    os.Getenv(EnvVerbosity),
		LogDir:       os.Getenv(EnvLogDir),
		DBPath:       os.Getenv(EnvDB),
		BQProject:    os.Getenv(EnvBQProject),
		BQDataset:    os.Getenv(EnvBQDataset),
		HistoryLimit: 10, // Default value
	}

	if cfg.Verbosity == "" {
		cfg.Verbosity = "info"
	}

	if limitStr := os.Getenv(EnvHistoryLimit); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			cfg.HistoryLimit = limit
		}
	}

	return cfg
}

// HistoryDB returns the history database path for the package at packagePath.
func (c *Config) HistoryDB(packagePath string) string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(packagePath, ".build", "coverage_history.db")
}
