package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jupierce/swift-coverage-report/pkg/bqexport"
	"github.com/jupierce/swift-coverage-report/pkg/config"
)

// BigQuery command flags
var (
	bqProject      string
	bqDataset      string
	bqFilter       string
	bqCoverageFile string
	bqFormat       string
	bqSourceRoot   string
	bqTimeout      int
)

var bigqueryCmd = &cobra.Command{
	Use:   "bigquery",
	Short: "BigQuery operations",
	Long:  `Export coverage data to Google BigQuery for cross-package and over-time analysis.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		if !cmd.Flags().Changed("project") {
			bqProject = cfg.BQProject
		}
		if !cmd.Flags().Changed("dataset") {
			bqDataset = cfg.BQDataset
		}
		if bqProject == "" || bqDataset == "" {
			return fmt.Errorf("--project and --dataset are required (or set %s and %s)", config.EnvBQProject, config.EnvBQDataset)
		}
		return nil
	},
}

var bqIngestCmd = &cobra.Command{
	Use:   "ingest <package_path>",
	Short: "Ingest per-file coverage into BigQuery",
	Long: `Aggregate the package's coverage and insert it into BigQuery.

Creates two tables in the specified dataset:
  - file_coverage:  One row per source file per run
  - coverage_runs:  One summary row per run

The dataset and tables are created if they don't exist.`,
	Example: `  coverage-report bigquery --project my-project --dataset coverage \
    ingest ./MyPackage

  # Only the Entities category, with a longer timeout
  coverage-report bigquery --project my-project --dataset coverage \
    ingest ./MyPackage --filter Entities --timeout 600`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	bigqueryCmd.PersistentFlags().StringVar(&bqProject, "project", "", "GCP project ID (default $COVERAGE_REPORT_BQ_PROJECT)")
	bigqueryCmd.PersistentFlags().StringVar(&bqDataset, "dataset", "", "BigQuery dataset name (default $COVERAGE_REPORT_BQ_DATASET)")

	bqIngestCmd.Flags().StringVar(&bqFilter, "filter", "", "Only include files whose path contains this string")
	bqIngestCmd.Flags().StringVar(&bqCoverageFile, "coverage-file", "", "Coverage export to read instead of searching .build")
	bqIngestCmd.Flags().StringVar(&bqFormat, "format", formatLLVM, "Coverage input format (llvm, go)")
	bqIngestCmd.Flags().StringVar(&bqSourceRoot, "source-root", "", "Path prefix that marks package sources")
	bqIngestCmd.Flags().IntVar(&bqTimeout, "timeout", 300, "Timeout in seconds for BigQuery operations")

	bigqueryCmd.AddCommand(bqIngestCmd)
	rootCmd.AddCommand(bigqueryCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
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
	ingestionTime := time.Now().UTC()
	runID := uuid.NewString()

	logger.Info("Ingesting coverage data for package: %s", packageName)
	logger.Info("BigQuery target: %s.%s", bqProject, bqDataset)
	logger.Info("Run ID: %s", runID)

	_, files, err := loadCoverage(logger, coverageSource{
		packagePath:  packagePath,
		coverageFile: bqCoverageFile,
		format:       bqFormat,
		sourceRoot:   bqSourceRoot,
		filter:       bqFilter,
	})
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.Warning("Nothing to ingest")
		return nil
	}

	batch := bqexport.Build(files, packageName, bqFilter, runID, ingestionTime)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(bqTimeout)*time.Second)
	defer cancel()

	client, err := bigquery.NewClient(ctx, bqProject)
	if err != nil {
		return fmt.Errorf("create BigQuery client: %w", err)
	}
	defer client.Close()

	logger.Progress("Inserting %d file rows", len(batch.Files))
	res, err := bqexport.Ingest(ctx, client, bqDataset, batch)
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		logger.Warning("%d file row(s) were rejected by BigQuery", res.Failed)
	}

	logger.Success("Ingestion complete")
	logger.Info("  %s rows: %d", bqexport.FileTable, res.FileRows)
	logger.Info("  %s rows: 1", bqexport.RunTable)
	return nil
}
