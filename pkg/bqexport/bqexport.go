// Package bqexport loads per-file coverage into BigQuery so coverage can be
// queried across packages and over time.
package bqexport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/jupierce/swift-coverage-report/pkg/coverage"
)

const (
	FileTable = "file_coverage"
	RunTable  = "coverage_runs"

	batchSize = 500
)

// FileCoverageRow is one file of one ingestion run.
type FileCoverageRow struct {
	IngestionTime   time.Time `bigquery:"ingestion_time"`
	RunID           string    `bigquery:"run_id"`
	Package         string    `bigquery:"package"`
	Category        string    `bigquery:"category"`
	FileName        string    `bigquery:"file_name"`
	RelativePath    string    `bigquery:"relative_path"`
	CoveredLines    int       `bigquery:"covered_lines"`
	TotalLines      int       `bigquery:"total_lines"`
	CoveredBranches int       `bigquery:"covered_branches"`
	TotalBranches   int       `bigquery:"total_branches"`
	LinePct         float64   `bigquery:"line_pct"`
	BranchPct       float64   `bigquery:"branch_pct"`
	OverallPct      float64   `bigquery:"overall_pct"`
	Tier            string    `bigquery:"tier"`
	UncoveredCount  int       `bigquery:"uncovered_regions"`
}

// RunRow is the package-wide summary of one ingestion run.
type RunRow struct {
	IngestionTime   time.Time `bigquery:"ingestion_time"`
	RunID           string    `bigquery:"run_id"`
	Package         string    `bigquery:"package"`
	Filter          string    `bigquery:"filter"`
	Files           int       `bigquery:"files"`
	CoveredLines    int       `bigquery:"covered_lines"`
	TotalLines      int       `bigquery:"total_lines"`
	CoveredBranches int       `bigquery:"covered_branches"`
	TotalBranches   int       `bigquery:"total_branches"`
	OverallPct      float64   `bigquery:"overall_pct"`
}

var fileSchema = bigquery.Schema{
	{Name: "ingestion_time", Type: bigquery.TimestampFieldType, Required: true},
	{Name: "run_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "package", Type: bigquery.StringFieldType, Required: true},
	{Name: "category", Type: bigquery.StringFieldType, Required: true},
	{Name: "file_name", Type: bigquery.StringFieldType, Required: true},
	{Name: "relative_path", Type: bigquery.StringFieldType, Required: true},
	{Name: "covered_lines", Type: bigquery.IntegerFieldType, Required: true},
	{Name: "total_lines", Type: bigquery.IntegerFieldType, Required: true},
	{Name: "covered_branches", Type: bigquery.IntegerFieldType, Required: true},
	{Name: "total_branches", Type: bigquery.IntegerFieldType, Required: true},
	{Name: "line_pct", Type: bigquery.FloatFieldType, Required: true},
	{Name: "branch_pct", Type: bigquery.FloatFieldType, Required: true},
	{Name: "overall_pct", Type: bigquery.FloatFieldType, Required: true},
	{Name: "tier", Type: bigquery.StringFieldType, Required: true},
	{Name: "uncovered_regions", Type: bigquery.IntegerFieldType, Required: true},
}

var runSchema = bigquery.Schema{
	{Name: "ingestion_time", Type: bigquery.TimestampFieldType, Required: true},
	{Name: "run_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "package", Type: bigquery.StringFieldType, Required: true},
	{Name: "filter", Type: bigquery.StringFieldType},
	{Name: "files", Type: bigquery.IntegerFieldType, Required: true},
	{Name: "covered_lines", Type: bigquery.IntegerFieldType, Required: true},
	{Name: "total_lines", Type: bigquery.IntegerFieldType, Required: true},
	{Name: "covered_branches", Type: bigquery.IntegerFieldType, Required: true},
	{Name: "total_branches", Type: bigquery.IntegerFieldType, Required: true},
	{Name: "overall_pct", Type: bigquery.FloatFieldType, Required: true},
}

// Batch is the rows produced by one ingestion run.
type Batch struct {
	Run   RunRow
	Files []FileCoverageRow
}

// Build turns aggregated files into rows, ordered as coverage.Sorted orders
// them.
func Build(files map[string]coverage.FileCoverage, packageName, filter, runID string, at time.Time) Batch {
	at = at.UTC()
	sorted := coverage.Sorted(files)
	summary := coverage.Summarize(sorted)

	batch := Batch{
		Run: RunRow{
			IngestionTime:   at,
			RunID:           runID,
			Package:         packageName,
			Filter:          filter,
			Files:           summary.Files,
			CoveredLines:    summary.Lines.Covered,
			TotalLines:      summary.Lines.Total,
			CoveredBranches: summary.Branches.Covered,
			TotalBranches:   summary.Branches.Total,
			OverallPct:      summary.Overall,
		},
		Files: make([]FileCoverageRow, 0, len(sorted)),
	}

	for _, f := range sorted {
		batch.Files = append(batch.Files, FileCoverageRow{
			IngestionTime:   at,
			RunID:           runID,
			Package:         packageName,
			Category:        f.Category,
			FileName:        f.Name,
			RelativePath:    f.RelativePath,
			CoveredLines:    f.Lines.Covered,
			TotalLines:      f.Lines.Total,
			CoveredBranches: f.Branches.Covered,
			TotalBranches:   f.Branches.Total,
			LinePct:         f.Lines.Percentage,
			BranchPct:       f.Branches.Percentage,
			OverallPct:      f.Overall,
			Tier:            string(f.Tier()),
			UncoveredCount:  len(f.Uncovered),
		})
	}
	return batch
}

// putter is the part of *bigquery.Inserter used for loading rows.
type putter interface {
	Put(ctx context.Context, src interface{}) error
}

// Result counts what an ingestion inserted.
type Result struct {
	FileRows int
	Failed   int
}

// Ingest ensures the dataset and tables exist, then inserts batch.
func Ingest(ctx context.Context, client *bigquery.Client, datasetID string, batch Batch) (Result, error) {
	dataset := client.Dataset(datasetID)
	if err := EnsureTables(ctx, dataset); err != nil {
		return Result{}, fmt.Errorf("setup BigQuery: %w", err)
	}

	return insert(ctx, dataset.Table(RunTable).Inserter(), dataset.Table(FileTable).Inserter(), batch)
}

func insert(ctx context.Context, runs, files putter, batch Batch) (Result, error) {
	if err := runs.Put(ctx, &batch.Run); err != nil {
		return Result{}, fmt.Errorf("insert run row: %w", err)
	}

	var res Result
	for start := 0; start < len(batch.Files); start += batchSize {
		end := start + batchSize
		if end > len(batch.Files) {
			end = len(batch.Files)
		}

		rows := make([]*FileCoverageRow, 0, end-start)
		for i := start; i < end; i++ {
			rows = append(rows, &batch.Files[i])
		}

		if err := files.Put(ctx, rows); err != nil {
			var multi bigquery.PutMultiError
			if errors.As(err, &multi) {
				res.Failed += len(multi)
				res.FileRows += len(rows) - len(multi)
				continue
			}
			return res, fmt.Errorf("insert file rows at offset %d: %w", start, err)
		}
		res.FileRows += len(rows)
	}
	return res, nil
}

// EnsureTables creates the dataset and both tables when they do not exist.
func EnsureTables(ctx context.Context, dataset *bigquery.Dataset) error {
	if err := dataset.Create(ctx, &bigquery.DatasetMetadata{}); err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("create dataset: %w", err)
	}

	if err := dataset.Table(FileTable).Create(ctx, &bigquery.TableMetadata{
		Schema: fileSchema,
		TimePartitioning: &bigquery.TimePartitioning{
			Field: "ingestion_time",
		},
		Clustering: &bigquery.Clustering{
			Fields: []string{"package", "category", "run_id"},
		},
	}); err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("create %s table: %w", FileTable, err)
	}

	if err := dataset.Table(RunTable).Create(ctx, &bigquery.TableMetadata{
		Schema: runSchema,
		TimePartitioning: &bigquery.TimePartitioning{
			Field: "ingestion_time",
		},
		Clustering: &bigquery.Clustering{
			Fields: []string{"package"},
		},
	}); err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("create %s table: %w", RunTable, err)
	}

	return nil
}

func isAlreadyExists(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Already Exists") ||
		strings.Contains(msg, "alreadyExists") ||
		strings.Contains(msg, "409")
}
