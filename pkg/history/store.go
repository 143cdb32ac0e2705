// Package history keeps coverage snapshots of past report runs in SQLite so
// coverage trends can be shown between runs.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jupierce/swift-coverage-report/pkg/coverage"
)

const schemaVersion = 1

// timeLayout has fixed-width fractions so recorded_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one recorded snapshot.
type Run struct {
	ID         string
	Package    string
	Filter     string
	RecordedAt time.Time
	Summary    coverage.Summary

	// Delta is the overall percentage change against the previous run of
	// the same package. HasPrevious is false for the oldest run.
	Delta       float64
	HasPrevious bool
}

// FileStat is the stored per-file row of a run. Lines and Branches carry
// counts only.
type FileStat struct {
	Path     string
	Category string
	Lines    coverage.Metric
	Branches coverage.Metric
	Overall  float64
}

// Store is a history database handle.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			package TEXT NOT NULL,
			filter TEXT NOT NULL DEFAULT '',
			recorded_at TEXT NOT NULL,
			files INTEGER NOT NULL,
			covered_lines INTEGER NOT NULL,
			total_lines INTEGER NOT NULL,
			covered_branches INTEGER NOT NULL,
			total_branches INTEGER NOT NULL,
			line_pct REAL NOT NULL,
			branch_pct REAL NOT NULL,
			overall_pct REAL NOT NULL
		);

		CREATE TABLE IF NOT EXISTS file_stats (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			path TEXT NOT NULL,
			category TEXT NOT NULL,
			covered_lines INTEGER NOT NULL,
			total_lines INTEGER NOT NULL,
			covered_branches INTEGER NOT NULL,
			total_branches INTEGER NOT NULL,
			overall_pct REAL NOT NULL,
			PRIMARY KEY (run_id, path)
		);

		CREATE INDEX IF NOT EXISTS idx_runs_package ON runs(package, recorded_at);
	`)
	if err != nil {
		return err
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if count == 0 {
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	}
	return nil
}

// Record stores a snapshot of files for packageName and returns it.
func (s *Store) Record(packageName, filter string, files map[string]coverage.FileCoverage, at time.Time) (*Run, error) {
	sorted := coverage.Sorted(files)
	run := &Run{
		ID:         uuid.NewString(),
		Package:    packageName,
		Filter:     filter,
		RecordedAt: at.UTC(),
		Summary:    coverage.Summarize(sorted),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	sum := run.Summary
	_, err = tx.Exec(`
		INSERT INTO runs (id, package, filter, recorded_at, files,
			covered_lines, total_lines, covered_branches, total_branches,
			line_pct, branch_pct, overall_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Package, run.Filter, run.RecordedAt.Format(timeLayout), sum.Files,
		sum.Lines.Covered, sum.Lines.Total, sum.Branches.Covered, sum.Branches.Total,
		sum.Lines.Percentage, sum.Branches.Percentage, sum.Overall)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("insert run: %w", err)
	}

	for _, f := range sorted {
		_, err := tx.Exec(`
			INSERT INTO file_stats (run_id, path, category, covered_lines, total_lines,
				covered_branches, total_branches, overall_pct)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, path) DO UPDATE SET
				category = excluded.category,
				covered_lines = excluded.covered_lines,
				total_lines = excluded.total_lines,
				covered_branches = excluded.covered_branches,
				total_branches = excluded.total_branches,
				overall_pct = excluded.overall_pct
		`, run.ID, f.Path, f.Category, f.Lines.Covered, f.Lines.Total,
			f.Branches.Covered, f.Branches.Total, f.Overall)
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("insert file stats for %s: %w", f.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit run: %w", err)
	}
	return run, nil
}

// Recent returns up to limit runs of packageName, newest first, with deltas
// filled in against the run recorded before each one.
func (s *Store) Recent(packageName string, limit int) ([]Run, error) {
	if limit <= 0 {
		return nil, nil
	}

	// One extra row so the oldest returned run still gets a delta.
	rows, err := s.db.Query(`
		SELECT id, package, filter, recorded_at, files,
			covered_lines, total_lines, covered_branches, total_branches,
			line_pct, branch_pct, overall_pct
		FROM runs
		WHERE package = ?
		ORDER BY recorded_at DESC, rowid DESC
		LIMIT ?
	`, packageName, limit+1)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var recordedAt string
		if err := rows.Scan(&r.ID, &r.Package, &r.Filter, &recordedAt, &r.Summary.Files,
			&r.Summary.Lines.Covered, &r.Summary.Lines.Total,
			&r.Summary.Branches.Covered, &r.Summary.Branches.Total,
			&r.Summary.Lines.Percentage, &r.Summary.Branches.Percentage, &r.Summary.Overall); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.RecordedAt, err = time.Parse(timeLayout, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parse recorded_at %q: %w", recordedAt, err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read runs: %w", err)
	}

	for i := 0; i+1 < len(runs); i++ {
		runs[i].Delta = runs[i].Summary.Overall - runs[i+1].Summary.Overall
		runs[i].HasPrevious = true
	}
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Files returns the per-file rows of a run ordered by path.
func (s *Store) Files(runID string) ([]FileStat, error) {
	rows, err := s.db.Query(`
		SELECT path, category, covered_lines, total_lines,
			covered_branches, total_branches, overall_pct
		FROM file_stats
		WHERE run_id = ?
		ORDER BY path
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query file stats: %w", err)
	}
	defer rows.Close()

	var stats []FileStat
	for rows.Next() {
		var fs FileStat
		if err := rows.Scan(&fs.Path, &fs.Category, &fs.Lines.Covered, &fs.Lines.Total,
			&fs.Branches.Covered, &fs.Branches.Total, &fs.Overall); err != nil {
			return nil, fmt.Errorf("scan file stats: %w", err)
		}
		stats = append(stats, fs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read file stats: %w", err)
	}
	return stats, nil
}

// Prune deletes all but the newest keep runs of packageName and returns how
// many were removed.
func (s *Store) Prune(packageName string, keep int) (int64, error) {
	res, err := s.db.Exec(`
		DELETE FROM runs
		WHERE package = ? AND id NOT IN (
			SELECT id FROM runs WHERE package = ?
			ORDER BY recorded_at DESC, rowid DESC
			LIMIT ?
		)
	`, packageName, packageName, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return n, nil
}
