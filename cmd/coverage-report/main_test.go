package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupierce/swift-coverage-report/pkg/history"
	"github.com/jupierce/swift-coverage-report/pkg/locate"
)

const exportJSON = `{
  "type": "llvm.coverage.json.export",
  "version": "2.0.1",
  "data": [{
    "files": [
      {"filename": "/src/MyPkg/Sources/MyPkg/Models/User.swift",
       "segments": [[1, 1, 3, true, true, false], [2, 5, 0, true, true, false], [3, 1, 0, false, true, false]]},
      {"filename": "/src/MyPkg/Sources/MyPkg/App.swift",
       "segments": [[1, 1, 1, true, true, false]]},
      {"filename": "/src/MyPkg/Tests/MyPkgTests/UserTests.swift",
       "segments": [[1, 1, 1, true, true, false]]}
    ],
    "totals": {}
  }]
}`

// execute runs the root command with flags reset to their defaults, since
// cobra keeps flag values in package state between runs.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{"COVERAGE_REPORT_DB", "COVERAGE_REPORT_LOG_DIR", "COVERAGE_REPORT_HISTORY_LIMIT"} {
		t.Setenv(key, "")
	}
	t.Setenv("COVERAGE_REPORT_VERBOSITY", "error")

	reset := func(flags *pflag.FlagSet) {
		flags.VisitAll(func(f *pflag.Flag) {
			require.NoError(t, f.Value.Set(f.DefValue))
			f.Changed = false
		})
	}
	reset(rootCmd.PersistentFlags())
	for _, c := range []*cobra.Command{generateCmd, historyCmd, bigqueryCmd, bqIngestCmd} {
		reset(c.Flags())
		reset(c.PersistentFlags())
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func swiftPackage(t *testing.T) string {
	t.Helper()
	pkg := filepath.Join(t.TempDir(), "MyPkg")
	codecov := filepath.Join(pkg, ".build", "debug", "codecov")
	require.NoError(t, os.MkdirAll(codecov, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(codecov, "MyPkg.json"), []byte(exportJSON), 0644))
	return pkg
}

func TestResolvePackage(t *testing.T) {
	dir := t.TempDir()
	got, err := resolvePackage(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	file := filepath.Join(dir, "Package.swift")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	_, err = resolvePackage(file)
	assert.ErrorContains(t, err, "not a directory")

	_, err = resolvePackage(filepath.Join(dir, "missing"))
	assert.ErrorContains(t, err, "does not exist")
}

func TestGenerate(t *testing.T) {
	pkg := swiftPackage(t)
	xmlPath := filepath.Join(t.TempDir(), "coverage.xml")

	_, err := execute(t, "generate", pkg, "--cobertura", xmlPath)
	require.NoError(t, err)

	html, err := os.ReadFile(filepath.Join(pkg, "coverage_report.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "Models/User.swift")
	assert.Contains(t, string(html), "App.swift")
	assert.NotContains(t, string(html), "UserTests")

	xml, err := os.ReadFile(xmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(xml), `<package name="Models"`)

	_, err = os.Stat(filepath.Join(pkg, ".build", "coverage_history.db"))
	assert.True(t, os.IsNotExist(err), "history is only written with --record")
}

func TestGenerateFilterAndOutput(t *testing.T) {
	pkg := swiftPackage(t)
	output := filepath.Join(t.TempDir(), "report.html")

	_, err := execute(t, "generate", pkg, "--filter", "Models", "--output", output)
	require.NoError(t, err)

	html, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(html), "MyPkg (Filtered: Models)")
	assert.NotContains(t, string(html), "App.swift")
}

func TestGenerateMissingCoverage(t *testing.T) {
	pkg := filepath.Join(t.TempDir(), "Empty")
	require.NoError(t, os.MkdirAll(pkg, 0755))

	_, err := execute(t, "generate", pkg)
	require.Error(t, err)
	assert.ErrorIs(t, err, locate.ErrNotFound)
}

func TestGenerateUnknownFormat(t *testing.T) {
	_, err := execute(t, "generate", swiftPackage(t), "--format", "lcov")
	assert.ErrorContains(t, err, `unknown coverage format "lcov"`)
}

func TestGenerateGoModule(t *testing.T) {
	mod := filepath.Join(t.TempDir(), "tool")
	require.NoError(t, os.MkdirAll(mod, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(mod, "go.mod"), []byte("module example.com/tool\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(mod, "coverage.out"), []byte(
		"mode: set\nexample.com/tool/store/store.go:3.20,5.2 1 1\nexample.com/tool/main.go:5.13,7.2 1 0\n"), 0644))

	_, err := execute(t, "generate", mod, "--format", "go")
	require.NoError(t, err)

	html, err := os.ReadFile(filepath.Join(mod, "coverage_report.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "store/store.go")
	assert.Contains(t, string(html), "main.go")
}

func TestRecordAndHistory(t *testing.T) {
	pkg := swiftPackage(t)
	db := filepath.Join(t.TempDir(), "history.db")

	_, err := execute(t, "history", pkg, "--db", db)
	assert.ErrorContains(t, err, "history database not found")

	for i := 0; i < 2; i++ {
		_, err := execute(t, "generate", pkg, "--record", "--db", db)
		require.NoError(t, err)
	}

	out, err := execute(t, "history", pkg, "--db", db, "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Coverage history for MyPkg (2 run(s))")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[3], "+0.0%")
	assert.Contains(t, lines[4], " - ")
}

func TestRecordKeepAndRunFiles(t *testing.T) {
	pkg := swiftPackage(t)
	db := filepath.Join(t.TempDir(), "history.db")

	for i := 0; i < 3; i++ {
		_, err := execute(t, "generate", pkg, "--record", "--db", db, "--keep", "2")
		require.NoError(t, err)
	}

	store, err := history.Open(db)
	require.NoError(t, err)
	runs, err := store.Recent("MyPkg", 10)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.Len(t, runs, 2)

	out, err := execute(t, "history", pkg, "--db", db, "--run", runs[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "CATEGORY")
	assert.Contains(t, out, "/src/MyPkg/Sources/MyPkg/Models/User.swift")
	assert.Contains(t, out, "1/3")
	assert.Contains(t, out, "1/2")

	_, err = execute(t, "history", pkg, "--db", db, "--run", "no-such-run")
	assert.ErrorContains(t, err, "no files recorded for run no-such-run")
}

func TestBigQueryRequiresTarget(t *testing.T) {
	t.Setenv("COVERAGE_REPORT_BQ_PROJECT", "")
	t.Setenv("COVERAGE_REPORT_BQ_DATASET", "")

	_, err := execute(t, "bigquery", "ingest", swiftPackage(t))
	assert.ErrorContains(t, err, "--project and --dataset are required")
}
