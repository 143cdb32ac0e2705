package gocover

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupierce/swift-coverage-report/pkg/coverage"
	"github.com/jupierce/swift-coverage-report/pkg/llvmcov"
)

const profile = `mode: set
example.com/tool/main.go:5.13,7.2 1 1
example.com/tool/store/store.go:10.30,12.16 2 1
example.com/tool/store/store.go:12.16,14.3 1 0
`

func writeProfile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coverage.out")
	require.NoError(t, os.WriteFile(path, []byte(profile), 0644))
	return path
}

func TestLoad(t *testing.T) {
	export, err := Load(writeProfile(t))
	require.NoError(t, err)
	require.Len(t, export.Data, 1)
	require.Len(t, export.Data[0].Files, 2)

	mainFile := export.Data[0].Files[0]
	assert.Equal(t, "example.com/tool/main.go", mainFile.Filename)
	assert.Equal(t, []llvmcov.Segment{
		{Line: 5, Column: 13, Count: 1, IsRegion: true, HasCount: true},
		{Line: 6, Column: 1, Count: 1, HasCount: true},
		{Line: 7, Column: 1, Count: 1, HasCount: true},
	}, mainFile.Segments)
}

func TestLoadFeedsAggregate(t *testing.T) {
	export, err := Load(writeProfile(t))
	require.NoError(t, err)

	files := coverage.Aggregate(export, coverage.Options{PackageName: "tool", SourceRoot: "example.com/tool"})
	require.Len(t, files, 2)

	store := files["example.com/tool/store/store.go"]
	assert.Equal(t, "store", store.Category)
	assert.Equal(t, 5, store.Lines.Total)
	assert.Equal(t, 3, store.Lines.Covered) // lines 13 and 14 only belong to the unexecuted block
	assert.Equal(t, 2, store.Branches.Total)
	assert.Equal(t, 1, store.Branches.Covered)
	assert.Equal(t, []coverage.Region{{Line: 12, Column: 16}}, store.Uncovered)

	assert.Equal(t, coverage.RootCategory, files["example.com/tool/main.go"].Category)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.out"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse profiles")
}

func TestModulePath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/tool\n\ngo 1.24\n"), 0644))

	got, err := ModulePath(dir)
	require.NoError(t, err)
	assert.Equal(t, "example.com/tool", got)

	empty := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(empty, "go.mod"), []byte("go 1.24\n"), 0644))
	_, err = ModulePath(empty)
	require.Error(t, err)

	_, err = ModulePath(t.TempDir())
	require.Error(t, err)
}
