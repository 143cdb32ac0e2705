package llvmcov

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleExport = `{
  "type": "llvm.coverage.json.export",
  "version": "2.0.1",
  "data": [
    {
      "files": [
        {
          "filename": "/work/Pkg/Sources/Pkg/Models/User.swift",
          "segments": [[5, 1, 0, false, false], [5, 2, 3, true, true], [9, 4, 0, true, true, false]],
          "summary": {"lines": {"count": 2}}
        }
      ],
      "functions": [],
      "totals": {}
    }
  ]
}`

func TestDecode(t *testing.T) {
	export, err := Decode(strings.NewReader(sampleExport))
	require.NoError(t, err)

	assert.Equal(t, "2.0.1", export.Version)
	require.Len(t, export.Data, 1)
	require.Len(t, export.Data[0].Files, 1)
	assert.Equal(t, 1, export.Files())

	file := export.Data[0].Files[0]
	assert.Equal(t, "/work/Pkg/Sources/Pkg/Models/User.swift", file.Filename)
	assert.Equal(t, []Segment{
		{Line: 5, Column: 1, Count: 0, IsRegion: false, HasCount: false},
		{Line: 5, Column: 2, Count: 3, IsRegion: true, HasCount: true},
		{Line: 9, Column: 4, Count: 0, IsRegion: true, HasCount: true},
	}, file.Segments)
}

func TestDecodeRejectsBadSegments(t *testing.T) {
	tests := []struct {
		name    string
		segment string
	}{
		{name: "too few fields", segment: `[1, 2, 3]`},
		{name: "not an array", segment: `{"line": 1}`},
		{name: "flag is not a bool", segment: `[1, 2, 3, "yes", true]`},
		{name: "negative count", segment: `[1, 2, -1, true, true]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := `{"data":[{"files":[{"filename":"a.swift","segments":[` + tt.segment + `]}]}]}`
			_, err := Decode(strings.NewReader(doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidSegment)
		})
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"data": [`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode coverage export")
}

func TestSegmentMarshalJSON(t *testing.T) {
	b, err := json.Marshal(Segment{Line: 12, Column: 3, Count: 7, IsRegion: true, HasCount: false})
	require.NoError(t, err)
	assert.JSONEq(t, `[12, 3, 7, true, false]`, string(b))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Pkg.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleExport), 0644))

	export, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, export.Files())

	_, err = Load(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
