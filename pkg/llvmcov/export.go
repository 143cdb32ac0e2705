package llvmcov

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrInvalidSegment is returned when a segment is not a positional array of
// at least five elements.
var ErrInvalidSegment = errors.New("invalid coverage segment")

// Export is the document written by `llvm-cov export -format=text`, which is
// what `swift test --enable-code-coverage` leaves under .build/.../codecov.
// Only the parts the report needs are decoded; summaries, functions and
// expansions are ignored.
type Export struct {
	Type    string `json:"type,omitempty"`
	Version string `json:"version,omitempty"`
	Data    []Data `json:"data"`
}

// Data is one export unit. Toolchains may emit several, one per build
// variant, and the same file can appear in more than one of them.
type Data struct {
	Files []File `json:"files"`
}

// File holds the raw segments recorded for one source file.
type File struct {
	Filename string    `json:"filename"`
	Segments []Segment `json:"segments"`
}

// Segment is a single instrumentation marker. On the wire it is the array
// [line, column, count, isRegion, hasCount]; newer toolchains append a sixth
// gap-region flag which is ignored.
type Segment struct {
	Line     int
	Column   int
	Count    uint64
	IsRegion bool
	HasCount bool
}

// UnmarshalJSON decodes the positional array form.
func (s *Segment) UnmarshalJSON(b []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSegment, err)
	}
	if len(fields) < 5 {
		return fmt.Errorf("%w: got %d fields, want at least 5", ErrInvalidSegment, len(fields))
	}

	var seg Segment
	targets := []any{&seg.Line, &seg.Column, &seg.Count, &seg.IsRegion, &seg.HasCount}
	for i, target := range targets {
		if err := json.Unmarshal(fields[i], target); err != nil {
			return fmt.Errorf("%w: field %d: %v", ErrInvalidSegment, i, err)
		}
	}

	*s = seg
	return nil
}

// MarshalJSON writes the positional array form.
func (s Segment) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{s.Line, s.Column, s.Count, s.IsRegion, s.HasCount})
}

// Decode reads an export document from r.
func Decode(r io.Reader) (*Export, error) {
	var export Export
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return nil, fmt.Errorf("decode coverage export: %w", err)
	}
	return &export, nil
}

// Load reads the export document at path.
func Load(path string) (*Export, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open coverage export: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Files returns the number of file entries across all data units, including
// repeats.
func (e *Export) Files() int {
	n := 0
	for _, d := range e.Data {
		n += len(d.Files)
	}
	return n
}
