// Package datafile implements the append-only text sink the sweep engine
// streams rows into: unique-filename resolution, a three-line preamble, and
// fixed-format comma-separated numeric rows flushed one at a time.
package datafile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/banshee-data/labsweep/internal/fsutil"
	"github.com/banshee-data/labsweep/internal/timeutil"
)

// ErrColumnCount is returned when a row's length does not match the column
// header the writer was created with.
var ErrColumnCount = errors.New("row length does not match column count")

// Row is one sample: the swept setpoints followed by the measured channel
// values, in the fixed column order declared at writer creation.
type Row []float64

// timestampFormat is the layout of the preamble's first line.
const timestampFormat = "2006-01-02 15:04:05"

// UniquePath resolves filename collisions by appending an incrementing
// numeric suffix before the extension until the path does not exist:
// run.csv -> run_1.csv -> run_2.csv.
func UniquePath(fs fsutil.FileSystem, path string) string {
	if !fs.Exists(path) {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", base, n, ext)
		if !fs.Exists(candidate) {
			return candidate
		}
	}
}

// Writer streams rows to one data file. Every row is flushed as soon as it
// is written so partial results survive interruption.
type Writer struct {
	fs          fsutil.FileSystem
	clock       timeutil.Clock
	path        string
	description string
	columns     []string
	file        io.WriteCloser
	csv         *csv.Writer
	rows        int
}

// New creates a data file at path (after collision resolution), writes the
// preamble (timestamp, description, column header) and returns a writer for
// the data rows. The column list is fixed for the writer's lifetime.
func New(fs fsutil.FileSystem, clock timeutil.Clock, path, description string, columns []string) (*Writer, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("data file %s: no columns declared", path)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "/" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir for %s: %w", path, err)
		}
	}
	path = UniquePath(fs, path)
	f, err := fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create data file %s: %w", path, err)
	}

	w := &Writer{
		fs:          fs,
		clock:       clock,
		path:        path,
		description: description,
		columns:     append([]string(nil), columns...),
		file:        f,
		csv:         csv.NewWriter(f),
	}
	if err := w.writePreamble(); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// writePreamble writes the three header lines. The timestamp and
// description lines are written raw so commas in the description do not get
// CSV-quoted; only the column header and data rows go through the CSV
// encoder.
func (w *Writer) writePreamble() error {
	if _, err := fmt.Fprintf(w.file, "%s\n", w.clock.Now().Format(timestampFormat)); err != nil {
		return fmt.Errorf("write preamble to %s: %w", w.path, err)
	}
	if _, err := fmt.Fprintf(w.file, "%s\n", w.description); err != nil {
		return fmt.Errorf("write preamble to %s: %w", w.path, err)
	}
	if err := w.csv.Write(w.columns); err != nil {
		return fmt.Errorf("write column header to %s: %w", w.path, err)
	}
	w.csv.Flush()
	return w.csv.Error()
}

// Path returns the resolved path the writer is appending to.
func (w *Writer) Path() string { return w.path }

// Columns returns the declared column names.
func (w *Writer) Columns() []string {
	return append([]string(nil), w.columns...)
}

// Rows returns the number of data rows written so far.
func (w *Writer) Rows() int { return w.rows }

// WriteRow appends one data row and flushes it immediately.
func (w *Writer) WriteRow(row Row) error {
	if len(row) != len(w.columns) {
		return fmt.Errorf("%w: got %d values, want %d (%s)", ErrColumnCount, len(row), len(w.columns), w.path)
	}
	fields := make([]string, len(row))
	for i, v := range row {
		fields[i] = fmt.Sprintf("%.6f", v)
	}
	if err := w.csv.Write(fields); err != nil {
		return fmt.Errorf("write row to %s: %w", w.path, err)
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("flush row to %s: %w", w.path, err)
	}
	w.rows++
	return nil
}

// Sibling creates a second writer whose path derives from this writer's by
// inserting suffix before the extension, with the same description and
// columns. Used by split traversal for the reverse-half sink.
func (w *Writer) Sibling(suffix string) (*Writer, error) {
	ext := filepath.Ext(w.path)
	base := strings.TrimSuffix(w.path, ext)
	return New(w.fs, w.clock, base+suffix+ext, w.description, w.columns)
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		w.file.Close()
		return fmt.Errorf("flush %s: %w", w.path, err)
	}
	return w.file.Close()
}
