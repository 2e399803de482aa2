// Package report parses finished sweep data files and renders them as
// interactive HTML charts or static PNG plots.
package report

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/labsweep/internal/fsutil"
)

// DataFile is a parsed sweep data file: the three preamble lines and the
// numeric rows.
type DataFile struct {
	Timestamp   string
	Description string
	Columns     []string
	Rows        [][]float64
}

// ParseFile reads a data file written by the datafile package.
func ParseFile(fs fsutil.FileSystem, path string) (*DataFile, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data file: %w", err)
	}
	return Parse(string(data), path)
}

// Parse parses data-file content. The path is reported in errors only.
func Parse(content, path string) (*DataFile, error) {
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	if len(lines) < 3 {
		return nil, fmt.Errorf("%s: too short for a data file (%d lines)", path, len(lines))
	}

	df := &DataFile{
		Timestamp:   lines[0],
		Description: lines[1],
	}

	r := csv.NewReader(strings.NewReader(strings.Join(lines[2:], "\n")))
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: parse rows: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: missing column header", path)
	}
	df.Columns = records[0]

	for i, rec := range records[1:] {
		if len(rec) != len(df.Columns) {
			return nil, fmt.Errorf("%s: row %d has %d values, want %d", path, i+1, len(rec), len(df.Columns))
		}
		row := make([]float64, len(rec))
		for j, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("%s: row %d column %q: %w", path, i+1, df.Columns[j], err)
			}
			row[j] = v
		}
		df.Rows = append(df.Rows, row)
	}
	return df, nil
}

// ColumnIndex returns the index of the named column, or the first column
// when name is empty.
func (df *DataFile) ColumnIndex(name string) (int, error) {
	if name == "" {
		return 0, nil
	}
	for i, c := range df.Columns {
		if c == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no column %q in data file (have %s)", name, strings.Join(df.Columns, ", "))
}

// Column extracts one column's values.
func (df *DataFile) Column(i int) []float64 {
	out := make([]float64, len(df.Rows))
	for r, row := range df.Rows {
		out[r] = row[i]
	}
	return out
}
