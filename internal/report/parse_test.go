package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/labsweep/internal/fsutil"
)

const sampleFile = `2024-03-01 12:00:00
gate sweep, 0 to 10 V
gate:dcv,vxx,vxy
0.000000,0.000012,-0.000003
5.000000,0.004987,0.000120
10.000000,0.009975,0.000244
`

func TestParse(t *testing.T) {
	df, err := Parse(sampleFile, "run.csv")
	require.NoError(t, err)

	assert.Equal(t, "2024-03-01 12:00:00", df.Timestamp)
	assert.Equal(t, "gate sweep, 0 to 10 V", df.Description)
	assert.Equal(t, []string{"gate:dcv", "vxx", "vxy"}, df.Columns)

	want := [][]float64{
		{0, 0.000012, -0.000003},
		{5, 0.004987, 0.00012},
		{10, 0.009975, 0.000244},
	}
	if diff := cmp.Diff(want, df.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFile(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	fs.WriteFile("run.csv", []byte(sampleFile))

	df, err := ParseFile(fs, "run.csv")
	require.NoError(t, err)
	assert.Len(t, df.Rows, 3)

	_, err = ParseFile(fs, "missing.csv")
	assert.Error(t, err)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"empty", "", "too short"},
		{"preamble only", "ts\ndesc\n", "missing column header"},
		{"ragged row", "ts\ndesc\na,b\n1.0\n", "row 1 has 1 values"},
		{"non numeric", "ts\ndesc\na,b\n1.0,x\n", "column \"b\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.content, "run.csv")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseHeaderOnlyFile(t *testing.T) {
	df, err := Parse("ts\ndesc\na,b\n", "run.csv")
	require.NoError(t, err)
	assert.Empty(t, df.Rows)
}

func TestColumnIndex(t *testing.T) {
	df, err := Parse(sampleFile, "run.csv")
	require.NoError(t, err)

	i, err := df.ColumnIndex("")
	require.NoError(t, err)
	assert.Equal(t, 0, i, "empty name defaults to the first column")

	i, err = df.ColumnIndex("vxx")
	require.NoError(t, err)
	assert.Equal(t, 1, i)

	_, err = df.ColumnIndex("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vxy")
}

func TestColumn(t *testing.T) {
	df, err := Parse(sampleFile, "run.csv")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 5, 10}, df.Column(0))
}

func TestRenderHTML(t *testing.T) {
	df, err := Parse(sampleFile, "run.csv")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderHTML(df, "gate:dcv", &buf))

	html := buf.String()
	assert.Contains(t, html, "vxx")
	assert.Contains(t, html, "vxy")
	assert.Contains(t, html, "gate sweep, 0 to 10 V")
}

func TestRenderHTMLUnknownXColumn(t *testing.T) {
	df, err := Parse(sampleFile, "run.csv")
	require.NoError(t, err)
	assert.Error(t, RenderHTML(df, "nope", &bytes.Buffer{}))
}

func TestRenderPNG(t *testing.T) {
	df, err := Parse(sampleFile, "run.csv")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "run.png")
	require.NoError(t, RenderPNG(df, "", path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
