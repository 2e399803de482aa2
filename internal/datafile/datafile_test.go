package datafile

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/labsweep/internal/fsutil"
	"github.com/banshee-data/labsweep/internal/timeutil"
)

func testClock() *timeutil.MockClock {
	return timeutil.NewMockClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestUniquePath(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()

	assert.Equal(t, "run.csv", UniquePath(fs, "run.csv"))

	fs.WriteFile("run.csv", nil)
	assert.Equal(t, "run_1.csv", UniquePath(fs, "run.csv"))

	fs.WriteFile("run_1.csv", nil)
	assert.Equal(t, "run_2.csv", UniquePath(fs, "run.csv"))

	// Extensionless paths still get the numeric suffix.
	fs.WriteFile("log", nil)
	assert.Equal(t, "log_1", UniquePath(fs, "log"))
}

func TestNewResolvesCollision(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	clock := testClock()

	first, err := New(fs, clock, "run.csv", "first", []string{"a"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(fs, clock, "run.csv", "second", []string{"a"})
	require.NoError(t, err)
	require.NoError(t, second.Close())

	assert.Equal(t, "run.csv", first.Path())
	assert.Equal(t, "run_1.csv", second.Path())
	assert.True(t, fs.Exists("run_1.csv"))
}

func TestFileFormat(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	w, err := New(fs, testClock(), "run.csv", "gate sweep, 0 to 10 V", []string{"gate:dcv", "vxx"})
	require.NoError(t, err)

	require.NoError(t, w.WriteRow(Row{0, 0}))
	require.NoError(t, w.WriteRow(Row{5, 4.9987}))
	require.NoError(t, w.WriteRow(Row{10, 9.9999}))
	require.NoError(t, w.Close())
	assert.Equal(t, 3, w.Rows())

	data, err := fs.ReadFile("run.csv")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "basic", data)
}

func TestDescriptionCommasNotQuoted(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	w, err := New(fs, testClock(), "run.csv", "a, b, c", []string{"x"})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := fs.ReadFile("run.csv")
	require.NoError(t, err)
	assert.Contains(t, string(data), "\na, b, c\n")
	assert.NotContains(t, string(data), `"a, b, c"`)
}

func TestWriteRowColumnCountMismatch(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	w, err := New(fs, testClock(), "run.csv", "d", []string{"a", "b"})
	require.NoError(t, err)
	defer w.Close()

	err = w.WriteRow(Row{1})
	assert.ErrorIs(t, err, ErrColumnCount)
	err = w.WriteRow(Row{1, 2, 3})
	assert.ErrorIs(t, err, ErrColumnCount)
	assert.Equal(t, 0, w.Rows())
}

func TestRowsFlushedBeforeClose(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	w, err := New(fs, testClock(), "run.csv", "d", []string{"a"})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.WriteRow(Row{1.5}))

	// A crash after this point must not lose the row.
	data, err := fs.ReadFile("run.csv")
	require.NoError(t, err)
	assert.Contains(t, string(data), "1.500000\n")
}

func TestSiblingSharesPreamble(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	w, err := New(fs, testClock(), "data/run.csv", "split run", []string{"a", "b"})
	require.NoError(t, err)
	defer w.Close()

	rev, err := w.Sibling("_rev")
	require.NoError(t, err)
	defer rev.Close()

	assert.Equal(t, "data/run_rev.csv", rev.Path())
	assert.Equal(t, w.Columns(), rev.Columns())

	data, err := fs.ReadFile(rev.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "split run\n")
}

func TestNewRequiresColumns(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	_, err := New(fs, testClock(), "run.csv", "d", nil)
	assert.Error(t, err)
}
