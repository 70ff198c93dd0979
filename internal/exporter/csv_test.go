package exporter

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data = bytes.TrimPrefix(data, utf8BOM)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestCSVWriter_WriteCSV(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(dir, nil)

	tests := []struct {
		name    string
		file    string
		options WriteOptions
		want    [][]string
		bom     bool
	}{
		{
			name: "headers and records with BOM",
			file: "out/simple.csv",
			options: WriteOptions{
				Headers:   []string{"key", "count"},
				Records:   [][]string{{"a", "1"}, {"b, c", "2"}},
				BOMPrefix: true,
			},
			want: [][]string{{"key", "count"}, {"a", "1"}, {"b, c", "2"}},
			bom:  true,
		},
		{
			name:    "records only",
			file:    "plain.csv",
			options: WriteOptions{Records: [][]string{{"x"}}},
			want:    [][]string{{"x"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, w.WriteCSV(tt.file, tt.options))

			path := filepath.Join(dir, tt.file)
			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.bom, bytes.HasPrefix(raw, utf8BOM))
			assert.Equal(t, tt.want, readCSV(t, path))
		})
	}
}

func TestCSVWriter_ReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(dir, nil)

	require.NoError(t, w.WriteSimpleCSV("view.csv", []string{"h"}, [][]string{{"1"}}))
	require.NoError(t, w.WriteSimpleCSV("view.csv", []string{"h"}, [][]string{{"2"}, {"3"}}))

	assert.Equal(t, [][]string{{"h"}, {"2"}, {"3"}}, readCSV(t, filepath.Join(dir, "view.csv")))
	assertNoStagingFiles(t, dir)
}

func TestStreamWriter_AbortKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(dir, nil)
	require.NoError(t, w.WriteSimpleCSV("dataset.csv", []string{"id"}, [][]string{{"old"}}))

	stream, err := w.CreateStreamWriter("dataset.csv", []string{"id"})
	require.NoError(t, err)
	require.NoError(t, stream.WriteRecord([]string{"new"}))

	// not visible before Close
	assert.Equal(t, [][]string{{"id"}, {"old"}}, readCSV(t, filepath.Join(dir, "dataset.csv")))

	stream.Abort()
	stream.Abort()
	assert.NoError(t, stream.Close())

	assert.Equal(t, [][]string{{"id"}, {"old"}}, readCSV(t, filepath.Join(dir, "dataset.csv")))
	assertNoStagingFiles(t, dir)
}

func assertNoStagingFiles(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, ".*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestCSVWriter_AbsolutePath(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "abs.csv")
	w := NewCSVWriter("/does/not/matter", nil)

	require.NoError(t, w.WriteSimpleCSV(abs, []string{"a"}, nil))
	assert.Equal(t, [][]string{{"a"}}, readCSV(t, abs))
}

func TestCSVWriter_StorageError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	w := NewCSVWriter(dir, nil)
	err := w.WriteSimpleCSV("file/nested.csv", []string{"a"}, nil)
	assert.Error(t, err)
}

func TestStreamWriter(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(dir, nil)

	stream, err := w.CreateStreamWriter("stream/data.csv", []string{"id", "value"})
	require.NoError(t, err)
	for _, rec := range [][]string{{"1", "a"}, {"2", ""}} {
		require.NoError(t, stream.WriteRecord(rec))
	}
	assert.Equal(t, 2, stream.Rows())
	assert.Equal(t, filepath.Join(dir, "stream", "data.csv"), stream.Path())
	require.NoError(t, stream.Close())

	assert.Equal(t, [][]string{{"id", "value"}, {"1", "a"}, {"2", ""}},
		readCSV(t, filepath.Join(dir, "stream", "data.csv")))

	info, err := os.Stat(stream.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, []string{"a", "b"}, [][]string{{"1", "two words"}}, false))
	assert.Equal(t, "a,b\n1,two words\n", buf.String())

	buf.Reset()
	require.NoError(t, Encode(&buf, nil, nil, true))
	assert.Equal(t, utf8BOM, buf.Bytes())
}
