package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	apperrors "ecomeda/internal/errors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter writes report files under a base directory. A file only appears
// at its final path once every record has been flushed, so a concurrent
// download never reads a partial export.
type CSVWriter struct {
	baseDir string
	logger  *slog.Logger
}

// NewCSVWriter creates a writer. Relative paths resolve under baseDir.
func NewCSVWriter(baseDir string, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{
		baseDir: baseDir,
		logger:  logger.With(slog.String("component", "csv_writer")),
	}
}

// WriteOptions describes one complete CSV file
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // spreadsheet apps need it to detect UTF-8
}

// WriteCSV writes a whole table and publishes it at filePath
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) error {
	stream, err := w.open(filePath, options.Headers, options.BOMPrefix)
	if err != nil {
		return err
	}
	for i, record := range options.Records {
		if err := stream.WriteRecord(record); err != nil {
			stream.Abort()
			return apperrors.NewStorageError(fmt.Sprintf("failed to write record %d of %s", i, filepath.Base(filePath)), err)
		}
	}
	if err := stream.Close(); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to publish %s", filepath.Base(filePath)), err)
	}

	w.logger.Debug("csv published",
		slog.String("path", stream.path),
		slog.Int("records", stream.Rows()))
	return nil
}

// WriteSimpleCSV writes a view table with a BOM
func (w *CSVWriter) WriteSimpleCSV(filePath string, headers []string, records [][]string) error {
	return w.WriteCSV(filePath, WriteOptions{
		Headers:   headers,
		Records:   records,
		BOMPrefix: true,
	})
}

// Encode writes headers (when non-empty) and records to out. HTTP downloads
// use it directly since the response body needs no staging.
func Encode(out io.Writer, headers []string, records [][]string, bom bool) error {
	if bom {
		if _, err := out.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(out)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	if err := writer.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}
	return nil
}

// StreamWriter writes one CSV file row by row into a hidden staging file.
// Close moves it into place; Abort throws it away.
type StreamWriter struct {
	staged *os.File
	path   string
	writer *csv.Writer
	rows   int
	done   bool
}

// CreateStreamWriter starts a dataset-sized export with a BOM and header row
func (w *CSVWriter) CreateStreamWriter(filePath string, headers []string) (*StreamWriter, error) {
	return w.open(filePath, headers, true)
}

func (w *CSVWriter) open(filePath string, headers []string, bom bool) (*StreamWriter, error) {
	target := w.resolvePath(filePath)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.NewStorageError("failed to create directory for CSV output", err)
	}

	staged, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return nil, apperrors.NewStorageError("failed to create CSV staging file", err)
	}

	s := &StreamWriter{staged: staged, path: target, writer: csv.NewWriter(staged)}
	if bom {
		if _, err := staged.Write(utf8BOM); err != nil {
			s.Abort()
			return nil, apperrors.NewStorageError("failed to write BOM", err)
		}
	}
	if len(headers) > 0 {
		if err := s.writer.Write(headers); err != nil {
			s.Abort()
			return nil, apperrors.NewStorageError("failed to write CSV header row", err)
		}
	}
	return s, nil
}

// WriteRecord appends one data row
func (s *StreamWriter) WriteRecord(record []string) error {
	if err := s.writer.Write(record); err != nil {
		return err
	}
	s.rows++
	return nil
}

// Rows reports the data rows written so far, header excluded
func (s *StreamWriter) Rows() int {
	return s.rows
}

// Path is where the file lands on Close
func (s *StreamWriter) Path() string {
	return s.path
}

// Close flushes the staged file and renames it over the target path.
// On failure the staging file is removed and the target is left untouched.
func (s *StreamWriter) Close() error {
	if s.done {
		return nil
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.Abort()
		return err
	}
	if err := s.staged.Chmod(0o644); err != nil {
		s.Abort()
		return err
	}
	if err := s.staged.Close(); err != nil {
		s.done = true
		os.Remove(s.staged.Name())
		return err
	}
	s.done = true
	if err := os.Rename(s.staged.Name(), s.path); err != nil {
		os.Remove(s.staged.Name())
		return err
	}
	return nil
}

// Abort discards the staged rows. Safe to call after Close.
func (s *StreamWriter) Abort() {
	if s.done {
		return
	}
	s.done = true
	s.staged.Close()
	os.Remove(s.staged.Name())
}

// resolvePath places relative paths under the base directory
func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) || w.baseDir == "" {
		return filePath
	}
	return filepath.Join(w.baseDir, filePath)
}
