package dataprocessing

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"ecomeda/internal/config"
	apperrors "ecomeda/internal/errors"
	"ecomeda/pkg/contracts/domain"
)

// naValues are the cell spellings read as missing
var naValues = []string{"", "NA", "N/A", "NaN", "nan", "null", "NULL", "None", "<nil>"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LoaderOptions tunes file ingestion
type LoaderOptions struct {
	// Sheet selects a workbook sheet by name. Empty means the first sheet.
	Sheet string
}

// Loader turns uploaded tabular files into datasets. Column types are
// detected per column: all-numeric columns become numeric, everything
// else stays text for the cleaner to coerce.
type Loader struct {
	logger *slog.Logger
	opts   LoaderOptions
}

// NewLoader creates a loader
func NewLoader(logger *slog.Logger, opts LoaderOptions) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		logger: logger.With(slog.String("component", "loader")),
		opts:   opts,
	}
}

// Format returns the normalized extension of filename
func Format(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// LoadFile opens path and loads it by extension
func (l *Loader) LoadFile(ctx context.Context, path string) (*domain.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewNotFoundError(path).WithContext("cause", err.Error())
	}
	defer f.Close()

	return l.Load(ctx, filepath.Base(path), f)
}

// Load reads r according to the extension of filename
func (l *Loader) Load(ctx context.Context, filename string, r io.Reader) (*domain.Dataset, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "dataprocessing.load")
	defer span.End()

	format := Format(filename)
	span.SetAttributes(attribute.String("file.format", format))

	var (
		records [][]string
		err     error
	)
	switch format {
	case config.FormatCSV:
		records, err = readDelimited(r, ',')
	case config.FormatTSV:
		records, err = readDelimited(r, '\t')
	case config.FormatXLSX, config.FormatXLSM:
		records, err = l.readWorkbook(r)
	default:
		// legacy .xls included: there is no BIFF reader
		return nil, apperrors.NewUnsupportedFormatError(format)
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ds, err := FromRecords(records)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("dataset.rows", ds.Rows()),
		attribute.Int("dataset.columns", ds.Width()),
	)
	l.logger.InfoContext(ctx, "dataset loaded",
		slog.String("file", filename),
		slog.String("format", format),
		slog.Int("rows", ds.Rows()),
		slog.Int("columns", ds.Width()))

	return ds, nil
}

// readDelimited reads every record. Ragged rows are allowed and a leading
// byte order mark is dropped.
func readDelimited(r io.Reader, comma rune) ([][]string, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, apperrors.NewParsingError("failed to read input", err)
		}
	}

	reader := csv.NewReader(br)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.NewParsingError("malformed delimited file", err)
	}
	return records, nil
}

// readWorkbook returns the rows of the configured sheet
func (l *Loader) readWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.NewParsingError("failed to open workbook", err)
	}
	defer f.Close()

	sheet := l.opts.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("sheet %q", sheet))
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read sheet %q", sheet), err)
	}

	// skip leading blank rows so the first populated row is the header
	for len(rows) > 0 && blankRow(rows[0]) {
		rows = rows[1:]
	}
	return rows, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// FromRecords builds a dataset from a header row followed by data rows.
// Short rows are padded with missing cells and long rows are cut to the
// header width.
func FromRecords(records [][]string) (*domain.Dataset, error) {
	if len(records) == 0 {
		return domain.NewDataset()
	}

	header := make([]string, len(records[0]))
	for i, name := range records[0] {
		header[i] = strings.TrimSpace(name)
	}
	width := len(header)

	rows := make([][]string, 0, len(records))
	rows = append(rows, header)
	for _, rec := range records[1:] {
		row := make([]string, width)
		copy(row, rec)
		rows = append(rows, row)
	}

	if len(rows) == 1 {
		return headerOnly(header)
	}

	df := dataframe.LoadRecords(rows,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues(naValues),
	)
	if df.Err != nil {
		return nil, apperrors.NewParsingError("failed to build data frame", df.Err)
	}

	return fromDataFrame(df)
}

// headerOnly returns empty text columns, de-duplicating names the same way
// the data frame path does.
func headerOnly(header []string) (*domain.Dataset, error) {
	df := dataframe.LoadRecords([][]string{header, make([]string, len(header))},
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
	)
	if df.Err != nil {
		return nil, apperrors.NewParsingError("failed to build data frame", df.Err)
	}

	names := df.Names()
	cols := make([]*domain.Column, len(names))
	for i, name := range names {
		cols[i] = domain.NewColumn(name, domain.TypeString, []domain.Value{})
	}
	return domain.NewDataset(cols...)
}

func fromDataFrame(df dataframe.DataFrame) (*domain.Dataset, error) {
	names := df.Names()
	cols := make([]*domain.Column, 0, len(names))

	for _, name := range names {
		s := df.Col(name)
		values := make([]domain.Value, s.Len())
		numeric := s.Type() == series.Float || s.Type() == series.Int

		for i := 0; i < s.Len(); i++ {
			e := s.Elem(i)
			switch {
			case e.IsNA():
				values[i] = domain.Missing()
			case numeric:
				values[i] = domain.Number(e.Float())
			default:
				values[i] = domain.String(e.String())
			}
		}

		typ := domain.TypeString
		if numeric {
			typ = domain.TypeNumeric
		}
		cols = append(cols, domain.NewColumn(name, typ, values))
	}

	ds, err := domain.NewDataset(cols...)
	if err != nil {
		return nil, apperrors.NewParsingError("inconsistent data frame", err)
	}
	return ds, nil
}
