package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"ecomeda/internal/config"
	apperrors "ecomeda/internal/errors"
	"ecomeda/pkg/contracts/domain"
)

// correlationFile is written next to the view CSVs
const correlationFile = "correlation.csv"

// ResultExporter writes an analysis result as a directory of CSV files:
// one per view, the correlation matrix and the cleaned dataset.
type ResultExporter struct {
	csvWriter *CSVWriter
	logger    *slog.Logger
}

// NewResultExporter creates an exporter rooted at baseDir
func NewResultExporter(baseDir string, logger *slog.Logger) *ResultExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultExporter{
		csvWriter: NewCSVWriter(baseDir, logger),
		logger:    logger.With(slog.String("component", "result_exporter")),
	}
}

// Export writes result under dir and returns the written paths in a fixed
// order: views in presentation order, then correlation, then the dataset.
func (e *ResultExporter) Export(ctx context.Context, dir string, result *domain.AnalysisResult) ([]string, error) {
	if result == nil {
		return nil, apperrors.NewAppValidationError("nothing to export")
	}

	var written []string
	for _, name := range domain.AllViews {
		view, ok := result.View(name)
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return written, err
		}
		path := filepath.Join(dir, config.ViewsDirName, string(name)+".csv")
		headers, records := ViewRecords(view)
		if err := e.csvWriter.WriteSimpleCSV(path, headers, records); err != nil {
			return written, fmt.Errorf("export view %s: %w", name, err)
		}
		written = append(written, e.csvWriter.resolvePath(path))
	}

	if result.Correlation != nil && !result.Correlation.Empty() {
		path := filepath.Join(dir, config.ViewsDirName, correlationFile)
		headers, records := CorrelationRecords(result.Correlation)
		if err := e.csvWriter.WriteSimpleCSV(path, headers, records); err != nil {
			return written, fmt.Errorf("export correlation: %w", err)
		}
		written = append(written, e.csvWriter.resolvePath(path))
	}

	if result.Dataset != nil {
		path := filepath.Join(dir, config.DatasetFileName)
		if err := e.writeDataset(path, result.Dataset); err != nil {
			return written, fmt.Errorf("export dataset: %w", err)
		}
		written = append(written, e.csvWriter.resolvePath(path))
	}

	e.logger.InfoContext(ctx, "analysis exported",
		slog.String("dir", e.csvWriter.resolvePath(dir)),
		slog.Int("files", len(written)))

	return written, nil
}

func (e *ResultExporter) writeDataset(path string, ds *domain.Dataset) error {
	stream, err := e.csvWriter.CreateStreamWriter(path, ds.Names())
	if err != nil {
		return err
	}
	for i := 0; i < ds.Rows(); i++ {
		if err := stream.WriteRecord(DatasetRow(ds, i)); err != nil {
			stream.Abort()
			return apperrors.NewStorageError(fmt.Sprintf("failed to write dataset row %d", i), err)
		}
	}
	if err := stream.Close(); err != nil {
		return apperrors.NewStorageError("failed to publish dataset CSV", err)
	}
	e.logger.Debug("dataset exported", slog.String("path", stream.Path()), slog.Int("rows", stream.Rows()))
	return nil
}
