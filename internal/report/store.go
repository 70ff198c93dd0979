package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"

	"ecomeda/internal/config"
	apperrors "ecomeda/internal/errors"
	"ecomeda/internal/files"
	"ecomeda/pkg/contracts"
	"ecomeda/pkg/contracts/domain"
)

// WriteJSON encodes rep as indented JSON
func WriteJSON(w io.Writer, rep *domain.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// Store persists reports under a base directory, one directory per report:
//
//	<id>/report.json
//	<id>/charts/<view>.png
type Store struct {
	files     *files.Manager
	discovery *files.Discovery
	opts      ChartOptions
	logger    *slog.Logger
}

// NewStore creates a store rooted at baseDir
func NewStore(baseDir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		files:     files.NewManager(baseDir, logger),
		discovery: files.NewDiscovery(baseDir),
		opts:      DefaultChartOptions(),
		logger:    logger.With(slog.String("component", "report_store")),
	}
}

// Dir returns the directory of report id
func (s *Store) Dir(id string) (string, error) {
	return s.files.Resolve(id)
}

// Save writes report.json for rep, stamping the current report format
func (s *Store) Save(ctx context.Context, rep *domain.Report) error {
	if rep == nil || rep.ID == "" {
		return apperrors.NewAppValidationError("report without id")
	}
	rep.Format = contracts.ReportFormat

	var buf bytes.Buffer
	if err := WriteJSON(&buf, rep); err != nil {
		return apperrors.NewStorageError("failed to encode report", err)
	}
	if err := s.files.WriteFile(path.Join(rep.ID, config.ReportFileName), buf.Bytes()); err != nil {
		return apperrors.NewStorageError("failed to write report", err).WithContext("id", rep.ID)
	}

	s.logger.InfoContext(ctx, "report saved",
		slog.String("id", rep.ID),
		slog.Int("bytes", buf.Len()))
	return nil
}

// Load reads a saved report. The cleaned dataset is not part of the file,
// so Analysis.Dataset is nil on the result. Reports from an unknown format
// are rejected; a missing format is read as the current one.
func (s *Store) Load(ctx context.Context, id string) (*domain.Report, error) {
	data, err := s.files.ReadFile(path.Join(id, config.ReportFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.NewNotFoundError("analysis " + id)
		}
		return nil, apperrors.NewStorageError("failed to read report", err).WithContext("id", id)
	}

	var rep domain.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, apperrors.NewParsingError("corrupt report file", err).WithContext("id", id)
	}
	if rep.Format != "" && rep.Format != contracts.ReportFormat {
		return nil, apperrors.NewParsingError("unsupported report format",
			fmt.Errorf("format %q, want %q", rep.Format, contracts.ReportFormat)).WithContext("id", id)
	}
	return &rep, nil
}

// List returns the summaries of saved reports, newest first. Directories
// without a readable report are skipped.
func (s *Store) List(ctx context.Context) ([]domain.ReportSummary, error) {
	dirs, err := s.discovery.ListDirectories("")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []domain.ReportSummary{}, nil
		}
		return nil, apperrors.NewStorageError("failed to list reports", err)
	}

	out := make([]domain.ReportSummary, 0, len(dirs))
	for _, d := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rep, err := s.Load(ctx, d.Name)
		if err != nil {
			s.logger.DebugContext(ctx, "skipping report directory",
				slog.String("dir", d.Name),
				slog.String("error", err.Error()))
			continue
		}
		out = append(out, rep.Summary())
	}
	return out, nil
}

// Delete removes a report directory
func (s *Store) Delete(ctx context.Context, id string) error {
	if !s.files.FileExists(id) {
		return apperrors.NewNotFoundError("analysis " + id)
	}
	if err := s.files.RemoveAll(id); err != nil {
		return apperrors.NewStorageError("failed to delete report", err).WithContext("id", id)
	}
	return nil
}

// WriteCharts renders every chart of result into <id>/charts and returns
// the written paths: views in presentation order, then the heat map.
func (s *Store) WriteCharts(ctx context.Context, id string, result *domain.AnalysisResult) ([]string, error) {
	if result == nil {
		return nil, apperrors.NewAppValidationError("nothing to chart")
	}

	names := make([]domain.ViewName, 0, len(domain.AllViews)+1)
	names = append(names, domain.AllViews...)
	names = append(names, domain.ViewCorrelation)

	var written []string
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		var buf bytes.Buffer
		err := Chart(&buf, result, name, s.opts)
		if errors.Is(err, ErrNothingToPlot) {
			continue
		}
		if err != nil {
			return written, apperrors.NewStorageError(fmt.Sprintf("failed to render %s chart", name), err)
		}

		rel := path.Join(id, config.ChartsDirName, string(name)+".png")
		if err := s.files.WriteFile(rel, buf.Bytes()); err != nil {
			return written, apperrors.NewStorageError("failed to write chart", err)
		}
		full, _ := s.files.Resolve(rel)
		written = append(written, full)
	}

	s.logger.InfoContext(ctx, "charts written",
		slog.String("id", id),
		slog.Int("charts", len(written)))
	return written, nil
}
