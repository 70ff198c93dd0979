package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/semaphore"

	"ecomeda/internal/config"
	"ecomeda/internal/dataprocessing"
	apperrors "ecomeda/internal/errors"
	"ecomeda/internal/exporter"
	"ecomeda/internal/infrastructure"
	"ecomeda/internal/report"
	"ecomeda/internal/websocket"
	"ecomeda/pkg/contracts/domain"
	"ecomeda/pkg/contracts/events"
)

// utf8BOM prefixes the exported dataset file
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WebSocketHub is the progress sink of the analysis service
type WebSocketHub interface {
	Broadcast(messageType string, data interface{})
}

// Analysis stages reported in progress messages
const (
	StageLoad    = "load"
	StageAnalyze = "analyze"
	StageProfile = "profile"
	StageStore   = "store"
)

// AnalyzeOptions tunes one analysis
type AnalyzeOptions struct {
	TopN  int    `json:"top_n" validate:"omitempty,min=1,max=1000"`
	Sheet string `json:"sheet" validate:"omitempty,max=31"`
}

// SheetRequest selects a Google Sheets range
type SheetRequest struct {
	SpreadsheetID string `json:"spreadsheet_id" validate:"required,min=10,max=128"`
	Range         string `json:"range" validate:"required,max=256"`
	TopN          int    `json:"top_n" validate:"omitempty,min=1,max=1000"`
}

// AnalysisService runs the analysis pipeline for uploads, local files and
// spreadsheets and keeps the results. Finished reports live in a bounded
// LRU; when a report store is configured they are also written to disk
// and stay readable after eviction.
type AnalysisService struct {
	cfg      config.AnalysisConfig
	sheets   *dataprocessing.SheetsLoader
	store    *report.Store
	exporter *exporter.ResultExporter
	cache    *resultCache
	hub      WebSocketHub
	metrics  *infrastructure.BusinessMetrics
	validate *validator.Validate
	slots    *semaphore.Weighted
	logger   *slog.Logger
}

// AnalysisServiceDeps are the optional collaborators of AnalysisService
type AnalysisServiceDeps struct {
	Sheets  *dataprocessing.SheetsLoader
	Store   *report.Store
	Hub     WebSocketHub
	Metrics *infrastructure.BusinessMetrics
}

// NewAnalysisService creates the service. reportsDir, when not empty,
// enables persistence of reports and their CSV exports.
func NewAnalysisService(cfg config.AnalysisConfig, reportsDir string, deps AnalysisServiceDeps, logger *slog.Logger) (*AnalysisService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "analysis_service"))

	s := &AnalysisService{
		cfg:      cfg,
		sheets:   deps.Sheets,
		store:    deps.Store,
		hub:      deps.Hub,
		metrics:  deps.Metrics,
		validate: validator.New(),
		slots:    semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0))),
		logger:   logger,
	}
	if s.store == nil && reportsDir != "" {
		s.store = report.NewStore(reportsDir, logger)
	}
	if reportsDir != "" {
		s.exporter = exporter.NewResultExporter(reportsDir, logger)
	}

	// the callback also fires on explicit removal
	cache, err := newResultCache(cfg.CacheSize, func(id string) {
		if s.metrics != nil {
			s.metrics.CachedAnalyses.Add(context.Background(), -1)
		}
		logger.Debug("analysis left cache", slog.String("id", id))
	})
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}
	s.cache = cache

	logger.Info("AnalysisService initialized",
		slog.Int("cache_size", cfg.CacheSize),
		slog.Bool("persistent", s.store != nil),
		slog.Bool("sheets", s.sheets != nil && s.sheets.Enabled()))

	return s, nil
}

// AnalyzeUpload reads an uploaded file of at most MaxUploadBytes and
// analyzes it. The format comes from the extension of filename.
func (s *AnalysisService) AnalyzeUpload(ctx context.Context, filename string, r io.Reader, opts AnalyzeOptions) (*domain.Report, error) {
	return s.analyzeReader(ctx, domain.SourceUpload, filename, r, opts)
}

func (s *AnalysisService) analyzeReader(ctx context.Context, source, filename string, r io.Reader, opts AnalyzeOptions) (*domain.Report, error) {
	if err := s.validateStruct(opts); err != nil {
		return nil, err
	}
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, apperrors.NewAppValidationError("file name is required")
	}

	// reject unknown formats before buffering the body
	switch dataprocessing.Format(name) {
	case config.FormatCSV, config.FormatTSV, config.FormatXLSX, config.FormatXLSM:
	default:
		return nil, apperrors.NewUnsupportedFormatError(dataprocessing.Format(name))
	}

	data, err := readLimited(r, s.cfg.MaxUploadBytes)
	if err != nil {
		return nil, err
	}

	rep := s.newReport(source, name)
	rep.SizeBytes = int64(len(data))
	rep.Digest = digest(data)
	if s.metrics != nil {
		s.metrics.BytesIngested.Add(ctx, rep.SizeBytes)
	}

	loader := dataprocessing.NewLoader(s.logger, s.loaderOptions(opts))
	return s.run(ctx, rep, opts.TopN, func(ctx context.Context) (*domain.Dataset, error) {
		return loader.Load(ctx, name, bytes.NewReader(data))
	})
}

// AnalyzeFile analyzes a local file
func (s *AnalysisService) AnalyzeFile(ctx context.Context, path string, opts AnalyzeOptions) (*domain.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.NewNotFoundError(path)
		}
		return nil, apperrors.NewStorageError("failed to open file", err)
	}
	defer f.Close()

	return s.analyzeReader(ctx, domain.SourceFile, filepath.Base(path), f, opts)
}

// AnalyzeSheet fetches a spreadsheet range and analyzes it
func (s *AnalysisService) AnalyzeSheet(ctx context.Context, req SheetRequest) (*domain.Report, error) {
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}
	if s.sheets == nil || !s.sheets.Enabled() {
		return nil, apperrors.NewConfigError("sheets loader", dataprocessing.ErrSheetsDisabled)
	}

	rep := s.newReport(domain.SourceSheets, req.SpreadsheetID+"!"+req.Range)
	return s.run(ctx, rep, req.TopN, func(ctx context.Context) (*domain.Dataset, error) {
		return s.sheets.Load(ctx, req.SpreadsheetID, req.Range)
	})
}

func (s *AnalysisService) newReport(source, name string) *domain.Report {
	return &domain.Report{
		ID:        uuid.NewString(),
		Source:    source,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
}

func (s *AnalysisService) loaderOptions(opts AnalyzeOptions) dataprocessing.LoaderOptions {
	sheet := opts.Sheet
	if sheet == "" {
		sheet = s.cfg.Sheet
	}
	return dataprocessing.LoaderOptions{Sheet: sheet}
}

func (s *AnalysisService) topN(n int) int {
	if n > 0 {
		return n
	}
	return s.cfg.TopN
}

// run executes load, analyze, profile and store for rep, broadcasting each
// stage. At most GOMAXPROCS analyses run at once.
func (s *AnalysisService) run(ctx context.Context, rep *domain.Report, topN int, load func(context.Context) (*domain.Dataset, error)) (*domain.Report, error) {
	ctx = infrastructure.EnsureTraceID(ctx)
	logger := s.logger.With(
		slog.String("analysis_id", rep.ID),
		slog.String("source", rep.Source),
		slog.String("name", rep.Name))

	if err := s.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.slots.Release(1)

	start := time.Now()
	s.broadcast(websocket.TypeAnalysisStarted, rep, events.AnalysisStarted{Source: rep.Source, Name: rep.Name})

	result, err := s.execute(ctx, rep, topN, load)
	rows := 0
	var views []string
	if result != nil {
		rows = rep.Profile.Rows
		for name := range result.Views {
			views = append(views, string(name))
		}
		sort.Strings(views)
	}
	infrastructure.RecordAnalysisMetrics(ctx, s.metrics, rep.Source, rows, views, time.Since(start), err)

	if err != nil {
		infrastructure.RecordError(ctx, err)
		logger.WarnContext(ctx, "analysis failed", slog.String("error", err.Error()))
		s.broadcast(websocket.TypeAnalysisFailed, rep, events.AnalysisFailed{Error: err.Error()})
		return nil, err
	}

	logger.InfoContext(ctx, "analysis finished",
		slog.Int("rows", rows),
		slog.Int("views", len(views)),
		slog.Duration("duration", time.Since(start)))
	s.broadcast(websocket.TypeAnalysisCompleted, rep, rep.Summary())

	return rep, nil
}

func (s *AnalysisService) execute(ctx context.Context, rep *domain.Report, topN int, load func(context.Context) (*domain.Dataset, error)) (*domain.AnalysisResult, error) {
	s.progress(rep, StageLoad)
	ds, err := load(ctx)
	if err != nil {
		return nil, err
	}

	s.progress(rep, StageAnalyze)
	analyzer := dataprocessing.NewAnalyzer(s.logger, dataprocessing.AggregatorConfig{
		TopN:     s.topN(topN),
		Parallel: s.cfg.Parallel,
	})
	result, err := analyzer.Run(ctx, ds)
	if err != nil {
		return nil, err
	}

	s.progress(rep, StageProfile)
	rep.Profile = dataprocessing.Profile(result.Dataset)
	rep.Preview = dataprocessing.Preview(result.Dataset, s.cfg.PreviewRows)
	rep.Analysis = result

	s.progress(rep, StageStore)
	if err := s.persist(ctx, rep); err != nil {
		return nil, err
	}
	s.cache.put(rep)
	if s.metrics != nil {
		s.metrics.CachedAnalyses.Add(ctx, 1)
	}

	return result, nil
}

// persist writes report.json and the CSV exports when a store is set
func (s *AnalysisService) persist(ctx context.Context, rep *domain.Report) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Save(ctx, rep); err != nil {
		return err
	}
	if s.exporter != nil {
		if _, err := s.exporter.Export(ctx, rep.ID, rep.Analysis); err != nil {
			return err
		}
	}
	return nil
}

func (s *AnalysisService) progress(rep *domain.Report, stage string) {
	s.broadcast(websocket.TypeAnalysisProgress, rep, events.AnalysisProgress{Stage: stage})
}

func (s *AnalysisService) broadcast(messageType string, rep *domain.Report, data interface{}) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(messageType, events.AnalysisEvent{AnalysisID: rep.ID, Payload: data})
	if s.metrics != nil {
		s.metrics.WebSocketBroadcasts.Add(context.Background(), 1)
	}
}

// Get returns a report from the cache or, failing that, the store
func (s *AnalysisService) Get(ctx context.Context, id string) (*domain.Report, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewNotFoundError("analysis " + id)
	}
	if rep, ok := s.cache.get(id); ok {
		return rep, nil
	}
	if s.store == nil {
		return nil, apperrors.NewNotFoundError("analysis " + id)
	}
	return s.store.Load(ctx, id)
}

// List returns summaries of cached and stored reports, newest first
func (s *AnalysisService) List(ctx context.Context) ([]domain.ReportSummary, error) {
	seen := make(map[string]bool)
	out := []domain.ReportSummary{}

	for _, rep := range s.cache.list() {
		seen[rep.ID] = true
		out = append(out, rep.Summary())
	}

	if s.store != nil {
		stored, err := s.store.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, sum := range stored {
			if !seen[sum.ID] {
				out = append(out, sum)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete drops a report from the cache and the store
func (s *AnalysisService) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NewNotFoundError("analysis " + id)
	}
	cached := s.cache.remove(id)
	if s.store == nil {
		if !cached {
			return apperrors.NewNotFoundError("analysis " + id)
		}
		return nil
	}
	err := s.store.Delete(ctx, id)
	if cached && apperrors.IsType(err, apperrors.ErrTypeNotFound) {
		return nil
	}
	return err
}

// View returns one aggregate view of a report
func (s *AnalysisService) View(ctx context.Context, id string, name domain.ViewName) (*domain.AggregateView, error) {
	rep, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rep.Analysis == nil {
		return nil, apperrors.ViewNotFoundError(string(name))
	}
	view, ok := rep.Analysis.View(name)
	if !ok {
		return nil, apperrors.ViewNotFoundError(string(name))
	}
	return view, nil
}

// Correlation returns the correlation matrix of a report
func (s *AnalysisService) Correlation(ctx context.Context, id string) (*domain.CorrelationMatrix, error) {
	rep, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rep.Analysis == nil || rep.Analysis.Correlation == nil {
		return nil, apperrors.ViewNotFoundError(string(domain.ViewCorrelation))
	}
	return rep.Analysis.Correlation, nil
}

// WriteViewCSV writes one view, or the correlation matrix, as CSV
func (s *AnalysisService) WriteViewCSV(ctx context.Context, id string, name domain.ViewName, w io.Writer) error {
	var headers []string
	var records [][]string

	if name == domain.ViewCorrelation {
		m, err := s.Correlation(ctx, id)
		if err != nil {
			return err
		}
		headers, records = exporter.CorrelationRecords(m)
	} else {
		view, err := s.View(ctx, id, name)
		if err != nil {
			return err
		}
		headers, records = exporter.ViewRecords(view)
	}

	return exporter.Encode(w, headers, records, false)
}

// WriteDatasetCSV writes the cleaned dataset. Evicted reports are served
// from the exported file when one exists.
func (s *AnalysisService) WriteDatasetCSV(ctx context.Context, id string, w io.Writer) error {
	rep, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if rep.Analysis != nil && rep.Analysis.Dataset != nil {
		return exporter.Encode(w, rep.Analysis.Dataset.Names(), exporter.DatasetRecords(rep.Analysis.Dataset), false)
	}

	if s.store != nil {
		dir, err := s.store.Dir(id)
		if err == nil {
			f, err := os.Open(filepath.Join(dir, config.DatasetFileName))
			if err == nil {
				defer f.Close()
				br := bufio.NewReader(f)
				if head, _ := br.Peek(len(utf8BOM)); bytes.Equal(head, utf8BOM) {
					br.Discard(len(utf8BOM))
				}
				_, err = io.Copy(w, br)
				return err
			}
		}
	}
	return apperrors.NewNotFoundError("dataset of analysis " + id).WithContext("cause", ErrDatasetUnavailable.Error())
}

// WriteChart renders the PNG chart of a view, or the correlation heat map
func (s *AnalysisService) WriteChart(ctx context.Context, id string, name domain.ViewName, w io.Writer) error {
	rep, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if rep.Analysis == nil {
		return apperrors.ViewNotFoundError(string(name))
	}

	var buf bytes.Buffer
	err = report.Chart(&buf, rep.Analysis, name, report.DefaultChartOptions())
	if errors.Is(err, report.ErrNothingToPlot) {
		return apperrors.ViewNotFoundError(string(name))
	}
	if err != nil {
		return apperrors.NewStorageError("failed to render chart", err)
	}
	if s.metrics != nil {
		s.metrics.ChartsRendered.Add(ctx, 1)
	}

	_, err = buf.WriteTo(w)
	return err
}

// CacheLen returns the number of cached reports
func (s *AnalysisService) CacheLen() int {
	return s.cache.len()
}

func (s *AnalysisService) validateStruct(v interface{}) error {
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make([]apperrors.ValidationError, 0, len(verrs))
			for _, fe := range verrs {
				details = append(details, apperrors.ValidationError{
					Field:   fe.Field(),
					Message: fmt.Sprintf("failed %q", fe.Tag()),
				})
			}
			return apperrors.NewValidationErrors(details)
		}
		return apperrors.NewAppValidationError(err.Error())
	}
	return nil
}

// readLimited reads r fully, failing once more than limit bytes arrive
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = 32 << 20
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read upload", err)
	}
	if int64(len(data)) > limit {
		return nil, apperrors.NewTooLargeError(limit)
	}
	if len(data) == 0 {
		return nil, apperrors.NewAppValidationError("uploaded file is empty")
	}
	return data, nil
}

// digest is the hex BLAKE2b-256 of data
func digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
