package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"ecomeda/pkg/contracts/domain"
)

// Analyzer runs probe, clean and aggregate over one dataset
type Analyzer struct {
	logger     *slog.Logger
	cleaner    *Cleaner
	aggregator *Aggregator
}

// NewAnalyzer creates an analyzer
func NewAnalyzer(logger *slog.Logger, config AggregatorConfig) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		logger:     logger.With(slog.String("component", "analyzer")),
		cleaner:    NewCleaner(logger),
		aggregator: NewAggregator(logger, config),
	}
}

// Run analyzes ds, which it takes ownership of: cleaning adds and rewrites
// columns in place. Bad cells and absent columns never fail the run; the
// only errors are a nil or misaligned dataset and context cancellation.
func (a *Analyzer) Run(ctx context.Context, ds *domain.Dataset) (*domain.AnalysisResult, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "dataprocessing.analyze")
	defer span.End()
	span.SetAttributes(
		attribute.Int("dataset.rows", ds.Rows()),
		attribute.Int("dataset.columns", ds.Width()),
	)

	_, probeSpan := otel.Tracer(tracerName).Start(ctx, "dataprocessing.probe")
	caps := Probe(ds.Names())
	enabled := Enabled(caps)
	probeSpan.SetAttributes(attribute.StringSlice("capabilities", enabled))
	probeSpan.End()

	a.logger.InfoContext(ctx, "analysis started",
		slog.Int("rows", ds.Rows()),
		slog.Int("columns", ds.Width()),
		slog.Any("capabilities", enabled))

	stats, err := a.cleaner.Clean(ctx, ds, caps)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "clean failed")
		return nil, fmt.Errorf("clean dataset: %w", err)
	}

	views, corr, err := a.aggregator.Aggregate(ctx, ds, caps)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate failed")
		return nil, err
	}

	result := &domain.AnalysisResult{
		Dataset:      ds,
		Capabilities: caps,
		Views:        views,
		Correlation:  corr,
		Duration:     time.Since(start),
	}

	a.logger.InfoContext(ctx, "analysis completed",
		slog.Int("views", len(views)),
		slog.Int("price_invalid", stats.PriceInvalid),
		slog.Int("dates_invalid", stats.DatesInvalid),
		slog.Duration("duration", result.Duration))

	return result, nil
}
