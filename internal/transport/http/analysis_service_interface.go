package http

import (
	"context"
	"io"

	"ecomeda/internal/services"
	"ecomeda/pkg/contracts/domain"
)

// AnalysisServiceInterface defines the analysis operations the handlers use
type AnalysisServiceInterface interface {
	AnalyzeUpload(ctx context.Context, filename string, r io.Reader, opts services.AnalyzeOptions) (*domain.Report, error)
	AnalyzeSheet(ctx context.Context, req services.SheetRequest) (*domain.Report, error)
	Get(ctx context.Context, id string) (*domain.Report, error)
	List(ctx context.Context) ([]domain.ReportSummary, error)
	Delete(ctx context.Context, id string) error
	View(ctx context.Context, id string, name domain.ViewName) (*domain.AggregateView, error)
	Correlation(ctx context.Context, id string) (*domain.CorrelationMatrix, error)
	WriteViewCSV(ctx context.Context, id string, name domain.ViewName, w io.Writer) error
	WriteDatasetCSV(ctx context.Context, id string, w io.Writer) error
	WriteChart(ctx context.Context, id string, name domain.ViewName, w io.Writer) error
}
