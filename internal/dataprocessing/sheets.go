package dataprocessing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"ecomeda/internal/config"
	apperrors "ecomeda/internal/errors"
	"ecomeda/pkg/contracts/domain"
)

// ErrSheetsDisabled is returned when no Sheets credential is configured
var ErrSheetsDisabled = errors.New("google sheets source is not configured")

// SheetsLoader reads a spreadsheet range as a dataset. The first row of the
// range is the header.
type SheetsLoader struct {
	logger *slog.Logger
	cfg    config.SheetsConfig
	extra  []option.ClientOption
}

// NewSheetsLoader creates a loader. extra options are appended after the
// ones derived from cfg.
func NewSheetsLoader(logger *slog.Logger, cfg config.SheetsConfig, extra ...option.ClientOption) *SheetsLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &SheetsLoader{
		logger: logger.With(slog.String("component", "sheets_loader")),
		cfg:    cfg,
		extra:  extra,
	}
}

// Enabled reports whether the loader can reach the API
func (s *SheetsLoader) Enabled() bool {
	return s.cfg.Enabled() || len(s.extra) > 0
}

func (s *SheetsLoader) clientOptions() []option.ClientOption {
	opts := make([]option.ClientOption, 0, 3+len(s.extra))
	switch {
	case s.cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(s.cfg.CredentialsFile))
	case s.cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(s.cfg.APIKey))
	}
	if s.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.cfg.Endpoint))
	}
	return append(opts, s.extra...)
}

// Load fetches readRange from the spreadsheet as formatted values
func (s *SheetsLoader) Load(ctx context.Context, spreadsheetID, readRange string) (*domain.Dataset, error) {
	if !s.Enabled() {
		return nil, apperrors.NewConfigError("sheets loader", ErrSheetsDisabled)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "dataprocessing.load_sheet")
	defer span.End()
	span.SetAttributes(
		attribute.String("sheets.spreadsheet_id", spreadsheetID),
		attribute.String("sheets.range", readRange),
	)

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	srv, err := sheets.NewService(ctx, s.clientOptions()...)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to create sheets client", err)
	}

	resp, err := srv.Spreadsheets.Values.Get(spreadsheetID, readRange).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("spreadsheet %s range %s", spreadsheetID, readRange))
		}
		return nil, apperrors.NewUpstreamError("google sheets", err)
	}

	records := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		rec := make([]string, len(row))
		for j, cell := range row {
			if cell != nil {
				rec[j] = fmt.Sprint(cell)
			}
		}
		records[i] = rec
	}

	ds, err := FromRecords(records)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "sheet loaded",
		slog.String("spreadsheet_id", spreadsheetID),
		slog.String("range", readRange),
		slog.Int("rows", ds.Rows()),
		slog.Int("columns", ds.Width()))

	return ds, nil
}
