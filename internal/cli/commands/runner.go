package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"ecomeda/internal/config"
	"ecomeda/internal/dataprocessing"
	"ecomeda/internal/report"
	"ecomeda/internal/services"
	"ecomeda/internal/validation"
	"ecomeda/pkg/contracts/domain"
)

// outputOptions control what a run leaves on disk
type outputOptions struct {
	out    string
	charts bool
	topN   int
}

func (o *outputOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "directory for report.json, view CSVs and the cleaned dataset")
	cmd.Flags().BoolVar(&o.charts, "charts", false, "render PNG charts (requires --out)")
	cmd.Flags().IntVarP(&o.topN, "top-n", "n", 0, "rows kept by the ranking views (default from config)")
}

func (o *outputOptions) validate() error {
	if o.charts && o.out == "" {
		return fmt.Errorf("--charts requires --out")
	}
	if o.topN < 0 || o.topN > 1000 {
		return fmt.Errorf("--top-n must be between 1 and 1000")
	}
	return nil
}

// runner owns the service built for one CLI invocation
type runner struct {
	service *services.AnalysisService
	store   *report.Store
	opts    *outputOptions
	stdout  io.Writer
	stderr  io.Writer
	logger  *slog.Logger
}

func newRunner(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, opts *outputOptions, sheets *dataprocessing.SheetsLoader) (*runner, error) {
	deps := services.AnalysisServiceDeps{Sheets: sheets}
	if opts.out != "" {
		if err := validation.NewFileValidator(logger).ValidateOutputDirectory(opts.out); err != nil {
			return nil, err
		}
		deps.Store = report.NewStore(opts.out, logger)
	}

	svc, err := services.NewAnalysisService(cfg.Analysis, opts.out, deps, logger)
	if err != nil {
		return nil, err
	}

	return &runner{
		service: svc,
		store:   deps.Store,
		opts:    opts,
		stdout:  cmd.OutOrStdout(),
		stderr:  cmd.ErrOrStderr(),
		logger:  logger,
	}, nil
}

// emit prints rep and renders its charts when asked
func (r *runner) emit(ctx context.Context, rep *domain.Report) error {
	if err := report.WriteJSON(r.stdout, rep); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if r.opts.out != "" {
		dir, _ := r.store.Dir(rep.ID)
		fmt.Fprintf(r.stderr, "%s: saved to %s\n", rep.Name, dir)
	}

	if !r.opts.charts {
		return nil
	}
	paths, err := r.store.WriteCharts(ctx, rep.ID, rep.Analysis)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintf(r.stderr, "  chart %s\n", p)
	}
	return nil
}
