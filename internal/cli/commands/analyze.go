package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ecomeda/internal/files"
	"ecomeda/internal/services"
	"ecomeda/internal/validation"
)

type analyzeOptions struct {
	outputOptions
	sheet string
}

func newAnalyzeCommand(global *globalOptions) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <file|directory>",
		Short: "analyze a local CSV, TSV or Excel file",
		Long: `Analyze a local order export and print the report as JSON.

A directory argument analyzes every .csv, .tsv, .xlsx and .xlsm file in it,
in name order, printing one report per file.`,
		Example: `  $ edactl analyze orders.xlsx --sheet Orders
  $ edactl analyze ./exports --out reports --charts --top-n 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			cfg, logger, err := global.load(cmd)
			if err != nil {
				return err
			}

			paths, err := inputFiles(validation.NewFileValidator(logger), args[0])
			if err != nil {
				return err
			}

			run, err := newRunner(cmd, cfg, logger, &opts.outputOptions, nil)
			if err != nil {
				return err
			}
			return run.analyzeFiles(cmd.Context(), paths, services.AnalyzeOptions{TopN: opts.topN, Sheet: opts.sheet})
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "worksheet to read from Excel workbooks (default: first sheet)")
	return cmd
}

// inputFiles expands a directory into its data files
func inputFiles(v *validation.FileValidator, path string) ([]string, error) {
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		if err := v.ValidateDataFile(path); err != nil {
			return nil, err
		}
		return []string{path}, nil
	}

	n, err := v.ValidateInputDirectory(path)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("no data files in %s", path)
	}

	found, err := files.NewDiscovery("").FindDataFiles(path)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(found))
	for _, f := range found {
		paths = append(paths, f.Path)
	}
	return paths, nil
}

func (r *runner) analyzeFiles(ctx context.Context, paths []string, opts services.AnalyzeOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for _, p := range paths {
		rep, err := r.service.AnalyzeFile(ctx, p, opts)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		if err := r.emit(ctx, rep); err != nil {
			return err
		}
	}
	return nil
}
