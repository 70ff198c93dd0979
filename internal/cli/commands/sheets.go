package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ecomeda/internal/dataprocessing"
	"ecomeda/internal/services"
)

type sheetsOptions struct {
	outputOptions
	readRange string
	apiKey    string
}

func newSheetsCommand(global *globalOptions) *cobra.Command {
	opts := &sheetsOptions{}

	cmd := &cobra.Command{
		Use:   "sheets <spreadsheet-id>",
		Short: "analyze a Google Sheets range",
		Long: `Fetch a range from Google Sheets and analyze it. The first row of the
range is the header.

Credentials come from the sheets section of the config, the
EDA_SHEETS_API_KEY variable, or --api-key.`,
		Example: `  $ edactl sheets 1AbCdEfGhIjK --range "Orders!A:I"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			cfg, logger, err := global.load(cmd)
			if err != nil {
				return err
			}
			if opts.apiKey != "" {
				cfg.Sheets.APIKey = opts.apiKey
			}

			loader := dataprocessing.NewSheetsLoader(logger, cfg.Sheets)
			if !loader.Enabled() {
				return fmt.Errorf("google sheets credentials are not configured")
			}

			run, err := newRunner(cmd, cfg, logger, &opts.outputOptions, loader)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			rep, err := run.service.AnalyzeSheet(ctx, services.SheetRequest{
				SpreadsheetID: args[0],
				Range:         opts.readRange,
				TopN:          opts.topN,
			})
			if err != nil {
				return err
			}
			return run.emit(ctx, rep)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.readRange, "range", "r", "", "A1 range to read, e.g. Orders!A:I")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "Google API key")
	cmd.MarkFlagRequired("range")
	return cmd
}
