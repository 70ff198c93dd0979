package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"ecomeda/internal/config"
	"ecomeda/internal/infrastructure"
	"ecomeda/pkg/contracts"
)

// globalOptions are the persistent flags shared by every subcommand
type globalOptions struct {
	configFile string
	logLevel   string
}

// NewRootCommand builds the edactl command tree. Reports go to stdout,
// logs and progress to stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:     "edactl",
		Short:   "Exploratory analysis of e-commerce order data",
		Version: contracts.Version,
		Long: `Analyze order exports from CSV, TSV, Excel workbooks or Google Sheets.

Each run cleans the data, computes the sales views and the correlation
matrix, and prints the report as JSON. With --out the per-view CSVs and the
cleaned dataset are written to disk, and --charts adds PNG charts.`,
		Example: `  # Analyze one file and print the report
  $ edactl analyze orders.csv

  # Analyze every data file in a directory, keeping CSVs and charts
  $ edactl analyze ./exports --out reports --charts

  # Analyze a Google Sheets range
  $ edactl sheets 1AbCdEfGhIjK --range "Orders!A:I"`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetVersionTemplate(fmt.Sprintf("edactl version %s (api %s)\n", contracts.Version, contracts.APIVersion))

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file (defaults to $"+config.ConfigFileEnv+" or ./config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	root.AddCommand(newAnalyzeCommand(opts))
	root.AddCommand(newSheetsCommand(opts))

	return root
}

// load resolves the configuration and a stderr logger
func (o *globalOptions) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configFile != "" {
		cfg, err = config.LoadFrom(o.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, err
	}

	logger := infrastructure.NewLogger(cmd.ErrOrStderr(), o.logLevel, infrastructure.FormatText)
	return cfg, logger.With(slog.String("component", "edactl")), nil
}
