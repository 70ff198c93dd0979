// Package dataprocessing turns a raw sales table into the exploratory
// analysis of an e-commerce store: per-category counts and revenue,
// regional revenue share, product and customer rankings, weekday revenue
// and a correlation matrix over the numeric columns.
//
// # Architecture
//
// The pipeline runs in three stages over one dataset:
//
// 1. Probe: reads the column names and decides which views can be built
// 2. Cleaner: coerces price, derives sales and day_name, parses order_date
// 3. Aggregator: computes every enabled view, optionally in parallel
//
// Loader and SheetsLoader produce datasets from CSV, TSV, XLSX and Google
// Sheets. Profile and Preview describe a dataset for display.
//
// # Usage
//
//	loader := dataprocessing.NewLoader(logger, dataprocessing.LoaderOptions{})
//	ds, err := loader.LoadFile(ctx, "orders.csv")
//	if err != nil {
//	    return err
//	}
//	result, err := dataprocessing.NewAnalyzer(logger, dataprocessing.DefaultAggregatorConfig()).Run(ctx, ds)
//
// # Missing data
//
// Malformed cells become missing values instead of errors. A view whose
// columns are absent is not produced at all. Correlation coefficients that
// cannot be computed are reported as undefined, never as NaN.
package dataprocessing
