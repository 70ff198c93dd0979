// Package exporter writes analysis results as CSV.
//
// CSVWriter is the low-level writer with header, append, streaming and
// UTF-8 BOM support. ViewRecords, CorrelationRecords and DatasetRecords
// flatten results into rows; missing cells and undefined coefficients
// become empty fields. ResultExporter lays a whole result out on disk:
//
//	exp := exporter.NewResultExporter(cfg.Paths.ReportsDir, logger)
//	files, err := exp.Export(ctx, analysisID, result)
package exporter
