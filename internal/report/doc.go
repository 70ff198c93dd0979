// Package report renders and stores analysis reports.
//
// BarChart and Heatmap draw PNG charts with gonum/plot: one bar per view
// row, and a blue-red heat map for the correlation matrix with undefined
// cells in grey. Store keeps one directory per report holding report.json
// and the rendered charts.
package report
