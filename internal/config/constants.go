package config

import "time"

// Application constants
const (
	AppName = "ecomeda"

	// Upload formats the loader accepts
	FormatCSV  = ".csv"
	FormatTSV  = ".tsv"
	FormatXLSX = ".xlsx"
	FormatXLSM = ".xlsm"
	FormatXLS  = ".xls"

	// Network timeouts
	DefaultHTTPTimeout  = 30 * time.Second
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// Report file layout under Paths.ReportsDir
	ReportFileName  = "report.json"
	DatasetFileName = "dataset.csv"
	ChartsDirName   = "charts"
	ViewsDirName    = "views"
)
