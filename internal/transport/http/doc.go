// Package http implements the HTTP handlers of the analysis service. The
// handlers stay thin: they parse and validate requests, call the services
// and render results with go-chi/render.
//
// Routes, as mounted by the application:
//
//	POST   /api/analyses                         multipart "file", ?top_n=&sheet=
//	POST   /api/analyses/sheets                  {"spreadsheet_id", "range", "top_n"}
//	GET    /api/analyses                         ?source=upload|sheets|file
//	GET    /api/analyses/{id}
//	DELETE /api/analyses/{id}
//	GET    /api/analyses/{id}/views/{view}       JSON, or CSV with a .csv suffix
//	GET    /api/analyses/{id}/charts/{view}.png
//	GET    /api/analyses/{id}/dataset.csv
//	GET    /api/health, /api/health/ready, /api/health/live, /api/version
//	GET    /ws, /metrics, /metrics/stats
//
// The view name "correlation" addresses the correlation matrix. Every error
// is an RFC 7807 problem written by errors.ErrorHandler.
package http
