// Package services implements the business logic between the HTTP
// handlers, the CLI and the analysis pipeline.
//
// AnalysisService accepts uploads, local files and Google Sheets ranges,
// runs the pipeline and keeps finished reports in a bounded LRU backed by
// the on-disk report store. Every stage is broadcast to the websocket hub:
//
//	analysis:started -> analysis:progress (load, analyze, profile, store)
//	  -> analysis:completed | analysis:failed
//
// At most GOMAXPROCS analyses run at once; further requests wait for a
// slot or for their context to end.
//
// HealthService answers the liveness, readiness and health endpoints.
//
// Errors returned by services are *errors.AppError or *errors.APIError
// values; the transport layer turns them into problem responses.
package services
