// Package app wires configuration, telemetry, services and HTTP transport
// into a runnable server.
//
// # Initialization
//
//  1. Load configuration (defaults, then YAML, then EDA_* environment)
//  2. Initialize the JSON logger and OpenTelemetry providers
//  3. Create business metrics, the websocket hub and the runtime collector
//  4. Build the analysis and health services
//  5. Mount handlers on a chi router and create the http.Server
//
// # Routes
//
//	/ws                       websocket progress stream
//	/metrics, /metrics/stats  Prometheus exposition and JSON snapshot
//	/api/analyses/...         analysis API
//	/api/health/...           health, readiness and liveness
//	/api/version              build information
//
// # Shutdown
//
// Run stops on SIGINT or SIGTERM. Stop drains the HTTP server within
// Server.ShutdownTimeout, stops the hub and the collector, then flushes
// telemetry. Errors are returned to the caller; the package never exits
// the process.
package app
