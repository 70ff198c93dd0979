// Package config loads the application configuration.
//
// # Configuration Sources
//
// Values are layered, later sources winning:
//
//	1. Default()
//	2. A YAML file named by EDA_CONFIG_FILE, or config.yaml / configs/config.yaml
//	3. Environment variables with the EDA_ prefix
//
// # Environment Variables
//
// Variable names follow the struct nesting:
//
//	EDA_SERVER_PORT=8080
//	EDA_LOGGING_LEVEL=debug
//	EDA_ANALYSIS_TOP_N=10
//	EDA_ANALYSIS_MAX_UPLOAD_BYTES=33554432
//	EDA_SHEETS_API_KEY=...
//	EDA_TELEMETRY_TRACE_EXPORTER=stdout
//
// # Validation
//
// Struct tags are checked with go-playground/validator after all layers are
// applied. Load fails on the first invalid configuration.
//
// # Testing
//
// Use Default() for a configuration that needs no environment or files.
package config
