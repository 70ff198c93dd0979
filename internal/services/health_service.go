package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"ecomeda/internal/config"
	"ecomeda/internal/infrastructure"
	"ecomeda/pkg/contracts"
)

// Health states
const (
	StatusOK       = "ok"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
	StatusAlive    = "alive"
)

// HubStatus is the part of the websocket hub the health checks read
type HubStatus interface {
	Running() bool
	Stats() map[string]int64
}

// StatsSource provides process statistics
type StatsSource interface {
	GetCurrentStats(ctx context.Context) *infrastructure.SystemStats
}

// HealthService provides health check functionality
type HealthService struct {
	paths     config.PathsConfig
	hub       HubStatus
	stats     StatsSource
	analyses  *AnalysisService
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// NewHealthService creates a health service. hub, stats and analyses may
// be nil; the matching checks are then skipped.
func NewHealthService(paths config.PathsConfig, hub HubStatus, stats StatsSource, analyses *AnalysisService, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "health_service"))

	logger.Info("HealthService initialized",
		slog.String("version", contracts.Version),
		slog.String("reports_dir", paths.ReportsDir))

	return &HealthService{
		paths:     paths,
		hub:       hub,
		stats:     stats,
		analyses:  analyses,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck returns overall health with process and service details
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    StatusOK,
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Runtime:   hs.runtimeInfo(ctx),
		Services:  make(map[string]interface{}),
	}

	if hs.hub != nil {
		status.Services["websocket"] = hs.hub.Stats()
	}
	if hs.analyses != nil {
		status.Services["analysis"] = map[string]interface{}{
			"cached": hs.analyses.CacheLen(),
		}
	}

	hs.logger.DebugContext(ctx, "HealthCheck: completed",
		slog.String("status", status.Status),
		slog.Duration("uptime", time.Since(hs.startTime)))

	return status
}

// ReadinessCheck returns readiness status
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    StatusReady,
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Services:  make(map[string]interface{}),
	}

	status.Services["reports"] = hs.checkReportsHealth()
	if hs.hub != nil {
		status.Services["websocket"] = hs.checkWebSocketHealth()
	}

	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != StatusReady {
			status.Status = StatusNotReady
			break
		}
	}

	if status.Status != StatusReady {
		hs.logger.WarnContext(ctx, "ReadinessCheck: not ready", slog.Any("services", status.Services))
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    StatusAlive,
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() contracts.VersionInfo {
	return contracts.GetVersionInfo()
}

func (hs *HealthService) runtimeInfo(ctx context.Context) map[string]interface{} {
	info := map[string]interface{}{
		"uptime":     time.Since(hs.startTime).Seconds(),
		"go_version": runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
	}
	if hs.stats != nil {
		if s := hs.stats.GetCurrentStats(ctx); s != nil {
			info["heap_inuse_bytes"] = s.HeapInUse
			info["memory_system_bytes"] = s.MemorySystem
			info["gc_count"] = s.GCCount
			info["cpu_count"] = s.CPUCount
		}
	}
	return info
}

// checkReportsHealth checks that the reports directory can be written
func (hs *HealthService) checkReportsHealth() ServiceHealth {
	dir := hs.paths.ReportsDir
	if dir == "" {
		return ServiceHealth{Status: StatusReady, Message: "persistence disabled"}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ServiceHealth{
			Status:  StatusNotReady,
			Message: fmt.Sprintf("Cannot create reports directory: %v", err),
		}
	}

	probe, err := os.CreateTemp(dir, ".ready-*")
	if err != nil {
		return ServiceHealth{
			Status:  StatusNotReady,
			Message: fmt.Sprintf("Cannot write to reports directory: %v", err),
		}
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)

	return ServiceHealth{Status: StatusReady, Message: "Reports directory is writable"}
}

// checkWebSocketHealth checks WebSocket service health
func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if !hs.hub.Running() {
		return ServiceHealth{
			Status:  StatusNotReady,
			Message: "WebSocket hub is stopped",
		}
	}
	return ServiceHealth{
		Status:  StatusReady,
		Message: "WebSocket service is healthy",
		Uptime:  time.Since(hs.startTime).String(),
	}
}
