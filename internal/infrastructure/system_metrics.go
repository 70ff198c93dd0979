package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// SystemStats is a point-in-time snapshot of the process, served by
// /metrics/stats and the health endpoint
type SystemStats struct {
	GoRoutines    int64     `json:"goroutines"`
	HeapInUse     int64     `json:"heap_inuse_bytes"`
	MemorySystem  int64     `json:"memory_system_bytes"`
	GCCount       uint32    `json:"gc_count"`
	CPUCount      int       `json:"cpu_count"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	Timestamp     time.Time `json:"timestamp"`
}

func sampleSystem(start time.Time) *SystemStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return &SystemStats{
		GoRoutines:    int64(runtime.NumGoroutine()),
		HeapInUse:     int64(ms.HeapInuse),
		MemorySystem:  int64(ms.Sys),
		GCCount:       ms.NumGC,
		CPUCount:      runtime.NumCPU(),
		UptimeSeconds: time.Since(start).Seconds(),
		Timestamp:     time.Now().UTC(),
	}
}

// SystemMetricsCollector samples the runtime on an interval. The latest
// sample backs a set of observable gauges, so a Prometheus scrape never
// triggers ReadMemStats itself.
type SystemMetricsCollector struct {
	start        time.Time
	interval     time.Duration
	latest       atomic.Pointer[SystemStats]
	registration metric.Registration

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewSystemMetricsCollector registers the process gauges on meter. A nil
// meter disables export but sampling still works.
func NewSystemMetricsCollector(meter metric.Meter, interval time.Duration) (*SystemMetricsCollector, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(MeterName)
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	c := &SystemMetricsCollector{start: time.Now(), interval: interval}
	c.latest.Store(sampleSystem(c.start))

	goroutines, err1 := meter.Int64ObservableGauge("system_goroutines",
		metric.WithDescription("Number of live goroutines"))
	heap, err2 := meter.Int64ObservableGauge("system_heap_inuse_bytes",
		metric.WithDescription("Heap bytes in use"), metric.WithUnit("By"))
	sys, err3 := meter.Int64ObservableGauge("system_memory_system_bytes",
		metric.WithDescription("Memory obtained from the OS"), metric.WithUnit("By"))
	uptime, err4 := meter.Float64ObservableGauge("system_process_uptime_seconds",
		metric.WithDescription("Seconds since the collector was created"), metric.WithUnit("s"))
	if err := errors.Join(err1, err2, err3, err4); err != nil {
		return nil, fmt.Errorf("failed to create system gauges: %w", err)
	}

	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := c.latest.Load()
		o.ObserveInt64(goroutines, s.GoRoutines)
		o.ObserveInt64(heap, s.HeapInUse)
		o.ObserveInt64(sys, s.MemorySystem)
		o.ObserveFloat64(uptime, time.Since(c.start).Seconds())
		return nil
	}, goroutines, heap, sys, uptime)
	if err != nil {
		return nil, fmt.Errorf("failed to register system gauges: %w", err)
	}
	c.registration = reg
	return c, nil
}

// Start begins periodic sampling in the background until Stop or ctx is
// done. Calling Start on a running collector does nothing.
func (c *SystemMetricsCollector) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.stopped = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.latest.Store(sampleSystem(c.start))
			case <-ctx.Done():
				return
			}
		}
	}(c.stopped)
}

// Stop ends sampling and waits for the sampler to exit. Safe to call more
// than once or without Start.
func (c *SystemMetricsCollector) Stop() {
	c.mu.Lock()
	cancel, stopped := c.cancel, c.stopped
	c.cancel, c.stopped = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}

// Close stops sampling and unregisters the gauges
func (c *SystemMetricsCollector) Close() error {
	c.Stop()
	if c.registration == nil {
		return nil
	}
	return c.registration.Unregister()
}

// GetCurrentStats takes a fresh sample and makes it the exported one
func (c *SystemMetricsCollector) GetCurrentStats(_ context.Context) *SystemStats {
	s := sampleSystem(c.start)
	c.latest.Store(s)
	return s
}

// LastStats returns the most recent sample without reading the runtime
func (c *SystemMetricsCollector) LastStats() *SystemStats {
	return c.latest.Load()
}
