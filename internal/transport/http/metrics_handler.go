package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ecomeda/internal/infrastructure"
)

// StatsProvider supplies the JSON snapshot served next to the Prometheus
// exposition
type StatsProvider interface {
	GetCurrentStats(ctx context.Context) *infrastructure.SystemStats
}

// MetricsHandler serves the Prometheus scrape endpoint and a JSON stats
// snapshot
type MetricsHandler struct {
	exposition http.Handler
	stats      StatsProvider
	hubStats   func() map[string]int64
}

// NewMetricsHandler creates a metrics handler. A nil exposition falls back
// to the default Prometheus registry.
func NewMetricsHandler(exposition http.Handler, stats StatsProvider, hubStats func() map[string]int64) *MetricsHandler {
	if exposition == nil {
		exposition = promhttp.Handler()
	}
	return &MetricsHandler{
		exposition: exposition,
		stats:      stats,
		hubStats:   hubStats,
	}
}

// Routes sets up the metrics routes
func (h *MetricsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Handle("/", h.exposition)
	r.Get("/stats", h.GetStats)
	return r
}

// GetStats returns runtime and websocket counters as JSON
func (h *MetricsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{}
	if h.stats != nil {
		response["system"] = h.stats.GetCurrentStats(r.Context())
	}
	if h.hubStats != nil {
		response["websocket"] = h.hubStats()
	}
	render.JSON(w, r, response)
}
