package http

import (
	"log/slog"
	"net/http"

	gws "github.com/gorilla/websocket"

	"ecomeda/internal/config"
	"ecomeda/internal/websocket"
)

// WebSocketHandler upgrades GET /ws and registers the client with the hub
type WebSocketHandler struct {
	hub      *websocket.Hub
	upgrader *gws.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler creates the handler. Origins follow the CORS list.
func NewWebSocketHandler(hub *websocket.Hub, cfg config.WebSocketConfig, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		hub:      hub,
		upgrader: websocket.NewUpgrader(cfg.ReadBufferSize, cfg.WriteBufferSize, allowedOrigins),
		logger:   logger.With(slog.String("handler", "websocket")),
	}
}

// ServeHTTP handles the upgrade. A failed upgrade has already been
// answered by the upgrader.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := websocket.ServeWS(h.hub, h.upgrader, w, r); err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("origin", r.Header.Get("Origin")),
			slog.String("remote_addr", r.RemoteAddr))
	}
}
