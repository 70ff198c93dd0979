package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"ecomeda/internal/config"
	"ecomeda/internal/infrastructure"
	"ecomeda/pkg/contracts/events"
)

// broadcastQueue bounds the messages waiting for the hub loop
const broadcastQueue = 256

// Hub maintains the set of active clients and fans messages out to them.
// Broadcasting never blocks the caller: when the queue is full or the hub
// is stopped the message is dropped and counted.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	running bool
	quit    chan struct{}
	done    chan struct{}

	cfg     config.WebSocketConfig
	metrics *Metrics
	logger  *slog.Logger
}

type outbound struct {
	msgType string
	payload []byte
}

// NewHub creates a hub. metrics may be nil.
func NewHub(logger *slog.Logger, cfg config.WebSocketConfig, metrics *Metrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, broadcastQueue),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger.With(slog.String("component", "websocket.hub")),
	}
}

// Start runs the hub loop in a goroutine. Calling it twice is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

// Stop ends the hub loop and closes every client queue. Safe to call more
// than once.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	close(h.quit)
	h.mu.Unlock()

	<-h.done

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.logger.Info("Hub stopped")
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case <-h.quit:
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client, "normal")

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	ctx := client.context()
	h.metrics.RecordConnection(ctx)
	h.logger.InfoContext(ctx, "Client registered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr))

	welcome, err := encode(TypeConnection, events.Welcome{
		Status:   "connected",
		ClientID: client.id,
		Protocol: events.ProtocolVersion,
	}, client.traceID)
	if err != nil {
		return
	}
	select {
	case client.send <- welcome:
	default:
		h.metrics.RecordDropped(ctx, "client")
	}
}

func (h *Hub) removeClient(client *Client, reason string) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	count := len(h.clients)
	h.mu.Unlock()

	ctx := client.context()
	h.metrics.RecordDisconnection(ctx, time.Since(client.connectedAt), reason)
	h.logger.InfoContext(ctx, "Client unregistered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("reason", reason),
		slog.Duration("connection_duration", time.Since(client.connectedAt)))
}

func (h *Hub) fanOut(msg outbound) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- msg.payload:
			h.metrics.RecordMessage(context.Background(), msg.msgType, len(msg.payload))
		default:
			// slow consumer; drop it rather than stall everyone else
			h.metrics.RecordDropped(client.context(), "client")
			h.removeClient(client, "slow_consumer")
		}
	}

	h.logger.Debug("Broadcast delivered",
		slog.String("message_type", msg.msgType),
		slog.Int("client_count", len(clients)),
		slog.Int("message_size", len(msg.payload)))
}

// Register adds a client. It returns false when the hub is stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes a client. It never blocks once the hub is stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// Broadcast queues a message of messageType for every client
func (h *Hub) Broadcast(messageType string, data interface{}) {
	h.BroadcastContext(context.Background(), messageType, data)
}

// BroadcastContext is Broadcast carrying the trace id of ctx
func (h *Hub) BroadcastContext(ctx context.Context, messageType string, data interface{}) {
	payload, err := encode(messageType, data, infrastructure.GetTraceID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "Error marshaling message",
			slog.String("message_type", messageType),
			slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()
	if !running {
		h.metrics.RecordDropped(ctx, "hub_stopped")
		return
	}

	select {
	case h.broadcast <- outbound{msgType: messageType, payload: payload}:
	default:
		h.metrics.RecordDropped(ctx, "broadcast")
		h.logger.WarnContext(ctx, "Broadcast queue full, dropping message",
			slog.String("message_type", messageType))
	}
}

// Running reports whether the hub loop is accepting clients
func (h *Hub) Running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns hub totals for the health endpoint
func (h *Hub) Stats() map[string]int64 {
	stats := h.metrics.Snapshot()
	stats["active_clients"] = int64(h.ClientCount())
	stats["broadcast_queue"] = int64(len(h.broadcast))
	return stats
}

func encode(messageType string, data interface{}, traceID string) ([]byte, error) {
	return json.Marshal(Message{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now().UTC(),
		TraceID:   traceID,
	})
}
