package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeWSEndToEnd(t *testing.T) {
	hub := newTestHub(t)
	upgrader := NewUpgrader(1024, 1024, nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = ServeWS(hub, upgrader, w, r)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var welcome Message
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, TypeConnection, welcome.Type)
	assert.NotEmpty(t, welcome.TraceID)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(heartbeat)))

	hub.Broadcast(TypeAnalysisCompleted, map[string]string{"id": "a1"})

	var done Message
	require.NoError(t, conn.ReadJSON(&done))
	assert.Equal(t, TypeAnalysisCompleted, done.Type)
	raw, _ := json.Marshal(done.Data)
	assert.JSONEq(t, `{"id":"a1"}`, string(raw))

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestUpgraderOrigins(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "no origin header", origin: "", want: true},
		{name: "same host", origin: "http://example.test", want: true},
		{name: "listed", allowed: []string{"http://ui.test"}, origin: "http://ui.test", want: true},
		{name: "wildcard", allowed: []string{"*"}, origin: "http://any.test", want: true},
		{name: "foreign", allowed: []string{"http://ui.test"}, origin: "http://evil.test", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := NewUpgrader(0, 0, tt.allowed)
			r := httptest.NewRequest(http.MethodGet, "http://example.test/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, u.CheckOrigin(r))
		})
	}
}

func TestServeWSRejectsPlainRequest(t *testing.T) {
	hub := newTestHub(t)
	rec := httptest.NewRecorder()
	err := ServeWS(hub, NewUpgrader(0, 0, nil), rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestWritePumpClosesOnHubClose(t *testing.T) {
	hub := newTestHub(t)
	conn := newFakeConn()
	client := NewClient(hub, conn, "")

	done := make(chan struct{})
	go func() {
		client.WritePump()
		close(done)
	}()

	client.send <- []byte(`{"type":"x"}`)
	close(client.send)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("write pump did not exit")
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	require.NotEmpty(t, conn.written)
	assert.Equal(t, `{"type":"x"}`, string(conn.written[0]))
}
