package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecomeda/internal/config"
	"ecomeda/pkg/contracts"
)

const ordersCSV = `order_id,order_date,price,quantity,discount,category,region,product_id,customer_id
o1,2024-01-01,10,2,0.1,toys,north,p1,c1
o2,2024-01-02,20,1,0,books,south,p2,c2
o3,2024-01-03,5,4,0,toys,north,p1,c3
`

// createTestLogger creates a logger that discards output for testing
func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Paths.ReportsDir = t.TempDir()
	cfg.Paths.LogsDir = t.TempDir()
	cfg.Security.RateLimit.Enabled = false
	cfg.Server.ShutdownTimeout = 2 * time.Second
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	a, err := New(cfg, createTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		a.WebSocketHub.Stop()
		a.OTelProviders.Shutdown(context.Background())
	})
	return a
}

func TestNew(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	assert.NotNil(t, a.Router)
	assert.NotNil(t, a.AnalysisService)
	assert.NotNil(t, a.HealthService)
	assert.NotNil(t, a.OTelProviders.PrometheusHTTP)
	assert.Equal(t, "127.0.0.1:8080", a.Server.Addr)
}

func TestNew_InvalidTelemetry(t *testing.T) {
	cfg := testConfig(t)
	cfg.Telemetry.TraceExporter = "jaeger"

	_, err := New(cfg, createTestLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OpenTelemetry")
}

func TestRouter_Endpoints(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	a.WebSocketHub.Start()

	tests := []struct {
		name        string
		method      string
		path        string
		wantStatus  int
		contentType string
		contains    string
	}{
		{"health", http.MethodGet, "/api/health", 200, "application/json", `"status":"ok"`},
		{"ready", http.MethodGet, "/api/health/ready", 200, "application/json", `"status":"ready"`},
		{"live", http.MethodGet, "/api/health/live", 200, "application/json", `"alive"`},
		{"version", http.MethodGet, "/api/version", 200, "application/json", contracts.Version},
		{"empty list", http.MethodGet, "/api/analyses", 200, "application/json", `"count":0`},
		{"metrics", http.MethodGet, "/metrics", 200, "text/plain", "go_goroutines"},
		{"stats", http.MethodGet, "/metrics/stats", 200, "application/json", `"websocket"`},
		{"unknown route", http.MethodGet, "/api/nope", 404, "application/problem+json", "Not Found"},
		{"wrong method", http.MethodPut, "/api/analyses", 405, "application/problem+json", "PUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			a.Router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), tt.contentType)
			assert.Contains(t, rec.Body.String(), tt.contains)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		})
	}
}

func TestRouter_ReadinessWithoutHub(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_SecurityHeadersAndCORS(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	req := httptest.NewRequest(http.MethodOptions, "/api/analyses", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:8080", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRouter_RateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.1, Burst: 1}
	a := newTestApp(t, cfg)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRouter_AnalysisLifecycle(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "orders.csv")
	require.NoError(t, err)
	_, err = io.WriteString(fw, ordersCSV)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyses", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	location := rec.Header().Get("Location")
	assert.Equal(t, "/api/analyses/"+created.ID, location)

	rec = httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, location+"/views/category_sales.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "toys")

	rec = httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, location, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, location, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ANALYSIS_NOT_FOUND")
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestStartStop_WebSocket(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Port = freePort(t)
	cfg.Security.AllowedOrigins = nil
	cfg.Security.EnableCORS = false
	a := newTestApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx, cancel))

	base := "127.0.0.1:" + strconv.Itoa(cfg.Server.Port)
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + base + "/api/health/live")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+base+"/ws", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return a.WebSocketHub.ClientCount() == 1 }, 2*time.Second, 20*time.Millisecond)

	a.WebSocketHub.Broadcast("analysis:started", map[string]string{"analysis_id": "x"})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "analysis:started")
	conn.Close()

	require.NoError(t, a.Stop(context.Background()))
	assert.False(t, a.WebSocketHub.Running())
}
