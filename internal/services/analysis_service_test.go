package services

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ecomeda/internal/config"
	apperrors "ecomeda/internal/errors"
	"ecomeda/internal/report"
	"ecomeda/internal/shared/testutil"
	"ecomeda/internal/websocket"
	"ecomeda/pkg/contracts/domain"
	"ecomeda/pkg/contracts/events"
)

const ordersCSV = `order_id,order_date,price,quantity,discount,category,region,product_id,customer_id
o1,2024-01-01,10,2,0.1,toys,north,p1,c1
o2,2024-01-02,20,1,0,books,south,p2,c2
o3,2024-01-02,"1,000",1,0.5,toys,north,p3,c1
o4,2024-01-07,8,1,0.25,toys,east,p4,c4
`

// MockWebSocketHub records broadcasts
type MockWebSocketHub struct {
	mock.Mock
}

func (m *MockWebSocketHub) Broadcast(messageType string, data interface{}) {
	m.Called(messageType, data)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAnalysisConfig() config.AnalysisConfig {
	cfg := config.Default().Analysis
	cfg.CacheSize = 4
	cfg.PreviewRows = 2
	return cfg
}

func newTestService(t *testing.T, hub WebSocketHub) (*AnalysisService, string) {
	t.Helper()
	dir := t.TempDir()
	svc, err := NewAnalysisService(testAnalysisConfig(), dir, AnalysisServiceDeps{Hub: hub}, quietLogger())
	require.NoError(t, err)
	return svc, dir
}

func TestAnalyzeUpload(t *testing.T) {
	hub := new(MockWebSocketHub)
	hub.On("Broadcast", mock.AnythingOfType("string"), mock.Anything).Return()

	svc, dir := newTestService(t, hub)
	rep, err := svc.AnalyzeUpload(context.Background(), "orders.csv", strings.NewReader(ordersCSV), AnalyzeOptions{})
	require.NoError(t, err)

	_, err = uuid.Parse(rep.ID)
	assert.NoError(t, err)
	assert.Equal(t, domain.SourceUpload, rep.Source)
	assert.Equal(t, "orders.csv", rep.Name)
	assert.Len(t, rep.Digest, 64)
	assert.Equal(t, int64(len(ordersCSV)), rep.SizeBytes)
	assert.Equal(t, 4, rep.Profile.Rows)
	assert.Len(t, rep.Preview.Rows, 2)
	require.NotNil(t, rep.Analysis)
	assert.Len(t, rep.Analysis.Views, len(domain.AllViews))

	assert.FileExists(t, filepath.Join(dir, rep.ID, config.ReportFileName))
	assert.FileExists(t, filepath.Join(dir, rep.ID, config.DatasetFileName))
	assert.FileExists(t, filepath.Join(dir, rep.ID, config.ViewsDirName, "category_sales.csv"))

	hub.AssertCalled(t, "Broadcast", websocket.TypeAnalysisStarted, mock.Anything)
	hub.AssertCalled(t, "Broadcast", websocket.TypeAnalysisCompleted, mock.Anything)
	hub.AssertNotCalled(t, "Broadcast", websocket.TypeAnalysisFailed, mock.Anything)
	hub.AssertCalled(t, "Broadcast", websocket.TypeAnalysisProgress, events.AnalysisEvent{
		AnalysisID: rep.ID,
		Payload:    events.AnalysisProgress{Stage: StageLoad},
	})
	// started, four stages, completed
	hub.AssertNumberOfCalls(t, "Broadcast", 6)
}

func TestAnalyzeUpload_SameContentSameDigest(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	a, err := svc.AnalyzeUpload(ctx, "a.csv", strings.NewReader(ordersCSV), AnalyzeOptions{})
	require.NoError(t, err)
	b, err := svc.AnalyzeUpload(ctx, "b.csv", strings.NewReader(ordersCSV), AnalyzeOptions{})
	require.NoError(t, err)

	assert.Equal(t, a.Digest, b.Digest)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestAnalyzeUpload_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		body     string
		opts     AnalyzeOptions
		limit    int64
		errType  apperrors.ErrorType
	}{
		{"legacy xls", "orders.xls", ordersCSV, AnalyzeOptions{}, 0, apperrors.ErrTypeUnsupportedFormat},
		{"no extension", "orders", ordersCSV, AnalyzeOptions{}, 0, apperrors.ErrTypeUnsupportedFormat},
		{"empty body", "orders.csv", "", AnalyzeOptions{}, 0, apperrors.ErrTypeValidation},
		{"too large", "orders.csv", ordersCSV, AnalyzeOptions{}, 16, apperrors.ErrTypeTooLarge},
		{"blank name", "  ", ordersCSV, AnalyzeOptions{}, 0, apperrors.ErrTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testAnalysisConfig()
			if tt.limit > 0 {
				cfg.MaxUploadBytes = tt.limit
			}
			svc, err := NewAnalysisService(cfg, "", AnalysisServiceDeps{}, quietLogger())
			require.NoError(t, err)

			_, err = svc.AnalyzeUpload(context.Background(), tt.filename, strings.NewReader(tt.body), tt.opts)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tt.errType), "got %v", err)
		})
	}
}

func TestAnalyzeUpload_InvalidOptions(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.AnalyzeUpload(context.Background(), "orders.csv", strings.NewReader(ordersCSV), AnalyzeOptions{TopN: 5000})
	require.Error(t, err)
	var apiErr *apperrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "VALIDATION_FAILED", apiErr.ErrorCode)
}

func TestAnalyzeUpload_TopN(t *testing.T) {
	svc, _ := newTestService(t, nil)

	rep, err := svc.AnalyzeUpload(context.Background(), "orders.csv", strings.NewReader(ordersCSV), AnalyzeOptions{TopN: 2})
	require.NoError(t, err)

	top, ok := rep.Analysis.View(domain.ViewTopProducts)
	require.True(t, ok)
	assert.Len(t, top.Rows, 2)
}

func TestAnalyzeUpload_FailureBroadcast(t *testing.T) {
	hub := new(MockWebSocketHub)
	hub.On("Broadcast", mock.AnythingOfType("string"), mock.Anything).Return()
	logger, logs := testutil.NewTestLogger(nil)
	svc, err := NewAnalysisService(testAnalysisConfig(), t.TempDir(), AnalysisServiceDeps{Hub: hub}, logger)
	require.NoError(t, err)

	_, err = svc.AnalyzeUpload(context.Background(), "orders.xlsx", strings.NewReader("not a zip"), AnalyzeOptions{})
	require.Error(t, err)

	testutil.AssertLogged(t, logs, testutil.At(slog.LevelWarn, "analysis failed").With("name", "orders.xlsx"))

	hub.AssertCalled(t, "Broadcast", websocket.TypeAnalysisFailed, mock.Anything)
	hub.AssertNotCalled(t, "Broadcast", websocket.TypeAnalysisCompleted, mock.Anything)
	assert.Equal(t, 0, svc.CacheLen())
}

func TestAnalyzeFile(t *testing.T) {
	svc, dir := newTestService(t, nil)
	path := filepath.Join(t.TempDir(), "orders.csv")
	require.NoError(t, os.WriteFile(path, []byte(ordersCSV), 0644))

	rep, err := svc.AnalyzeFile(context.Background(), path, AnalyzeOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceFile, rep.Source)

	stored, err := report.NewStore(dir, quietLogger()).Load(context.Background(), rep.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceFile, stored.Source)

	_, err = svc.AnalyzeFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), AnalyzeOptions{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestAnalyzeSheet_Disabled(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.AnalyzeSheet(context.Background(), SheetRequest{SpreadsheetID: "1abcdefghijk", Range: "A1:Z"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))

	_, err = svc.AnalyzeSheet(context.Background(), SheetRequest{})
	var apiErr *apperrors.APIError
	assert.ErrorAs(t, err, &apiErr)
}

func TestGet_FallsBackToStore(t *testing.T) {
	cfg := testAnalysisConfig()
	cfg.CacheSize = 1
	dir := t.TempDir()
	svc, err := NewAnalysisService(cfg, dir, AnalysisServiceDeps{}, quietLogger())
	require.NoError(t, err)
	ctx := context.Background()

	first, err := svc.AnalyzeUpload(ctx, "a.csv", strings.NewReader(ordersCSV), AnalyzeOptions{})
	require.NoError(t, err)
	_, err = svc.AnalyzeUpload(ctx, "b.csv", strings.NewReader(ordersCSV), AnalyzeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, svc.CacheLen())

	got, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	require.NotNil(t, got.Analysis)
	assert.Nil(t, got.Analysis.Dataset)

	// the evicted report still serves its dataset from disk
	var buf bytes.Buffer
	require.NoError(t, svc.WriteDatasetCSV(ctx, first.ID, &buf))
	assert.True(t, strings.HasPrefix(buf.String(), "order_id,"))

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	for _, id := range []string{"", "../etc", uuid.NewString()} {
		_, err := svc.Get(ctx, id)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound), "id %q: %v", id, err)
	}
}

func TestViewAndCSV(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	rep, err := svc.AnalyzeUpload(ctx, "orders.csv", strings.NewReader(ordersCSV), AnalyzeOptions{})
	require.NoError(t, err)

	view, err := svc.View(ctx, rep.ID, domain.ViewCategorySales)
	require.NoError(t, err)
	assert.Equal(t, domain.ViewCategorySales, view.Name)

	_, err = svc.View(ctx, rep.ID, domain.ViewName("nope"))
	var apiErr *apperrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "VIEW_NOT_FOUND", apiErr.ErrorCode)

	var buf bytes.Buffer
	require.NoError(t, svc.WriteViewCSV(ctx, rep.ID, domain.ViewCategorySales, &buf))
	assert.Contains(t, buf.String(), "toys")

	buf.Reset()
	require.NoError(t, svc.WriteViewCSV(ctx, rep.ID, domain.ViewCorrelation, &buf))
	assert.Contains(t, buf.String(), "price")
}

func TestWriteChart(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	rep, err := svc.AnalyzeUpload(ctx, "orders.csv", strings.NewReader(ordersCSV), AnalyzeOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.WriteChart(ctx, rep.ID, domain.ViewCategorySales, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))

	buf.Reset()
	require.NoError(t, svc.WriteChart(ctx, rep.ID, domain.ViewCorrelation, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestDelete(t *testing.T) {
	svc, dir := newTestService(t, nil)
	ctx := context.Background()
	rep, err := svc.AnalyzeUpload(ctx, "orders.csv", strings.NewReader(ordersCSV), AnalyzeOptions{})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, rep.ID))
	assert.NoDirExists(t, filepath.Join(dir, rep.ID))
	assert.Equal(t, 0, svc.CacheLen())

	err = svc.Delete(ctx, rep.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestMemoryOnlyService(t *testing.T) {
	svc, err := NewAnalysisService(testAnalysisConfig(), "", AnalysisServiceDeps{}, quietLogger())
	require.NoError(t, err)
	ctx := context.Background()

	rep, err := svc.AnalyzeUpload(ctx, "orders.csv", strings.NewReader(ordersCSV), AnalyzeOptions{})
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, rep.ID, list[0].ID)

	require.NoError(t, svc.Delete(ctx, rep.ID))
	assert.True(t, apperrors.IsType(svc.Delete(ctx, rep.ID), apperrors.ErrTypeNotFound))
}
