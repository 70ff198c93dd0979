package report

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "ecomeda/internal/errors"
	"ecomeda/pkg/contracts"
	"ecomeda/pkg/contracts/domain"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func sampleResult() *domain.AnalysisResult {
	return &domain.AnalysisResult{
		Capabilities: domain.Capabilities{CategorySales: true, CategoryDistribution: true},
		Views: map[domain.ViewName]*domain.AggregateView{
			domain.ViewCategorySales: {
				Name:    domain.ViewCategorySales,
				GroupBy: []string{"category"},
				Measure: domain.MeasureSum,
				Rows: []domain.ViewRow{
					{Key: domain.String("Books"), Count: 2, Sum: 40},
					{Key: domain.String("Toys"), Count: 1, Sum: 15.5},
					{Key: domain.Missing(), Count: 1, Sum: 3},
				},
			},
			domain.ViewCategoryDistribution: {
				Name:    domain.ViewCategoryDistribution,
				GroupBy: []string{"category"},
				Measure: domain.MeasureCount,
				Rows:    []domain.ViewRow{},
			},
		},
		Correlation: &domain.CorrelationMatrix{
			Columns: []string{"price", "quantity"},
			Cells: [][]domain.Coefficient{
				{domain.Defined(1), domain.Undefined},
				{domain.Undefined, domain.Defined(1)},
			},
		},
		Duration: 3 * time.Millisecond,
	}
}

func TestBarChart(t *testing.T) {
	result := sampleResult()

	t.Run("renders png", func(t *testing.T) {
		var buf bytes.Buffer
		view, _ := result.View(domain.ViewCategorySales)
		require.NoError(t, BarChart(&buf, view, DefaultChartOptions()))
		assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
	})

	t.Run("empty view", func(t *testing.T) {
		view, _ := result.View(domain.ViewCategoryDistribution)
		assert.ErrorIs(t, BarChart(&bytes.Buffer{}, view, DefaultChartOptions()), ErrNothingToPlot)
	})

	t.Run("nil view", func(t *testing.T) {
		assert.ErrorIs(t, BarChart(&bytes.Buffer{}, nil, DefaultChartOptions()), ErrNothingToPlot)
	})
}

func TestHeatmap(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Heatmap(&buf, sampleResult().Correlation, ChartOptions{}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))

	assert.ErrorIs(t, Heatmap(&bytes.Buffer{}, &domain.CorrelationMatrix{}, ChartOptions{}), ErrNothingToPlot)
	assert.ErrorIs(t, Heatmap(&bytes.Buffer{}, nil, ChartOptions{}), ErrNothingToPlot)
}

func TestChartDispatch(t *testing.T) {
	result := sampleResult()

	tests := []struct {
		name    string
		view    domain.ViewName
		wantErr error
	}{
		{name: "bar", view: domain.ViewCategorySales},
		{name: "heatmap", view: domain.ViewCorrelation},
		{name: "absent view", view: domain.ViewWeekdaySales, wantErr: ErrNothingToPlot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := Chart(&buf, result, tt.view, DefaultChartOptions())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
		})
	}
}

func sampleReport(id string) *domain.Report {
	return &domain.Report{
		ID:        id,
		Source:    domain.SourceUpload,
		Name:      "orders.csv",
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Profile:   domain.DatasetProfile{Rows: 4, Columns: 3},
		Preview: domain.Preview{
			Columns: []string{"category"},
			Rows:    [][]domain.Value{{domain.String("Books")}, {domain.Missing()}},
		},
		Analysis: sampleResult(),
	}
}

func TestStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	store := NewStore(t.TempDir(), nil)

	require.NoError(t, store.Save(ctx, sampleReport("r1")))

	got, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, contracts.ReportFormat, got.Format)
	assert.Equal(t, "orders.csv", got.Name)
	assert.True(t, got.Preview.Rows[1][0].IsMissing())

	view, ok := got.Analysis.View(domain.ViewCategorySales)
	require.True(t, ok)
	require.Len(t, view.Rows, 3)
	assert.True(t, view.Rows[2].Key.IsMissing())

	cell, ok := got.Analysis.Correlation.At("price", "quantity")
	require.True(t, ok)
	assert.False(t, cell.Defined)
}

func TestStoreErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewStore(dir, nil)

	_, err := store.Load(ctx, "missing")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	assert.True(t, apperrors.IsType(store.Save(ctx, &domain.Report{}), apperrors.ErrTypeValidation))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bad"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad", "report.json"), []byte("{"), 0644))
	_, err = store.Load(ctx, "bad")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "future"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "future", "report.json"), []byte(`{"id":"future","format":"v9"}`), 0644))
	_, err = store.Load(ctx, "future")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
	assert.Contains(t, err.Error(), "unsupported report format")

	assert.True(t, apperrors.IsType(store.Delete(ctx, "absent"), apperrors.ErrTypeNotFound))
}

func TestStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewStore(dir, nil)

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, store.Save(ctx, sampleReport("a")))
	require.NoError(t, store.Save(ctx, sampleReport("b")))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "stray"), 0755))

	list, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []domain.ViewName{domain.ViewCategoryDistribution, domain.ViewCategorySales}, list[0].Views)

	require.NoError(t, store.Delete(ctx, "a"))
	list, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].ID)
}

func TestStoreListMissingBaseDir(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent"), nil)
	list, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWriteCharts(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)

	written, err := store.WriteCharts(context.Background(), "r1", sampleResult())
	require.NoError(t, err)
	require.Len(t, written, 2)
	assert.Equal(t, filepath.Join(dir, "r1", "charts", "category_sales.png"), written[0])
	assert.Equal(t, filepath.Join(dir, "r1", "charts", "correlation.png"), written[1])

	data, err := os.ReadFile(written[1])
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))
}

func TestReportSummary(t *testing.T) {
	rep := sampleReport("x")
	s := rep.Summary()
	assert.Equal(t, 4, s.Rows)
	assert.Equal(t, 3, s.Columns)
	assert.Equal(t, []domain.ViewName{domain.ViewCategoryDistribution, domain.ViewCategorySales}, s.Views)

	rep.Analysis = nil
	assert.Empty(t, rep.Summary().Views)
}
