package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"ecomeda/pkg/contracts/domain"
)

// ErrNothingToPlot is returned for empty views and matrices
var ErrNothingToPlot = errors.New("nothing to plot")

// ChartOptions sets the rendered image size
type ChartOptions struct {
	Width  vg.Length
	Height vg.Length
}

// DefaultChartOptions returns an 8x5 inch canvas
func DefaultChartOptions() ChartOptions {
	return ChartOptions{Width: 8 * vg.Inch, Height: 5 * vg.Inch}
}

var barColor = color.RGBA{R: 51, G: 102, B: 204, A: 255}

// viewTitles are the chart titles of each view
var viewTitles = map[domain.ViewName]string{
	domain.ViewCategoryDistribution: "Product Category Distribution",
	domain.ViewCategorySales:        "Sales by Category",
	domain.ViewRegionalShare:        "Sales Share by Region",
	domain.ViewTopProducts:          "Top Products by Sales",
	domain.ViewBottomProducts:       "Bottom Products by Sales",
	domain.ViewTopCustomers:         "Top Customers by Sales",
	domain.ViewWeekdaySales:         "Sales by Day of Week",
}

// BarChart draws one bar per view row, in row order
func BarChart(w io.Writer, view *domain.AggregateView, opts ChartOptions) error {
	if view == nil || view.Len() == 0 {
		return ErrNothingToPlot
	}

	values := make(plotter.Values, view.Len())
	labels := make([]string, view.Len())
	for i, r := range view.Rows {
		values[i] = r.Primary(view.Measure)
		labels[i] = r.Key.Label()
		if r.Key.IsMissing() {
			labels[i] = "(missing)"
		}
	}

	p := plot.New()
	p.Title.Text = viewTitles[view.Name]
	if p.Title.Text == "" {
		p.Title.Text = string(view.Name)
	}
	if len(view.GroupBy) > 0 {
		p.X.Label.Text = view.GroupBy[0]
	}
	p.Y.Label.Text = string(view.Measure)

	bars, err := plotter.NewBarChart(values, vg.Points(18))
	if err != nil {
		return fmt.Errorf("bar chart: %w", err)
	}
	bars.Color = barColor
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(labels...)

	if len(labels) > 6 {
		p.X.Tick.Label.Rotation = math.Pi / 4
		p.X.Tick.Label.XAlign = draw.XRight
		p.X.Tick.Label.YAlign = draw.YCenter
	}

	return encodePNG(w, p, opts)
}

// matrixGrid adapts a correlation matrix to plotter.GridXYZ. Undefined
// cells are NaN and are drawn in the heat map's NaN color.
type matrixGrid struct {
	m *domain.CorrelationMatrix
}

func (g matrixGrid) Dims() (c, r int) { return len(g.m.Columns), len(g.m.Columns) }

func (g matrixGrid) Z(c, r int) float64 {
	cell := g.m.Cells[r][c]
	if !cell.Defined {
		return math.NaN()
	}
	return cell.Value
}

func (g matrixGrid) X(c int) float64 { return float64(c) }
func (g matrixGrid) Y(r int) float64 { return float64(r) }

// Heatmap draws the correlation matrix on a blue-red scale over [-1, 1]
func Heatmap(w io.Writer, m *domain.CorrelationMatrix, opts ChartOptions) error {
	if m == nil || m.Empty() {
		return ErrNothingToPlot
	}

	cm := moreland.SmoothBlueRed()
	cm.SetMin(-1)
	cm.SetMax(1)

	h := plotter.NewHeatMap(matrixGrid{m}, cm.Palette(255))
	h.Min, h.Max = -1, 1
	h.NaN = color.Gray{Y: 200}

	p := plot.New()
	p.Title.Text = "Correlation Matrix"
	p.Add(h)

	ticks := make([]plot.Tick, len(m.Columns))
	for i, name := range m.Columns {
		ticks[i] = plot.Tick{Value: float64(i), Label: name}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	p.Y.Tick.Marker = plot.ConstantTicks(ticks)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter

	return encodePNG(w, p, opts)
}

func encodePNG(w io.Writer, p *plot.Plot, opts ChartOptions) error {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts = DefaultChartOptions()
	}
	wt, err := p.WriterTo(opts.Width, opts.Height, "png")
	if err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// Chart renders the named chart of result: a bar chart for a view or the
// heat map for domain.ViewCorrelation.
func Chart(w io.Writer, result *domain.AnalysisResult, name domain.ViewName, opts ChartOptions) error {
	if name == domain.ViewCorrelation {
		return Heatmap(w, result.Correlation, opts)
	}
	view, ok := result.View(name)
	if !ok {
		return ErrNothingToPlot
	}
	return BarChart(w, view, opts)
}
