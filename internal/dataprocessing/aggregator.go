package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"ecomeda/pkg/contracts/domain"
)

// DefaultTopN is the ranking size of the product and customer views
const DefaultTopN = 10

// AggregatorConfig holds options for the Aggregator.
type AggregatorConfig struct {
	TopN     int  // entries kept by ranking views; <= 0 means DefaultTopN
	Parallel bool // compute views concurrently
}

// DefaultAggregatorConfig returns the default aggregator configuration
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{TopN: DefaultTopN, Parallel: true}
}

// Aggregator computes the gated views over a cleaned dataset. It never
// mutates the dataset.
type Aggregator struct {
	logger   *slog.Logger
	topN     int
	parallel bool
}

// NewAggregator creates an aggregator
func NewAggregator(logger *slog.Logger, config AggregatorConfig) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if config.TopN <= 0 {
		config.TopN = DefaultTopN
	}
	return &Aggregator{
		logger:   logger.With(slog.String("component", "aggregator")),
		topN:     config.TopN,
		parallel: config.Parallel,
	}
}

// TopN returns the configured ranking size
func (a *Aggregator) TopN() int { return a.topN }

type viewTask struct {
	name domain.ViewName
	run  func() *domain.AggregateView
}

// Aggregate returns every view caps enables plus the correlation matrix.
// The correlation result is nil when ds has no numeric column.
func (a *Aggregator) Aggregate(ctx context.Context, ds *domain.Dataset, caps domain.Capabilities) (map[domain.ViewName]*domain.AggregateView, *domain.CorrelationMatrix, error) {
	if err := ds.Validate(); err != nil {
		return nil, nil, err
	}

	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "dataprocessing.aggregate")
	defer span.End()

	tasks := a.tasks(ds, caps)

	var (
		mu    sync.Mutex
		views = make(map[domain.ViewName]*domain.AggregateView, len(tasks))
		corr  *domain.CorrelationMatrix
	)

	g, gctx := errgroup.WithContext(ctx)
	if !a.parallel {
		g.SetLimit(1)
	}
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, vspan := tracer.Start(gctx, "dataprocessing.view."+string(task.name))
			view := task.run()
			vspan.SetAttributes(attribute.Int("view.rows", view.Len()))
			vspan.End()

			mu.Lock()
			views[task.name] = view
			mu.Unlock()
			return nil
		})
	}
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		_, cspan := tracer.Start(gctx, "dataprocessing.view."+string(domain.ViewCorrelation))
		m := Correlate(ds)
		cspan.End()

		mu.Lock()
		corr = m
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("aggregate: %w", err)
	}

	span.SetAttributes(attribute.Int("aggregate.views", len(views)))
	a.logger.DebugContext(ctx, "views computed",
		slog.Int("views", len(views)),
		slog.Bool("correlation", corr != nil))

	return views, corr, nil
}

func (a *Aggregator) tasks(ds *domain.Dataset, caps domain.Capabilities) []viewTask {
	var tasks []viewTask
	if caps.CategoryDistribution {
		tasks = append(tasks, viewTask{domain.ViewCategoryDistribution, func() *domain.AggregateView {
			return CategoryDistribution(ds)
		}})
	}
	if caps.CategorySales {
		tasks = append(tasks, viewTask{domain.ViewCategorySales, func() *domain.AggregateView {
			return CategorySales(ds)
		}})
	}
	if caps.RegionalShare {
		tasks = append(tasks, viewTask{domain.ViewRegionalShare, func() *domain.AggregateView {
			return RegionalShare(ds)
		}})
	}
	if caps.ProductRanking {
		tasks = append(tasks,
			viewTask{domain.ViewTopProducts, func() *domain.AggregateView {
				return TopProducts(ds, a.topN)
			}},
			viewTask{domain.ViewBottomProducts, func() *domain.AggregateView {
				return BottomProducts(ds, a.topN)
			}},
		)
	}
	if caps.CustomerRanking {
		tasks = append(tasks, viewTask{domain.ViewTopCustomers, func() *domain.AggregateView {
			return TopCustomers(ds, a.topN)
		}})
	}
	if caps.WeekdaySales {
		tasks = append(tasks, viewTask{domain.ViewWeekdaySales, func() *domain.AggregateView {
			return WeekdaySales(ds)
		}})
	}
	return tasks
}

// group accumulates one key. count is the number of rows that contributed
// to sum (or all rows for count-only views). order is the first-seen index.
type group struct {
	key   domain.Value
	order int
	count int
	sum   float64
}

// groupRows groups rows by the cells of keys in first-seen order. When
// values is nil only rows are counted; otherwise missing values are skipped
// but their key still forms a group. Missing keys form a group unless
// skipMissingKey is set.
func groupRows(keys, values []domain.Value, skipMissingKey bool) []*group {
	index := make(map[string]*group)
	var order []*group
	for i, k := range keys {
		if skipMissingKey && k.IsMissing() {
			continue
		}
		id := k.GroupKey()
		g, ok := index[id]
		if !ok {
			g = &group{key: k, order: len(order)}
			index[id] = g
			order = append(order, g)
		}
		if values == nil {
			g.count++
			continue
		}
		if f, ok := values[i].Float(); ok {
			g.count++
			g.sum += f
		}
	}
	return order
}

func columnValues(ds *domain.Dataset, name string) []domain.Value {
	col, ok := ds.Column(name)
	if !ok {
		return make([]domain.Value, ds.Rows())
	}
	return col.Values
}

func newView(name domain.ViewName, groupBy string, measure domain.Measure) *domain.AggregateView {
	return &domain.AggregateView{
		Name:    name,
		GroupBy: []string{groupBy},
		Measure: measure,
		Rows:    []domain.ViewRow{},
	}
}

func appendGroups(v *domain.AggregateView, groups []*group) {
	for _, g := range groups {
		v.Rows = append(v.Rows, domain.ViewRow{Key: g.key, Count: g.count, Sum: g.sum})
	}
}

// CategoryDistribution counts rows per category, largest first. Equal counts
// keep first-seen order and a missing category is its own group.
func CategoryDistribution(ds *domain.Dataset) *domain.AggregateView {
	groups := groupRows(columnValues(ds, domain.ColumnCategory), nil, false)
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].count > groups[j].count
	})
	v := newView(domain.ViewCategoryDistribution, domain.ColumnCategory, domain.MeasureCount)
	appendGroups(v, groups)
	return v
}

// CategorySales sums sales per category in first-seen order
func CategorySales(ds *domain.Dataset) *domain.AggregateView {
	groups := groupRows(columnValues(ds, domain.ColumnCategory), columnValues(ds, domain.ColumnSales), false)
	v := newView(domain.ViewCategorySales, domain.ColumnCategory, domain.MeasureSum)
	appendGroups(v, groups)
	return v
}

// RegionalShare sums sales per region and divides by total sales. With a
// zero total every share is zero.
func RegionalShare(ds *domain.Dataset) *domain.AggregateView {
	groups := groupRows(columnValues(ds, domain.ColumnRegion), columnValues(ds, domain.ColumnSales), false)
	total := 0.0
	for _, g := range groups {
		total += g.sum
	}
	v := newView(domain.ViewRegionalShare, domain.ColumnRegion, domain.MeasureShare)
	for _, g := range groups {
		row := domain.ViewRow{Key: g.key, Count: g.count, Sum: g.sum}
		if total != 0 {
			row.Share = g.sum / total
		}
		v.Rows = append(v.Rows, row)
	}
	return v
}

// rankDescending groups sales by id, skipping missing ids, and sorts by sum
// largest first. Equal sums keep first-seen order.
func rankDescending(ds *domain.Dataset, idColumn string) []*group {
	groups := groupRows(columnValues(ds, idColumn), columnValues(ds, domain.ColumnSales), true)
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].sum > groups[j].sum
	})
	return groups
}

func head(groups []*group, n int) []*group {
	if n > len(groups) {
		n = len(groups)
	}
	return groups[:n]
}

// tail selects the last n groups of a descending ranking, so top and bottom
// stay disjoint whenever there are at least 2n entities, and lists them
// smallest first with equal sums in first-seen order.
func tail(groups []*group, n int) []*group {
	if n > len(groups) {
		n = len(groups)
	}
	out := append([]*group(nil), groups[len(groups)-n:]...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].sum != out[j].sum {
			return out[i].sum < out[j].sum
		}
		return out[i].order < out[j].order
	})
	return out
}

// TopProducts returns the n products with the largest sales
func TopProducts(ds *domain.Dataset, n int) *domain.AggregateView {
	v := newView(domain.ViewTopProducts, domain.ColumnProductID, domain.MeasureSum)
	appendGroups(v, head(rankDescending(ds, domain.ColumnProductID), n))
	return v
}

// BottomProducts returns the n products with the smallest sales, smallest
// first.
func BottomProducts(ds *domain.Dataset, n int) *domain.AggregateView {
	v := newView(domain.ViewBottomProducts, domain.ColumnProductID, domain.MeasureSum)
	appendGroups(v, tail(rankDescending(ds, domain.ColumnProductID), n))
	return v
}

// TopCustomers returns the n customers with the largest sales
func TopCustomers(ds *domain.Dataset, n int) *domain.AggregateView {
	v := newView(domain.ViewTopCustomers, domain.ColumnCustomerID, domain.MeasureSum)
	appendGroups(v, head(rankDescending(ds, domain.ColumnCustomerID), n))
	return v
}

// WeekdaySales sums sales per day_name, Monday first. Rows without a
// day_name are excluded and days without rows are omitted.
func WeekdaySales(ds *domain.Dataset) *domain.AggregateView {
	groups := groupRows(columnValues(ds, domain.ColumnDayName), columnValues(ds, domain.ColumnSales), true)
	byName := make(map[string]*group, len(groups))
	for _, g := range groups {
		if s, ok := g.key.Text(); ok {
			byName[s] = g
		}
	}
	v := newView(domain.ViewWeekdaySales, domain.ColumnDayName, domain.MeasureSum)
	for _, day := range Weekdays {
		if g, ok := byName[day]; ok {
			v.Rows = append(v.Rows, domain.ViewRow{Key: g.key, Count: g.count, Sum: g.sum})
		}
	}
	return v
}
