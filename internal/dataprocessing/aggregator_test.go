package dataprocessing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecomeda/pkg/contracts/domain"
)

// cleaned builds a dataset and runs the cleaner over it
func cleaned(t *testing.T, columns ...*domain.Column) *domain.Dataset {
	t.Helper()
	ds := domain.MustDataset(columns...)
	cleanDataset(t, ds)
	return ds
}

func keys(v *domain.AggregateView) []string {
	out := make([]string, len(v.Rows))
	for i, r := range v.Rows {
		out[i] = r.Key.Label()
	}
	return out
}

func sums(v *domain.AggregateView) map[string]float64 {
	out := make(map[string]float64, len(v.Rows))
	for _, r := range v.Rows {
		out[r.Key.Label()] = r.Sum
	}
	return out
}

func TestCategoryViews_Scenario(t *testing.T) {
	ds := salesFixture()
	cleanDataset(t, ds)

	dist := CategoryDistribution(ds)
	assert.Equal(t, domain.MeasureCount, dist.Measure)
	assert.Equal(t, []string{"category"}, dist.GroupBy)
	require.Len(t, dist.Rows, 2)
	for _, r := range dist.Rows {
		assert.Equal(t, 1, r.Count)
	}
	assert.ElementsMatch(t, []string{"A", "B"}, keys(dist))

	bySales := CategorySales(ds)
	assert.Equal(t, []string{"A", "B"}, keys(bySales))
	assert.InDelta(t, 18.0, sums(bySales)["A"], 1e-9)
	assert.InDelta(t, 20.0, sums(bySales)["B"], 1e-9)
}

func TestCategoryDistribution_Ordering(t *testing.T) {
	ds := domain.MustDataset(domain.NewColumn("category", domain.TypeString, []domain.Value{
		domain.String("toys"),
		domain.String("books"),
		domain.Missing(),
		domain.String("books"),
		domain.String("garden"),
		domain.String("toys"),
		domain.String("books"),
	}))

	v := CategoryDistribution(ds)
	// equal counts keep first-seen order
	assert.Equal(t, []string{"books", "toys", "", "garden"}, keys(v))
	assert.True(t, v.Rows[2].Key.IsMissing())
	assert.Equal(t, []int{3, 2, 1, 1}, []int{v.Rows[0].Count, v.Rows[1].Count, v.Rows[2].Count, v.Rows[3].Count})
}

func TestCategorySales_SkipsMissingSales(t *testing.T) {
	ds := cleaned(t,
		domain.StringColumn("price", "10", "bad", "5"),
		domain.NumericColumn("quantity", 1, 1, 1),
		domain.NumericColumn("discount", 0, 0, 0),
		domain.StringColumn("category", "A", "B", "A"),
	)

	v := CategorySales(ds)
	require.Len(t, v.Rows, 2)

	a, ok := v.Lookup(domain.String("A"))
	require.True(t, ok)
	assert.Equal(t, 15.0, a.Sum)
	assert.Equal(t, 2, a.Count)

	// a group whose sales are all missing is kept with a zero sum
	b, ok := v.Lookup(domain.String("B"))
	require.True(t, ok)
	assert.Zero(t, b.Sum)
	assert.Zero(t, b.Count)
}

func TestRegionalShare(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   map[string]float64
	}{
		{
			name:   "positive total",
			prices: []float64{10, 30, 60, 0},
			want:   map[string]float64{"north": 0.1, "south": 0.3, "east": 0.6},
		},
		{
			name:   "zero total",
			prices: []float64{0, 0, 0, 0},
			want:   map[string]float64{"north": 0, "south": 0, "east": 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := cleaned(t,
				domain.NumericColumn("price", tt.prices...),
				domain.NumericColumn("quantity", 1, 1, 1, 1),
				domain.NumericColumn("discount", 0, 0, 0, 0),
				domain.StringColumn("region", "north", "south", "east", "north"),
			)

			v := RegionalShare(ds)
			assert.Equal(t, domain.MeasureShare, v.Measure)
			assert.Equal(t, []string{"north", "south", "east"}, keys(v))

			total := 0.0
			for _, r := range v.Rows {
				assert.InDelta(t, tt.want[r.Key.Label()], r.Share, 1e-9)
				total += r.Share
			}
			if tt.name == "zero total" {
				assert.Zero(t, total)
			} else {
				assert.InDelta(t, 1.0, total, 1e-9)
			}
		})
	}
}

func TestRegionalShare_SumsToOne(t *testing.T) {
	regions := []string{"n", "s", "e", "w", "c"}
	n := 97
	prices := make([]float64, n)
	qty := make([]float64, n)
	disc := make([]float64, n)
	reg := make([]string, n)
	for i := 0; i < n; i++ {
		prices[i] = float64(i%13) * 3.7
		qty[i] = float64(i%5 + 1)
		disc[i] = float64(i%4) * 0.1
		reg[i] = regions[i%len(regions)]
	}
	ds := cleaned(t,
		domain.NumericColumn("price", prices...),
		domain.NumericColumn("quantity", qty...),
		domain.NumericColumn("discount", disc...),
		domain.StringColumn("region", reg...),
	)

	total := 0.0
	for _, r := range RegionalShare(ds).Rows {
		total += r.Share
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func rankingFixture(t *testing.T, entities int) *domain.Dataset {
	t.Helper()
	products := make([]string, 0, entities*2)
	prices := make([]float64, 0, entities*2)
	for i := 0; i < entities; i++ {
		// two rows per product so sums aggregate across rows
		id := fmt.Sprintf("P%02d", i)
		products = append(products, id, id)
		prices = append(prices, float64(i+1), float64(i+1))
	}
	n := len(products)
	ones := make([]float64, n)
	zeros := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}
	return cleaned(t,
		domain.StringColumn("product_id", products...),
		domain.StringColumn("customer_id", products...),
		domain.NumericColumn("price", prices...),
		domain.NumericColumn("quantity", ones...),
		domain.NumericColumn("discount", zeros...),
	)
}

func TestProductRankings(t *testing.T) {
	ds := rankingFixture(t, 25)

	top := TopProducts(ds, 10)
	bottom := BottomProducts(ds, 10)
	require.Len(t, top.Rows, 10)
	require.Len(t, bottom.Rows, 10)

	assert.Equal(t, "P24", top.Rows[0].Key.Label())
	assert.Equal(t, 50.0, top.Rows[0].Sum)
	assert.Equal(t, 2, top.Rows[0].Count)
	assert.Equal(t, "P00", bottom.Rows[0].Key.Label())
	assert.Equal(t, 2.0, bottom.Rows[0].Sum)

	for i := 1; i < 10; i++ {
		assert.GreaterOrEqual(t, top.Rows[i-1].Sum, top.Rows[i].Sum)
		assert.LessOrEqual(t, bottom.Rows[i-1].Sum, bottom.Rows[i].Sum)
	}

	customers := TopCustomers(ds, 10)
	assert.Equal(t, keys(top), keys(customers))
}

func TestRankings_DisjointWithEnoughEntities(t *testing.T) {
	for _, entities := range []int{20, 21, 40} {
		t.Run(fmt.Sprintf("%d entities", entities), func(t *testing.T) {
			ds := rankingFixture(t, entities)
			top := keys(TopProducts(ds, 10))
			bottom := keys(BottomProducts(ds, 10))
			for _, k := range bottom {
				assert.NotContains(t, top, k)
			}
		})
	}
}

func TestRankings_FewerThanN(t *testing.T) {
	ds := rankingFixture(t, 4)

	top := TopProducts(ds, 10)
	bottom := BottomProducts(ds, 10)
	assert.Equal(t, []string{"P03", "P02", "P01", "P00"}, keys(top))
	assert.Equal(t, []string{"P00", "P01", "P02", "P03"}, keys(bottom))
}

func TestRankings_TiesKeepEncounterOrder(t *testing.T) {
	ds := cleaned(t,
		domain.StringColumn("product_id", "b", "a", "c", "d"),
		domain.NumericColumn("price", 5, 5, 5, 9),
		domain.NumericColumn("quantity", 1, 1, 1, 1),
		domain.NumericColumn("discount", 0, 0, 0, 0),
	)

	assert.Equal(t, []string{"d", "b", "a"}, keys(TopProducts(ds, 3)))
	// bottom takes the tail of the same ranking, then lists ties first-seen
	assert.Equal(t, []string{"a", "c"}, keys(BottomProducts(ds, 2)))
	assert.Equal(t, []string{"b", "a", "c", "d"}, keys(BottomProducts(ds, 4)))
}

func TestBottomProducts_AllTied(t *testing.T) {
	ds := cleaned(t,
		domain.StringColumn("product_id", "A", "B", "C"),
		domain.NumericColumn("price", 5, 5, 5),
		domain.NumericColumn("quantity", 1, 1, 1),
		domain.NumericColumn("discount", 0, 0, 0),
	)

	tests := []struct {
		n    int
		want []string
	}{
		{3, []string{"A", "B", "C"}},
		{2, []string{"B", "C"}},
		{10, []string{"A", "B", "C"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, keys(BottomProducts(ds, tt.n)), "n=%d", tt.n)
	}
}

func TestRankings_SkipMissingIDs(t *testing.T) {
	ds := cleaned(t,
		domain.NewColumn("customer_id", domain.TypeString, []domain.Value{
			domain.String("c1"), domain.Missing(), domain.String("c1"),
		}),
		domain.NumericColumn("price", 1, 100, 2),
		domain.NumericColumn("quantity", 1, 1, 1),
		domain.NumericColumn("discount", 0, 0, 0),
	)

	v := TopCustomers(ds, 10)
	require.Len(t, v.Rows, 1)
	assert.Equal(t, "c1", v.Rows[0].Key.Label())
	assert.Equal(t, 3.0, v.Rows[0].Sum)
}

func TestWeekdaySales_Scenario(t *testing.T) {
	ds := cleaned(t,
		domain.StringColumn("order_date", "2024-01-01", "not-a-date"),
		domain.NumericColumn("price", 10, 20),
		domain.NumericColumn("quantity", 2, 1),
		domain.NumericColumn("discount", 0.1, 0),
	)

	days, _ := ds.Column(domain.ColumnDayName)
	assert.Equal(t, "Monday", days.Values[0].Label())
	assert.True(t, days.Values[1].IsMissing())

	v := WeekdaySales(ds)
	require.Len(t, v.Rows, 1)
	assert.Equal(t, "Monday", v.Rows[0].Key.Label())
	assert.InDelta(t, 18.0, v.Rows[0].Sum, 1e-9)
}

func TestWeekdaySales_MondayFirst(t *testing.T) {
	ds := cleaned(t,
		domain.StringColumn("order_date", "2024-01-07", "2024-01-03", "2024-01-01", "2024-01-14"),
		domain.NumericColumn("price", 1, 2, 3, 4),
		domain.NumericColumn("quantity", 1, 1, 1, 1),
		domain.NumericColumn("discount", 0, 0, 0, 0),
	)

	v := WeekdaySales(ds)
	assert.Equal(t, []string{"Monday", "Wednesday", "Sunday"}, keys(v))
	assert.Equal(t, 5.0, sums(v)["Sunday"])
}

func TestViews_EmptyDataset(t *testing.T) {
	ds := cleaned(t,
		domain.NumericColumn("price"),
		domain.NumericColumn("quantity"),
		domain.NumericColumn("discount"),
		domain.StringColumn("order_date"),
		domain.StringColumn("category"),
		domain.StringColumn("region"),
		domain.StringColumn("product_id"),
		domain.StringColumn("customer_id"),
	)

	views, corr, err := NewAggregator(nil, DefaultAggregatorConfig()).Aggregate(context.Background(), ds, Probe(ds.Names()))
	require.NoError(t, err)

	require.Len(t, views, len(domain.AllViews))
	for _, name := range domain.AllViews {
		v, ok := views[name]
		require.True(t, ok, name)
		assert.NotNil(t, v.Rows, name)
		assert.Empty(t, v.Rows, name)
	}
	require.NotNil(t, corr)
	assert.True(t, corr.Empty())
}

func TestAggregate_Gating(t *testing.T) {
	tests := []struct {
		name    string
		columns []*domain.Column
		want    []domain.ViewName
		corr    bool
	}{
		{
			name:    "nothing recognized",
			columns: []*domain.Column{domain.StringColumn("note", "x")},
		},
		{
			name:    "category only",
			columns: []*domain.Column{domain.StringColumn("category", "x")},
			want:    []domain.ViewName{domain.ViewCategoryDistribution},
		},
		{
			name: "region with sales",
			columns: []*domain.Column{
				domain.StringColumn("region", "x"),
				domain.NumericColumn("price", 1),
				domain.NumericColumn("quantity", 1),
				domain.NumericColumn("discount", 0),
			},
			want: []domain.ViewName{domain.ViewRegionalShare},
			corr: true,
		},
	}

	for _, parallel := range []bool{true, false} {
		for _, tt := range tests {
			t.Run(fmt.Sprintf("%s/parallel=%v", tt.name, parallel), func(t *testing.T) {
				ds := cleaned(t, tt.columns...)
				agg := NewAggregator(nil, AggregatorConfig{TopN: 3, Parallel: parallel})

				views, corr, err := agg.Aggregate(context.Background(), ds, Probe(ds.Names()))
				require.NoError(t, err)

				got := make([]domain.ViewName, 0, len(views))
				for name := range views {
					got = append(got, name)
				}
				assert.ElementsMatch(t, tt.want, got)
				assert.Equal(t, tt.corr, corr != nil)
			})
		}
	}
}

func TestAggregator_Config(t *testing.T) {
	assert.Equal(t, DefaultTopN, NewAggregator(nil, AggregatorConfig{}).TopN())
	assert.Equal(t, 3, NewAggregator(nil, AggregatorConfig{TopN: 3}).TopN())

	ds := rankingFixture(t, 8)
	views, _, err := NewAggregator(nil, AggregatorConfig{TopN: 3}).Aggregate(context.Background(), ds, Probe(ds.Names()))
	require.NoError(t, err)
	assert.Len(t, views[domain.ViewTopProducts].Rows, 3)
	assert.Len(t, views[domain.ViewBottomProducts].Rows, 3)
}

func TestAggregate_Errors(t *testing.T) {
	agg := NewAggregator(nil, DefaultAggregatorConfig())

	_, _, err := agg.Aggregate(context.Background(), nil, domain.Capabilities{})
	assert.ErrorIs(t, err, domain.ErrNilDataset)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ds := salesFixture()
	_, _, err = agg.Aggregate(ctx, ds, Probe(ds.Names()))
	assert.ErrorIs(t, err, context.Canceled)
}
