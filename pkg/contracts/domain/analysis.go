package domain

import (
	"encoding/json"
	"time"
)

// ViewName identifies an aggregate view in an AnalysisResult
type ViewName string

const (
	ViewCategoryDistribution ViewName = "category_distribution"
	ViewCategorySales        ViewName = "category_sales"
	ViewRegionalShare        ViewName = "regional_sales_share"
	ViewTopProducts          ViewName = "top_products"
	ViewBottomProducts       ViewName = "bottom_products"
	ViewTopCustomers         ViewName = "top_customers"
	ViewWeekdaySales         ViewName = "weekday_sales"
)

// ViewCorrelation names the correlation matrix where a view name is expected
// (chart and export routes).
const ViewCorrelation ViewName = "correlation"

// AllViews lists the aggregate views in presentation order
var AllViews = []ViewName{
	ViewCategoryDistribution,
	ViewCategorySales,
	ViewRegionalShare,
	ViewTopProducts,
	ViewBottomProducts,
	ViewTopCustomers,
	ViewWeekdaySales,
}

// Measure says which ViewRow field carries the view's primary value
type Measure string

const (
	MeasureCount Measure = "count"
	MeasureSum   Measure = "sum"
	MeasureShare Measure = "share"
)

// Capabilities records which stages are satisfiable for a column set
type Capabilities struct {
	PriceCoercion        bool `json:"price_coercion"`
	SalesDerivable       bool `json:"sales_derivable"`
	DateParsing          bool `json:"date_parsing"`
	CategoryDistribution bool `json:"category_distribution"`
	CategorySales        bool `json:"category_sales"`
	RegionalShare        bool `json:"regional_share"`
	ProductRanking       bool `json:"product_ranking"`
	CustomerRanking      bool `json:"customer_ranking"`
	WeekdaySales         bool `json:"weekday_sales"`
}

// ViewRow is one group of an aggregate view. Count is the number of rows that
// contributed; Sum and Share are zero for count-only views.
type ViewRow struct {
	Key   Value   `json:"key"`
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
	Share float64 `json:"share"`
}

// Primary returns the field named by the view's measure
func (r ViewRow) Primary(m Measure) float64 {
	switch m {
	case MeasureCount:
		return float64(r.Count)
	case MeasureShare:
		return r.Share
	default:
		return r.Sum
	}
}

// AggregateView is a read-only summary keyed by one grouping column
type AggregateView struct {
	Name    ViewName  `json:"name"`
	GroupBy []string  `json:"group_by"`
	Measure Measure   `json:"measure"`
	Rows    []ViewRow `json:"rows"`
}

// Len returns the number of groups
func (v *AggregateView) Len() int { return len(v.Rows) }

// Lookup finds the row for key
func (v *AggregateView) Lookup(key Value) (ViewRow, bool) {
	for _, r := range v.Rows {
		if r.Key.Equal(key) {
			return r, true
		}
	}
	return ViewRow{}, false
}

// Coefficient is a correlation cell. Undefined cells (zero variance, too few
// paired observations) are kept apart from a computed 0.0.
type Coefficient struct {
	Value   float64
	Defined bool
}

// Undefined is the not-computable coefficient
var Undefined = Coefficient{}

// Defined wraps a computed coefficient
func Defined(v float64) Coefficient { return Coefficient{Value: v, Defined: true} }

// MarshalJSON renders undefined cells as null
func (c Coefficient) MarshalJSON() ([]byte, error) {
	if !c.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(c.Value)
}

// UnmarshalJSON reads null as undefined
func (c *Coefficient) UnmarshalJSON(data []byte) error {
	var v *float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v == nil {
		*c = Undefined
		return nil
	}
	*c = Defined(*v)
	return nil
}

// CorrelationMatrix is a symmetric matrix over numeric columns
type CorrelationMatrix struct {
	Columns []string        `json:"columns"`
	Cells   [][]Coefficient `json:"cells"`
}

// Empty reports whether the matrix has no cells
func (m *CorrelationMatrix) Empty() bool { return len(m.Columns) == 0 }

// At returns corr(a, b)
func (m *CorrelationMatrix) At(a, b string) (Coefficient, bool) {
	i, j := -1, -1
	for k, name := range m.Columns {
		if name == a {
			i = k
		}
		if name == b {
			j = k
		}
	}
	if i < 0 || j < 0 {
		return Undefined, false
	}
	return m.Cells[i][j], true
}

// AnalysisResult is the pipeline output: the cleaned dataset plus every
// gated view. A view missing from Views was not applicable.
type AnalysisResult struct {
	Dataset      *Dataset                    `json:"-"`
	Capabilities Capabilities                `json:"capabilities"`
	Views        map[ViewName]*AggregateView `json:"views"`
	Correlation  *CorrelationMatrix          `json:"correlation,omitempty"`
	Duration     time.Duration               `json:"duration_ns"`
}

// View returns a view and whether it was produced
func (r *AnalysisResult) View(name ViewName) (*AggregateView, bool) {
	v, ok := r.Views[name]
	return v, ok
}

// ColumnProfile describes one column of a dataset
type ColumnProfile struct {
	Name    string     `json:"name"`
	Type    ColumnType `json:"type"`
	Missing int        `json:"missing"`
	Present int        `json:"present"`
}

// DatasetProfile summarizes shape, types, missing cells and duplicate rows
type DatasetProfile struct {
	Rows          int             `json:"rows"`
	Columns       int             `json:"columns"`
	ColumnInfo    []ColumnProfile `json:"column_info"`
	MissingTotal  int             `json:"missing_total"`
	DuplicateRows int             `json:"duplicate_rows"`
}

// Preview holds the leading rows of a dataset
type Preview struct {
	Columns []string  `json:"columns"`
	Rows    [][]Value `json:"rows"`
}
