package dataprocessing

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"ecomeda/pkg/contracts/domain"
)

const tracerName = "ecomeda.dataprocessing"

// Weekdays is the fixed day_name enumeration, Monday first (ISO 8601).
var Weekdays = [7]string{
	"Monday",
	"Tuesday",
	"Wednesday",
	"Thursday",
	"Friday",
	"Saturday",
	"Sunday",
}

// WeekdayIndex maps a time to its position in Weekdays
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// dateLayouts are tried in order. Layouts without a zone are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006/01/02",
	"2006/01/02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"1/2/2006 15:04",
	"01-02-06",
	"1/2/06",
	"02-Jan-2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Mon, 02 Jan 2006 15:04:05 MST",
	"20060102",
}

// ParseDate reads s with the fixed layout list. Values without a zone are
// UTC; an explicit offset is kept so the calendar day is the recorded one.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseNumber reads a cell as a finite float. Numeric strings may carry
// surrounding spaces and thousands separators.
func ParseNumber(v domain.Value) (float64, bool) {
	switch v.Kind() {
	case domain.KindNumber:
		f, _ := v.Float()
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	case domain.KindString:
		s, _ := v.Text()
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// CleanStats counts what cleaning did to the dataset
type CleanStats struct {
	PriceInvalid int `json:"price_invalid"`
	SalesMissing int `json:"sales_missing"`
	DatesInvalid int `json:"dates_invalid"`
}

// Cleaner coerces recognized columns and derives sales and day_name
type Cleaner struct {
	logger *slog.Logger
}

// NewCleaner creates a cleaner
func NewCleaner(logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{logger: logger.With(slog.String("component", "cleaner"))}
}

// Clean mutates ds in place. Each step runs only when caps enables it and
// gives the same result when repeated. Rows are never dropped or reordered.
func (c *Cleaner) Clean(ctx context.Context, ds *domain.Dataset, caps domain.Capabilities) (CleanStats, error) {
	var stats CleanStats
	if err := ds.Validate(); err != nil {
		return stats, err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "dataprocessing.clean")
	defer span.End()

	if caps.PriceCoercion {
		stats.PriceInvalid = coercePrice(ds)
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	if caps.SalesDerivable {
		missing, err := deriveSales(ds)
		if err != nil {
			return stats, err
		}
		stats.SalesMissing = missing
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	if caps.DateParsing {
		invalid, err := parseDates(ds)
		if err != nil {
			return stats, err
		}
		stats.DatesInvalid = invalid
	}

	span.SetAttributes(
		attribute.Int("clean.price_invalid", stats.PriceInvalid),
		attribute.Int("clean.sales_missing", stats.SalesMissing),
		attribute.Int("clean.dates_invalid", stats.DatesInvalid),
	)
	c.logger.DebugContext(ctx, "dataset cleaned",
		slog.Int("rows", ds.Rows()),
		slog.Int("price_invalid", stats.PriceInvalid),
		slog.Int("sales_missing", stats.SalesMissing),
		slog.Int("dates_invalid", stats.DatesInvalid))

	return stats, nil
}

// coercePrice rewrites price as a numeric column and returns the number of
// non-missing cells that failed to parse.
func coercePrice(ds *domain.Dataset) int {
	col, ok := ds.Column(domain.ColumnPrice)
	if !ok {
		return 0
	}
	invalid := 0
	values := make([]domain.Value, col.Len())
	for i, v := range col.Values {
		if f, ok := ParseNumber(v); ok {
			values[i] = domain.Number(f)
			continue
		}
		if !v.IsMissing() {
			invalid++
		}
		values[i] = domain.Missing()
	}
	col.Values = values
	col.Type = domain.TypeNumeric
	return invalid
}

func deriveSales(ds *domain.Dataset) (int, error) {
	price, _ := ds.Column(domain.ColumnPrice)
	quantity, _ := ds.Column(domain.ColumnQuantity)
	discount, _ := ds.Column(domain.ColumnDiscount)
	if price == nil || quantity == nil || discount == nil {
		return 0, nil
	}

	missing := 0
	values := make([]domain.Value, ds.Rows())
	for i := range values {
		p, okP := ParseNumber(price.Values[i])
		q, okQ := ParseNumber(quantity.Values[i])
		d, okD := ParseNumber(discount.Values[i])
		if !okP || !okQ || !okD {
			values[i] = domain.Missing()
			missing++
			continue
		}
		values[i] = domain.Number(p * q * (1 - d))
	}
	return missing, ds.SetColumn(domain.NewColumn(domain.ColumnSales, domain.TypeNumeric, values))
}

// parseDates rewrites order_date as timestamps and writes day_name from the
// local calendar day of each one. Numeric cells are not read as serial dates
// and become missing.
func parseDates(ds *domain.Dataset) (int, error) {
	col, ok := ds.Column(domain.ColumnOrderDate)
	if !ok {
		return 0, nil
	}

	invalid := 0
	dates := make([]domain.Value, col.Len())
	days := make([]domain.Value, col.Len())
	for i, v := range col.Values {
		var (
			t      time.Time
			parsed bool
		)
		switch v.Kind() {
		case domain.KindTime:
			t, parsed = v.Timestamp()
		case domain.KindString:
			s, _ := v.Text()
			t, parsed = ParseDate(s)
		}
		if !parsed {
			if !v.IsMissing() {
				invalid++
			}
			dates[i] = domain.Missing()
			days[i] = domain.Missing()
			continue
		}
		dates[i] = domain.Time(t)
		days[i] = domain.String(Weekdays[WeekdayIndex(t)])
	}

	col.Values = dates
	col.Type = domain.TypeDatetime
	return invalid, ds.SetColumn(domain.NewColumn(domain.ColumnDayName, domain.TypeString, days))
}
