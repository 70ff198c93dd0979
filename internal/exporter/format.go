package exporter

import (
	"strconv"
	"time"

	"ecomeda/pkg/contracts/domain"
)

// FormatValue renders a cell for CSV output. Missing cells are empty.
func FormatValue(v domain.Value) string {
	switch v.Kind() {
	case domain.KindNumber:
		f, _ := v.Float()
		return formatFloat(f)
	case domain.KindTime:
		t, _ := v.Timestamp()
		return t.Format(time.RFC3339)
	case domain.KindString:
		s, _ := v.Text()
		return s
	default:
		return ""
	}
}

// formatFloat uses the shortest representation that round-trips
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatInt formats an int value for CSV output
func formatInt(i int) string {
	return strconv.Itoa(i)
}

// FormatCoefficient renders an undefined coefficient as an empty cell
func FormatCoefficient(c domain.Coefficient) string {
	if !c.Defined {
		return ""
	}
	return formatFloat(c.Value)
}
