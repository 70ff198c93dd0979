package dataprocessing

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"ecomeda/pkg/contracts/domain"
)

// Correlate computes the pairwise Pearson matrix over the numeric columns of
// ds. Each pair uses the rows where both cells are present. A pair with fewer
// than two such rows, or where either side has zero variance over them, is
// undefined. With fewer than two numeric columns or no rows the matrix is
// empty. It returns nil when there is no numeric column at all.
func Correlate(ds *domain.Dataset) *domain.CorrelationMatrix {
	numeric := ds.NumericColumns()
	if len(numeric) == 0 {
		return nil
	}
	if len(numeric) < 2 || ds.Rows() == 0 {
		return &domain.CorrelationMatrix{Columns: []string{}, Cells: [][]domain.Coefficient{}}
	}

	n := len(numeric)
	m := &domain.CorrelationMatrix{
		Columns: make([]string, n),
		Cells:   make([][]domain.Coefficient, n),
	}
	series := make([][]float64, n)
	present := make([][]bool, n)
	for i, col := range numeric {
		m.Columns[i] = col.Name
		m.Cells[i] = make([]domain.Coefficient, n)
		series[i], present[i] = floats(col)
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c := pearson(series[i], present[i], series[j], present[j], i == j)
			m.Cells[i][j] = c
			m.Cells[j][i] = c
		}
	}
	return m
}

func floats(col *domain.Column) ([]float64, []bool) {
	xs := make([]float64, col.Len())
	ok := make([]bool, col.Len())
	for i, v := range col.Values {
		xs[i], ok[i] = v.Float()
		if ok[i] && (math.IsNaN(xs[i]) || math.IsInf(xs[i], 0)) {
			ok[i] = false
		}
	}
	return xs, ok
}

func pearson(a []float64, aok []bool, b []float64, bok []bool, diagonal bool) domain.Coefficient {
	x := make([]float64, 0, len(a))
	y := make([]float64, 0, len(b))
	for i := range a {
		if aok[i] && bok[i] {
			x = append(x, a[i])
			y = append(y, b[i])
		}
	}
	if len(x) < 2 {
		return domain.Undefined
	}
	if constant(x) || constant(y) {
		return domain.Undefined
	}
	if diagonal {
		return domain.Defined(1)
	}

	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return domain.Undefined
	}
	return domain.Defined(math.Max(-1, math.Min(1, r)))
}

// constant compares exactly; a computed variance of equal values can come
// out as a tiny positive number.
func constant(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}
