package exporter

import (
	"ecomeda/pkg/contracts/domain"
)

// ViewRecords flattens a view into a header and rows. The columns follow
// the view's measure: count views carry the row count, sum views the sales
// total and its contributing rows, share views the total and the share.
func ViewRecords(v *domain.AggregateView) ([]string, [][]string) {
	key := "key"
	if len(v.GroupBy) > 0 {
		key = v.GroupBy[0]
	}

	var headers []string
	switch v.Measure {
	case domain.MeasureCount:
		headers = []string{key, "count"}
	case domain.MeasureShare:
		headers = []string{key, domain.ColumnSales, "share"}
	default:
		headers = []string{key, domain.ColumnSales, "rows"}
	}

	records := make([][]string, 0, len(v.Rows))
	for _, r := range v.Rows {
		label := FormatValue(r.Key)
		switch v.Measure {
		case domain.MeasureCount:
			records = append(records, []string{label, formatInt(r.Count)})
		case domain.MeasureShare:
			records = append(records, []string{label, formatFloat(r.Sum), formatFloat(r.Share)})
		default:
			records = append(records, []string{label, formatFloat(r.Sum), formatInt(r.Count)})
		}
	}
	return headers, records
}

// CorrelationRecords renders the matrix with the column names along the
// first row and first column.
func CorrelationRecords(m *domain.CorrelationMatrix) ([]string, [][]string) {
	headers := append([]string{""}, m.Columns...)
	records := make([][]string, len(m.Columns))
	for i, name := range m.Columns {
		row := make([]string, 0, len(m.Columns)+1)
		row = append(row, name)
		for _, c := range m.Cells[i] {
			row = append(row, FormatCoefficient(c))
		}
		records[i] = row
	}
	return headers, records
}

// DatasetRow renders row i of ds
func DatasetRow(ds *domain.Dataset, i int) []string {
	row := ds.Row(i)
	out := make([]string, len(row))
	for j, v := range row {
		out[j] = FormatValue(v)
	}
	return out
}

// DatasetRecords renders every row of ds
func DatasetRecords(ds *domain.Dataset) ([]string, [][]string) {
	records := make([][]string, ds.Rows())
	for i := range records {
		records[i] = DatasetRow(ds, i)
	}
	return ds.Names(), records
}
