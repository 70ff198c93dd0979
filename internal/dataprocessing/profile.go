package dataprocessing

import (
	"strings"

	"ecomeda/pkg/contracts/domain"
)

// Profile describes the shape of ds: per-column type and missing counts,
// plus the number of rows that repeat an earlier row exactly.
func Profile(ds *domain.Dataset) domain.DatasetProfile {
	if ds == nil {
		return domain.DatasetProfile{ColumnInfo: []domain.ColumnProfile{}}
	}

	p := domain.DatasetProfile{
		Rows:       ds.Rows(),
		Columns:    ds.Width(),
		ColumnInfo: make([]domain.ColumnProfile, 0, ds.Width()),
	}

	for _, c := range ds.Columns() {
		missing := c.MissingCount()
		p.ColumnInfo = append(p.ColumnInfo, domain.ColumnProfile{
			Name:    c.Name,
			Type:    c.Type,
			Missing: missing,
			Present: c.Len() - missing,
		})
		p.MissingTotal += missing
	}

	p.DuplicateRows = duplicateRows(ds)
	return p
}

func duplicateRows(ds *domain.Dataset) int {
	if ds.Width() == 0 {
		return 0
	}
	seen := make(map[string]struct{}, ds.Rows())
	dups := 0
	var sb strings.Builder
	for i := 0; i < ds.Rows(); i++ {
		sb.Reset()
		for _, v := range ds.Row(i) {
			sb.WriteString(v.GroupKey())
			sb.WriteByte(0x1f)
		}
		key := sb.String()
		if _, ok := seen[key]; ok {
			dups++
			continue
		}
		seen[key] = struct{}{}
	}
	return dups
}

// Preview returns the first n rows of ds
func Preview(ds *domain.Dataset, n int) domain.Preview {
	if ds == nil {
		return domain.Preview{Columns: []string{}, Rows: [][]domain.Value{}}
	}
	return domain.Preview{
		Columns: ds.Names(),
		Rows:    ds.Head(n),
	}
}
