package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDataset(t *testing.T) {
	tests := []struct {
		name    string
		columns []*Column
		wantErr error
		rows    int
	}{
		{name: "empty", rows: 0},
		{
			name:    "aligned",
			columns: []*Column{NumericColumn("price", 1, 2), StringColumn("category", "a", "b")},
			rows:    2,
		},
		{
			name:    "misaligned",
			columns: []*Column{NumericColumn("price", 1, 2), StringColumn("category", "a")},
			wantErr: ErrMisalignedColumns,
		},
		{
			name:    "duplicate",
			columns: []*Column{NumericColumn("price", 1), NumericColumn("price", 2)},
			wantErr: ErrDuplicateColumn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := NewDataset(tt.columns...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.rows, ds.Rows())
			assert.Equal(t, len(tt.columns), ds.Width())
		})
	}

	_, err := NewDataset(nil)
	assert.Error(t, err)
	assert.Panics(t, func() { MustDataset(NumericColumn("a", 1), NumericColumn("b")) })
}

func TestDatasetAccess(t *testing.T) {
	ds := MustDataset(
		NumericColumn("price", 10, 20, 30),
		StringColumn("category", "a", "b", "c"),
		NumericColumn("quantity", 1, 2, 3),
	)

	assert.Equal(t, []string{"price", "category", "quantity"}, ds.Names())
	assert.True(t, ds.Has("category"))
	assert.False(t, ds.Has("region"))

	col, ok := ds.Column("quantity")
	require.True(t, ok)
	assert.Equal(t, 3, col.Len())

	numeric := ds.NumericColumns()
	require.Len(t, numeric, 2)
	assert.Equal(t, "quantity", numeric[1].Name)

	row := ds.Row(1)
	assert.True(t, row[0].Equal(Number(20)))
	assert.True(t, row[1].Equal(String("b")))

	assert.Len(t, ds.Head(2), 2)
	assert.Len(t, ds.Head(10), 3)
	assert.Empty(t, ds.Head(-1))

	cols := ds.Columns()
	cols[0] = nil
	assert.NotNil(t, ds.Columns()[0])
}

func TestDatasetSetColumn(t *testing.T) {
	ds := MustDataset(NumericColumn("price", 1, 2))

	require.NoError(t, ds.SetColumn(NumericColumn("sales", 3, 4)))
	assert.Equal(t, []string{"price", "sales"}, ds.Names())

	// replace keeps position
	require.NoError(t, ds.SetColumn(NumericColumn("price", 5, 6)))
	assert.Equal(t, []string{"price", "sales"}, ds.Names())
	col, _ := ds.Column("price")
	assert.True(t, col.Values[0].Equal(Number(5)))

	assert.ErrorIs(t, ds.SetColumn(NumericColumn("x", 1)), ErrMisalignedColumns)
	assert.Error(t, ds.SetColumn(nil))

	var empty Dataset
	require.NoError(t, empty.SetColumn(StringColumn("a", "x", "y", "z")))
	assert.Equal(t, 3, empty.Rows())
}

func TestColumnMissingCount(t *testing.T) {
	col := NewColumn("discount", TypeNumeric, []Value{Number(0), Missing(), Missing(), Number(0.1)})
	assert.Equal(t, 2, col.MissingCount())
}

func TestDatasetValidate(t *testing.T) {
	var nilDS *Dataset
	assert.ErrorIs(t, nilDS.Validate(), ErrNilDataset)

	ds := MustDataset(NumericColumn("a", 1, 2), StringColumn("b", "x", "y"))
	require.NoError(t, ds.Validate())
	assert.NoError(t, MustDataset().Validate())

	b, _ := ds.Column("b")
	b.Values = b.Values[:1]
	err := ds.Validate()
	assert.ErrorIs(t, err, ErrMisalignedColumns)
	assert.Contains(t, err.Error(), `"b" has 1 rows, expected 2`)
}
