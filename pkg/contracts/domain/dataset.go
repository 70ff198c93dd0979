package domain

import (
	"errors"
	"fmt"
)

// Recognized optional input columns
const (
	ColumnPrice      = "price"
	ColumnQuantity   = "quantity"
	ColumnDiscount   = "discount"
	ColumnOrderDate  = "order_date"
	ColumnCategory   = "category"
	ColumnRegion     = "region"
	ColumnProductID  = "product_id"
	ColumnCustomerID = "customer_id"
)

// Derived columns written by the cleaner
const (
	ColumnSales   = "sales"
	ColumnDayName = "day_name"
)

// Dataset errors
var (
	ErrNilDataset        = errors.New("dataset is nil")
	ErrMisalignedColumns = errors.New("column lengths do not match")
	ErrDuplicateColumn   = errors.New("duplicate column name")
)

// ColumnType is the logical type of a column
type ColumnType string

const (
	TypeNumeric  ColumnType = "numeric"
	TypeString   ColumnType = "string"
	TypeDatetime ColumnType = "datetime"
)

// Column is a named, typed sequence of cells. Non-missing cells carry the
// kind matching Type.
type Column struct {
	Name   string     `json:"name"`
	Type   ColumnType `json:"type"`
	Values []Value    `json:"values"`
}

// NewColumn builds a column
func NewColumn(name string, typ ColumnType, values []Value) *Column {
	return &Column{Name: name, Type: typ, Values: values}
}

// NumericColumn builds a numeric column from plain floats
func NumericColumn(name string, values ...float64) *Column {
	cells := make([]Value, len(values))
	for i, f := range values {
		cells[i] = Number(f)
	}
	return NewColumn(name, TypeNumeric, cells)
}

// StringColumn builds a string column from plain strings
func StringColumn(name string, values ...string) *Column {
	cells := make([]Value, len(values))
	for i, s := range values {
		cells[i] = String(s)
	}
	return NewColumn(name, TypeString, cells)
}

// Len returns the number of cells
func (c *Column) Len() int { return len(c.Values) }

// MissingCount counts missing cells
func (c *Column) MissingCount() int {
	n := 0
	for _, v := range c.Values {
		if v.IsMissing() {
			n++
		}
	}
	return n
}

// Dataset is an ordered collection of equally long columns. It is not safe
// for concurrent mutation.
type Dataset struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// NewDataset validates that all columns share one length and have unique
// names.
func NewDataset(columns ...*Column) (*Dataset, error) {
	ds := &Dataset{index: make(map[string]int, len(columns))}
	for i, col := range columns {
		if col == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if i == 0 {
			ds.rows = col.Len()
		}
		if _, dup := ds.index[col.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, col.Name)
		}
		if col.Len() != ds.rows {
			return nil, fmt.Errorf("%w: %q has %d rows, expected %d", ErrMisalignedColumns, col.Name, col.Len(), ds.rows)
		}
		ds.index[col.Name] = len(ds.columns)
		ds.columns = append(ds.columns, col)
	}
	return ds, nil
}

// MustDataset is NewDataset for fixtures; it panics on invalid input.
func MustDataset(columns ...*Column) *Dataset {
	ds, err := NewDataset(columns...)
	if err != nil {
		panic(err)
	}
	return ds
}

// Rows returns the shared row count
func (d *Dataset) Rows() int { return d.rows }

// Validate reports ErrNilDataset for a nil dataset and ErrMisalignedColumns
// when a column's values were resized after it was added.
func (d *Dataset) Validate() error {
	if d == nil {
		return ErrNilDataset
	}
	for _, col := range d.columns {
		if col == nil {
			return fmt.Errorf("%w: nil column", ErrMisalignedColumns)
		}
		if col.Len() != d.rows {
			return fmt.Errorf("%w: %q has %d rows, expected %d", ErrMisalignedColumns, col.Name, col.Len(), d.rows)
		}
	}
	return nil
}

// Width returns the number of columns
func (d *Dataset) Width() int { return len(d.columns) }

// Names returns column names in order
func (d *Dataset) Names() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in order. The slice is a copy; the columns
// are shared.
func (d *Dataset) Columns() []*Column {
	out := make([]*Column, len(d.columns))
	copy(out, d.columns)
	return out
}

// Has reports whether a column exists
func (d *Dataset) Has(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Column looks up a column by name
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.columns[i], true
}

// SetColumn appends col, or replaces the column with the same name in place.
// The first column of an empty dataset fixes the row count.
func (d *Dataset) SetColumn(col *Column) error {
	if col == nil {
		return errors.New("column is nil")
	}
	if len(d.columns) > 0 && col.Len() != d.rows {
		return fmt.Errorf("%w: %q has %d rows, expected %d", ErrMisalignedColumns, col.Name, col.Len(), d.rows)
	}
	if d.index == nil {
		d.index = make(map[string]int)
	}
	if i, ok := d.index[col.Name]; ok {
		d.columns[i] = col
		return nil
	}
	if len(d.columns) == 0 {
		d.rows = col.Len()
	}
	d.index[col.Name] = len(d.columns)
	d.columns = append(d.columns, col)
	return nil
}

// NumericColumns returns the numeric columns in order
func (d *Dataset) NumericColumns() []*Column {
	var out []*Column
	for _, c := range d.columns {
		if c.Type == TypeNumeric {
			out = append(out, c)
		}
	}
	return out
}

// Row returns the cells of row i in column order
func (d *Dataset) Row(i int) []Value {
	row := make([]Value, len(d.columns))
	for j, c := range d.columns {
		row[j] = c.Values[i]
	}
	return row
}

// Head returns up to n leading rows
func (d *Dataset) Head(n int) [][]Value {
	if n > d.rows {
		n = d.rows
	}
	if n < 0 {
		n = 0
	}
	rows := make([][]Value, n)
	for i := 0; i < n; i++ {
		rows[i] = d.Row(i)
	}
	return rows
}
