package report

import "fmt"

// Table is an append-only columnar log.
type Table struct {
	name    string
	columns []string
	index   map[string]int
	rows    [][]any
}

func newTable(name string, columns []string) *Table {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[c] = i
	}
	return &Table{name: name, columns: columns, index: idx}
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Columns returns a copy of the column names.
func (t *Table) Columns() []string { return append([]string(nil), t.columns...) }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Row returns a copy of row i keyed by column. Missing fields are nil.
func (t *Table) Row(i int) Row {
	out := make(Row, len(t.columns))
	for j, c := range t.columns {
		out[c] = t.rows[i][j]
	}
	return out
}

// Values returns a copy of row i in column order.
func (t *Table) Values(i int) []any {
	return append([]any(nil), t.rows[i]...)
}

// Column returns every value in the named column.
func (t *Table) Column(name string) ([]any, error) {
	j, ok := t.index[name]
	if !ok {
		return nil, &NotFoundError{Kind: "column", Name: name}
	}
	out := make([]any, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[j]
	}
	return out, nil
}

// Floats returns the named column converted to float64. Nil entries are
// skipped; non-numeric entries are an error.
func (t *Table) Floats(name string) ([]float64, error) {
	col, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(col))
	for i, v := range col {
		if v == nil {
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("table %s column %s row %d: %T is not numeric", t.name, name, i, v)
		}
		out = append(out, f)
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
