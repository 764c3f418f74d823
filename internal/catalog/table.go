package catalog

import (
	"sort"

	"tabledb/internal/domain"
)

// Table is an ordered sequence of rows bound to one immutable schema.
//
// Rows are addressed by their current position: deleting row i shifts every
// later row down by one. Table does no locking of its own; the owning
// Database serializes access.
type Table struct {
	name   string
	schema *domain.Schema
	rows   []domain.Row
}

// NewTable creates an empty table.
func NewTable(name string, schema *domain.Schema) (*Table, error) {
	if err := domain.ValidateName("table", name); err != nil {
		return nil, err
	}
	if schema == nil || schema.Len() == 0 {
		return nil, &domain.EmptySchemaError{}
	}
	return &Table{name: name, schema: schema}, nil
}

func (t *Table) Name() string { return t.name }

// Schema returns the table's schema. Schemas are immutable, so the pointer is safe to share.
func (t *Table) Schema() *domain.Schema { return t.schema }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// InsertRow validates values against the schema and appends them as a new
// row, returning its index. On error the table is unchanged.
func (t *Table) InsertRow(values map[string]string) (int, error) {
	if err := t.checkFieldSet(values); err != nil {
		return 0, err
	}
	row := make(domain.Row, t.schema.Len())
	for _, f := range t.schema.Fields() {
		v, err := domain.Normalize(f.Name, values[f.Name], f.Type)
		if err != nil {
			return 0, err
		}
		row[f.Name] = v
	}
	t.rows = append(t.rows, row)
	return len(t.rows) - 1, nil
}

func (t *Table) checkFieldSet(values map[string]string) error {
	var missing, extra []string
	for _, name := range t.schema.FieldNames() {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range values {
		if !t.schema.Has(name) {
			extra = append(extra, name)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	sort.Strings(extra)
	return &domain.SchemaMismatchError{Missing: missing, Extra: extra}
}

// Rows returns a snapshot of all rows in order. Later mutations of the
// table are not reflected in it.
func (t *Table) Rows() []domain.Row {
	out := make([]domain.Row, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Clone()
	}
	return out
}

// DeleteRowAt removes the row at index.
func (t *Table) DeleteRowAt(index int) error {
	if index < 0 || index >= len(t.rows) {
		return &domain.IndexOutOfRangeError{Table: t.name, Index: index, Len: len(t.rows)}
	}
	t.rows = append(t.rows[:index], t.rows[index+1:]...)
	return nil
}

// Intersect returns, in this table's order, the rows that also occur in other.
// Duplicates in this table are kept.
func (t *Table) Intersect(other *Table) ([]domain.Row, error) {
	if !t.schema.Equal(other.schema) {
		return nil, &domain.IncompatibleSchemasError{Left: t.name, Right: other.name}
	}
	var out []domain.Row
	for _, r := range t.rows {
		for _, o := range other.rows {
			if r.Equal(o) {
				out = append(out, r.Clone())
				break
			}
		}
	}
	return out, nil
}

// insertRowAt puts row back at index; used to undo a delete whose flush failed.
func (t *Table) insertRowAt(index int, row domain.Row) {
	t.rows = append(t.rows, nil)
	copy(t.rows[index+1:], t.rows[index:])
	t.rows[index] = row
}

func (t *Table) clone() *Table {
	return &Table{name: t.name, schema: t.schema, rows: t.Rows()}
}

func (t *Table) snapshot() domain.TableSnapshot {
	return domain.TableSnapshot{Name: t.name, Schema: t.schema, Rows: t.Rows()}
}
