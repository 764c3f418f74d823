package catalog

import (
	"fmt"
	"sync"

	"tabledb/internal/domain"
)

// Database is a named set of tables and the unit of locking and persistence.
// Every mutation holds the write lock for mutate+flush; if the flush fails
// the mutation is undone before the lock is released.
type Database struct {
	mu     sync.RWMutex
	name   string
	tables map[string]*Table
	order  []string
	store  domain.CatalogStore
}

func newDatabase(name string, store domain.CatalogStore) *Database {
	return &Database{
		name:   name,
		tables: make(map[string]*Table),
		store:  store,
	}
}

func (d *Database) Name() string { return d.name }

// CreateTable registers a new empty table bound to schema.
func (d *Database) CreateTable(name string, schema *domain.Schema) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.tables[name]; exists {
		return &domain.DuplicateTableError{Database: d.name, Name: name}
	}
	t, err := NewTable(name, schema)
	if err != nil {
		return err
	}
	d.tables[name] = t
	d.order = append(d.order, name)

	if err := d.flushLocked(); err != nil {
		delete(d.tables, name)
		d.order = d.order[:len(d.order)-1]
		return err
	}
	return nil
}

// DropTable removes a table and all of its rows.
func (d *Database) DropTable(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.tables[name]
	if !ok {
		return &domain.TableNotFoundError{Database: d.name, Name: name}
	}
	pos := indexOf(d.order, name)
	delete(d.tables, name)
	d.order = append(d.order[:pos], d.order[pos+1:]...)

	if err := d.flushLocked(); err != nil {
		d.tables[name] = t
		d.order = append(d.order[:pos], append([]string{name}, d.order[pos:]...)...)
		return err
	}
	return nil
}

// Table returns a detached copy of the named table.
func (d *Database) Table(name string) (*Table, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, err := d.tableLocked(name)
	if err != nil {
		return nil, err
	}
	return t.clone(), nil
}

// TableNames returns table names in creation order.
func (d *Database) TableNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Schema returns the schema of the named table.
func (d *Database) Schema(table string) (*domain.Schema, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, err := d.tableLocked(table)
	if err != nil {
		return nil, err
	}
	return t.Schema(), nil
}

// InsertRow appends a validated row to table and returns its index.
func (d *Database) InsertRow(table string, values map[string]string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, err := d.tableLocked(table)
	if err != nil {
		return 0, err
	}
	idx, err := t.InsertRow(values)
	if err != nil {
		return 0, err
	}
	if err := d.flushLocked(); err != nil {
		t.rows = t.rows[:idx]
		return 0, err
	}
	return idx, nil
}

// Rows returns a snapshot of table's rows together with its schema, taken
// under one lock so both describe the same state.
func (d *Database) Rows(table string) ([]domain.Row, *domain.Schema, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, err := d.tableLocked(table)
	if err != nil {
		return nil, nil, err
	}
	return t.Rows(), t.Schema(), nil
}

// DeleteRow removes the row at its current position in table.
func (d *Database) DeleteRow(table string, index int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, err := d.tableLocked(table)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(t.rows) {
		return t.DeleteRowAt(index)
	}
	removed := t.rows[index]
	if err := t.DeleteRowAt(index); err != nil {
		return err
	}
	if err := d.flushLocked(); err != nil {
		t.insertRowAt(index, removed)
		return err
	}
	return nil
}

// Intersect returns the rows of left that also occur in right.
func (d *Database) Intersect(left, right string) ([]domain.Row, *domain.Schema, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	lt, err := d.tableLocked(left)
	if err != nil {
		return nil, nil, err
	}
	rt, err := d.tableLocked(right)
	if err != nil {
		return nil, nil, err
	}
	rows, err := lt.Intersect(rt)
	if err != nil {
		return nil, nil, err
	}
	return rows, lt.Schema(), nil
}

// Snapshot returns the full state of the database.
func (d *Database) Snapshot() domain.DatabaseSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshotLocked()
}

func (d *Database) tableLocked(name string) (*Table, error) {
	t, ok := d.tables[name]
	if !ok {
		return nil, &domain.TableNotFoundError{Database: d.name, Name: name}
	}
	return t, nil
}

func (d *Database) snapshotLocked() domain.DatabaseSnapshot {
	snap := domain.DatabaseSnapshot{Name: d.name, Tables: make([]domain.TableSnapshot, 0, len(d.order))}
	for _, name := range d.order {
		snap.Tables = append(snap.Tables, d.tables[name].snapshot())
	}
	return snap
}

func (d *Database) flushLocked() error {
	if d.store == nil {
		return nil
	}
	snap := d.snapshotLocked()
	if err := d.store.SaveDatabase(&snap); err != nil {
		return fmt.Errorf("flush database %q: %w", d.name, err)
	}
	return nil
}

// restore rebuilds the in-memory state from a persisted snapshot. Every row
// is re-validated so a loaded table satisfies the same invariants as one
// filled through InsertRow.
func (d *Database) restore(snap domain.DatabaseSnapshot) error {
	for _, ts := range snap.Tables {
		if _, dup := d.tables[ts.Name]; dup {
			return &domain.DuplicateTableError{Database: d.name, Name: ts.Name}
		}
		t, err := NewTable(ts.Name, ts.Schema)
		if err != nil {
			return fmt.Errorf("table %q: %w", ts.Name, err)
		}
		for i, r := range ts.Rows {
			if _, err := t.InsertRow(r); err != nil {
				return fmt.Errorf("table %q row %d: %w", ts.Name, i, err)
			}
		}
		d.tables[ts.Name] = t
		d.order = append(d.order, ts.Name)
	}
	return nil
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
