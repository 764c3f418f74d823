package etl

// ── Record ─────────────────────────────────────────────────
// Common intermediate format: every source emits Records and the table
// writer consumes them.

// Column describes one column a source discovered.
type Column struct {
	Name string `json:"name"`
	Kind string `json:"kind"` // "text" | "number" | "boolean"
}

// Columns is the discovered shape of a source, in source order.
type Columns []Column

// Names returns the column names in order.
func (c Columns) Names() []string {
	names := make([]string, len(c))
	for i, col := range c {
		names[i] = col.Name
	}
	return names
}

// Record is a single row flowing through an import.
type Record struct {
	Data map[string]any `json:"data"`
}

// Clone returns a shallow copy of the record's data map.
func (r Record) Clone() Record {
	data := make(map[string]any, len(r.Data))
	for k, v := range r.Data {
		data[k] = v
	}
	return Record{Data: data}
}
