package etl

import (
	"context"
	"fmt"

	"github.com/spf13/cast"

	"tabledb/internal/domain"
)

// maxRejections bounds how many rejected records a result reports in detail.
const maxRejections = 20

// TableTarget is the part of the storage service a Destination writes through.
type TableTarget interface {
	Schema(database, table string) (*domain.Schema, error)
	InsertRow(database, table string, values map[string]string) (int, error)
}

// Destination writes records into a table.
type Destination interface {
	Write(ctx context.Context, database, table string, records <-chan Record) (*WriteResult, error)
}

// Rejection explains why one record was not inserted.
type Rejection struct {
	Record int    `json:"record"` // 0-based position among the records offered to the table
	Error  string `json:"error"`
}

// WriteResult counts what happened to the offered records.
type WriteResult struct {
	Written    int         `json:"written"`
	Rejected   int         `json:"rejected"`
	Rejections []Rejection `json:"rejections,omitempty"`
}

// TableWriter inserts every record as one row using the table's own
// validation. Records that fail validation are counted and skipped; any
// other failure (missing table, storage error) stops the write.
type TableWriter struct {
	Target TableTarget
}

func (w *TableWriter) Write(ctx context.Context, database, table string, records <-chan Record) (*WriteResult, error) {
	schema, err := w.Target.Schema(database, table)
	if err != nil {
		return nil, err
	}

	res := &WriteResult{}
	i := -1
	for rec := range records {
		i++
		if err := ctx.Err(); err != nil {
			return res, err
		}

		values, convErr := RecordValues(rec, schema)
		if convErr == nil {
			_, convErr = w.Target.InsertRow(database, table, values)
		}
		if convErr == nil {
			res.Written++
			continue
		}
		switch domain.KindOf(convErr) {
		case domain.KindValidation, domain.KindMalformedRequest:
			res.Rejected++
			if len(res.Rejections) < maxRejections {
				res.Rejections = append(res.Rejections, Rejection{Record: i, Error: convErr.Error()})
			}
		default:
			return res, fmt.Errorf("insert record %d: %w", i, convErr)
		}
	}
	return res, nil
}

// RecordValues converts a record into row text for schema. Fields outside
// the schema are dropped; missing schema fields are left out so the table
// reports them.
func RecordValues(rec Record, schema *domain.Schema) (map[string]string, error) {
	values := make(map[string]string, schema.Len())
	for _, name := range schema.FieldNames() {
		v, ok := rec.Data[name]
		if !ok {
			continue
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, domain.Malformedf("field %q: %v", name, err)
		}
		values[name] = s
	}
	return values, nil
}
