package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/buger/jsonparser"

	"tabledb/internal/etl"
)

// emitAll streams the records produced by load, stopping early if ctx ends.
func emitAll(ctx context.Context, load func() ([]etl.Record, error)) (<-chan etl.Record, <-chan error) {
	out := make(chan etl.Record, 100)
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		defer close(out)
		records, err := load()
		if err != nil {
			errCh <- err
			return
		}
		for _, rec := range records {
			select {
			case out <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, errCh
}

// recordsAt locates the value at dataPath (dot separated, empty for the
// root) and turns it into records: one per object of an array, or a single
// record for an object. Number text is kept verbatim as json.Number.
func recordsAt(doc []byte, dataPath string) ([]etl.Record, error) {
	if !json.Valid(doc) {
		return nil, errors.New("parse json: document is not valid JSON")
	}
	var keys []string
	if dataPath != "" {
		keys = strings.Split(dataPath, ".")
	}
	value, typ, _, err := jsonparser.Get(doc, keys...)
	if errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return nil, fmt.Errorf("invalid data path: %q not found", dataPath)
	}
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	switch typ {
	case jsonparser.Object:
		rec, err := objectRecord(value)
		if err != nil {
			return nil, err
		}
		return []etl.Record{rec}, nil
	case jsonparser.Array:
		var (
			records []etl.Record
			itemErr error
		)
		_, err := jsonparser.ArrayEach(value, func(item []byte, t jsonparser.ValueType, _ int, _ error) {
			if t != jsonparser.Object || itemErr != nil {
				return
			}
			rec, err := objectRecord(item)
			if err != nil {
				itemErr = err
				return
			}
			records = append(records, rec)
		})
		if err == nil {
			err = itemErr
		}
		if err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
		return records, nil
	default:
		return nil, nil
	}
}

// objectRecord converts one JSON object. Scalars keep their value; nested
// objects and arrays become their compact JSON text.
func objectRecord(obj []byte) (etl.Record, error) {
	data := make(map[string]any)
	err := jsonparser.ObjectEach(obj, func(key, value []byte, t jsonparser.ValueType, _ int) error {
		name, err := jsonparser.ParseString(key)
		if err != nil {
			return err
		}
		switch t {
		case jsonparser.String:
			s, err := jsonparser.ParseString(value)
			if err != nil {
				return err
			}
			data[name] = s
		case jsonparser.Number:
			data[name] = json.Number(value)
		case jsonparser.Boolean:
			b, err := jsonparser.ParseBoolean(value)
			if err != nil {
				return err
			}
			data[name] = b
		case jsonparser.Null:
			data[name] = nil
		default:
			var buf bytes.Buffer
			if err := json.Compact(&buf, value); err != nil {
				return err
			}
			data[name] = buf.String()
		}
		return nil
	})
	return etl.Record{Data: data}, err
}

// inferColumns lists the keys seen across records, sorted by name. Each
// column takes its kind from the first record that carries it.
func inferColumns(records []etl.Record) etl.Columns {
	seen := make(map[string]bool)
	var cols etl.Columns
	for _, rec := range records {
		for name, v := range rec.Data {
			if seen[name] {
				continue
			}
			seen[name] = true
			cols = append(cols, etl.Column{Name: name, Kind: kindOf(v)})
		}
	}
	slices.SortFunc(cols, func(a, b etl.Column) int { return strings.Compare(a.Name, b.Name) })
	return cols
}

func kindOf(v any) string {
	switch v.(type) {
	case json.Number, float64, float32, int, int32, int64:
		return "number"
	case bool:
		return "boolean"
	default:
		return "text"
	}
}
