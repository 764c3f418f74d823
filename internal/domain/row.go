package domain

import (
	"bytes"
	"encoding/json"

	"github.com/buger/jsonparser"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Row maps field name to validated text. A stored Row always has exactly the
// owning table's schema fields as keys.
type Row map[string]string

// Clone returns an independent copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Equal reports whether both rows hold the same field values.
func (r Row) Equal(other Row) bool {
	if len(r) != len(other) {
		return false
	}
	for k, v := range r {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// OrderRow lays r out in schema order for encoding.
func (s *Schema) OrderRow(r Row) *orderedmap.OrderedMap[string, string] {
	om := orderedmap.New[string, string](len(s.fields))
	for _, f := range s.fields {
		if v, ok := r[f.Name]; ok {
			om.Set(f.Name, v)
		}
	}
	return om
}

// OrderTypedRow is OrderRow with integer and real values as JSON numbers.
func (s *Schema) OrderTypedRow(r Row) *orderedmap.OrderedMap[string, any] {
	om := orderedmap.New[string, any](len(s.fields))
	for _, f := range s.fields {
		if v, ok := r[f.Name]; ok {
			om.Set(f.Name, ParseValue(v, f.Type))
		}
	}
	return om
}

// DecodeRowValues parses a request body of the form {"field": "value", ...}.
// JSON strings are taken verbatim and JSON numbers as their literal text;
// any other value type, a repeated key, or anything but whitespace after the
// object is a MalformedRequestError.
func DecodeRowValues(data []byte) (map[string]string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, Malformedf("row must be a JSON object")
	}
	if !json.Valid(data) {
		return nil, Malformedf("row is not valid JSON")
	}
	values := make(map[string]string)
	err := jsonparser.ObjectEach(data, func(key, value []byte, dataType jsonparser.ValueType, _ int) error {
		name := string(key)
		if _, dup := values[name]; dup {
			return Malformedf("field %q appears more than once", name)
		}
		switch dataType {
		case jsonparser.String:
			s, err := jsonparser.ParseString(value)
			if err != nil {
				return Malformedf("value of field %q: %v", name, err)
			}
			values[name] = s
		case jsonparser.Number:
			values[name] = string(value)
		default:
			return Malformedf("value of field %q must be a string", name)
		}
		return nil
	})
	if err != nil {
		if KindOf(err) != KindInternal {
			return nil, err
		}
		return nil, Malformedf("row must be a JSON object: %v", err)
	}
	return values, nil
}
