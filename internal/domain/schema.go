package domain

import (
	"strings"

	"github.com/buger/jsonparser"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Field is one named, typed column of a Schema.
type Field struct {
	Name string    `json:"name" yaml:"name"`
	Type FieldType `json:"type" yaml:"type"`
}

// Schema is the ordered field-name → field-type contract of a table.
// A Schema is immutable after construction; every accessor returns copies.
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema builds a Schema from fields in display order.
func NewSchema(fields []Field) (*Schema, error) {
	if len(fields) == 0 {
		return nil, &EmptySchemaError{}
	}
	s := &Schema{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if strings.TrimSpace(f.Name) == "" {
			return nil, &EmptyNameError{Position: i}
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, &DuplicateFieldError{Field: f.Name}
		}
		if !f.Type.Valid() {
			return nil, &UnknownFieldTypeError{Field: f.Name, Type: string(f.Type)}
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// MustSchema is NewSchema for statically known schemas; it panics on error.
func MustSchema(fields ...Field) *Schema {
	s, err := NewSchema(fields)
	if err != nil {
		panic(err)
	}
	return s
}

// FieldType returns the declared type of name.
func (s *Schema) FieldType(name string) (FieldType, error) {
	i, ok := s.index[name]
	if !ok {
		return "", &UnknownFieldError{Field: name}
	}
	return s.fields[i].Type, nil
}

// FieldNames returns the field names in display order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Fields returns a copy of the ordered field list.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

func (s *Schema) Len() int { return len(s.fields) }

func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Equal reports whether both schemas map the same names to the same types.
// Field order is not significant.
func (s *Schema) Equal(other *Schema) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.fields) != len(other.fields) {
		return false
	}
	for _, f := range s.fields {
		t, err := other.FieldType(f.Name)
		if err != nil || t != f.Type {
			return false
		}
	}
	return true
}

// Ordered returns the schema as an insertion-ordered map.
func (s *Schema) Ordered() *orderedmap.OrderedMap[string, FieldType] {
	om := orderedmap.New[string, FieldType](len(s.fields))
	for _, f := range s.fields {
		om.Set(f.Name, f.Type)
	}
	return om
}

// MarshalJSON encodes the schema as {"field": "type", ...} in field order.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return s.Ordered().MarshalJSON()
}

// UnmarshalJSON decodes {"field": "type", ...} keeping document order.
// Repeated keys are reported as DuplicateFieldError instead of being merged.
func (s *Schema) UnmarshalJSON(data []byte) error {
	fields, err := decodeFieldTypes(data)
	if err != nil {
		return err
	}
	parsed, err := NewSchema(fields)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}

func decodeFieldTypes(data []byte) ([]Field, error) {
	var fields []Field
	err := jsonparser.ObjectEach(data, func(key, value []byte, dataType jsonparser.ValueType, _ int) error {
		if dataType != jsonparser.String {
			return Malformedf("type of field %q must be a string", string(key))
		}
		typ, err := jsonparser.ParseString(value)
		if err != nil {
			return Malformedf("type of field %q: %v", string(key), err)
		}
		fields = append(fields, Field{Name: string(key), Type: FieldType(typ)})
		return nil
	})
	if err != nil {
		if KindOf(err) != KindInternal {
			return nil, err
		}
		return nil, Malformedf("schema must be a JSON object of field types: %v", err)
	}
	return fields, nil
}
