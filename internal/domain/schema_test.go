package domain_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"tabledb/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Schema construction
// ─────────────────────────────────────────────────────────────

func TestNewSchema_Errors(t *testing.T) {
	tests := []struct {
		name   string
		fields []domain.Field
		check  func(error) bool
	}{
		{"empty", nil, func(err error) bool {
			var e *domain.EmptySchemaError
			return errors.As(err, &e)
		}},
		{"blank name", []domain.Field{{Name: " ", Type: domain.FieldString}}, func(err error) bool {
			var e *domain.EmptyNameError
			return errors.As(err, &e) && e.Position == 0
		}},
		{"duplicate", []domain.Field{
			{Name: "a", Type: domain.FieldString},
			{Name: "a", Type: domain.FieldInteger},
		}, func(err error) bool {
			var e *domain.DuplicateFieldError
			return errors.As(err, &e) && e.Field == "a"
		}},
		{"unknown type", []domain.Field{{Name: "a", Type: "boolean"}}, func(err error) bool {
			var e *domain.UnknownFieldTypeError
			return errors.As(err, &e) && e.Type == "boolean"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.NewSchema(tt.fields)
			if err == nil || !tt.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSchema_Accessors(t *testing.T) {
	s := domain.MustSchema(
		domain.Field{Name: "name", Type: domain.FieldString},
		domain.Field{Name: "age", Type: domain.FieldInteger},
	)

	if got := s.FieldNames(); !reflect.DeepEqual(got, []string{"name", "age"}) {
		t.Errorf("FieldNames = %v", got)
	}
	ft, err := s.FieldType("age")
	if err != nil || ft != domain.FieldInteger {
		t.Errorf("FieldType(age) = %s, %v", ft, err)
	}
	_, err = s.FieldType("missing")
	var uf *domain.UnknownFieldError
	if !errors.As(err, &uf) {
		t.Errorf("expected UnknownFieldError, got %v", err)
	}
	if domain.KindOf(err) != domain.KindNotFound {
		t.Errorf("expected not_found kind, got %s", domain.KindOf(err))
	}
}

func TestSchema_EqualIgnoresOrder(t *testing.T) {
	a := domain.MustSchema(
		domain.Field{Name: "x", Type: domain.FieldString},
		domain.Field{Name: "y", Type: domain.FieldDate},
	)
	b := domain.MustSchema(
		domain.Field{Name: "y", Type: domain.FieldDate},
		domain.Field{Name: "x", Type: domain.FieldString},
	)
	c := domain.MustSchema(
		domain.Field{Name: "x", Type: domain.FieldString},
		domain.Field{Name: "y", Type: domain.FieldString},
	)
	if !a.Equal(b) {
		t.Error("expected schemas with same fields in different order to be equal")
	}
	if a.Equal(c) {
		t.Error("expected schemas with different types to differ")
	}
}

// ─────────────────────────────────────────────────────────────
// Schema JSON
// ─────────────────────────────────────────────────────────────

func TestSchema_JSONKeepsDocumentOrder(t *testing.T) {
	in := `{"zeta":"string","alpha":"integer","mid":"date"}`
	var s domain.Schema
	if err := json.Unmarshal([]byte(in), &s); err != nil {
		t.Fatal(err)
	}
	if got := s.FieldNames(); !reflect.DeepEqual(got, []string{"zeta", "alpha", "mid"}) {
		t.Fatalf("FieldNames = %v", got)
	}
	out, err := json.Marshal(&s)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != in {
		t.Errorf("round trip = %s, want %s", out, in)
	}
}

func TestSchema_JSONDuplicateKey(t *testing.T) {
	var s domain.Schema
	err := json.Unmarshal([]byte(`{"a":"string","a":"integer"}`), &s)
	var e *domain.DuplicateFieldError
	if !errors.As(err, &e) {
		t.Fatalf("expected DuplicateFieldError, got %v", err)
	}
}

func TestSchema_JSONNonStringType(t *testing.T) {
	var s domain.Schema
	err := json.Unmarshal([]byte(`{"a":5}`), &s)
	if domain.KindOf(err) != domain.KindMalformedRequest {
		t.Fatalf("expected malformed request, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────
// Row decoding
// ─────────────────────────────────────────────────────────────

func TestDecodeRowValues(t *testing.T) {
	got, err := domain.DecodeRowValues([]byte(`{"name":"Alé","age":30,"ratio":1.50}`))
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"name": "Alé", "age": "30", "ratio": "1.50"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DecodeRowValues = %v, want %v", got, want)
	}
}

func TestDecodeRowValues_Malformed(t *testing.T) {
	bodies := []string{
		`[]`,
		`"x"`,
		`{"a":true}`,
		`{"a":null}`,
		`{"a":{"b":"c"}}`,
		`{"a":"1","a":"2"}`,
		`{"a":`,
		`{"a":"1"} trailing`,
		`{"a":"1"}{"b":"2"}`,
		`{"a":"1",}`,
	}
	for _, b := range bodies {
		_, err := domain.DecodeRowValues([]byte(b))
		if domain.KindOf(err) != domain.KindMalformedRequest {
			t.Errorf("DecodeRowValues(%s) expected malformed request, got %v", b, err)
		}
	}
}

func TestDecodeRowValues_NotAnObject(t *testing.T) {
	for _, b := range []string{``, `   `, `null`, `[]`, `[{"a":"1"}]`, `42`} {
		_, err := domain.DecodeRowValues([]byte(b))
		if domain.KindOf(err) != domain.KindMalformedRequest || err.Error() != "malformed request: row must be a JSON object" {
			t.Errorf("DecodeRowValues(%q) = %v, want \"row must be a JSON object\"", b, err)
		}
	}
	values, err := domain.DecodeRowValues([]byte("\n {\"a\": \"1\"} \n"))
	if err != nil || values["a"] != "1" {
		t.Errorf("surrounding whitespace: %v %v", values, err)
	}
}

func TestOrderRow(t *testing.T) {
	s := domain.MustSchema(
		domain.Field{Name: "b", Type: domain.FieldInteger},
		domain.Field{Name: "a", Type: domain.FieldString},
	)
	out, err := json.Marshal(s.OrderRow(domain.Row{"a": "x", "b": "1"}))
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"b":"1","a":"x"}` {
		t.Errorf("OrderRow = %s", out)
	}
	typed, err := json.Marshal(s.OrderTypedRow(domain.Row{"a": "x", "b": "1"}))
	if err != nil {
		t.Fatal(err)
	}
	if string(typed) != `{"b":1,"a":"x"}` {
		t.Errorf("OrderTypedRow = %s", typed)
	}
}
