package domain_test

import (
	"encoding/json"
	"errors"
	"testing"

	"tabledb/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Validate: accepted / rejected values per field type
// ─────────────────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	tests := []struct {
		value string
		typ   domain.FieldType
		want  bool
	}{
		{"42", domain.FieldInteger, true},
		{"0", domain.FieldInteger, true},
		{"007", domain.FieldInteger, true},
		{"-5", domain.FieldInteger, false},
		{"4.2", domain.FieldInteger, false},
		{"", domain.FieldInteger, false},
		{"42\n", domain.FieldInteger, false},
		{"٣", domain.FieldInteger, false},

		{"3.14", domain.FieldReal, true},
		{"3", domain.FieldReal, true},
		{"3.", domain.FieldReal, false},
		{".5", domain.FieldReal, false},
		{"1e5", domain.FieldReal, false},

		{"a", domain.FieldChar, true},
		{"é", domain.FieldChar, true},
		{"ab", domain.FieldChar, false},
		{"", domain.FieldChar, false},

		{"", domain.FieldString, true},
		{"anything at all", domain.FieldString, true},

		{"2023-01-15", domain.FieldDate, true},
		{"2023-02-30", domain.FieldDate, true},
		{"2023-99-99", domain.FieldDate, true},
		{"2023-1-15", domain.FieldDate, false},
		{"15-01-2023", domain.FieldDate, false},

		{"2023-01-01/2023-12-31", domain.FieldDateInterval, true},
		{"2023-01-01", domain.FieldDateInterval, false},
		{"2023-01-01 / 2023-12-31", domain.FieldDateInterval, false},

		{"42", domain.FieldType("boolean"), false},
		{"", domain.FieldType(""), false},
	}

	for _, tt := range tests {
		if got := domain.Validate(tt.value, tt.typ); got != tt.want {
			t.Errorf("Validate(%q, %s) = %v, want %v", tt.value, tt.typ, got, tt.want)
		}
	}
}

func TestValidate_Deterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		if !domain.Validate("2023-02-30", domain.FieldDate) {
			t.Fatal("expected date shape to validate on every call")
		}
	}
}

func TestNormalize_ReturnsFieldValidationError(t *testing.T) {
	_, err := domain.Normalize("age", "abc", domain.FieldInteger)
	var fv *domain.FieldValidationError
	if !errors.As(err, &fv) {
		t.Fatalf("expected FieldValidationError, got %v", err)
	}
	if fv.Field != "age" || fv.Expected != domain.FieldInteger {
		t.Errorf("unexpected error fields: %+v", fv)
	}
	if domain.KindOf(err) != domain.KindValidation {
		t.Errorf("expected validation kind, got %s", domain.KindOf(err))
	}
}

func TestNormalize_KeepsText(t *testing.T) {
	got, err := domain.Normalize("n", "007", domain.FieldInteger)
	if err != nil {
		t.Fatal(err)
	}
	if got != "007" {
		t.Errorf("expected text unchanged, got %q", got)
	}
}

func TestParseValue(t *testing.T) {
	if v := domain.ParseValue("12", domain.FieldInteger); v != json.Number("12") {
		t.Errorf("integer: got %#v", v)
	}
	if v := domain.ParseValue("1.5", domain.FieldReal); v != json.Number("1.5") {
		t.Errorf("real: got %#v", v)
	}
	if v := domain.ParseValue("2023-01-01", domain.FieldDate); v != "2023-01-01" {
		t.Errorf("date: got %#v", v)
	}
}

func TestFieldType_Valid(t *testing.T) {
	for _, ft := range domain.FieldTypes {
		if !ft.Valid() {
			t.Errorf("%s should be valid", ft)
		}
	}
	if domain.FieldType("boolean").Valid() {
		t.Error("boolean should not be valid")
	}
}

// ─────────────────────────────────────────────────────────────
// ValidateName
// ─────────────────────────────────────────────────────────────

func TestValidateName(t *testing.T) {
	ok := []string{"shop", "my db", "Shop-2"}
	bad := []string{"", "   ", ".", "..", "a/b", `a\b`, "a\x00b"}

	for _, n := range ok {
		if err := domain.ValidateName("database", n); err != nil {
			t.Errorf("ValidateName(%q) unexpected error: %v", n, err)
		}
	}
	for _, n := range bad {
		err := domain.ValidateName("database", n)
		var ie *domain.InvalidNameError
		if !errors.As(err, &ie) {
			t.Errorf("ValidateName(%q) expected InvalidNameError, got %v", n, err)
		}
	}
}
