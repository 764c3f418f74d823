package domain

import (
	"encoding/json"
	"regexp"
	"unicode/utf8"
)

// FieldType is the declared format of a table column.
// Values are always stored as text; the type only constrains the text's shape.
type FieldType string

const (
	FieldInteger      FieldType = "integer"
	FieldReal         FieldType = "real"
	FieldChar         FieldType = "char"
	FieldString       FieldType = "string"
	FieldDate         FieldType = "date"
	FieldDateInterval FieldType = "date_interval"
)

// FieldTypes lists the closed set of supported types in display order.
var FieldTypes = []FieldType{
	FieldInteger,
	FieldReal,
	FieldChar,
	FieldString,
	FieldDate,
	FieldDateInterval,
}

// Format patterns. `\d` in Go RE2 is ASCII [0-9] and `$` anchors at end of text.
const (
	PatternInteger      = `^\d+$`
	PatternReal         = `^\d+(\.\d+)?$`
	PatternDate         = `^\d{4}-\d{2}-\d{2}$`
	PatternDateInterval = `^\d{4}-\d{2}-\d{2}/\d{4}-\d{2}-\d{2}$`
)

var (
	integerRe      = regexp.MustCompile(PatternInteger)
	realRe         = regexp.MustCompile(PatternReal)
	dateRe         = regexp.MustCompile(PatternDate)
	dateIntervalRe = regexp.MustCompile(PatternDateInterval)
)

// Valid reports whether t is one of the supported field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldInteger, FieldReal, FieldChar, FieldString, FieldDate, FieldDateInterval:
		return true
	}
	return false
}

// Pattern returns the regular expression a value of this type must match,
// or "" for types that are not pattern-based (char, string).
func (t FieldType) Pattern() string {
	switch t {
	case FieldInteger:
		return PatternInteger
	case FieldReal:
		return PatternReal
	case FieldDate:
		return PatternDate
	case FieldDateInterval:
		return PatternDateInterval
	}
	return ""
}

// Validate checks a raw value against a field type. Unknown types never validate.
// Dates are checked for shape only: "2023-02-30" is accepted.
func Validate(value string, t FieldType) bool {
	switch t {
	case FieldInteger:
		return integerRe.MatchString(value)
	case FieldReal:
		return realRe.MatchString(value)
	case FieldChar:
		return utf8.RuneCountInString(value) == 1
	case FieldString:
		return true
	case FieldDate:
		return dateRe.MatchString(value)
	case FieldDateInterval:
		return dateIntervalRe.MatchString(value)
	default:
		return false
	}
}

// Normalize validates value for field and returns the text to store.
// Stored text is the submitted text unchanged.
func Normalize(field, value string, t FieldType) (string, error) {
	if !Validate(value, t) {
		return "", &FieldValidationError{Field: field, Expected: t, Value: value}
	}
	return value, nil
}

// ParseValue converts stored text into its typed JSON representation.
// Integers and reals become json.Number so no precision is lost; every
// other type stays a string.
func ParseValue(value string, t FieldType) any {
	switch t {
	case FieldInteger, FieldReal:
		if Validate(value, t) {
			return json.Number(value)
		}
	}
	return value
}
