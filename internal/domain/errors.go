package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a storage error for callers that translate it to an
// external response.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindValidation
	KindMalformedRequest
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindMalformedRequest:
		return "malformed_request"
	default:
		return "internal"
	}
}

// KindOf returns the Kind of the first classified error in err's chain.
// Unclassified errors (I/O, storage) are KindInternal.
func KindOf(err error) Kind {
	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

// ── Not found ──────────────────────────────────────────────

type DatabaseNotFoundError struct {
	Name string
}

func (e *DatabaseNotFoundError) Error() string {
	return fmt.Sprintf("database %q does not exist", e.Name)
}
func (e *DatabaseNotFoundError) Kind() Kind { return KindNotFound }

type TableNotFoundError struct {
	Database string
	Name     string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %q does not exist in database %q", e.Name, e.Database)
}
func (e *TableNotFoundError) Kind() Kind { return KindNotFound }

// IndexOutOfRangeError is returned for a positional row address outside [0, Len).
type IndexOutOfRangeError struct {
	Table string
	Index int
	Len   int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("row index %d out of range for table %q with %d rows", e.Index, e.Table, e.Len)
}
func (e *IndexOutOfRangeError) Kind() Kind { return KindNotFound }

type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q", e.Field)
}
func (e *UnknownFieldError) Kind() Kind { return KindNotFound }

// ── Conflict ───────────────────────────────────────────────

type DuplicateDatabaseError struct {
	Name string
}

func (e *DuplicateDatabaseError) Error() string {
	return fmt.Sprintf("database %q already exists", e.Name)
}
func (e *DuplicateDatabaseError) Kind() Kind { return KindConflict }

type DuplicateTableError struct {
	Database string
	Name     string
}

func (e *DuplicateTableError) Error() string {
	return fmt.Sprintf("table %q already exists in database %q", e.Name, e.Database)
}
func (e *DuplicateTableError) Kind() Kind { return KindConflict }

// ── Validation ─────────────────────────────────────────────

// SchemaMismatchError reports a row whose field set differs from the schema.
type SchemaMismatchError struct {
	Missing []string
	Extra   []string
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing fields: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "unknown fields: "+strings.Join(e.Extra, ", "))
	}
	return "row does not match table schema (" + strings.Join(parts, "; ") + ")"
}
func (e *SchemaMismatchError) Kind() Kind { return KindValidation }

// FieldValidationError reports a value that does not have its field's format.
type FieldValidationError struct {
	Field    string
	Expected FieldType
	Value    string
}

func (e *FieldValidationError) Error() string {
	return fmt.Sprintf("invalid value for field %q: expected %s", e.Field, e.Expected)
}
func (e *FieldValidationError) Kind() Kind { return KindValidation }

type DuplicateFieldError struct {
	Field string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("field %q is declared more than once", e.Field)
}
func (e *DuplicateFieldError) Kind() Kind { return KindValidation }

// EmptyNameError reports a blank field name at a schema position.
type EmptyNameError struct {
	Position int
}

func (e *EmptyNameError) Error() string {
	return fmt.Sprintf("field at position %d has an empty name", e.Position)
}
func (e *EmptyNameError) Kind() Kind { return KindValidation }

type EmptySchemaError struct{}

func (e *EmptySchemaError) Error() string { return "schema must declare at least one field" }
func (e *EmptySchemaError) Kind() Kind    { return KindValidation }

type UnknownFieldTypeError struct {
	Field string
	Type  string
}

func (e *UnknownFieldTypeError) Error() string {
	return fmt.Sprintf("field %q has unknown type %q", e.Field, e.Type)
}
func (e *UnknownFieldTypeError) Kind() Kind { return KindValidation }

// InvalidNameError reports an unusable database or table name.
type InvalidNameError struct {
	Entity string // "database" | "table"
	Name   string
	Reason string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid %s name %q: %s", e.Entity, e.Name, e.Reason)
}
func (e *InvalidNameError) Kind() Kind { return KindValidation }

// IncompatibleSchemasError is returned when an operation needs two tables
// with equal schemas.
type IncompatibleSchemasError struct {
	Left  string
	Right string
}

func (e *IncompatibleSchemasError) Error() string {
	return fmt.Sprintf("tables %q and %q have different schemas", e.Left, e.Right)
}
func (e *IncompatibleSchemasError) Kind() Kind { return KindValidation }

// ── Malformed request ──────────────────────────────────────

type MalformedRequestError struct {
	Reason string
}

func (e *MalformedRequestError) Error() string { return "malformed request: " + e.Reason }
func (e *MalformedRequestError) Kind() Kind    { return KindMalformedRequest }

// Malformedf builds a MalformedRequestError.
func Malformedf(format string, args ...any) error {
	return &MalformedRequestError{Reason: fmt.Sprintf(format, args...)}
}
