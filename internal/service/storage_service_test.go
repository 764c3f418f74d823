package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"tabledb/internal/catalog"
	"tabledb/internal/domain"
	"tabledb/internal/service"
)

func newStorage(t *testing.T) (*service.StorageService, *service.RecordingEmitter) {
	t.Helper()
	emitter := &service.RecordingEmitter{}
	svc := service.NewStorageService(catalog.New(nil), emitter)
	ctx := context.Background()
	if err := svc.CreateDatabase(ctx, "shop"); err != nil {
		t.Fatal(err)
	}
	req, err := service.DecodeCreateTable([]byte(`{"table_name":"people","schema":{"name":"string","age":"integer","grade":"char"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.CreateTable(ctx, "shop", req.TableName, req.Schema); err != nil {
		t.Fatal(err)
	}
	return svc, emitter
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

// ─────────────────────────────────────────────────────────────
// Table and row operations
// ─────────────────────────────────────────────────────────────

func TestStorageService_RowsInSchemaOrder(t *testing.T) {
	svc, emitter := newStorage(t)
	ctx := context.Background()

	idx, err := svc.InsertRow(ctx, "shop", "people", map[string]string{"grade": "A", "age": "30", "name": "Ann"})
	if err != nil {
		t.Fatal(err)
	}
	if idx != 0 {
		t.Errorf("index = %d", idx)
	}

	rows, err := svc.Rows("shop", "people", false)
	if err != nil {
		t.Fatal(err)
	}
	if got := mustJSON(t, rows); got != `[{"name":"Ann","age":"30","grade":"A"}]` {
		t.Errorf("rows = %s", got)
	}
	typed, _ := svc.Rows("shop", "people", true)
	if got := mustJSON(t, typed); got != `[{"name":"Ann","age":30,"grade":"A"}]` {
		t.Errorf("typed rows = %s", got)
	}

	want := []string{service.EventDatabaseCreated, service.EventTableCreated, service.EventRowInserted}
	if !reflect.DeepEqual(emitter.Names(), want) {
		t.Errorf("events = %v, want %v", emitter.Names(), want)
	}
}

func TestStorageService_EmptyTableListsAsArray(t *testing.T) {
	svc, _ := newStorage(t)
	rows, err := svc.Rows("shop", "people", false)
	if err != nil {
		t.Fatal(err)
	}
	if got := mustJSON(t, rows); got != "[]" {
		t.Errorf("rows = %s", got)
	}
}

func TestStorageService_DeleteAndDrop(t *testing.T) {
	svc, emitter := newStorage(t)
	ctx := context.Background()
	for _, n := range []string{"A", "B", "C"} {
		if _, err := svc.InsertRow(ctx, "shop", "people", map[string]string{"name": n, "age": "1", "grade": n}); err != nil {
			t.Fatal(err)
		}
	}
	if err := svc.DeleteRow(ctx, "shop", "people", 0); err != nil {
		t.Fatal(err)
	}
	rows, _ := svc.Rows("shop", "people", false)
	if got := mustJSON(t, rows); !strings.HasPrefix(got, `[{"name":"B"`) {
		t.Errorf("rows after delete = %s", got)
	}
	if err := svc.DeleteRow(ctx, "shop", "people", 2); domain.KindOf(err) != domain.KindNotFound {
		t.Errorf("expected not found, got %v", err)
	}

	if err := svc.DropTable(ctx, "shop", "people"); err != nil {
		t.Fatal(err)
	}
	tables, _ := svc.ListTables("shop")
	if len(tables) != 0 {
		t.Errorf("tables = %v", tables)
	}
	names := emitter.Names()
	if names[len(names)-1] != service.EventTableDropped {
		t.Errorf("last event = %s", names[len(names)-1])
	}
	deleted := emitter.Payloads(service.EventRowDeleted)
	if len(deleted) != 1 || deleted[0].(map[string]any)["index"] != 0 {
		t.Errorf("row:deleted payloads = %v", deleted)
	}
}

func TestStorageService_FailuresEmitNothing(t *testing.T) {
	svc, emitter := newStorage(t)
	before := len(emitter.Names())
	ctx := context.Background()

	_ = svc.CreateDatabase(ctx, "shop")
	_, _ = svc.InsertRow(ctx, "shop", "people", map[string]string{"name": "x"})
	_ = svc.DeleteRow(ctx, "shop", "people", 0)
	_ = svc.DropTable(ctx, "nope", "people")

	if len(emitter.Names()) != before {
		t.Errorf("unexpected events: %v", emitter.Names()[before:])
	}
}

func TestStorageService_Intersect(t *testing.T) {
	svc, _ := newStorage(t)
	ctx := context.Background()
	req, _ := service.DecodeCreateTable([]byte(`{"table_name":"alumni","schema":{"grade":"char","age":"integer","name":"string"}}`))
	if err := svc.CreateTable(ctx, "shop", req.TableName, req.Schema); err != nil {
		t.Fatal(err)
	}
	row := map[string]string{"name": "Ann", "age": "30", "grade": "A"}
	_, _ = svc.InsertRow(ctx, "shop", "people", row)
	_, _ = svc.InsertRow(ctx, "shop", "people", map[string]string{"name": "Bob", "age": "31", "grade": "B"})
	_, _ = svc.InsertRow(ctx, "shop", "alumni", row)

	rows, err := svc.Intersect("shop", "people", "alumni")
	if err != nil {
		t.Fatal(err)
	}
	if got := mustJSON(t, rows); got != `[{"name":"Ann","age":"30","grade":"A"}]` {
		t.Errorf("intersection = %s", got)
	}
}

func TestStorageService_RowJSONSchema(t *testing.T) {
	svc, _ := newStorage(t)
	s, err := svc.RowJSONSchema("shop", "people")
	if err != nil {
		t.Fatal(err)
	}
	got := mustJSON(t, s)
	for _, want := range []string{
		`"$schema":"https://json-schema.org/draft/2020-12/schema"`,
		`"required":["name","age","grade"]`,
		`"additionalProperties":false`,
		`"pattern":"^\\d+$"`,
		`"minLength":1`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("schema missing %s:\n%s", want, got)
		}
	}
	if strings.Index(got, `"name"`) > strings.Index(got, `"age"`) {
		t.Errorf("properties out of schema order: %s", got)
	}
	if _, err := svc.RowJSONSchema("shop", "nope"); domain.KindOf(err) != domain.KindNotFound {
		t.Errorf("expected not found, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────
// Request decoding
// ─────────────────────────────────────────────────────────────

func TestDecodeCreateTable_Errors(t *testing.T) {
	cases := []struct {
		body string
		want error
	}{
		{`{"table_name":"t","schema":{"a":"integer","a":"string"}}`, &domain.DuplicateFieldError{}},
		{`{"table_name":"t","schema":{"a":"uuid"}}`, &domain.UnknownFieldTypeError{}},
		{`{"table_name":"t","schema":{}}`, &domain.EmptySchemaError{}},
		{`{"table_name":"t"}`, &domain.MalformedRequestError{}},
		{`{"table_name":"t","schema":["a"]}`, &domain.MalformedRequestError{}},
		{`not json`, &domain.MalformedRequestError{}},
	}
	for _, c := range cases {
		_, err := service.DecodeCreateTable([]byte(c.body))
		if err == nil {
			t.Errorf("%s: expected error", c.body)
			continue
		}
		target := reflect.New(reflect.TypeOf(c.want)).Interface()
		if !errors.As(err, target) {
			t.Errorf("%s: got %T (%v), want %T", c.body, err, err, c.want)
		}
	}
}

func TestParseIndex(t *testing.T) {
	if i, err := service.ParseIndex("12"); err != nil || i != 12 {
		t.Errorf("ParseIndex(12) = %d, %v", i, err)
	}
	for _, raw := range []string{"abc", "1.5", ""} {
		if _, err := service.ParseIndex(raw); domain.KindOf(err) != domain.KindMalformedRequest {
			t.Errorf("ParseIndex(%q): expected malformed request, got %v", raw, err)
		}
	}
}

// ─────────────────────────────────────────────────────────────
// Error translation
// ─────────────────────────────────────────────────────────────

func TestErrorResponse(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{&domain.DatabaseNotFoundError{Name: "x"}, http.StatusNotFound},
		{&domain.TableNotFoundError{Database: "x", Name: "y"}, http.StatusNotFound},
		{&domain.IndexOutOfRangeError{Index: 3, Len: 1}, http.StatusNotFound},
		{&domain.DuplicateDatabaseError{Name: "x"}, http.StatusBadRequest},
		{&domain.DuplicateTableError{Database: "x", Name: "y"}, http.StatusBadRequest},
		{&domain.EmptySchemaError{}, http.StatusBadRequest},
		{domain.Malformedf("bad"), http.StatusBadRequest},
		{&service.JobNotFoundError{ID: "j"}, http.StatusNotFound},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		status, body := service.ErrorResponse(c.err)
		if status != c.status {
			t.Errorf("%T: status %d, want %d", c.err, status, c.status)
		}
		if body.Error == "" {
			t.Errorf("%T: empty error message", c.err)
		}
	}
}

func TestErrorResponse_Details(t *testing.T) {
	_, body := service.ErrorResponse(&domain.FieldValidationError{Field: "age", Expected: domain.FieldInteger, Value: "x"})
	if body.Field != "age" || body.Expected != "integer" {
		t.Errorf("field validation body = %+v", body)
	}

	wrapped := &domain.SchemaMismatchError{Missing: []string{"b"}, Extra: []string{"c"}}
	_, body = service.ErrorResponse(errors.Join(errors.New("insert"), wrapped))
	if !reflect.DeepEqual(body.Missing, []string{"b"}) || !reflect.DeepEqual(body.Extra, []string{"c"}) {
		t.Errorf("schema mismatch body = %+v", body)
	}
	if got := mustJSON(t, body); strings.Contains(got, `"field":`) {
		t.Errorf("unexpected field key: %s", got)
	}
}
