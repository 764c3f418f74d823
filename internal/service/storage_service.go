package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/invopop/jsonschema"
	"github.com/samber/lo"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"tabledb/internal/catalog"
	"tabledb/internal/domain"
	"tabledb/internal/etl"
)

// ─────────────────────────────────────────────────────────────
// Storage Service: the table operations behind HTTP and MCP
// ─────────────────────────────────────────────────────────────

// Event names emitted after successful mutations.
const (
	EventDatabaseCreated = "database:created"
	EventTableCreated    = "table:created"
	EventTableDropped    = "table:dropped"
	EventRowInserted     = "row:inserted"
	EventRowDeleted      = "row:deleted"
	EventImportCompleted = "import:completed"
	EventBackupWritten   = "backup:written"
)

// StorageService maps requests onto the catalog. It adds no rules of its
// own: every check happens in the catalog, tables and schemas.
type StorageService struct {
	catalog *catalog.Catalog
	emitter EventEmitter
}

func NewStorageService(c *catalog.Catalog, emitter EventEmitter) *StorageService {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &StorageService{catalog: c, emitter: emitter}
}

// ── Databases ──────────────────────────────────────────────

func (s *StorageService) ListDatabases() []string {
	return s.catalog.DatabaseNames()
}

func (s *StorageService) CreateDatabase(ctx context.Context, name string) error {
	if _, err := s.catalog.CreateDatabase(name); err != nil {
		return err
	}
	s.emitter.Emit(ctx, EventDatabaseCreated, map[string]string{"database": name})
	return nil
}

// Snapshot copies every database for backups.
func (s *StorageService) Snapshot() []domain.DatabaseSnapshot {
	return s.catalog.Snapshot()
}

// ── Tables ─────────────────────────────────────────────────

// CreateTableRequest is the body of POST /{db}/tables.
type CreateTableRequest struct {
	TableName string         `json:"table_name"`
	Schema    *domain.Schema `json:"schema"`
}

// DecodeCreateTable parses a create-table body. Schema errors (duplicate
// field, unknown type, empty schema) come back as their own error types.
func DecodeCreateTable(body []byte) (*CreateTableRequest, error) {
	var req CreateTableRequest
	if err := json.Unmarshal(body, &req); err != nil {
		if domain.KindOf(err) != domain.KindInternal {
			return nil, err
		}
		return nil, domain.Malformedf("invalid JSON body: %v", err)
	}
	if req.Schema == nil {
		return nil, domain.Malformedf("schema is required")
	}
	return &req, nil
}

func (s *StorageService) ListTables(db string) ([]string, error) {
	d, err := s.catalog.Database(db)
	if err != nil {
		return nil, err
	}
	return d.TableNames(), nil
}

func (s *StorageService) CreateTable(ctx context.Context, db, table string, schema *domain.Schema) error {
	d, err := s.catalog.Database(db)
	if err != nil {
		return err
	}
	if err := d.CreateTable(table, schema); err != nil {
		return err
	}
	s.emitter.Emit(ctx, EventTableCreated, map[string]string{"database": db, "table": table})
	return nil
}

func (s *StorageService) DropTable(ctx context.Context, db, table string) error {
	d, err := s.catalog.Database(db)
	if err != nil {
		return err
	}
	if err := d.DropTable(table); err != nil {
		return err
	}
	s.emitter.Emit(ctx, EventTableDropped, map[string]string{"database": db, "table": table})
	return nil
}

func (s *StorageService) Schema(db, table string) (*domain.Schema, error) {
	d, err := s.catalog.Database(db)
	if err != nil {
		return nil, err
	}
	return d.Schema(table)
}

// RowJSONSchema describes one row of the table as a JSON Schema document:
// every field required, values strings constrained by the type's pattern.
func (s *StorageService) RowJSONSchema(db, table string) (*jsonschema.Schema, error) {
	schema, err := s.Schema(db, table)
	if err != nil {
		return nil, err
	}
	props := orderedmap.New[string, *jsonschema.Schema](schema.Len())
	for _, f := range schema.Fields() {
		prop := &jsonschema.Schema{Type: "string", Pattern: f.Type.Pattern(), Description: string(f.Type)}
		if f.Type == domain.FieldChar {
			one := uint64(1)
			prop.MinLength, prop.MaxLength = &one, &one
		}
		props.Set(f.Name, prop)
	}
	return &jsonschema.Schema{
		Version:              jsonschema.Version,
		Title:                db + "." + table,
		Type:                 "object",
		Properties:           props,
		Required:             schema.FieldNames(),
		AdditionalProperties: jsonschema.FalseSchema,
	}, nil
}

// ── Rows ───────────────────────────────────────────────────

func (s *StorageService) InsertRow(ctx context.Context, db, table string, values map[string]string) (int, error) {
	d, err := s.catalog.Database(db)
	if err != nil {
		return 0, err
	}
	idx, err := d.InsertRow(table, values)
	if err != nil {
		return 0, err
	}
	s.emitter.Emit(ctx, EventRowInserted, map[string]any{"database": db, "table": table, "index": idx})
	return idx, nil
}

// Rows returns the table's rows laid out in schema order. With typed set,
// integer and real values are JSON numbers instead of strings.
func (s *StorageService) Rows(db, table string, typed bool) ([]any, error) {
	d, err := s.catalog.Database(db)
	if err != nil {
		return nil, err
	}
	rows, schema, err := d.Rows(table)
	if err != nil {
		return nil, err
	}
	return orderRows(rows, schema, typed), nil
}

func (s *StorageService) DeleteRow(ctx context.Context, db, table string, index int) error {
	d, err := s.catalog.Database(db)
	if err != nil {
		return err
	}
	if err := d.DeleteRow(table, index); err != nil {
		return err
	}
	s.emitter.Emit(ctx, EventRowDeleted, map[string]any{"database": db, "table": table, "index": index})
	return nil
}

// Intersect returns the rows of left that also appear in right.
func (s *StorageService) Intersect(db, left, right string) ([]any, error) {
	d, err := s.catalog.Database(db)
	if err != nil {
		return nil, err
	}
	rows, schema, err := d.Intersect(left, right)
	if err != nil {
		return nil, err
	}
	return orderRows(rows, schema, false), nil
}

func orderRows(rows []domain.Row, schema *domain.Schema, typed bool) []any {
	return lo.Map(rows, func(r domain.Row, _ int) any {
		if typed {
			return schema.OrderTypedRow(r)
		}
		return schema.OrderRow(r)
	})
}

// ImportTarget is the etl.TableTarget imports write through. It inserts
// without per-row events; the import service emits one event per run.
func (s *StorageService) ImportTarget() etl.TableTarget {
	return importTarget{s}
}

type importTarget struct{ s *StorageService }

func (t importTarget) Schema(db, table string) (*domain.Schema, error) {
	return t.s.Schema(db, table)
}

func (t importTarget) InsertRow(db, table string, values map[string]string) (int, error) {
	d, err := t.s.catalog.Database(db)
	if err != nil {
		return 0, err
	}
	return d.InsertRow(table, values)
}

// ── Error translation ──────────────────────────────────────

// ErrorBody is the JSON error payload of every failed request.
type ErrorBody struct {
	Error    string   `json:"error"`
	Field    string   `json:"field,omitempty"`
	Expected string   `json:"expected,omitempty"`
	Missing  []string `json:"missing,omitempty"`
	Extra    []string `json:"extra,omitempty"`
}

// ErrorResponse maps err to an HTTP status and body.
//
//	not found              → 404
//	conflict, validation,
//	malformed request      → 400
//	anything else          → 500
func ErrorResponse(err error) (int, ErrorBody) {
	body := ErrorBody{Error: err.Error()}

	var fv *domain.FieldValidationError
	if errors.As(err, &fv) {
		body.Field = fv.Field
		body.Expected = string(fv.Expected)
	}
	var sm *domain.SchemaMismatchError
	if errors.As(err, &sm) {
		body.Missing = sm.Missing
		body.Extra = sm.Extra
	}

	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return http.StatusNotFound, body
	case domain.KindConflict, domain.KindValidation, domain.KindMalformedRequest:
		return http.StatusBadRequest, body
	default:
		log.Printf("storage: internal error: %v", err)
		return http.StatusInternalServerError, body
	}
}

// ParseIndex parses a row index path segment.
func ParseIndex(raw string) (int, error) {
	idx, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Malformedf("row index %q is not an integer", raw)
	}
	return idx, nil
}
