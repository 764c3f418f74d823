package catalog_test

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"tabledb/internal/catalog"
	"tabledb/internal/domain"
)

// memStore is an in-memory CatalogStore that can be told to fail.
type memStore struct {
	mu    sync.Mutex
	saved map[string]domain.DatabaseSnapshot
	order []string
	fail  bool
	saves int
}

func newMemStore() *memStore {
	return &memStore{saved: make(map[string]domain.DatabaseSnapshot)}
}

func (m *memStore) LoadDatabases() ([]domain.DatabaseSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.DatabaseSnapshot, 0, len(m.order))
	for _, n := range m.order {
		out = append(out, m.saved[n])
	}
	return out, nil
}

func (m *memStore) SaveDatabase(snap *domain.DatabaseSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("disk full")
	}
	m.saves++
	if _, ok := m.saved[snap.Name]; !ok {
		m.order = append(m.order, snap.Name)
	}
	m.saved[snap.Name] = *snap
	return nil
}

func (m *memStore) Close() error { return nil }

func peopleSchema() *domain.Schema {
	return domain.MustSchema(
		domain.Field{Name: "name", Type: domain.FieldString},
		domain.Field{Name: "age", Type: domain.FieldInteger},
	)
}

// ─────────────────────────────────────────────────────────────
// Scenarios
// ─────────────────────────────────────────────────────────────

func TestScenario_CreateInsertList(t *testing.T) {
	c := catalog.New(nil)
	db, err := c.CreateDatabase("shop")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.CreateTable("people", peopleSchema()); err != nil {
		t.Fatal(err)
	}
	idx, err := db.InsertRow("people", map[string]string{"name": "Ann", "age": "30"})
	if err != nil {
		t.Fatal(err)
	}
	if idx != 0 {
		t.Errorf("expected index 0, got %d", idx)
	}

	rows, schema, err := db.Rows("people")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0]["name"] != "Ann" || rows[0]["age"] != "30" {
		t.Errorf("unexpected rows: %v", rows)
	}
	if !reflect.DeepEqual(schema.FieldNames(), []string{"name", "age"}) {
		t.Errorf("unexpected schema order: %v", schema.FieldNames())
	}
}

func TestScenario_InvalidValueLeavesTableUnchanged(t *testing.T) {
	c := catalog.New(nil)
	db, _ := c.CreateDatabase("shop")
	_ = db.CreateTable("people", peopleSchema())

	_, err := db.InsertRow("people", map[string]string{"name": "Bob", "age": "thirty"})
	var fv *domain.FieldValidationError
	if !errors.As(err, &fv) {
		t.Fatalf("expected FieldValidationError, got %v", err)
	}
	if fv.Field != "age" || fv.Expected != domain.FieldInteger {
		t.Errorf("unexpected error: %+v", fv)
	}
	rows, _, _ := db.Rows("people")
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestScenario_SchemaMismatch(t *testing.T) {
	c := catalog.New(nil)
	db, _ := c.CreateDatabase("shop")
	_ = db.CreateTable("people", peopleSchema())

	_, err := db.InsertRow("people", map[string]string{"name": "Cy", "email": "c@x"})
	var sm *domain.SchemaMismatchError
	if !errors.As(err, &sm) {
		t.Fatalf("expected SchemaMismatchError, got %v", err)
	}
	if !reflect.DeepEqual(sm.Missing, []string{"age"}) || !reflect.DeepEqual(sm.Extra, []string{"email"}) {
		t.Errorf("unexpected mismatch: %+v", sm)
	}
}

func TestScenario_DeleteShiftsIndices(t *testing.T) {
	c := catalog.New(nil)
	db, _ := c.CreateDatabase("shop")
	_ = db.CreateTable("people", peopleSchema())
	for _, n := range []string{"A", "B", "C"} {
		if _, err := db.InsertRow("people", map[string]string{"name": n, "age": "1"}); err != nil {
			t.Fatal(err)
		}
	}

	if err := db.DeleteRow("people", 1); err != nil {
		t.Fatal(err)
	}
	rows, _, _ := db.Rows("people")
	if len(rows) != 2 || rows[0]["name"] != "A" || rows[1]["name"] != "C" {
		t.Fatalf("unexpected rows after delete: %v", rows)
	}

	err := db.DeleteRow("people", 2)
	var oor *domain.IndexOutOfRangeError
	if !errors.As(err, &oor) {
		t.Fatalf("expected IndexOutOfRangeError, got %v", err)
	}
	if err := db.DeleteRow("people", -1); domain.KindOf(err) != domain.KindNotFound {
		t.Errorf("expected not found for negative index, got %v", err)
	}
}

func TestScenario_DuplicateGuards(t *testing.T) {
	c := catalog.New(nil)
	db, _ := c.CreateDatabase("shop")
	if _, err := c.CreateDatabase("shop"); domain.KindOf(err) != domain.KindConflict {
		t.Errorf("expected conflict for duplicate database, got %v", err)
	}
	if _, err := c.CreateDatabase("Shop"); err != nil {
		t.Errorf("names are case-sensitive, got %v", err)
	}
	_ = db.CreateTable("people", peopleSchema())
	err := db.CreateTable("people", peopleSchema())
	var dt *domain.DuplicateTableError
	if !errors.As(err, &dt) {
		t.Errorf("expected DuplicateTableError, got %v", err)
	}
}

func TestScenario_NotFound(t *testing.T) {
	c := catalog.New(nil)
	if _, err := c.Database("nope"); domain.KindOf(err) != domain.KindNotFound {
		t.Errorf("expected not found, got %v", err)
	}
	db, _ := c.CreateDatabase("shop")
	if _, _, err := db.Rows("nope"); domain.KindOf(err) != domain.KindNotFound {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := db.Schema("nope"); domain.KindOf(err) != domain.KindNotFound {
		t.Errorf("expected not found, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────
// Ordering, snapshots, names
// ─────────────────────────────────────────────────────────────

func TestCatalog_CreationOrder(t *testing.T) {
	c := catalog.New(nil)
	for _, n := range []string{"zeta", "alpha", "mid"} {
		if _, err := c.CreateDatabase(n); err != nil {
			t.Fatal(err)
		}
	}
	if got := c.DatabaseNames(); !reflect.DeepEqual(got, []string{"zeta", "alpha", "mid"}) {
		t.Errorf("DatabaseNames = %v", got)
	}

	db, _ := c.Database("alpha")
	_ = db.CreateTable("t2", peopleSchema())
	_ = db.CreateTable("t1", peopleSchema())
	if got := db.TableNames(); !reflect.DeepEqual(got, []string{"t2", "t1"}) {
		t.Errorf("TableNames = %v", got)
	}
}

func TestCatalog_InvalidDatabaseName(t *testing.T) {
	c := catalog.New(nil)
	for _, n := range []string{"", "..", "a/b"} {
		if _, err := c.CreateDatabase(n); domain.KindOf(err) != domain.KindValidation {
			t.Errorf("CreateDatabase(%q) expected validation error, got %v", n, err)
		}
	}
	if len(c.DatabaseNames()) != 0 {
		t.Error("invalid names must not be registered")
	}
}

func TestRows_IsSnapshot(t *testing.T) {
	c := catalog.New(nil)
	db, _ := c.CreateDatabase("shop")
	_ = db.CreateTable("people", peopleSchema())
	_, _ = db.InsertRow("people", map[string]string{"name": "A", "age": "1"})

	rows, _, _ := db.Rows("people")
	rows[0]["name"] = "mutated"
	_, _ = db.InsertRow("people", map[string]string{"name": "B", "age": "2"})

	again, _, _ := db.Rows("people")
	if again[0]["name"] != "A" {
		t.Error("mutating a returned row must not affect the table")
	}
	if len(rows) != 1 {
		t.Error("earlier snapshot must not see later inserts")
	}
}

func TestDropTable(t *testing.T) {
	c := catalog.New(nil)
	db, _ := c.CreateDatabase("shop")
	_ = db.CreateTable("a", peopleSchema())
	_ = db.CreateTable("b", peopleSchema())

	if err := db.DropTable("a"); err != nil {
		t.Fatal(err)
	}
	if got := db.TableNames(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("TableNames = %v", got)
	}
	if err := db.DropTable("a"); domain.KindOf(err) != domain.KindNotFound {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestIntersect(t *testing.T) {
	c := catalog.New(nil)
	db, _ := c.CreateDatabase("shop")
	_ = db.CreateTable("a", peopleSchema())
	_ = db.CreateTable("b", domain.MustSchema(
		domain.Field{Name: "age", Type: domain.FieldInteger},
		domain.Field{Name: "name", Type: domain.FieldString},
	))
	_ = db.CreateTable("c", domain.MustSchema(domain.Field{Name: "name", Type: domain.FieldString}))

	for _, r := range []map[string]string{
		{"name": "A", "age": "1"},
		{"name": "B", "age": "2"},
		{"name": "A", "age": "1"},
	} {
		_, _ = db.InsertRow("a", r)
	}
	_, _ = db.InsertRow("b", map[string]string{"name": "A", "age": "1"})

	rows, _, err := db.Intersect("a", "b")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0]["name"] != "A" || rows[1]["name"] != "A" {
		t.Errorf("unexpected intersection: %v", rows)
	}

	_, _, err = db.Intersect("a", "c")
	var inc *domain.IncompatibleSchemasError
	if !errors.As(err, &inc) {
		t.Errorf("expected IncompatibleSchemasError, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────
// Persistence
// ─────────────────────────────────────────────────────────────

func TestOpen_RehydratesFromStore(t *testing.T) {
	store := newMemStore()
	c := catalog.New(store)
	db, _ := c.CreateDatabase("shop")
	_ = db.CreateTable("people", peopleSchema())
	_, _ = db.InsertRow("people", map[string]string{"name": "A", "age": "1"})
	_, _ = db.InsertRow("people", map[string]string{"name": "B", "age": "2"})
	_ = db.DeleteRow("people", 0)
	_, _ = c.CreateDatabase("empty")

	reopened, err := catalog.Open(store)
	if err != nil {
		t.Fatal(err)
	}
	if got := reopened.DatabaseNames(); !reflect.DeepEqual(got, []string{"shop", "empty"}) {
		t.Errorf("DatabaseNames = %v", got)
	}
	rdb, _ := reopened.Database("shop")
	rows, _, err := rdb.Rows("people")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0]["name"] != "B" {
		t.Errorf("unexpected rows after reopen: %v", rows)
	}
}

func TestOpen_RejectsNonConformingRow(t *testing.T) {
	store := newMemStore()
	store.order = []string{"shop"}
	store.saved["shop"] = domain.DatabaseSnapshot{
		Name: "shop",
		Tables: []domain.TableSnapshot{{
			Name:   "people",
			Schema: peopleSchema(),
			Rows:   []domain.Row{{"name": "A", "age": "x"}},
		}},
	}
	_, err := catalog.Open(store)
	var fv *domain.FieldValidationError
	if !errors.As(err, &fv) {
		t.Fatalf("expected FieldValidationError, got %v", err)
	}
}

func TestFlushFailure_RollsBack(t *testing.T) {
	store := newMemStore()
	c := catalog.New(store)
	db, _ := c.CreateDatabase("shop")
	_ = db.CreateTable("people", peopleSchema())
	_, _ = db.InsertRow("people", map[string]string{"name": "A", "age": "1"})

	store.fail = true

	_, err := db.InsertRow("people", map[string]string{"name": "B", "age": "2"})
	if err == nil {
		t.Error("expected insert to fail")
	}
	if domain.KindOf(err) != domain.KindInternal {
		t.Errorf("storage failures should classify as internal, got %s", domain.KindOf(err))
	}
	if err := db.DeleteRow("people", 0); err == nil {
		t.Error("expected delete to fail")
	}
	if err := db.CreateTable("other", peopleSchema()); err == nil {
		t.Error("expected create table to fail")
	}
	if err := db.DropTable("people"); err == nil {
		t.Error("expected drop table to fail")
	}
	if _, err := c.CreateDatabase("more"); err == nil {
		t.Error("expected create database to fail")
	}

	rows, _, _ := db.Rows("people")
	if len(rows) != 1 || rows[0]["name"] != "A" {
		t.Errorf("rows changed after failed flushes: %v", rows)
	}
	if got := db.TableNames(); !reflect.DeepEqual(got, []string{"people"}) {
		t.Errorf("tables changed after failed flushes: %v", got)
	}
	if got := c.DatabaseNames(); !reflect.DeepEqual(got, []string{"shop"}) {
		t.Errorf("databases changed after failed flushes: %v", got)
	}
}

func TestConcurrentInserts(t *testing.T) {
	store := newMemStore()
	c := catalog.New(store)
	db, _ := c.CreateDatabase("shop")
	_ = db.CreateTable("people", peopleSchema())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := db.InsertRow("people", map[string]string{"name": "x", "age": "1"}); err != nil {
				t.Error(err)
			}
			_, _, _ = db.Rows("people")
		}()
	}
	wg.Wait()

	rows, _, _ := db.Rows("people")
	if len(rows) != 50 {
		t.Errorf("expected 50 rows, got %d", len(rows))
	}
	if got := len(store.saved["shop"].Tables[0].Rows); got != 50 {
		t.Errorf("expected 50 persisted rows, got %d", got)
	}
}
