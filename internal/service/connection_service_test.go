package service_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"reflect"
	"testing"

	_ "modernc.org/sqlite"

	"tabledb/internal/domain"
	"tabledb/internal/etl"
	"tabledb/internal/etl/sources"
	"tabledb/internal/secret"
	"tabledb/internal/service"
)

// ─────────────────────────────────────────────────────────────
// ConnectionService tests, backed by a real SQLite file
// ─────────────────────────────────────────────────────────────

func newWarehouse(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warehouse.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	for _, stmt := range []string{
		`CREATE TABLE staff (name TEXT, age INTEGER, grade TEXT)`,
		`INSERT INTO staff VALUES ('Ann', 30, 'A'), ('Bob', 41, 'B')`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func TestConnectionService_Query(t *testing.T) {
	path := newWarehouse(t)
	svc := service.NewConnectionService([]domain.ExternalConnection{
		{Name: "wh", Driver: domain.ExternalSQLite, Host: path},
		{Name: "other", Driver: domain.ExternalSQLite, Host: path},
	}, secret.NewEnvStore())

	if !reflect.DeepEqual(svc.Names(), []string{"other", "wh"}) {
		t.Errorf("names = %v", svc.Names())
	}
	if err := svc.Test(context.Background(), "wh"); err != nil {
		t.Fatal(err)
	}

	page, err := svc.QueryConnection(context.Background(), "wh", "SELECT name, age FROM staff ORDER BY name", 10)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(page.Columns, []string{"name", "age"}) || len(page.Rows) != 2 {
		t.Errorf("page = %+v", page)
	}

	if _, err := svc.QueryConnection(context.Background(), "nope", "SELECT 1", 1); domain.KindOf(err) != domain.KindNotFound {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestConnectionService_DatabaseImport(t *testing.T) {
	path := newWarehouse(t)
	conns := service.NewConnectionService([]domain.ExternalConnection{
		{Name: "wh", Driver: domain.ExternalSQLite, Host: path},
	}, nil)
	sources.SetDBProvider(conns)
	t.Cleanup(func() { sources.SetDBProvider(nil) })

	imports, st, _ := newImports(t)
	res, err := imports.Import(context.Background(), "shop", "people", service.ImportRequest{
		SourceType:   "database",
		SourceConfig: etl.SourceConfig{"connection": "wh", "query": "SELECT name, age, grade FROM staff"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.RowsWritten != 2 {
		t.Errorf("unexpected result: %+v", res)
	}
	rows, _ := st.Rows("shop", "people", false)
	if got := mustJSON(t, rows); got != `[{"name":"Ann","age":"30","grade":"A"},{"name":"Bob","age":"41","grade":"B"}]` {
		t.Errorf("rows = %s", got)
	}
}
