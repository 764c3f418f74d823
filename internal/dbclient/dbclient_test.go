package dbclient

import (
	"context"
	"database/sql"
	"net/url"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.mongodb.org/mongo-driver/v2/bson"

	"tabledb/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// DSN builders
// ─────────────────────────────────────────────────────────────

func TestBuildMySQLDSN(t *testing.T) {
	dsn := buildMySQLDSN(&domain.ExternalConnection{
		Host: "db.local", Username: "u", Database: "shop", SSLMode: "require",
	}, "p@ss:word")
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("ParseDSN(%q): %v", dsn, err)
	}
	if cfg.User != "u" || cfg.Passwd != "p@ss:word" || cfg.Addr != "db.local:3306" || cfg.DBName != "shop" {
		t.Errorf("parsed = %+v", cfg)
	}
	if !cfg.ParseTime || cfg.TLSConfig != "true" {
		t.Errorf("parseTime = %v, tls = %q", cfg.ParseTime, cfg.TLSConfig)
	}
}

func TestBuildPostgresDSN(t *testing.T) {
	dsn := buildPostgresDSN(&domain.ExternalConnection{
		Host: "pg", Port: 6543, Username: "u", Database: "d",
		Options: map[string]string{"application_name": "tabledb"},
	}, "p w/d")
	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatal(err)
	}
	pw, _ := u.User.Password()
	if u.Scheme != "postgres" || u.Host != "pg:6543" || u.Path != "/d" || u.User.Username() != "u" || pw != "p w/d" {
		t.Errorf("dsn = %q", dsn)
	}
	if q := u.Query(); q.Get("sslmode") != "disable" || q.Get("application_name") != "tabledb" {
		t.Errorf("query = %v", q)
	}
}

func TestBuildMongoURI(t *testing.T) {
	uri := buildMongoURI(&domain.ExternalConnection{
		Host: "mongodb+srv://u:<password>@cluster.example.net/?retryWrites=true",
	}, "s3cret")
	if !strings.Contains(uri, "u:s3cret@") {
		t.Errorf("password placeholder not replaced: %s", uri)
	}

	uri = buildMongoURI(&domain.ExternalConnection{
		Host: "localhost", Username: "u",
		Options: map[string]string{"replicaSet": "rs0", "authSource": "admin"},
	}, "pw")
	want := "mongodb://u:pw@localhost:27017/?authSource=admin&replicaSet=rs0"
	if uri != want {
		t.Errorf("uri = %q, want %q", uri, want)
	}
}

func TestParseMongoQuery(t *testing.T) {
	q, err := parseMongoQuery(`{
		"collection": "orders",
		"filter": {"_id": {"$oid": "65f0c0ffee0000000000abcd"}},
		"sort": {"created": -1, "total": 1}
	}`)
	if err != nil {
		t.Fatal(err)
	}
	if q.Collection != "orders" || q.Pipeline != nil {
		t.Errorf("query = %+v", q)
	}
	if _, ok := q.Filter[0].Value.(bson.ObjectID); !ok {
		t.Errorf("$oid not decoded: %#v", q.Filter)
	}
	if len(q.Sort) != 2 || q.Sort[0].Key != "created" || q.Sort[1].Key != "total" {
		t.Errorf("sort order lost: %v", q.Sort)
	}

	if _, err := parseMongoQuery(`{"filter": {}}`); err == nil {
		t.Error("expected error without collection")
	}
	if _, err := parseMongoQuery(`not json`); err == nil {
		t.Error("expected error for invalid document")
	}
}

func TestFormatMongoValue_Nested(t *testing.T) {
	if got := formatMongoValue(bson.A{"a", int32(1)}); got != `["a",1]` {
		t.Errorf("array = %v", got)
	}
	if got := formatMongoValue(bson.D{{Key: "n", Value: "x"}}); got != `{"n":"x"}` {
		t.Errorf("document = %v", got)
	}
}

func TestRedactURI(t *testing.T) {
	got := redactURI("mongodb://u:s3cret@db:27017/")
	if strings.Contains(got, "s3cret") {
		t.Errorf("password leaked: %s", got)
	}
}

func TestIsReadQuery(t *testing.T) {
	reads := []string{
		"SELECT 1",
		"  with x as (select 1) select * from x",
		"PRAGMA table_info(t)",
		"-- newest first\nSELECT * FROM t ORDER BY id DESC;",
		"/* report */ select(1)",
	}
	writes := []string{
		"DELETE FROM t",
		"insert into t values (1)",
		"DROP TABLE t",
		"SELECT 1; DROP TABLE t",
		"/* select */ UPDATE t SET a = 1",
		"-- only a comment",
		"",
	}
	for _, q := range reads {
		if !isReadQuery(q) {
			t.Errorf("expected read: %q", q)
		}
	}
	for _, q := range writes {
		if isReadQuery(q) {
			t.Errorf("expected write: %q", q)
		}
	}
}

func TestFormatValue(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if got := formatValue(day); got != "2024-03-01" {
		t.Errorf("midnight time = %v", got)
	}
	if got := formatValue([]byte("abc")); got != "abc" {
		t.Errorf("bytes = %v", got)
	}
	if got := formatValue(int64(7)); got != int64(7) {
		t.Errorf("int64 = %v", got)
	}
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	if got := formatValue(at); got != "2024-03-01T09:30:00Z" {
		t.Errorf("timestamp = %v", got)
	}
	if got := formatValue(nil); got != nil {
		t.Errorf("nil = %v", got)
	}
}

func TestDocsToPage(t *testing.T) {
	oid := bson.NewObjectID()
	page := docsToPage([]bson.D{
		{{Key: "name", Value: "a"}, {Key: "_id", Value: oid}},
		{{Key: "age", Value: int32(3)}},
	})
	if !reflect.DeepEqual(page.Columns, []string{"_id", "age", "name"}) {
		t.Fatalf("columns = %v", page.Columns)
	}
	if page.Rows[0][0] != oid.Hex() || page.Rows[0][2] != "a" || page.Rows[1][1] != int32(3) {
		t.Errorf("rows = %v", page.Rows)
	}
}

// ─────────────────────────────────────────────────────────────
// SQLite connector against a real file
// ─────────────────────────────────────────────────────────────

func TestSQLiteConnector_Query(t *testing.T) {
	path := filepath.Join(t.TempDir(), "src.db")
	seed, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	for _, stmt := range []string{
		`CREATE TABLE people (name TEXT, age INTEGER)`,
		`INSERT INTO people VALUES ('Ann', 30), ('Bob', 41), ('Cy', 5)`,
	} {
		if _, err := seed.Exec(stmt); err != nil {
			t.Fatal(err)
		}
	}
	seed.Close()

	conn, err := NewConnector(&domain.ExternalConnection{Driver: domain.ExternalSQLite, Host: path}, "")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	ctx := context.Background()
	if err := conn.TestConnection(ctx); err != nil {
		t.Fatal(err)
	}

	page, err := conn.Query(ctx, "SELECT name, age FROM people ORDER BY name", 2)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(page.Columns, []string{"name", "age"}) {
		t.Errorf("columns = %v", page.Columns)
	}
	if len(page.Rows) != 2 || !page.Truncated {
		t.Errorf("expected 2 rows and truncation, got %d rows truncated=%v", len(page.Rows), page.Truncated)
	}
	if page.Rows[0][0] != "Ann" {
		t.Errorf("first row = %v", page.Rows[0])
	}

	if _, err := conn.Query(ctx, "DELETE FROM people", 0); err == nil {
		t.Error("expected write query to be refused")
	}
}

func TestNewConnector_UnsupportedDriver(t *testing.T) {
	if _, err := NewConnector(&domain.ExternalConnection{Driver: "oracle"}, ""); err == nil {
		t.Error("expected error for unsupported driver")
	}
}
