package storage

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"tabledb/internal/domain"
)

// SQLiteStore persists the catalog in a single SQLite file.
type SQLiteStore struct {
	conn *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the SQLite file at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, errors.Wrap(err, "create db directory")
	}

	conn, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// SQLite only supports one writer; a single connection avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	s := &SQLiteStore{conn: conn, path: dbPath}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "migrate")
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// Path returns the SQLite file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS databases (
			name TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS db_tables (
			database_name TEXT NOT NULL REFERENCES databases(name),
			name TEXT NOT NULL,
			position INTEGER NOT NULL,
			schema_json TEXT NOT NULL,
			PRIMARY KEY (database_name, name)
		)`,
		`CREATE TABLE IF NOT EXISTS db_rows (
			database_name TEXT NOT NULL,
			table_name TEXT NOT NULL,
			position INTEGER NOT NULL,
			data_json TEXT NOT NULL,
			PRIMARY KEY (database_name, table_name, position)
		)`,
		`CREATE TABLE IF NOT EXISTS import_runs (
			id TEXT PRIMARY KEY,
			job_id TEXT NOT NULL DEFAULT '',
			database_name TEXT NOT NULL,
			table_name TEXT NOT NULL,
			source_type TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			finished_at DATETIME,
			status TEXT NOT NULL,
			rows_read INTEGER NOT NULL DEFAULT 0,
			rows_written INTEGER NOT NULL DEFAULT 0,
			rows_rejected INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_import_runs_started ON import_runs(started_at)`,
	}

	for _, m := range migrations {
		if _, err := s.conn.Exec(m); err != nil {
			return errors.Wrapf(err, "migration failed: %s", strings.TrimSpace(m)[:40])
		}
	}
	return nil
}

// LoadDatabases returns every database in creation order.
func (s *SQLiteStore) LoadDatabases() ([]domain.DatabaseSnapshot, error) {
	rows, err := s.conn.Query(`SELECT name FROM databases ORDER BY position ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "list databases")
	}
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan database")
		}
		names = append(names, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list databases")
	}

	out := make([]domain.DatabaseSnapshot, 0, len(names))
	for _, n := range names {
		snap, err := s.loadDatabase(n)
		if err != nil {
			return nil, errors.Wrapf(err, "load database %q", n)
		}
		out = append(out, snap)
	}
	return out, nil
}

func (s *SQLiteStore) loadDatabase(name string) (domain.DatabaseSnapshot, error) {
	snap := domain.DatabaseSnapshot{Name: name}

	rows, err := s.conn.Query(
		`SELECT name, schema_json FROM db_tables WHERE database_name = ? ORDER BY position ASC`, name,
	)
	if err != nil {
		return snap, err
	}
	for rows.Next() {
		var tname, schemaJSON string
		if err := rows.Scan(&tname, &schemaJSON); err != nil {
			rows.Close()
			return snap, err
		}
		schema := &domain.Schema{}
		if err := json.Unmarshal([]byte(schemaJSON), schema); err != nil {
			rows.Close()
			return snap, errors.Wrapf(err, "table %q schema", tname)
		}
		snap.Tables = append(snap.Tables, domain.TableSnapshot{Name: tname, Schema: schema})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, err
	}

	for i := range snap.Tables {
		t := &snap.Tables[i]
		rrows, err := s.conn.Query(
			`SELECT data_json FROM db_rows WHERE database_name = ? AND table_name = ? ORDER BY position ASC`,
			name, t.Name,
		)
		if err != nil {
			return snap, err
		}
		for rrows.Next() {
			var data string
			if err := rrows.Scan(&data); err != nil {
				rrows.Close()
				return snap, err
			}
			values, err := domain.DecodeRowValues([]byte(data))
			if err != nil {
				rrows.Close()
				return snap, errors.Wrapf(err, "table %q row %d", t.Name, len(t.Rows))
			}
			t.Rows = append(t.Rows, domain.Row(values))
		}
		rrows.Close()
		if err := rrows.Err(); err != nil {
			return snap, err
		}
	}
	return snap, nil
}

// SaveDatabase replaces every table and row of snap.Name in one transaction.
func (s *SQLiteStore) SaveDatabase(snap *domain.DatabaseSnapshot) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO databases (name, position)
		 VALUES (?, (SELECT COALESCE(MAX(position), -1) + 1 FROM databases))
		 ON CONFLICT(name) DO UPDATE SET updated_at = CURRENT_TIMESTAMP`,
		snap.Name,
	); err != nil {
		return errors.Wrapf(err, "upsert database %q", snap.Name)
	}
	if _, err := tx.Exec(`DELETE FROM db_rows WHERE database_name = ?`, snap.Name); err != nil {
		return errors.Wrap(err, "clear rows")
	}
	if _, err := tx.Exec(`DELETE FROM db_tables WHERE database_name = ?`, snap.Name); err != nil {
		return errors.Wrap(err, "clear tables")
	}

	for tpos, t := range snap.Tables {
		schemaJSON, err := t.Schema.MarshalJSON()
		if err != nil {
			return errors.Wrapf(err, "encode schema of %q", t.Name)
		}
		if _, err := tx.Exec(
			`INSERT INTO db_tables (database_name, name, position, schema_json) VALUES (?, ?, ?, ?)`,
			snap.Name, t.Name, tpos, string(schemaJSON),
		); err != nil {
			return errors.Wrapf(err, "insert table %q", t.Name)
		}
		for rpos, r := range t.Rows {
			data, err := t.Schema.OrderRow(r).MarshalJSON()
			if err != nil {
				return errors.Wrapf(err, "encode row %d of %q", rpos, t.Name)
			}
			if _, err := tx.Exec(
				`INSERT INTO db_rows (database_name, table_name, position, data_json) VALUES (?, ?, ?, ?)`,
				snap.Name, t.Name, rpos, string(data),
			); err != nil {
				return errors.Wrapf(err, "insert row %d of %q", rpos, t.Name)
			}
		}
	}

	return errors.Wrap(tx.Commit(), "commit")
}
