package dbclient

import (
	"tabledb/internal/domain"

	_ "modernc.org/sqlite"
)

// newSQLiteConnector opens an external SQLite file; Host holds its path.
func newSQLiteConnector(conn *domain.ExternalConnection) (*sqlConnector, error) {
	dsn := "file:" + conn.Host + "?mode=ro"
	return newSQLConnector("sqlite", dsn)
}
