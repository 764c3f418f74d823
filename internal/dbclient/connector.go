// Package dbclient reads rows from external databases for imports.
package dbclient

import (
	"context"
	"fmt"

	"tabledb/internal/domain"
)

// DefaultLimit caps a query when the caller does not pass a limit.
const DefaultLimit = 10000

// QueryPage is the result of a read query, values already converted to
// plain Go scalars (string, int64, float64, bool or nil).
type QueryPage struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	Truncated bool     `json:"truncated"`
}

// Connector is a read-only handle on an external database.
type Connector interface {
	// TestConnection verifies connectivity.
	TestConnection(ctx context.Context) error

	// Query runs a read query and returns at most limit rows.
	Query(ctx context.Context, query string, limit int) (*QueryPage, error)

	Close() error
}

// NewConnector creates a Connector for conn. The password comes from a
// secret store, never from the connection record.
func NewConnector(conn *domain.ExternalConnection, password string) (Connector, error) {
	switch conn.Driver {
	case domain.ExternalSQLite:
		return newSQLiteConnector(conn)
	case domain.ExternalMySQL:
		return newSQLConnector("mysql", buildMySQLDSN(conn, password))
	case domain.ExternalPostgres:
		return newSQLConnector("postgres", buildPostgresDSN(conn, password))
	case domain.ExternalMongoDB:
		return newMongoConnector(conn, password)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", conn.Driver)
	}
}
