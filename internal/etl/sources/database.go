package sources

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cast"

	"tabledb/internal/dbclient"
	"tabledb/internal/etl"
)

// DBProvider runs a read query on a named connection from the config file.
type DBProvider interface {
	QueryConnection(ctx context.Context, connection, query string, limit int) (*dbclient.QueryPage, error)
}

var dbProvider DBProvider

// SetDBProvider installs the connection resolver used by the database source.
func SetDBProvider(p DBProvider) { dbProvider = p }

// databaseSource imports the result of one query on an external database.
type databaseSource struct{}

func init() { etl.RegisterSource(&databaseSource{}) }

func (s *databaseSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "database",
		Label: "Database Query",
		ConfigFields: []etl.ConfigField{
			{Key: "connection", Label: "Connection", Type: "connection", Required: true, Help: "Connection name from the config file"},
			{Key: "query", Label: "Query", Type: "textarea", Required: true, Help: "SELECT statement, or a JSON find/aggregate document for MongoDB"},
			{Key: "limit", Label: "Row Limit", Type: "string", Default: "10000"},
		},
	}
}

type dbQuery struct {
	connection string
	query      string
	limit      int
}

func parseDBQuery(cfg etl.SourceConfig) (dbQuery, error) {
	q := dbQuery{
		connection: etl.StringConfig(cfg, "connection", ""),
		query:      etl.StringConfig(cfg, "query", ""),
	}
	if q.connection == "" || q.query == "" {
		return q, errors.New("connection and query are required")
	}
	if dbProvider == nil {
		return q, errors.New("no database connections are configured")
	}
	if raw, ok := cfg["limit"]; ok && raw != nil && raw != "" {
		limit, err := cast.ToIntE(raw)
		if err != nil || limit < 0 {
			return q, fmt.Errorf("limit must be a non-negative integer, got %v", raw)
		}
		q.limit = limit
	}
	return q, nil
}

func (s *databaseSource) Discover(ctx context.Context, cfg etl.SourceConfig) (etl.Columns, error) {
	q, err := parseDBQuery(cfg)
	if err != nil {
		return nil, err
	}
	page, err := dbProvider.QueryConnection(ctx, q.connection, q.query, 1)
	if err != nil {
		return nil, err
	}
	return lo.Map(page.Columns, func(name string, _ int) etl.Column {
		return etl.Column{Name: name, Kind: "text"}
	}), nil
}

func (s *databaseSource) Read(ctx context.Context, cfg etl.SourceConfig) (<-chan etl.Record, <-chan error) {
	return emitAll(ctx, func() ([]etl.Record, error) {
		q, err := parseDBQuery(cfg)
		if err != nil {
			return nil, err
		}
		page, err := dbProvider.QueryConnection(ctx, q.connection, q.query, q.limit)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", q.connection, err)
		}
		return pageRecords(page), nil
	})
}

// pageRecords zips each result row with the column names. Short rows leave
// the trailing columns out.
func pageRecords(page *dbclient.QueryPage) []etl.Record {
	return lo.Map(page.Rows, func(row []any, _ int) etl.Record {
		data := make(map[string]any, len(page.Columns))
		for i, v := range row {
			if i < len(page.Columns) {
				data[page.Columns[i]] = v
			}
		}
		return etl.Record{Data: data}
	})
}
