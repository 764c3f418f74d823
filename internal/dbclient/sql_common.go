package dbclient

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

const (
	pingTimeout  = 10 * time.Second
	queryTimeout = time.Minute
)

// readKeywords are the statements a SQL import may start with.
var readKeywords = map[string]bool{
	"SELECT": true, "WITH": true, "SHOW": true, "DESCRIBE": true,
	"DESC": true, "EXPLAIN": true, "PRAGMA": true, "VALUES": true,
}

// sqlConnector serves MySQL, Postgres and SQLite through database/sql.
type sqlConnector struct {
	driver string
	db     *sql.DB
}

func newSQLConnector(driver, dsn string) (*sqlConnector, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	// Imports are occasional single readers.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &sqlConnector{driver: driver, db: db}, nil
}

func (c *sqlConnector) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", c.driver, err)
	}
	return nil
}

// stripLeadingComments drops whitespace, "--" line comments and "/* */"
// block comments from the front of a statement.
func stripLeadingComments(q string) string {
	for {
		q = strings.TrimLeftFunc(q, unicode.IsSpace)
		switch {
		case strings.HasPrefix(q, "--"):
			_, rest, found := strings.Cut(q, "\n")
			if !found {
				return ""
			}
			q = rest
		case strings.HasPrefix(q, "/*"):
			_, rest, found := strings.Cut(q[2:], "*/")
			if !found {
				return ""
			}
			q = rest
		default:
			return q
		}
	}
}

// isReadQuery reports whether query is a single statement whose first
// keyword is a read. Semicolons inside string literals count as statement
// breaks, so such queries are refused.
func isReadQuery(query string) bool {
	q := stripLeadingComments(query)
	body, rest, _ := strings.Cut(q, ";")
	if stripLeadingComments(rest) != "" {
		return false
	}
	words := strings.FieldsFunc(body, func(r rune) bool { return !unicode.IsLetter(r) })
	return len(words) > 0 && readKeywords[strings.ToUpper(words[0])]
}

func (c *sqlConnector) Query(ctx context.Context, query string, limit int) (*QueryPage, error) {
	if !isReadQuery(query) {
		return nil, errors.New("only a single read statement can be imported")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanPage(rows, limit)
}

// scanPage reads up to limit rows and flags the page as truncated when more
// were available.
func scanPage(rows *sql.Rows, limit int) (*QueryPage, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	page := &QueryPage{Columns: cols, Rows: [][]any{}}

	raw := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range raw {
		dest[i] = &raw[i]
	}
	for rows.Next() {
		if len(page.Rows) >= limit {
			page.Truncated = true
			break
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(page.Rows)+1, err)
		}
		row := make([]any, len(raw))
		for i, v := range raw {
			row[i] = formatValue(v)
		}
		page.Rows = append(page.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return page, nil
}

// formatValue turns a scanned driver value into a scalar that casts to
// table text. Midnight timestamps become plain dates.
func formatValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		if h, m, s := val.Clock(); h == 0 && m == 0 && s == 0 && val.Nanosecond() == 0 {
			return val.Format(time.DateOnly)
		}
		return val.Format(time.RFC3339)
	default:
		return val
	}
}

func (c *sqlConnector) Close() error {
	return c.db.Close()
}
