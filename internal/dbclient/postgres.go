package dbclient

import (
	"net"
	"net/url"
	"strconv"

	_ "github.com/lib/pq"

	"tabledb/internal/domain"
)

// buildPostgresDSN returns a postgres:// URL. Options become query
// parameters next to sslmode.
func buildPostgresDSN(conn *domain.ExternalConnection, password string) string {
	port := conn.Port
	if port == 0 {
		port = 5432
	}
	q := url.Values{}
	for k, v := range conn.Options {
		q.Set(k, v)
	}
	sslMode := conn.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q.Set("sslmode", sslMode)

	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(conn.Host, strconv.Itoa(port)),
		Path:     "/" + conn.Database,
		RawQuery: q.Encode(),
	}
	if conn.Username != "" {
		u.User = url.UserPassword(conn.Username, password)
	}
	return u.String()
}
