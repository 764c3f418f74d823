package dbclient

import (
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"tabledb/internal/domain"
)

// buildMySQLDSN formats the connection through the driver's own Config so
// credentials with ':' or '@' survive.
func buildMySQLDSN(conn *domain.ExternalConnection, password string) string {
	port := conn.Port
	if port == 0 {
		port = 3306
	}
	cfg := mysql.NewConfig()
	cfg.User = conn.Username
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(conn.Host, strconv.Itoa(port))
	cfg.DBName = conn.Database
	cfg.ParseTime = true
	if conn.SSLMode == "require" {
		cfg.TLSConfig = "true"
	}
	if len(conn.Options) > 0 {
		cfg.Params = make(map[string]string, len(conn.Options))
		for k, v := range conn.Options {
			cfg.Params[k] = v
		}
	}
	return cfg.FormatDSN()
}
