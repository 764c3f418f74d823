package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/samber/lo"

	"tabledb/internal/dbclient"
	"tabledb/internal/domain"
	"tabledb/internal/secret"
)

// ─────────────────────────────────────────────────────────────
// Connection Service: external databases imports read from
// ─────────────────────────────────────────────────────────────

// ConnectionNotFoundError is returned for a connection name not in the config.
type ConnectionNotFoundError struct{ Name string }

func (e *ConnectionNotFoundError) Error() string {
	return fmt.Sprintf("connection %q is not configured", e.Name)
}
func (e *ConnectionNotFoundError) Kind() domain.Kind { return domain.KindNotFound }

// ConnectionService opens a short-lived connector per query. It implements
// sources.DBProvider for the "database" import source.
type ConnectionService struct {
	conns   map[string]domain.ExternalConnection
	secrets secret.SecretStore
}

func NewConnectionService(conns []domain.ExternalConnection, secrets secret.SecretStore) *ConnectionService {
	return &ConnectionService{
		conns:   lo.KeyBy(conns, func(c domain.ExternalConnection) string { return c.Name }),
		secrets: secrets,
	}
}

// Names lists the configured connections, sorted.
func (s *ConnectionService) Names() []string {
	names := lo.Keys(s.conns)
	slices.Sort(names)
	return names
}

func (s *ConnectionService) open(name string) (dbclient.Connector, error) {
	conn, ok := s.conns[name]
	if !ok {
		return nil, &ConnectionNotFoundError{Name: name}
	}
	password, err := secret.Password(s.secrets, conn.PasswordKey)
	if err != nil {
		return nil, err
	}
	return dbclient.NewConnector(&conn, password)
}

// Test verifies that the named connection is reachable.
func (s *ConnectionService) Test(ctx context.Context, name string) error {
	c, err := s.open(name)
	if err != nil {
		return err
	}
	defer c.Close()
	return c.TestConnection(ctx)
}

func (s *ConnectionService) QueryConnection(ctx context.Context, name, query string, limit int) (*dbclient.QueryPage, error) {
	c, err := s.open(name)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.Query(ctx, query, limit)
}
