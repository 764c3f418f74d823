// Package catalog holds the in-memory registry of databases, tables and rows
// and keeps it in sync with a domain.CatalogStore.
package catalog

import (
	"fmt"
	"log"
	"sync"

	"tabledb/internal/domain"
)

// Catalog is the registry of databases. It is constructed explicitly and
// passed to whoever needs it; tests build isolated instances.
type Catalog struct {
	mu    sync.RWMutex
	dbs   map[string]*Database
	order []string
	store domain.CatalogStore
}

// New returns an empty catalog that flushes through store. A nil store keeps
// everything in memory.
func New(store domain.CatalogStore) *Catalog {
	return &Catalog{
		dbs:   make(map[string]*Database),
		store: store,
	}
}

// Open returns a catalog rehydrated from store. Stored rows are replayed
// through the normal validation path; a row that no longer conforms to its
// schema fails the whole load.
func Open(store domain.CatalogStore) (*Catalog, error) {
	c := New(store)
	if store == nil {
		return c, nil
	}
	snaps, err := store.LoadDatabases()
	if err != nil {
		return nil, fmt.Errorf("load databases: %w", err)
	}
	for _, snap := range snaps {
		if err := domain.ValidateName("database", snap.Name); err != nil {
			return nil, fmt.Errorf("load databases: %w", err)
		}
		if _, dup := c.dbs[snap.Name]; dup {
			return nil, fmt.Errorf("load databases: %w", &domain.DuplicateDatabaseError{Name: snap.Name})
		}
		db := newDatabase(snap.Name, store)
		if err := db.restore(snap); err != nil {
			return nil, fmt.Errorf("load database %q: %w", snap.Name, err)
		}
		c.dbs[snap.Name] = db
		c.order = append(c.order, snap.Name)
	}
	log.Printf("catalog: loaded %d databases", len(c.order))
	return c, nil
}

// CreateDatabase registers a new empty database and persists it.
func (c *Catalog) CreateDatabase(name string) (*Database, error) {
	if err := domain.ValidateName("database", name); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.dbs[name]; exists {
		return nil, &domain.DuplicateDatabaseError{Name: name}
	}
	db := newDatabase(name, c.store)
	if c.store != nil {
		snap := domain.DatabaseSnapshot{Name: name}
		if err := c.store.SaveDatabase(&snap); err != nil {
			return nil, fmt.Errorf("create database %q: %w", name, err)
		}
	}
	c.dbs[name] = db
	c.order = append(c.order, name)
	return db, nil
}

// Database returns the named database.
func (c *Catalog) Database(name string) (*Database, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	db, ok := c.dbs[name]
	if !ok {
		return nil, &domain.DatabaseNotFoundError{Name: name}
	}
	return db, nil
}

// DatabaseNames returns database names in creation order.
func (c *Catalog) DatabaseNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Snapshot returns the state of every database. Each database is captured
// under its own lock, so the result is consistent per database only.
func (c *Catalog) Snapshot() []domain.DatabaseSnapshot {
	c.mu.RLock()
	dbs := make([]*Database, 0, len(c.order))
	for _, name := range c.order {
		dbs = append(dbs, c.dbs[name])
	}
	c.mu.RUnlock()

	out := make([]domain.DatabaseSnapshot, 0, len(dbs))
	for _, db := range dbs {
		out = append(out, db.Snapshot())
	}
	return out
}
