package domain

// TableSnapshot is the persisted form of one table.
type TableSnapshot struct {
	Name   string
	Schema *Schema
	Rows   []Row
}

// DatabaseSnapshot is the persisted form of one database, tables in creation order.
type DatabaseSnapshot struct {
	Name   string
	Tables []TableSnapshot
}

// CatalogStore persists databases. The catalog calls SaveDatabase after every
// mutation with the full post-mutation snapshot of the affected database.
type CatalogStore interface {
	// LoadDatabases returns every persisted database in a deterministic order.
	LoadDatabases() ([]DatabaseSnapshot, error)

	// SaveDatabase replaces the persisted state of snap.Name.
	SaveDatabase(snap *DatabaseSnapshot) error

	Close() error
}
