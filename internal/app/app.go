// Package app wires storage, services and front ends together from a
// config.Config and runs them until the context is cancelled.
package app

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"tabledb/internal/catalog"
	"tabledb/internal/config"
	"tabledb/internal/domain"
	"tabledb/internal/etl"
	"tabledb/internal/etl/sources"
	"tabledb/internal/httpapi"
	mcpserver "tabledb/internal/mcp"
	"tabledb/internal/secret"
	"tabledb/internal/service"
	"tabledb/internal/storage"
)

// SQLiteFile is the database file name used by the sqlite backend.
const SQLiteFile = "tabledb.db"

// App owns the open store and every long-lived service.
type App struct {
	cfg   *config.Config
	store domain.CatalogStore

	Events      *httpapi.Hub
	Storage     *service.StorageService
	Imports     *service.ImportService
	Backups     *service.BackupService
	Connections *service.ConnectionService
}

// New opens the configured store, rehydrates the catalog and builds the
// services. The caller must Close the App.
func New(cfg *config.Config) (*App, error) {
	store, runLogs, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Open(store)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	log.Printf("storage: %s backend, %d database(s) loaded from %s", cfg.Backend, len(cat.DatabaseNames()), cfg.DataDir)

	secrets, err := secret.New(cfg.Secrets)
	if err != nil {
		store.Close()
		return nil, err
	}

	// Config.Validate has already checked both durations.
	debounce, _ := cfg.Imports.Debounce()
	timeout, _ := cfg.Imports.Timeout()

	hub := httpapi.NewHub()
	a := &App{cfg: cfg, store: store, Events: hub}
	a.Storage = service.NewStorageService(cat, hub)
	a.Imports = service.NewImportService(a.Storage, runLogs, hub, cfg.Imports.Jobs, service.ImportOptions{
		RunTimeout:    timeout,
		WatchDebounce: debounce,
	})
	a.Backups = service.NewBackupService(a.Storage, hub, cfg.BackupDir(), cfg.Backup.Keep)
	a.Connections = service.NewConnectionService(cfg.Connections, secrets)

	// The database import source resolves connection names through the config.
	sources.SetDBProvider(a.Connections)
	return a, nil
}

// openStore returns the catalog store for cfg.Backend and, for sqlite, the
// same store as the import run log.
func openStore(cfg *config.Config) (domain.CatalogStore, etl.RunLogStore, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		s, err := storage.NewSQLiteStore(filepath.Join(cfg.DataDir, SQLiteFile))
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, s, nil
	default:
		s, err := storage.NewJSONDirStore(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open json store: %w", err)
		}
		return s, nil, nil
	}
}

// Serve runs the HTTP server, import triggers and backup schedule until ctx
// is cancelled or one of them fails, then shuts everything down.
func (a *App) Serve(ctx context.Context) error {
	srv := httpapi.NewServer(httpapi.Services{
		Storage: a.Storage,
		Imports: a.Imports,
		Backups: a.Backups,
		Events:  a.Events,
	}, a.cfg.StaticDir)

	if err := a.Imports.Start(ctx); err != nil {
		return fmt.Errorf("start imports: %w", err)
	}
	if err := a.Backups.Start(ctx, a.cfg.Backup.Schedule); err != nil {
		a.Imports.Stop()
		return fmt.Errorf("start backups: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(a.cfg.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("http: shutting down")
		a.Imports.Stop()
		a.Backups.Stop()

		waitCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.Imports.WaitRunning(waitCtx); err != nil {
			log.Printf("imports: still running at shutdown: %v", err)
		}

		a.Events.Close()
		return srv.Shutdown(context.Background())
	})
	return g.Wait()
}

// ServeMCP serves the MCP tools on stdin/stdout. Import triggers and
// scheduled backups are not started; they belong to the HTTP process.
func (a *App) ServeMCP(ctx context.Context) error {
	srv := mcpserver.New(mcpserver.Deps{
		Storage: a.Storage,
		Imports: a.Imports,
		Backups: a.Backups,
	})

	errc := make(chan error, 1)
	go func() { errc <- srv.ServeStdio() }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return nil
	}
}

// Close releases the store.
func (a *App) Close() error {
	a.Imports.Stop()
	a.Backups.Stop()
	return a.store.Close()
}
