// Package httpapi serves the table API consumed by the browser form UI.
package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"tabledb/internal/service"
)

// Services are the collaborators the handlers call into. Imports and
// Backups may be nil; their routes then answer 404.
type Services struct {
	Storage *service.StorageService
	Imports *service.ImportService
	Backups *service.BackupService
	Events  *Hub
}

// Server is the HTTP front of tabledb.
type Server struct {
	echo      *echo.Echo
	svc       Services
	staticDir string
}

// NewServer builds the router. staticDir holds index.html and the assets
// served under /static; an empty or missing directory disables both.
func NewServer(svc Services, staticDir string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				log.Printf("http: %s %s %d %s: %v", v.Method, v.URI, v.Status, v.Latency, v.Error)
			} else {
				log.Printf("http: %s %s %d %s", v.Method, v.URI, v.Status, v.Latency)
			}
			return nil
		},
	}))

	s := &Server{echo: e, svc: svc, staticDir: staticDir}
	s.routes()
	return s
}

// staticPrefix serves the UI assets. A database of that name could never be
// reached since /static/* wins over /:db/..., so createDatabase refuses it.
const staticPrefix = "static"

func (s *Server) routes() {
	e := s.echo

	if s.staticDir != "" {
		if _, err := os.Stat(s.staticDir); err == nil {
			e.File("/", filepath.Join(s.staticDir, "index.html"))
			e.Static("/"+staticPrefix, s.staticDir)
		} else {
			log.Printf("http: static dir %s not found, UI disabled", s.staticDir)
		}
	}

	// Core table API.
	e.GET("/databases", s.listDatabases)
	e.POST("/create_database/:name", s.createDatabase)
	e.GET("/:db/tables_list", s.listTables)
	e.POST("/:db/tables", s.createTable)
	e.DELETE("/:db/tables/:table", s.dropTable)
	e.GET("/:db/tables/:table/schema", s.getSchema)
	e.GET("/:db/tables/:table/jsonschema", s.getJSONSchema)
	e.GET("/:db/tables/:table/rows", s.listRows)
	e.POST("/:db/tables/:table/rows", s.insertRow)
	e.DELETE("/:db/tables/:table/rows/:index", s.deleteRow)
	e.GET("/:db/tables/:table/intersect/:other", s.intersect)

	// Imports.
	e.POST("/:db/tables/:table/import", s.importRows)
	e.POST("/imports/preview", s.previewImport)
	e.GET("/imports/sources", s.listSources)
	e.GET("/imports/runs", s.listRuns)
	e.GET("/imports/jobs", s.listJobs)
	e.POST("/imports/jobs/:id/run", s.runJob)

	// Backups.
	e.GET("/backups", s.listBackups)
	e.POST("/backups", s.createBackup)

	if s.svc.Events != nil {
		e.GET("/events", s.svc.Events.Serve)
	}
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	log.Printf("http: listening on http://%s", addr)
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

// handleError renders domain errors through service.ErrorResponse and
// echo's own errors (unknown route, wrong method) as {"error": msg}.
func handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		_ = c.JSON(he.Code, service.ErrorBody{Error: msg})
		return
	}
	status, body := service.ErrorResponse(err)
	_ = c.JSON(status, body)
}
