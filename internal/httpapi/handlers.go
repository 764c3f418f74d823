package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"tabledb/internal/domain"
	"tabledb/internal/etl"
	"tabledb/internal/service"
	"tabledb/internal/storage"
)

type messageResponse struct {
	Message string `json:"message"`
}

type insertResponse struct {
	Message string `json:"message"`
	Index   int    `json:"index"`
}

// param returns a path parameter with percent escapes decoded exactly once.
// Echo matches on URL.RawPath when the request carried escapes that Path
// cannot represent (such as %2F) and on the decoded URL.Path otherwise.
func param(c echo.Context, name string) string {
	v := c.Param(name)
	if c.Request().URL.RawPath == "" {
		return v
	}
	if un, err := url.PathUnescape(v); err == nil {
		return un
	}
	return v
}

func readBody(c echo.Context) ([]byte, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, domain.Malformedf("read body: %v", err)
	}
	return body, nil
}

func bindJSON(c echo.Context, v any) error {
	body, err := readBody(c)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return domain.Malformedf("invalid JSON body: %v", err)
	}
	return nil
}

// ── Databases ──────────────────────────────────────────────

func (s *Server) listDatabases(c echo.Context) error {
	return c.JSON(http.StatusOK, s.svc.Storage.ListDatabases())
}

func (s *Server) createDatabase(c echo.Context) error {
	name := param(c, "name")
	if name == staticPrefix {
		return &domain.InvalidNameError{Entity: "database", Name: name, Reason: "name is reserved for UI assets"}
	}
	if err := s.svc.Storage.CreateDatabase(c.Request().Context(), name); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Database " + name + " created successfully"})
}

// ── Tables ─────────────────────────────────────────────────

func (s *Server) listTables(c echo.Context) error {
	tables, err := s.svc.Storage.ListTables(param(c, "db"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tables)
}

func (s *Server) createTable(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return err
	}
	req, err := service.DecodeCreateTable(body)
	if err != nil {
		return err
	}
	db := param(c, "db")
	if err := s.svc.Storage.CreateTable(c.Request().Context(), db, req.TableName, req.Schema); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Table " + req.TableName + " created successfully in database " + db})
}

func (s *Server) dropTable(c echo.Context) error {
	db, table := param(c, "db"), param(c, "table")
	if err := s.svc.Storage.DropTable(c.Request().Context(), db, table); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Table " + table + " deleted successfully from database " + db})
}

func (s *Server) getSchema(c echo.Context) error {
	schema, err := s.svc.Storage.Schema(param(c, "db"), param(c, "table"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, schema)
}

func (s *Server) getJSONSchema(c echo.Context) error {
	schema, err := s.svc.Storage.RowJSONSchema(param(c, "db"), param(c, "table"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, schema)
}

// ── Rows ───────────────────────────────────────────────────

func (s *Server) listRows(c echo.Context) error {
	typed, _ := strconv.ParseBool(c.QueryParam("typed"))
	rows, err := s.svc.Storage.Rows(param(c, "db"), param(c, "table"), typed)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

func (s *Server) insertRow(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return err
	}
	values, err := domain.DecodeRowValues(body)
	if err != nil {
		return err
	}
	idx, err := s.svc.Storage.InsertRow(c.Request().Context(), param(c, "db"), param(c, "table"), values)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, insertResponse{Message: "Row added successfully", Index: idx})
}

func (s *Server) deleteRow(c echo.Context) error {
	idx, err := service.ParseIndex(param(c, "index"))
	if err != nil {
		return err
	}
	if err := s.svc.Storage.DeleteRow(c.Request().Context(), param(c, "db"), param(c, "table"), idx); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Row deleted successfully"})
}

func (s *Server) intersect(c echo.Context) error {
	rows, err := s.svc.Storage.Intersect(param(c, "db"), param(c, "table"), param(c, "other"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

// ── Imports ────────────────────────────────────────────────

func (s *Server) requireImports() error {
	if s.svc.Imports == nil {
		return echo.NewHTTPError(http.StatusNotFound, "imports are disabled")
	}
	return nil
}

func (s *Server) importRows(c echo.Context) error {
	if err := s.requireImports(); err != nil {
		return err
	}
	var req service.ImportRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	res, err := s.svc.Imports.Import(c.Request().Context(), param(c, "db"), param(c, "table"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) previewImport(c echo.Context) error {
	if err := s.requireImports(); err != nil {
		return err
	}
	var req service.ImportRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	res, err := s.svc.Imports.Preview(c.Request().Context(), req, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) listSources(c echo.Context) error {
	if err := s.requireImports(); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.svc.Imports.ListSources())
}

func (s *Server) listRuns(c echo.Context) error {
	if err := s.requireImports(); err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	runs, err := s.svc.Imports.ListRuns(limit)
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []etl.RunLog{}
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) listJobs(c echo.Context) error {
	if err := s.requireImports(); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.svc.Imports.Jobs())
}

func (s *Server) runJob(c echo.Context) error {
	if err := s.requireImports(); err != nil {
		return err
	}
	res, err := s.svc.Imports.RunJob(c.Request().Context(), param(c, "id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// ── Backups ────────────────────────────────────────────────

func (s *Server) listBackups(c echo.Context) error {
	if s.svc.Backups == nil {
		return echo.NewHTTPError(http.StatusNotFound, "backups are disabled")
	}
	list, err := s.svc.Backups.List()
	if err != nil {
		return err
	}
	if list == nil {
		list = []storage.BackupInfo{}
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) createBackup(c echo.Context) error {
	if s.svc.Backups == nil {
		return echo.NewHTTPError(http.StatusNotFound, "backups are disabled")
	}
	info, err := s.svc.Backups.BackupNow(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, info)
}
