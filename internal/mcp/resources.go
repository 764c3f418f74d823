package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const uriScheme = "tabledb://"

func (s *Server) registerResources() {
	// ── tabledb://databases ────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		uriScheme+"databases",
		"All Databases",
		mcp.WithResourceDescription("Every database with its tables"),
		mcp.WithMIMEType("application/json"),
	), s.handleDatabasesResource)

	// ── tabledb://{db}/{table}/rows ────────────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			uriScheme+"{db}/{table}/rows",
			"Rows of a Table",
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleRowsResource,
	)

	// ── tabledb://{db}/{table}/schema ──────────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			uriScheme+"{db}/{table}/schema",
			"Schema of a Table",
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleSchemaResource,
	)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleDatabasesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	type databaseSummary struct {
		Name   string   `json:"name"`
		Tables []string `json:"tables"`
	}

	names := s.storage.ListDatabases()
	summaries := make([]databaseSummary, 0, len(names))
	for _, name := range names {
		tables, err := s.storage.ListTables(name)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, databaseSummary{Name: name, Tables: tables})
	}
	return jsonContents(req.Params.URI, summaries)
}

func (s *Server) handleRowsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	db, table, err := parseTableURI(req.Params.URI, "rows")
	if err != nil {
		return nil, err
	}
	rows, err := s.storage.Rows(db, table, true)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, rows)
}

func (s *Server) handleSchemaResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	db, table, err := parseTableURI(req.Params.URI, "schema")
	if err != nil {
		return nil, err
	}
	schema, err := s.storage.Schema(db, table)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, schema)
}

// parseTableURI extracts db and table from "tabledb://{db}/{table}/{suffix}".
func parseTableURI(uri, suffix string) (string, string, error) {
	rest, ok := strings.CutPrefix(uri, uriScheme)
	if ok {
		rest, ok = strings.CutSuffix(rest, "/"+suffix)
	}
	parts := strings.Split(rest, "/")
	if !ok || len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("could not extract database and table from URI: %s", uri)
	}
	db, err := url.PathUnescape(parts[0])
	if err != nil {
		return "", "", fmt.Errorf("bad database in URI %s: %w", uri, err)
	}
	table, err := url.PathUnescape(parts[1])
	if err != nil {
		return "", "", fmt.Errorf("bad table in URI %s: %w", uri, err)
	}
	return db, table, nil
}
