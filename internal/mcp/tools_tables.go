package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"tabledb/internal/service"
)

func (s *Server) registerTableTools() {
	s.mcp.AddTool(mcp.NewTool("list_databases",
		mcp.WithDescription("List all database names in creation order"),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleListDatabases)

	s.mcp.AddTool(mcp.NewTool("create_database",
		mcp.WithDescription("Create an empty database"),
		mcp.WithString("name", mcp.Description("Database name (letters, digits, '_' and '-')"), mcp.Required()),
	), s.handleCreateDatabase)

	s.mcp.AddTool(mcp.NewTool("list_tables",
		mcp.WithDescription("List the tables of a database in creation order"),
		mcp.WithString("database", mcp.Description("Database name"), mcp.Required()),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleListTables)

	s.mcp.AddTool(mcp.NewTool("create_table",
		mcp.WithDescription("Create a table with a fixed schema. Every row must then supply exactly these fields."),
		mcp.WithString("database", mcp.Description("Database name"), mcp.Required()),
		mcp.WithString("table", mcp.Description("Table name"), mcp.Required()),
		mcp.WithString("schema", mcp.Description(`Ordered field definitions as a JSON object {field: type}. Types:
- integer: digits only, e.g. "42"
- real: digits with an optional fraction, e.g. "3.14"
- char: exactly one character
- string: any text
- date: YYYY-MM-DD
- date_interval: YYYY-MM-DD/YYYY-MM-DD
Example: {"name":"string","age":"integer","joined":"date"}`), mcp.Required()),
	), s.handleCreateTable)

	s.mcp.AddTool(mcp.NewTool("describe_table",
		mcp.WithDescription("Return a table's schema and the JSON Schema a row must satisfy"),
		mcp.WithString("database", mcp.Description("Database name"), mcp.Required()),
		mcp.WithString("table", mcp.Description("Table name"), mcp.Required()),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleDescribeTable)

	s.mcp.AddTool(mcp.NewTool("drop_table",
		mcp.WithDescription("DESTRUCTIVE: Delete a table and all of its rows"),
		mcp.WithString("database", mcp.Description("Database name"), mcp.Required()),
		mcp.WithString("table", mcp.Description("Table name"), mcp.Required()),
		mcp.WithDestructiveHintAnnotation(true),
	), s.handleDropTable)
}

func (s *Server) handleListDatabases(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.storage.ListDatabases())
}

func (s *Server) handleCreateDatabase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requireArg(req.GetArguments(), "name")
	if err != nil {
		return toolError("create database", err)
	}
	if err := s.storage.CreateDatabase(ctx, name); err != nil {
		return toolError("create database", err)
	}
	return textResult(fmt.Sprintf("Database %s created", name)), nil
}

func (s *Server) handleListTables(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	db, err := requireArg(req.GetArguments(), "database")
	if err != nil {
		return toolError("list tables", err)
	}
	tables, err := s.storage.ListTables(db)
	if err != nil {
		return toolError("list tables", err)
	}
	return jsonResult(tables)
}

func (s *Server) handleCreateTable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	db, err := requireArg(args, "database")
	if err != nil {
		return toolError("create table", err)
	}
	table, err := requireArg(args, "table")
	if err != nil {
		return toolError("create table", err)
	}
	schema, ok, err := rawJSONArg(args, "schema")
	if err != nil {
		return toolError("create table", err)
	}
	if !ok {
		schema = []byte("null")
	}

	// Same decoding path as POST /{db}/tables, so duplicate fields and
	// unknown types are reported identically.
	body, _ := json.Marshal(struct {
		TableName string          `json:"table_name"`
		Schema    json.RawMessage `json:"schema"`
	}{table, schema})
	ct, err := service.DecodeCreateTable(body)
	if err != nil {
		return toolError("create table", err)
	}
	if err := s.storage.CreateTable(ctx, db, ct.TableName, ct.Schema); err != nil {
		return toolError("create table", err)
	}
	return textResult(fmt.Sprintf("Table %s created in database %s", table, db)), nil
}

func (s *Server) handleDescribeTable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	db, _ := args["database"].(string)
	table, _ := args["table"].(string)

	schema, err := s.storage.Schema(db, table)
	if err != nil {
		return toolError("describe table", err)
	}
	rowSchema, err := s.storage.RowJSONSchema(db, table)
	if err != nil {
		return toolError("describe table", err)
	}
	rows, err := s.storage.Rows(db, table, false)
	if err != nil {
		return toolError("describe table", err)
	}
	return jsonResult(map[string]any{
		"schema":     schema,
		"jsonSchema": rowSchema,
		"rowCount":   len(rows),
	})
}

func (s *Server) handleDropTable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	db, _ := args["database"].(string)
	table, _ := args["table"].(string)

	if err := s.storage.DropTable(ctx, db, table); err != nil {
		return toolError("drop table", err)
	}
	return textResult(fmt.Sprintf("Table %s dropped from database %s", table, db)), nil
}
