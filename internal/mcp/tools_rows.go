package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerRowTools() {
	s.mcp.AddTool(mcp.NewTool("list_rows",
		mcp.WithDescription("List the rows of a table in insertion order. A row's position is its index for delete_row."),
		mcp.WithString("database", mcp.Description("Database name"), mcp.Required()),
		mcp.WithString("table", mcp.Description("Table name"), mcp.Required()),
		mcp.WithBoolean("typed", mcp.Description("Return integer and real fields as JSON numbers")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleListRows)

	s.mcp.AddTool(mcp.NewTool("insert_rows",
		mcp.WithDescription("Insert one or more rows. Each row is a JSON object with exactly the table's fields; values should be strings. Bare numbers keep their literal text when rows is passed as a JSON string; numbers the client already decoded arrive in shortest decimal form (1.50 becomes 1.5), so quote values whose exact text matters. Stops at the first invalid row."),
		mcp.WithString("database", mcp.Description("Database name"), mcp.Required()),
		mcp.WithString("table", mcp.Description("Table name"), mcp.Required()),
		mcp.WithString("rows", mcp.Description(`A row object or a JSON array of them, e.g. [{"name":"Ann","age":"30"}]`), mcp.Required()),
	), s.handleInsertRows)

	s.mcp.AddTool(mcp.NewTool("delete_row",
		mcp.WithDescription("DESTRUCTIVE: Delete the row at a 0-based position. Later rows shift down by one."),
		mcp.WithString("database", mcp.Description("Database name"), mcp.Required()),
		mcp.WithString("table", mcp.Description("Table name"), mcp.Required()),
		mcp.WithNumber("index", mcp.Description("0-based row position"), mcp.Required()),
		mcp.WithDestructiveHintAnnotation(true),
	), s.handleDeleteRow)

	s.mcp.AddTool(mcp.NewTool("intersect_tables",
		mcp.WithDescription("Rows present in both tables. The tables must have identical schemas."),
		mcp.WithString("database", mcp.Description("Database name"), mcp.Required()),
		mcp.WithString("left", mcp.Description("First table"), mcp.Required()),
		mcp.WithString("right", mcp.Description("Second table"), mcp.Required()),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleIntersectTables)
}

func (s *Server) handleListRows(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	db := req.GetString("database", "")
	table := req.GetString("table", "")
	rows, err := s.storage.Rows(db, table, req.GetBool("typed", false))
	if err != nil {
		return toolError("list rows", err)
	}
	return jsonResult(rows)
}

func (s *Server) handleInsertRows(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	db := req.GetString("database", "")
	table := req.GetString("table", "")
	rows, err := rowsArg(req.GetArguments(), "rows")
	if err != nil {
		return toolError("insert rows", err)
	}

	indexes := make([]int, 0, len(rows))
	for i, values := range rows {
		idx, err := s.storage.InsertRow(ctx, db, table, values)
		if err != nil {
			if len(indexes) > 0 {
				err = fmt.Errorf("row %d (%d inserted before it): %w", i, len(indexes), err)
			}
			return toolError("insert rows", err)
		}
		indexes = append(indexes, idx)
	}
	return jsonResult(map[string]any{
		"message": fmt.Sprintf("Inserted %d rows into %s.%s", len(indexes), db, table),
		"indexes": indexes,
	})
}

func (s *Server) handleDeleteRow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	db := req.GetString("database", "")
	table := req.GetString("table", "")
	index, err := indexArg(req.GetArguments(), "index")
	if err != nil {
		return toolError("delete row", err)
	}
	if err := s.storage.DeleteRow(ctx, db, table, index); err != nil {
		return toolError("delete row", err)
	}
	return textResult(fmt.Sprintf("Row %d deleted from %s.%s", index, db, table)), nil
}

func (s *Server) handleIntersectTables(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, err := s.storage.Intersect(
		req.GetString("database", ""),
		req.GetString("left", ""),
		req.GetString("right", ""),
	)
	if err != nil {
		return toolError("intersect tables", err)
	}
	return jsonResult(rows)
}
