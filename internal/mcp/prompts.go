package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("design_table",
		mcp.WithPromptDescription("Design a table schema for a topic and create it with sample rows"),
		mcp.WithArgument("database",
			mcp.ArgumentDescription("Database to create the table in"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("topic",
			mcp.ArgumentDescription("What the table should track"),
			mcp.RequiredArgument(),
		),
	), s.handleDesignTablePrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("import_file",
		mcp.WithPromptDescription("Load a CSV or JSON file into a new or existing table"),
		mcp.WithArgument("path",
			mcp.ArgumentDescription("Path of the file to import"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("database",
			mcp.ArgumentDescription("Target database"),
			mcp.RequiredArgument(),
		),
	), s.handleImportFilePrompt)
}

func (s *Server) handleDesignTablePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	db := req.Params.Arguments["database"]
	topic := req.Params.Arguments["topic"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Design a table for: %s", topic),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Design a table tracking "%s" in database "%s". Follow these steps:

1. Use list_databases; if "%s" is missing, create it with create_database
2. Choose 3-8 fields. Use only these types: integer, real, char, string, date, date_interval
3. Create the table with create_table
4. Insert 3 realistic sample rows with insert_rows. Every row needs every field, as strings
5. Call list_rows to confirm the result

If a row is rejected, read the "field" and "expected" keys of the error and fix that value.`, topic, db, db),
				},
			},
		},
	}, nil
}

func (s *Server) handleImportFilePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	path := req.Params.Arguments["path"]
	db := req.Params.Arguments["database"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Import %s", path),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Import the file %s into database "%s". Follow these steps:

1. Call list_import_sources and pick csv_file or json_file by extension
2. Call preview_import with {"filePath": "%s"} to see the columns and a few records
3. Pick a target table: reuse one from list_tables whose fields match, or create one with create_table
4. If column names differ from the table's fields, add a rename transform (and select to drop extras)
5. Run import_rows and report rows_written and rows_rejected, with the first rejection reasons`, path, db, path),
				},
			},
		},
	}, nil
}
