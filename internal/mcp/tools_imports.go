package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"tabledb/internal/domain"
	"tabledb/internal/service"
)

const transformsHelp = `Optional JSON array of transforms applied in order between source and table. Each transform is {type, config}:
- rename: {mapping: {oldName: newName}} rename columns to match the table's fields
- select: {fields: ["col1","col2"]} keep only these columns
- filter: {field, op (eq|neq|gt|gte|lt|lte|contains|in), value} drop records not matching
- dedupe: {key} drop records repeating a key value
- limit: {count} cap the number of records
Example: [{"type":"rename","config":{"mapping":{"Full Name":"name"}}},{"type":"filter","config":{"field":"age","op":"gt","value":17}}]`

func (s *Server) registerImportTools() {
	s.mcp.AddTool(mcp.NewTool("list_import_sources",
		mcp.WithDescription("List import source types with their configuration fields"),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleListImportSources)

	s.mcp.AddTool(mcp.NewTool("preview_import",
		mcp.WithDescription("Read a few transformed records from a source without writing anything"),
		mcp.WithString("sourceType", mcp.Description("Source type (see list_import_sources)"), mcp.Required()),
		mcp.WithString("sourceConfig", mcp.Description("Source configuration as a JSON object"), mcp.Required()),
		mcp.WithString("transforms", mcp.Description(transformsHelp)),
		mcp.WithNumber("limit", mcp.Description("Maximum records to return (default 10)")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handlePreviewImport)

	s.mcp.AddTool(mcp.NewTool("import_rows",
		mcp.WithDescription("Import records from a source into an existing table. Records are validated like insert_rows; invalid ones are rejected and counted without stopping the run."),
		mcp.WithString("database", mcp.Description("Database name"), mcp.Required()),
		mcp.WithString("table", mcp.Description("Table name"), mcp.Required()),
		mcp.WithString("sourceType", mcp.Description("Source type (see list_import_sources)"), mcp.Required()),
		mcp.WithString("sourceConfig", mcp.Description("Source configuration as a JSON object"), mcp.Required()),
		mcp.WithString("transforms", mcp.Description(transformsHelp)),
		mcp.WithString("dedupeKey", mcp.Description("Column used to drop duplicate records (optional)")),
	), s.handleImportRows)

	s.mcp.AddTool(mcp.NewTool("list_import_jobs",
		mcp.WithDescription("List configured import jobs and whether each is running"),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleListImportJobs)

	s.mcp.AddTool(mcp.NewTool("run_import_job",
		mcp.WithDescription("Run a configured import job now and wait for the result"),
		mcp.WithString("jobId", mcp.Description("Import job ID"), mcp.Required()),
	), s.handleRunImportJob)

	s.mcp.AddTool(mcp.NewTool("list_import_runs",
		mcp.WithDescription("Recent import runs, newest first"),
		mcp.WithNumber("limit", mcp.Description("Maximum runs to return (default 20)")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleListImportRuns)
}

// importRequest builds a service.ImportRequest from tool arguments.
func importRequest(req mcp.CallToolRequest) (service.ImportRequest, error) {
	args := req.GetArguments()
	var ir service.ImportRequest

	sourceType, err := requireArg(args, "sourceType")
	if err != nil {
		return ir, err
	}
	ir.SourceType = sourceType
	ir.DedupeKey = req.GetString("dedupeKey", "")

	if err := parseJSONArg(args, "sourceConfig", &ir.SourceConfig); err != nil {
		return ir, err
	}
	if ir.SourceConfig == nil {
		return ir, domain.Malformedf("sourceConfig is required")
	}
	if err := parseJSONArg(args, "transforms", &ir.Transforms); err != nil {
		return ir, err
	}
	return ir, nil
}

func (s *Server) handleListImportSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.imports.ListSources())
}

func (s *Server) handlePreviewImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ir, err := importRequest(req)
	if err != nil {
		return toolError("preview import", err)
	}
	limit := req.GetInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}
	preview, err := s.imports.Preview(ctx, ir, limit)
	if err != nil {
		// Source errors (missing file, bad URL) are the caller's to fix.
		return mcp.NewToolResultError(fmt.Sprintf("preview import: %v", err)), nil
	}
	return jsonResult(preview)
}

func (s *Server) handleImportRows(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ir, err := importRequest(req)
	if err != nil {
		return toolError("import rows", err)
	}
	result, err := s.imports.Import(ctx, req.GetString("database", ""), req.GetString("table", ""), ir)
	if err != nil {
		if domain.KindOf(err) != domain.KindInternal {
			return toolError("import rows", err)
		}
		return mcp.NewToolResultError(fmt.Sprintf("import rows: %v", err)), nil
	}
	return jsonResult(result)
}

func (s *Server) handleListImportJobs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.imports.Jobs())
}

func (s *Server) handleRunImportJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := req.RequireString("jobId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.imports.RunJob(ctx, jobID)
	if err != nil {
		if domain.KindOf(err) != domain.KindInternal {
			return toolError("run import job", err)
		}
		return mcp.NewToolResultError(fmt.Sprintf("run import job: %v", err)), nil
	}
	return jsonResult(result)
}

func (s *Server) handleListImportRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)
	runs, err := s.imports.ListRuns(limit)
	if err != nil {
		return toolError("list import runs", err)
	}
	return jsonResult(runs)
}
