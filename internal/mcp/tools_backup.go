package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"tabledb/internal/storage"
)

func (s *Server) registerBackupTools() {
	s.mcp.AddTool(mcp.NewTool("backup_now",
		mcp.WithDescription("Write a compressed snapshot of every database to the backup directory"),
	), s.handleBackupNow)

	s.mcp.AddTool(mcp.NewTool("list_backups",
		mcp.WithDescription("List backup files, newest first"),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleListBackups)
}

func (s *Server) handleBackupNow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, err := s.backups.BackupNow(ctx)
	if err != nil {
		return toolError("backup", err)
	}
	return jsonResult(info)
}

func (s *Server) handleListBackups(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.backups.List()
	if err != nil {
		return toolError("list backups", err)
	}
	if list == nil {
		list = []storage.BackupInfo{}
	}
	return jsonResult(list)
}
