package storage

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"tabledb/internal/etl"
)

// ── Import run logs ────────────────────────────────────────
// SQLiteStore doubles as the durable etl.RunLogStore.

func (s *SQLiteStore) CreateRunLog(l *etl.RunLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	_, err := s.conn.Exec(
		`INSERT INTO import_runs (id, job_id, database_name, table_name, source_type,
		 started_at, finished_at, status, rows_read, rows_written, rows_rejected, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.JobID, l.Database, l.Table, l.SourceType,
		l.StartedAt, l.FinishedAt, l.Status, l.RowsRead, l.RowsWritten, l.RowsRejected, l.Error,
	)
	return errors.Wrap(err, "insert import run")
}

func (s *SQLiteStore) ListRunLogs(limit int) ([]etl.RunLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.conn.Query(
		`SELECT id, job_id, database_name, table_name, source_type, started_at, finished_at,
		 status, rows_read, rows_written, rows_rejected, error
		 FROM import_runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list import runs")
	}
	defer rows.Close()

	var logs []etl.RunLog
	for rows.Next() {
		var l etl.RunLog
		var finished sql.NullTime
		if err := rows.Scan(
			&l.ID, &l.JobID, &l.Database, &l.Table, &l.SourceType, &l.StartedAt, &finished,
			&l.Status, &l.RowsRead, &l.RowsWritten, &l.RowsRejected, &l.Error,
		); err != nil {
			return nil, errors.Wrap(err, "scan import run")
		}
		if finished.Valid {
			l.FinishedAt = finished.Time
		}
		logs = append(logs, l)
	}
	return logs, errors.Wrap(rows.Err(), "list import runs")
}
