package etl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"tabledb/internal/domain"
)

// ── Import job ─────────────────────────────────────────────
// source.Read → transform chain → Destination.Write, append-only.

// TriggerType says what starts a job besides an explicit run request.
type TriggerType string

const (
	TriggerManual    TriggerType = "manual"
	TriggerSchedule  TriggerType = "schedule"   // Schedule holds a cron expression
	TriggerFileWatch TriggerType = "file_watch" // WatchPath holds a file to watch
)

// Run status values.
const (
	StatusSuccess = "success"
	StatusPartial = "partial" // finished, some records rejected
	StatusError   = "error"
)

// Job is an import definition, either declared in the config file or built
// for a one-off request.
type Job struct {
	ID           string            `yaml:"id" json:"id"`
	Name         string            `yaml:"name" json:"name"`
	Database     string            `yaml:"database" json:"database"`
	Table        string            `yaml:"table" json:"table"`
	SourceType   string            `yaml:"source_type" json:"source_type"`
	SourceConfig SourceConfig      `yaml:"source_config" json:"source_config"`
	Transforms   []TransformConfig `yaml:"transforms" json:"transforms,omitempty"`
	DedupeKey    string            `yaml:"dedupe_key" json:"dedupe_key,omitempty"`
	Trigger      TriggerType       `yaml:"trigger" json:"trigger"`
	Schedule     string            `yaml:"schedule" json:"schedule,omitempty"`
	WatchPath    string            `yaml:"watch_path" json:"watch_path,omitempty"`
	Disabled     bool              `yaml:"disabled" json:"disabled,omitempty"`
}

// Validate checks that the job is complete enough to run or schedule.
func (j *Job) Validate() error {
	if j.Database == "" || j.Table == "" {
		return domain.Malformedf("import needs a database and a table")
	}
	if j.SourceType == "" {
		return domain.Malformedf("import needs a source_type")
	}
	switch j.Trigger {
	case "", TriggerManual:
	case TriggerSchedule:
		if j.Schedule == "" {
			return domain.Malformedf("job %q: schedule trigger needs a cron expression", j.ID)
		}
	case TriggerFileWatch:
		if j.WatchPath == "" {
			return domain.Malformedf("job %q: file_watch trigger needs watch_path", j.ID)
		}
	default:
		return domain.Malformedf("job %q: unknown trigger %q", j.ID, j.Trigger)
	}
	return nil
}

// Result is the outcome of one import run.
type Result struct {
	RunID        string        `json:"run_id"`
	JobID        string        `json:"job_id,omitempty"`
	Status       string        `json:"status"`
	RowsRead     int           `json:"rows_read"`
	RowsWritten  int           `json:"rows_written"`
	RowsRejected int           `json:"rows_rejected"`
	Rejections   []Rejection   `json:"rejections,omitempty"`
	Duration     time.Duration `json:"duration"`
	Error        string        `json:"error,omitempty"`
}

// RunLog is the historical record of a run.
type RunLog struct {
	ID           string    `json:"id"`
	JobID        string    `json:"job_id,omitempty"`
	Database     string    `json:"database"`
	Table        string    `json:"table"`
	SourceType   string    `json:"source_type"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Status       string    `json:"status"`
	RowsRead     int       `json:"rows_read"`
	RowsWritten  int       `json:"rows_written"`
	RowsRejected int       `json:"rows_rejected"`
	Error        string    `json:"error,omitempty"`
}

// RunLogStore keeps run history, newest first on listing.
type RunLogStore interface {
	CreateRunLog(l *RunLog) error
	ListRunLogs(limit int) ([]RunLog, error)
}

// ── Engine ─────────────────────────────────────────────────

// Engine runs import jobs against the registered sources.
type Engine struct {
	Dest Destination
}

// Run executes job end-to-end. Rows written before a failure stay written.
func (e *Engine) Run(ctx context.Context, job *Job) (*Result, error) {
	start := time.Now()
	result := &Result{RunID: uuid.New().String(), JobID: job.ID}
	fail := func(err error) (*Result, error) {
		result.Status = StatusError
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result, err
	}

	if err := job.Validate(); err != nil {
		return fail(err)
	}
	source, err := GetSource(job.SourceType)
	if err != nil {
		return fail(domain.Malformedf("%v", err))
	}
	transformers, err := BuildTransformers(job.Transforms, job.DedupeKey)
	if err != nil {
		return fail(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	recCh, errCh := source.Read(ctx, job.SourceConfig)
	out := make(chan Record)
	read := 0
	go func() {
		defer close(out)
		for rec := range recCh {
			read++
			t, keep := transformers.Transform(rec)
			if !keep {
				continue
			}
			select {
			case out <- t:
			case <-ctx.Done():
				return
			}
		}
	}()

	wres, werr := e.Dest.Write(ctx, job.Database, job.Table, out)
	cancel()
	for range out {
	}
	srcErr := <-errCh

	result.RowsRead = read
	if wres != nil {
		result.RowsWritten = wres.Written
		result.RowsRejected = wres.Rejected
		result.Rejections = wres.Rejections
	}
	if werr != nil {
		return fail(werr)
	}
	if srcErr != nil {
		return fail(fmt.Errorf("read %s: %w", job.SourceType, srcErr))
	}

	result.Status = StatusSuccess
	if result.RowsRejected > 0 {
		result.Status = StatusPartial
	}
	result.Duration = time.Since(start)
	return result, nil
}

// Preview reads up to maxRows transformed records without writing anything.
func (e *Engine) Preview(ctx context.Context, job *Job, maxRows int) ([]Record, Columns, error) {
	source, err := GetSource(job.SourceType)
	if err != nil {
		return nil, nil, domain.Malformedf("%v", err)
	}
	transformers, err := BuildTransformers(job.Transforms, job.DedupeKey)
	if err != nil {
		return nil, nil, err
	}
	cols, err := source.Discover(ctx, job.SourceConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("discover: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	recCh, errCh := source.Read(ctx, job.SourceConfig)

	var records []Record
	for rec := range recCh {
		if t, keep := transformers.Transform(rec); keep {
			records = append(records, t)
			if len(records) >= maxRows {
				break
			}
		}
	}
	cancel()
	for range recCh {
	}
	if err := <-errCh; err != nil {
		return records, cols, err
	}
	return records, cols, nil
}

// ── In-memory run history ──────────────────────────────────

// MemoryRunLogs is a bounded RunLogStore used when no durable store is configured.
type MemoryRunLogs struct {
	mu   sync.Mutex
	max  int
	logs []RunLog
}

func NewMemoryRunLogs(max int) *MemoryRunLogs {
	if max <= 0 {
		max = 100
	}
	return &MemoryRunLogs{max: max}
}

func (m *MemoryRunLogs) CreateRunLog(l *RunLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	m.logs = append(m.logs, *l)
	if len(m.logs) > m.max {
		m.logs = m.logs[len(m.logs)-m.max:]
	}
	return nil
}

func (m *MemoryRunLogs) ListRunLogs(limit int) ([]RunLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.logs) {
		limit = len(m.logs)
	}
	out := make([]RunLog, 0, limit)
	for i := len(m.logs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.logs[i])
	}
	return out, nil
}
