package service

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"tabledb/internal/domain"
	"tabledb/internal/etl"
)

// ─────────────────────────────────────────────────────────────
// Import Service: runs import jobs into tables
// ─────────────────────────────────────────────────────────────

// JobNotFoundError is returned for an id that no configured job has.
type JobNotFoundError struct{ ID string }

func (e *JobNotFoundError) Error() string     { return fmt.Sprintf("import job %q does not exist", e.ID) }
func (e *JobNotFoundError) Kind() domain.Kind { return domain.KindNotFound }

// JobRunningError is returned when a job is started while it still runs.
type JobRunningError struct{ ID string }

func (e *JobRunningError) Error() string     { return fmt.Sprintf("import job %q is already running", e.ID) }
func (e *JobRunningError) Kind() domain.Kind { return domain.KindConflict }

// ImportOptions tunes run timeouts and file-watch debouncing.
type ImportOptions struct {
	RunTimeout    time.Duration
	WatchDebounce time.Duration
}

// ImportService runs configured jobs on demand, on a cron schedule or when a
// watched file changes, and one-off imports from request bodies.
type ImportService struct {
	storage     *StorageService
	runs        etl.RunLogStore
	emitter     EventEmitter
	opts        ImportOptions
	jobs        []etl.Job
	runningJobs jobSet

	// watcher / cron lifecycle
	mu          sync.Mutex
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

func NewImportService(
	storage *StorageService,
	runs etl.RunLogStore,
	emitter EventEmitter,
	jobs []etl.Job,
	opts ImportOptions,
) *ImportService {
	if runs == nil {
		runs = etl.NewMemoryRunLogs(200)
	}
	if emitter == nil {
		emitter = NopEmitter{}
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 5 * time.Minute
	}
	if opts.WatchDebounce <= 0 {
		opts.WatchDebounce = 500 * time.Millisecond
	}
	return &ImportService{
		storage: storage,
		runs:    runs,
		emitter: emitter,
		opts:    opts,
		jobs:    jobs,
	}
}

// ── Jobs ───────────────────────────────────────────────────

// JobStatus is a configured job plus whether it is running now.
type JobStatus struct {
	etl.Job
	Running bool `json:"running"`
}

func (s *ImportService) Jobs() []JobStatus {
	running := make(map[string]bool)
	for _, id := range s.runningJobs.ids() {
		running[id] = true
	}
	out := make([]JobStatus, len(s.jobs))
	for i, j := range s.jobs {
		out[i] = JobStatus{Job: j, Running: running[j.ID]}
	}
	return out
}

func (s *ImportService) job(id string) (*etl.Job, error) {
	for i := range s.jobs {
		if s.jobs[i].ID == id {
			return &s.jobs[i], nil
		}
	}
	return nil, &JobNotFoundError{ID: id}
}

// RunJob runs a configured job synchronously.
func (s *ImportService) RunJob(ctx context.Context, id string) (*etl.Result, error) {
	job, err := s.job(id)
	if err != nil {
		return nil, err
	}
	release, ok := s.runningJobs.acquire(id)
	if !ok {
		return nil, &JobRunningError{ID: id}
	}
	defer release()
	return s.run(ctx, job)
}

// ImportRequest is the body of POST /{db}/tables/{table}/import.
type ImportRequest struct {
	SourceType   string                `json:"source_type"`
	SourceConfig etl.SourceConfig      `json:"source_config"`
	Transforms   []etl.TransformConfig `json:"transforms"`
	DedupeKey    string                `json:"dedupe_key"`
}

func (r *ImportRequest) job(db, table string) *etl.Job {
	return &etl.Job{
		Database:     db,
		Table:        table,
		SourceType:   r.SourceType,
		SourceConfig: r.SourceConfig,
		Transforms:   r.Transforms,
		DedupeKey:    r.DedupeKey,
		Trigger:      etl.TriggerManual,
	}
}

// Import runs a one-off import into db.table.
func (s *ImportService) Import(ctx context.Context, db, table string, req ImportRequest) (*etl.Result, error) {
	return s.run(ctx, req.job(db, table))
}

// Preview reads up to maxRows transformed records without writing.
func (s *ImportService) Preview(ctx context.Context, req ImportRequest, maxRows int) (*PreviewResult, error) {
	previewCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	engine := &etl.Engine{}
	records, cols, err := engine.Preview(previewCtx, req.job("", ""), maxRows)
	if err != nil {
		return nil, err
	}
	return &PreviewResult{Columns: cols, Records: records}, nil
}

// PreviewResult is the response of Preview.
type PreviewResult struct {
	Columns etl.Columns  `json:"columns"`
	Records []etl.Record `json:"records"`
}

func (s *ImportService) ListSources() []etl.SourceSpec {
	return etl.ListSources()
}

func (s *ImportService) ListRuns(limit int) ([]etl.RunLog, error) {
	return s.runs.ListRunLogs(limit)
}

func (s *ImportService) run(ctx context.Context, job *etl.Job) (*etl.Result, error) {
	engine := &etl.Engine{
		Dest: &etl.TableWriter{Target: s.storage.ImportTarget()},
	}

	runCtx, cancel := context.WithTimeout(ctx, s.opts.RunTimeout)
	defer cancel()

	start := time.Now()
	result, runErr := engine.Run(runCtx, job)

	runLog := &etl.RunLog{
		ID:           result.RunID,
		JobID:        job.ID,
		Database:     job.Database,
		Table:        job.Table,
		SourceType:   job.SourceType,
		StartedAt:    start,
		FinishedAt:   time.Now(),
		Status:       result.Status,
		RowsRead:     result.RowsRead,
		RowsWritten:  result.RowsWritten,
		RowsRejected: result.RowsRejected,
		Error:        result.Error,
	}
	if err := s.runs.CreateRunLog(runLog); err != nil {
		log.Printf("import: failed to record run %s: %v", result.RunID, err)
	}

	log.Printf("import: %s.%s from %s: %s (read %d, written %d, rejected %d)",
		job.Database, job.Table, job.SourceType, result.Status,
		result.RowsRead, result.RowsWritten, result.RowsRejected)

	if result.RowsWritten > 0 {
		s.emitter.Emit(ctx, EventImportCompleted, map[string]any{
			"database": job.Database,
			"table":    job.Table,
			"jobId":    job.ID,
			"runId":    result.RunID,
			"status":   result.Status,
			"written":  result.RowsWritten,
		})
	}
	return result, runErr
}

// ── Watchers (cron + file_watch) ──────────────────────────

// Start schedules the cron jobs and file watchers of every enabled job.
// Runs triggered from here use ctx as their parent.
func (s *ImportService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopWatchersLocked()

	var scheduled, watched []etl.Job
	for _, j := range s.jobs {
		if j.Disabled {
			continue
		}
		switch j.Trigger {
		case etl.TriggerSchedule:
			scheduled = append(scheduled, j)
		case etl.TriggerFileWatch:
			watched = append(watched, j)
		}
	}

	if len(scheduled) > 0 {
		c := cron.New()
		for _, j := range scheduled {
			jid := j.ID
			if _, err := c.AddFunc(j.Schedule, func() {
				log.Printf("import cron: running job %s", jid)
				if _, err := s.RunJob(ctx, jid); err != nil {
					log.Printf("import cron: job %s failed: %v", jid, err)
				}
			}); err != nil {
				return fmt.Errorf("job %s: invalid schedule %q: %w", jid, j.Schedule, err)
			}
		}
		c.Start()
		s.cronSched = c
		log.Printf("import cron: scheduled %d job(s)", len(scheduled))
	}

	if len(watched) == 0 {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	s.watcher = watcher

	pathToJob := make(map[string]string)
	debouncers := make(map[string]func(func()))
	watchedDirs := make(map[string]bool)
	for _, j := range watched {
		absPath, err := filepath.Abs(j.WatchPath)
		if err != nil {
			log.Printf("import watcher: bad path %q: %v", j.WatchPath, err)
			continue
		}
		pathToJob[absPath] = j.ID
		debouncers[j.ID] = debounce.New(s.opts.WatchDebounce)

		// Watch the directory so editors that replace the file are seen.
		dir := filepath.Dir(absPath)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				log.Printf("import watcher: failed to watch dir %q: %v", dir, err)
			} else {
				watchedDirs[dir] = true
			}
		}
	}

	watchCtx, cancel := context.WithCancel(ctx)
	s.watchCancel = cancel

	go func() {
		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				absPath, _ := filepath.Abs(event.Name)
				jid, ok := pathToJob[absPath]
				if !ok {
					continue
				}
				debouncers[jid](func() {
					if watchCtx.Err() != nil {
						return
					}
					log.Printf("import watcher: file changed %q, running job %s", absPath, jid)
					if _, err := s.RunJob(watchCtx, jid); err != nil {
						log.Printf("import watcher: run failed for job %s: %v", jid, err)
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("import watcher: error: %v", err)
			}
		}
	}()

	log.Printf("import watcher: watching %d file(s)", len(pathToJob))
	return nil
}

// WaitRunning blocks until all running jobs finish. It returns ctx.Err()
// when jobs are still running at the deadline.
func (s *ImportService) WaitRunning(ctx context.Context) error {
	return s.runningJobs.drain(ctx)
}

// Stop tears down all watchers and schedulers. Safe to call repeatedly.
func (s *ImportService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopWatchersLocked()
}

func (s *ImportService) stopWatchersLocked() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}
