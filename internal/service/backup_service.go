package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tabledb/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Backup Service: compressed snapshots of the whole catalog
// ─────────────────────────────────────────────────────────────

type BackupService struct {
	storage *StorageService
	emitter EventEmitter
	dir     string
	keep    int

	mu        sync.Mutex // serializes backups and guards cronSched
	cronSched *cron.Cron
	now       func() time.Time
}

func NewBackupService(storage *StorageService, emitter EventEmitter, dir string, keep int) *BackupService {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &BackupService{storage: storage, emitter: emitter, dir: dir, keep: keep, now: time.Now}
}

// BackupNow writes a backup of every database and prunes old archives.
func (s *BackupService) BackupNow(ctx context.Context) (*storage.BackupInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := storage.WriteBackup(s.dir, s.storage.Snapshot(), s.now())
	if err != nil {
		return nil, fmt.Errorf("write backup: %w", err)
	}
	if removed, err := storage.PruneBackups(s.dir, s.keep); err != nil {
		log.Printf("backup: prune failed: %v", err)
	} else if removed > 0 {
		log.Printf("backup: pruned %d old archive(s)", removed)
	}
	s.emitter.Emit(ctx, EventBackupWritten, info)
	return info, nil
}

func (s *BackupService) List() ([]storage.BackupInfo, error) {
	return storage.ListBackups(s.dir)
}

// Start schedules BackupNow on a cron expression. An empty schedule is a no-op.
func (s *BackupService) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if _, err := s.BackupNow(ctx); err != nil {
			log.Printf("backup cron: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid backup schedule %q: %w", schedule, err)
	}

	s.mu.Lock()
	if s.cronSched != nil {
		s.cronSched.Stop()
	}
	s.cronSched = c
	s.mu.Unlock()

	c.Start()
	log.Printf("backup cron: scheduled %q into %s", schedule, s.dir)
	return nil
}

// Stop halts the schedule. Safe to call repeatedly.
func (s *BackupService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}
