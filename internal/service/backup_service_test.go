package service_test

import (
	"context"
	"path/filepath"
	"testing"

	"tabledb/internal/service"
	"tabledb/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// BackupService tests
// ─────────────────────────────────────────────────────────────

func TestBackupService_BackupNow(t *testing.T) {
	st, emitter := newStorage(t)
	ctx := context.Background()
	if _, err := st.InsertRow(ctx, "shop", "people", map[string]string{"name": "Ann", "age": "3", "grade": "A"}); err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(t.TempDir(), "backups")
	svc := service.NewBackupService(st, emitter, dir, 1)
	info, err := svc.BackupNow(ctx)
	if err != nil {
		t.Fatal(err)
	}

	snaps, err := storage.ReadBackup(info.Path)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 || snaps[0].Name != "shop" || len(snaps[0].Tables[0].Rows) != 1 {
		t.Errorf("unexpected backup content: %+v", snaps)
	}

	list, _ := svc.List()
	if len(list) != 1 {
		t.Errorf("expected 1 backup, got %d", len(list))
	}
	names := emitter.Names()
	if names[len(names)-1] != service.EventBackupWritten {
		t.Errorf("events = %v", names)
	}
}

func TestBackupService_Schedule(t *testing.T) {
	st, _ := newStorage(t)
	svc := service.NewBackupService(st, nil, t.TempDir(), 3)
	if err := svc.Start(context.Background(), ""); err != nil {
		t.Errorf("empty schedule should be a no-op: %v", err)
	}
	if err := svc.Start(context.Background(), "not a schedule"); err == nil {
		t.Error("expected error for invalid schedule")
	}
	if err := svc.Start(context.Background(), "@daily"); err != nil {
		t.Fatal(err)
	}
	svc.Stop()
	svc.Stop()
}
