package service_test

import (
	"context"
	"reflect"
	"sync"
	"testing"

	"tabledb/internal/service"
)

// ─────────────────────────────────────────────────────────────
// RecordingEmitter
// ─────────────────────────────────────────────────────────────

func TestRecordingEmitter_NamesInOrder(t *testing.T) {
	rec := &service.RecordingEmitter{}
	ctx := context.Background()
	rec.Emit(ctx, "table:created", "shop.people")
	rec.Emit(ctx, "row:inserted", 0)
	rec.Emit(ctx, "row:inserted", 1)

	want := []string{"table:created", "row:inserted", "row:inserted"}
	if got := rec.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestRecordingEmitter_Payloads(t *testing.T) {
	rec := &service.RecordingEmitter{}
	ctx := context.Background()
	rec.Emit(ctx, "row:inserted", 0)
	rec.Emit(ctx, "row:deleted", 4)
	rec.Emit(ctx, "row:inserted", 1)

	if got := rec.Payloads("row:inserted"); !reflect.DeepEqual(got, []any{0, 1}) {
		t.Errorf("Payloads(row:inserted) = %v", got)
	}
	if got := rec.Payloads("backup:created"); len(got) != 0 {
		t.Errorf("Payloads(backup:created) = %v", got)
	}
}

func TestRecordingEmitter_Concurrent(t *testing.T) {
	rec := &service.RecordingEmitter{}
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.Emit(context.Background(), "tick", nil)
		}()
	}
	wg.Wait()
	if n := len(rec.Names()); n != 50 {
		t.Errorf("recorded %d events, want 50", n)
	}
}

func TestNopEmitter(t *testing.T) {
	var e service.EventEmitter = service.NopEmitter{}
	e.Emit(context.Background(), "anything", nil)
}
