package service

import (
	"context"
	"sync"

	"github.com/samber/lo"
)

// EventEmitter publishes change notifications. The HTTP layer implements it
// with a websocket hub; services given nil fall back to NopEmitter.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// NopEmitter discards every event.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, string, any) {}

// RecordedEvent is one call captured by a RecordingEmitter.
type RecordedEvent struct {
	Name string
	Data any
}

// RecordingEmitter keeps every emitted event in memory. Tests use it to
// assert what a service announced.
type RecordingEmitter struct {
	mu     sync.Mutex
	events []RecordedEvent
}

func (r *RecordingEmitter) Emit(_ context.Context, event string, data any) {
	r.mu.Lock()
	r.events = append(r.events, RecordedEvent{Name: event, Data: data})
	r.mu.Unlock()
}

// Names returns the recorded event names in emission order.
func (r *RecordingEmitter) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Map(r.events, func(e RecordedEvent, _ int) string { return e.Name })
}

// Payloads returns the data of every event called name.
func (r *RecordingEmitter) Payloads(name string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	matching := lo.Filter(r.events, func(e RecordedEvent, _ int) bool { return e.Name == name })
	return lo.Map(matching, func(e RecordedEvent, _ int) any { return e.Data })
}
