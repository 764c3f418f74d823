// Package etl moves rows from external sources into tables: a source reads
// Records, a transform chain reshapes them, and a Destination inserts each one
// through the table's normal validation.
package etl

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/spf13/cast"
)

// SourceConfig is an opaque configuration map parsed per source type.
type SourceConfig map[string]any

// ConfigField describes a single configuration input for a source.
type ConfigField struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Type     string   `json:"type"` // "string" | "select" | "textarea" | "file" | "connection"
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
	Default  string   `json:"default,omitempty"`
	Help     string   `json:"help,omitempty"`
}

// SourceSpec describes a source type and its config fields.
type SourceSpec struct {
	Type         string        `json:"type"`
	Label        string        `json:"label"`
	ConfigFields []ConfigField `json:"configFields"`
}

// Source is implemented by every import source (etl/sources, one file each).
type Source interface {
	Spec() SourceSpec

	// Discover returns the columns the source will produce.
	Discover(ctx context.Context, cfg SourceConfig) (Columns, error)

	// Read streams records. The record channel is closed when the source is
	// exhausted or ctx is cancelled; at most one error is sent on the error
	// channel, which is closed afterwards.
	Read(ctx context.Context, cfg SourceConfig) (<-chan Record, <-chan error)
}

// ── registry ───────────────────────────────────────────────
// Each file in etl/sources registers its source from init().

var registry struct {
	sync.RWMutex
	byType map[string]Source
}

// RegisterSource makes s available under s.Spec().Type. Registering the
// same type twice panics.
func RegisterSource(s Source) {
	typ := s.Spec().Type
	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.byType[typ]; dup {
		panic("etl: source registered twice: " + typ)
	}
	if registry.byType == nil {
		registry.byType = make(map[string]Source)
	}
	registry.byType[typ] = s
}

// GetSource looks up a registered source.
func GetSource(typ string) (Source, error) {
	registry.RLock()
	s, ok := registry.byType[typ]
	registry.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown source type %q (known: %s)", typ, strings.Join(sourceTypes(), ", "))
	}
	return s, nil
}

// ListSources returns every registered spec ordered by type.
func ListSources() []SourceSpec {
	types := sourceTypes()
	registry.RLock()
	defer registry.RUnlock()
	return lo.Map(types, func(typ string, _ int) SourceSpec { return registry.byType[typ].Spec() })
}

func sourceTypes() []string {
	registry.RLock()
	defer registry.RUnlock()
	types := lo.Keys(registry.byType)
	slices.Sort(types)
	return types
}

// StringConfig returns cfg[key] as text, or def when absent or empty.
// YAML configs may carry booleans and numbers where JSON ones carry strings.
func StringConfig(cfg SourceConfig, key, def string) string {
	if v := cast.ToString(cfg[key]); v != "" {
		return v
	}
	return def
}
