package etl

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cast"

	"tabledb/internal/domain"
)

// Transformer reshapes one record on its way to the table. Returning false
// drops the record.
type Transformer interface {
	Transform(Record) (Record, bool)
}

// TransformerFunc adapts a plain function to the Transformer interface.
type TransformerFunc func(Record) (Record, bool)

func (f TransformerFunc) Transform(r Record) (Record, bool) { return f(r) }

// TransformConfig is one declarative step of a job's transform list.
type TransformConfig struct {
	Type   string         `json:"type" yaml:"type"`
	Config map[string]any `json:"config" yaml:"config"`
}

// Chain applies transformers in order and stops at the first drop.
type Chain []Transformer

func (c Chain) Transform(r Record) (Record, bool) {
	for _, t := range c {
		var keep bool
		if r, keep = t.Transform(r); !keep {
			return r, false
		}
	}
	return r, true
}

// ── filter ─────────────────────────────────────────────────

// FilterOps lists the comparison operators a filter accepts.
var FilterOps = []string{"eq", "neq", "gt", "gte", "lt", "lte", "contains", "in"}

// Filter keeps records whose Field compares true against a value. Records
// without the field are dropped.
type Filter struct {
	Field string
	Op    string
	match func(any) bool
}

// NewFilter compiles op and value into a predicate. Numeric operators drop
// values that do not parse as numbers.
func NewFilter(field, op string, value any) (*Filter, error) {
	if field == "" {
		return nil, errors.New("field is required")
	}
	f := &Filter{Field: field, Op: op}
	want := cast.ToString(value)
	switch op {
	case "eq":
		f.match = func(v any) bool { return cast.ToString(v) == want }
	case "neq":
		f.match = func(v any) bool { return cast.ToString(v) != want }
	case "contains":
		f.match = func(v any) bool { return strings.Contains(cast.ToString(v), want) }
	case "in":
		set, err := cast.ToStringSliceE(value)
		if err != nil || len(set) == 0 {
			return nil, errors.New(`"in" needs a list value`)
		}
		f.match = func(v any) bool { return slices.Contains(set, cast.ToString(v)) }
	case "gt", "gte", "lt", "lte":
		bound, err := cast.ToFloat64E(value)
		if err != nil {
			return nil, fmt.Errorf("%q needs a numeric value, got %v", op, value)
		}
		cmp := map[string]func(a float64) bool{
			"gt":  func(a float64) bool { return a > bound },
			"gte": func(a float64) bool { return a >= bound },
			"lt":  func(a float64) bool { return a < bound },
			"lte": func(a float64) bool { return a <= bound },
		}[op]
		f.match = func(v any) bool {
			a, err := cast.ToFloat64E(v)
			return err == nil && cmp(a)
		}
	default:
		return nil, fmt.Errorf("unknown op %q (want one of %s)", op, strings.Join(FilterOps, ", "))
	}
	return f, nil
}

func (f *Filter) Transform(r Record) (Record, bool) {
	v, ok := r.Data[f.Field]
	return r, ok && f.match(v)
}

// ── reshaping ──────────────────────────────────────────────

// Rename maps old field names to new ones. Other fields pass through.
type Rename map[string]string

func (m Rename) Transform(r Record) (Record, bool) {
	out := Record{Data: make(map[string]any, len(r.Data))}
	for k, v := range r.Data {
		if to, ok := m[k]; ok {
			k = to
		}
		out.Data[k] = v
	}
	return out, true
}

// Select keeps only the listed fields.
type Select []string

func (s Select) Transform(r Record) (Record, bool) {
	return Record{Data: lo.PickByKeys(r.Data, s)}, true
}

// ── stateful steps ─────────────────────────────────────────
// These remember what they saw, so every run builds a fresh chain.

type dedupe struct {
	key  string
	seen map[string]struct{}
}

// NewDedupe drops records whose key value was already seen in this run.
func NewDedupe(key string) Transformer {
	return &dedupe{key: key, seen: make(map[string]struct{})}
}

func (d *dedupe) Transform(r Record) (Record, bool) {
	k := cast.ToString(r.Data[d.key])
	if _, dup := d.seen[k]; dup {
		return r, false
	}
	d.seen[k] = struct{}{}
	return r, true
}

type limit struct {
	max, n int
}

// NewLimit passes the first max records and drops the rest.
func NewLimit(max int) Transformer { return &limit{max: max} }

func (l *limit) Transform(r Record) (Record, bool) {
	l.n++
	return r, l.n <= l.max
}

// ── building from config ───────────────────────────────────

var transformBuilders = map[string]func(cfg map[string]any) (Transformer, error){
	"filter": func(cfg map[string]any) (Transformer, error) {
		return NewFilter(cast.ToString(cfg["field"]), cast.ToString(cfg["op"]), cfg["value"])
	},
	"rename": func(cfg map[string]any) (Transformer, error) {
		mapping, err := cast.ToStringMapStringE(cfg["mapping"])
		if err != nil || len(mapping) == 0 {
			return nil, errors.New("mapping must be an object of old to new names")
		}
		return Rename(mapping), nil
	},
	"select": func(cfg map[string]any) (Transformer, error) {
		fields, err := cast.ToStringSliceE(cfg["fields"])
		if err != nil || len(fields) == 0 {
			return nil, errors.New("fields must be a list of names")
		}
		return Select(fields), nil
	},
	"dedupe": func(cfg map[string]any) (Transformer, error) {
		key := cast.ToString(cfg["key"])
		if key == "" {
			return nil, errors.New("key is required")
		}
		return NewDedupe(key), nil
	},
	"limit": func(cfg map[string]any) (Transformer, error) {
		n, err := cast.ToIntE(cfg["count"])
		if err != nil || n <= 0 {
			return nil, errors.New("count must be a positive integer")
		}
		return NewLimit(n), nil
	},
}

// BuildTransformers turns a job's transform list into a new Chain. A
// non-empty dedupeKey appends a dedupe step at the end. Config errors are
// malformed-request errors naming the step.
func BuildTransformers(configs []TransformConfig, dedupeKey string) (Chain, error) {
	chain := make(Chain, 0, len(configs)+1)
	for i, tc := range configs {
		build, ok := transformBuilders[tc.Type]
		if !ok {
			return nil, domain.Malformedf("transform %d: unknown type %q", i, tc.Type)
		}
		t, err := build(tc.Config)
		if err != nil {
			return nil, domain.Malformedf("transform %d (%s): %v", i, tc.Type, err)
		}
		chain = append(chain, t)
	}
	if dedupeKey != "" {
		chain = append(chain, NewDedupe(dedupeKey))
	}
	return chain, nil
}
