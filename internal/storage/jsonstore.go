package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"tabledb/internal/domain"
)

const jsonExt = ".json"

// jsonDatabase is the on-disk layout of one <db>.json file:
//
//	{"tables": {"<table>": {"schema": {"<field>": "<type>"}, "rows": [{...}]}}}
type jsonDatabase struct {
	Tables *orderedmap.OrderedMap[string, jsonTable] `json:"tables"`
}

type jsonTable struct {
	Schema *domain.Schema     `json:"schema"`
	Rows   []json.RawMessage `json:"rows"`
}

// JSONDirStore keeps one indented JSON file per database in a directory.
type JSONDirStore struct {
	dir string
}

// NewJSONDirStore creates dir if needed and returns a store rooted there.
func NewJSONDirStore(dir string) (*JSONDirStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "create database directory")
	}
	return &JSONDirStore{dir: dir}, nil
}

func (s *JSONDirStore) Dir() string { return s.dir }

// LoadDatabases reads every <name>.json file in the directory, sorted by
// name. Other files are ignored.
func (s *JSONDirStore) LoadDatabases() ([]domain.DatabaseSnapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(err, "read database directory")
	}

	var out []domain.DatabaseSnapshot
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), jsonExt) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), jsonExt)
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "read database %q", name)
		}
		snap, err := decodeJSONDatabase(name, data)
		if err != nil {
			return nil, errors.Wrapf(err, "decode database %q", name)
		}
		out = append(out, snap)
	}
	return out, nil
}

// SaveDatabase rewrites <name>.json atomically.
func (s *JSONDirStore) SaveDatabase(snap *domain.DatabaseSnapshot) error {
	data, err := encodeJSONDatabase(snap)
	if err != nil {
		return errors.Wrapf(err, "encode database %q", snap.Name)
	}
	return writeFileAtomic(filepath.Join(s.dir, snap.Name+jsonExt), data)
}

func (s *JSONDirStore) Close() error { return nil }

func encodeJSONDatabase(snap *domain.DatabaseSnapshot) ([]byte, error) {
	doc := jsonDatabase{Tables: orderedmap.New[string, jsonTable](len(snap.Tables))}
	for _, t := range snap.Tables {
		jt := jsonTable{Schema: t.Schema, Rows: make([]json.RawMessage, 0, len(t.Rows))}
		for _, r := range t.Rows {
			raw, err := t.Schema.OrderRow(r).MarshalJSON()
			if err != nil {
				return nil, err
			}
			jt.Rows = append(jt.Rows, raw)
		}
		doc.Tables.Set(t.Name, jt)
	}
	return json.MarshalIndent(doc, "", "    ")
}

func decodeJSONDatabase(name string, data []byte) (domain.DatabaseSnapshot, error) {
	snap := domain.DatabaseSnapshot{Name: name}
	var doc jsonDatabase
	if err := json.Unmarshal(data, &doc); err != nil {
		return snap, err
	}
	if doc.Tables == nil {
		return snap, nil
	}
	for pair := doc.Tables.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Schema == nil {
			return snap, errors.Errorf("table %q has no schema", pair.Key)
		}
		ts := domain.TableSnapshot{Name: pair.Key, Schema: pair.Value.Schema}
		for i, raw := range pair.Value.Rows {
			values, err := domain.DecodeRowValues(raw)
			if err != nil {
				return snap, errors.Wrapf(err, "table %q row %d", pair.Key, i)
			}
			ts.Rows = append(ts.Rows, domain.Row(values))
		}
		snap.Tables = append(snap.Tables, ts)
	}
	return snap, nil
}

// writeFileAtomic writes data to a temp file in the target's directory and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "sync %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(err, "rename into %s", path)
	}
	return nil
}
