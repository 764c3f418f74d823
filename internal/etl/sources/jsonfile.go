package sources

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tabledb/internal/etl"
)

// jsonFileSource reads a JSON document, or JSON Lines with one object per
// line.
type jsonFileSource struct{}

func init() { etl.RegisterSource(&jsonFileSource{}) }

func (s *jsonFileSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "json_file",
		Label: "JSON File",
		ConfigFields: []etl.ConfigField{
			{Key: "filePath", Label: "File Path", Type: "file", Required: true, Help: "Absolute path of the file"},
			{Key: "dataPath", Label: "Data Path", Type: "string", Help: "Dotted path to the record array, e.g. data.items. Empty when the root is the array."},
			{Key: "format", Label: "Format", Type: "select", Options: []string{"document", "lines"}, Help: "Defaults to lines for .jsonl and .ndjson files"},
		},
	}
}

func (s *jsonFileSource) Discover(ctx context.Context, cfg etl.SourceConfig) (etl.Columns, error) {
	records, err := loadJSONFile(cfg)
	if err != nil {
		return nil, err
	}
	return inferColumns(records), nil
}

func (s *jsonFileSource) Read(ctx context.Context, cfg etl.SourceConfig) (<-chan etl.Record, <-chan error) {
	return emitAll(ctx, func() ([]etl.Record, error) { return loadJSONFile(cfg) })
}

func loadJSONFile(cfg etl.SourceConfig) ([]etl.Record, error) {
	path := etl.StringConfig(cfg, "filePath", "")
	if path == "" {
		return nil, errors.New("filePath is required")
	}
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	format := etl.StringConfig(cfg, "format", "")
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".jsonl", ".ndjson":
			format = "lines"
		default:
			format = "document"
		}
	}
	switch format {
	case "document":
		return recordsAt(doc, etl.StringConfig(cfg, "dataPath", ""))
	case "lines":
		return jsonLines(doc)
	default:
		return nil, fmt.Errorf("unknown format %q (want document or lines)", format)
	}
}

// jsonLines decodes one object per non-blank line.
func jsonLines(doc []byte) ([]etl.Record, error) {
	var records []etl.Record
	sc := bufio.NewScanner(bytes.NewReader(doc))
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for n := 1; sc.Scan(); n++ {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		recs, err := recordsAt(line, "")
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		records = append(records, recs...)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
