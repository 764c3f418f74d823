package sources

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cast"

	"tabledb/internal/etl"
)

// csvFileSource streams a delimited text file. Cells are passed on as the
// exact text of the file, so "007" stays "007".
type csvFileSource struct{}

func init() { etl.RegisterSource(&csvFileSource{}) }

func (s *csvFileSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "csv_file",
		Label: "CSV File",
		ConfigFields: []etl.ConfigField{
			{Key: "filePath", Label: "File Path", Type: "file", Required: true, Help: "Absolute path of the file"},
			{Key: "delimiter", Label: "Delimiter", Type: "string", Default: ",", Help: "Single character between cells"},
			{Key: "hasHeader", Label: "Has Header", Type: "select", Options: []string{"true", "false"}, Default: "true", Help: "First line names the columns; otherwise col_1, col_2, ..."},
		},
	}
}

type csvOptions struct {
	path      string
	comma     rune
	hasHeader bool
}

func parseCSVOptions(cfg etl.SourceConfig) (csvOptions, error) {
	opts := csvOptions{
		path:      etl.StringConfig(cfg, "filePath", ""),
		comma:     ',',
		hasHeader: true,
	}
	if opts.path == "" {
		return opts, errors.New("filePath is required")
	}
	if d := etl.StringConfig(cfg, "delimiter", ""); d != "" {
		if d == `\t` {
			d = "\t"
		}
		if utf8.RuneCountInString(d) != 1 {
			return opts, fmt.Errorf("delimiter must be one character, got %q", d)
		}
		opts.comma, _ = utf8.DecodeRuneInString(d)
	}
	if h := etl.StringConfig(cfg, "hasHeader", ""); h != "" {
		b, err := cast.ToBoolE(h)
		if err != nil {
			return opts, fmt.Errorf("hasHeader: %w", err)
		}
		opts.hasHeader = b
	}
	return opts, nil
}

// csvStream is an open file positioned after the header line.
type csvStream struct {
	f       *os.File
	r       *csv.Reader
	headers []string
	first   []string // first data line when the file has no header
}

func openCSV(cfg etl.SourceConfig) (*csvStream, error) {
	opts, err := parseCSVOptions(cfg)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(opts.path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	r := csv.NewReader(f)
	r.Comma = opts.comma
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	line, err := r.Read()
	if errors.Is(err, io.EOF) {
		f.Close()
		return nil, errors.New("empty csv file")
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	st := &csvStream{f: f, r: r}
	if opts.hasHeader {
		st.headers = make([]string, len(line))
		for i, h := range line {
			st.headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		}
	} else {
		st.headers = make([]string, len(line))
		for i := range line {
			st.headers[i] = fmt.Sprintf("col_%d", i+1)
		}
		st.first = line
	}
	return st, nil
}

// next returns the following data line, or io.EOF.
func (st *csvStream) next() ([]string, error) {
	if st.first != nil {
		line := st.first
		st.first = nil
		return line, nil
	}
	line, err := st.r.Read()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return line, err
}

// record maps cells to header names. Cells past the last header are dropped.
func (st *csvStream) record(line []string) etl.Record {
	data := make(map[string]any, len(st.headers))
	for i, cell := range line {
		if i < len(st.headers) {
			data[st.headers[i]] = cell
		}
	}
	return etl.Record{Data: data}
}

func (s *csvFileSource) Discover(ctx context.Context, cfg etl.SourceConfig) (etl.Columns, error) {
	st, err := openCSV(cfg)
	if err != nil {
		return nil, err
	}
	defer st.f.Close()
	cols := make(etl.Columns, len(st.headers))
	for i, h := range st.headers {
		cols[i] = etl.Column{Name: h, Kind: "text"}
	}
	return cols, nil
}

func (s *csvFileSource) Read(ctx context.Context, cfg etl.SourceConfig) (<-chan etl.Record, <-chan error) {
	out := make(chan etl.Record, 100)
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		defer close(out)

		st, err := openCSV(cfg)
		if err != nil {
			errCh <- err
			return
		}
		defer st.f.Close()
		for {
			line, err := st.next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errCh <- err
				return
			}
			select {
			case out <- st.record(line):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, errCh
}
