package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cast"

	"tabledb/internal/etl"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 64 << 20

// httpSource fetches a JSON document from a REST endpoint.
type httpSource struct {
	client *http.Client
}

func init() { etl.RegisterSource(&httpSource{client: &http.Client{Timeout: 30 * time.Second}}) }

func (s *httpSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "http",
		Label: "HTTP API",
		ConfigFields: []etl.ConfigField{
			{Key: "url", Label: "URL", Type: "string", Required: true, Help: "Endpoint returning JSON"},
			{Key: "method", Label: "Method", Type: "select", Options: []string{"GET", "POST"}, Default: "GET"},
			{Key: "headers", Label: "Headers", Type: "textarea", Help: `JSON object, e.g. {"Authorization": "Bearer ..."}`},
			{Key: "body", Label: "Body", Type: "textarea", Help: "Request body sent with POST"},
			{Key: "dataPath", Label: "Data Path", Type: "string", Help: "Dotted path to the record array, e.g. data.items"},
		},
	}
}

// httpRequest is the parsed form of an http source config.
type httpRequest struct {
	url      string
	method   string
	headers  map[string]string
	body     string
	dataPath string
}

func parseHTTPConfig(cfg etl.SourceConfig) (*httpRequest, error) {
	r := &httpRequest{
		url:      etl.StringConfig(cfg, "url", ""),
		method:   strings.ToUpper(etl.StringConfig(cfg, "method", http.MethodGet)),
		body:     etl.StringConfig(cfg, "body", ""),
		dataPath: etl.StringConfig(cfg, "dataPath", ""),
	}
	if r.url == "" {
		return nil, fmt.Errorf("url is required")
	}
	switch h := cfg["headers"]; h {
	case nil, "":
	default:
		// A JSON object string from the UI or a map from YAML job files.
		headers, err := cast.ToStringMapStringE(h)
		if err != nil {
			return nil, fmt.Errorf("headers must be a JSON object: %w", err)
		}
		r.headers = headers
	}
	return r, nil
}

func (s *httpSource) Discover(ctx context.Context, cfg etl.SourceConfig) (etl.Columns, error) {
	records, err := s.fetch(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return inferColumns(records), nil
}

func (s *httpSource) Read(ctx context.Context, cfg etl.SourceConfig) (<-chan etl.Record, <-chan error) {
	return emitAll(ctx, func() ([]etl.Record, error) { return s.fetch(ctx, cfg) })
}

func (s *httpSource) fetch(ctx context.Context, cfg etl.SourceConfig) ([]etl.Record, error) {
	r, err := parseHTTPConfig(cfg)
	if err != nil {
		return nil, err
	}
	var body io.Reader
	if r.body != "" {
		body = strings.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", r.method, r.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s %s: status %d: %s", r.method, r.url, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	doc, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return recordsAt(doc, r.dataPath)
}
