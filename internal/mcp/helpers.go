package mcpserver

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"tabledb/internal/domain"
)

// rawJSONArg returns a JSON argument as bytes. Clients send structured
// arguments either as a JSON string or as an already-decoded value.
func rawJSONArg(args map[string]any, key string) ([]byte, bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, false, nil
	}
	if s, ok := v.(string); ok {
		if s == "" {
			return nil, false, nil
		}
		return []byte(s), true, nil
	}
	data, err := json.Marshal(plainNumbers(v))
	if err != nil {
		return nil, false, domain.Malformedf("%s: %v", key, err)
	}
	return data, true, nil
}

// plainNumbers rewrites the float64 values of a decoded argument as
// json.Number in plain decimal notation, so 12345678901234567890 is not
// re-encoded as 1.2345678901234567e+19. Trailing zeros of the client's text
// are already gone at this point.
func plainNumbers(v any) any {
	switch x := v.(type) {
	case float64:
		return json.Number(strconv.FormatFloat(x, 'f', -1, 64))
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = plainNumbers(item)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = plainNumbers(item)
		}
		return out
	default:
		return v
	}
}

// indexArg reads a row position. Fractional numbers are refused rather
// than truncated.
func indexArg(args map[string]any, key string) (int, error) {
	switch v := args[key].(type) {
	case nil:
		return 0, domain.Malformedf("%s is required", key)
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, domain.Malformedf("%s must be an integer, got %v", key, v)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, domain.Malformedf("%s must be an integer, got %q", key, v)
		}
		return n, nil
	default:
		return 0, domain.Malformedf("%s must be an integer, got %v", key, v)
	}
}

// parseJSONArg decodes a JSON argument into target. Missing arguments leave
// target untouched.
func parseJSONArg(args map[string]any, key string, target any) error {
	data, ok, err := rawJSONArg(args, key)
	if err != nil || !ok {
		return err
	}
	if err := json.Unmarshal(data, target); err != nil {
		return domain.Malformedf("%s is not valid JSON: %v", key, err)
	}
	return nil
}

func requireArg(args map[string]any, key string) (string, error) {
	s, _ := args[key].(string)
	if s == "" {
		return "", domain.Malformedf("%s is required", key)
	}
	return s, nil
}

// rowsArg accepts a single row object or an array of them.
func rowsArg(args map[string]any, key string) ([]map[string]string, error) {
	data, ok, err := rawJSONArg(args, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Malformedf("%s is required", key)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		items = []json.RawMessage{data}
	}
	rows := make([]map[string]string, 0, len(items))
	for i, item := range items {
		values, err := domain.DecodeRowValues(item)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows = append(rows, values)
	}
	return rows, nil
}
