package pei

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ParseJSONObject decodes a JSON object from generated text. It tries the text
// as-is first, then the substring from the first '{' to the last '}'.
func ParseJSONObject(text string, out any) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return &GenerationParseError{Err: errors.New("empty response")}
	}
	strictErr := json.Unmarshal([]byte(trimmed), out)
	if strictErr == nil {
		return nil
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end <= start {
		return &GenerationParseError{Snippet: snippet(trimmed, 120), Err: strictErr}
	}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), out); err != nil {
		return &GenerationParseError{Snippet: snippet(trimmed, 120), Err: err}
	}
	return nil
}

func decodeObject(text string) (map[string]any, error) {
	var m map[string]any
	if err := ParseJSONObject(text, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, &GenerationParseError{Snippet: snippet(text, 120), Err: errors.New("not a JSON object")}
	}
	return m, nil
}

// requirePaths checks dotted paths in order and reports the first one that is absent or null.
func requirePaths(m map[string]any, paths []string) error {
	for _, p := range paths {
		if !hasPath(m, p) {
			return &GenerationSchemaError{Field: p}
		}
	}
	return nil
}

func hasPath(m map[string]any, path string) bool {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return false
		}
		v, ok := obj[part]
		if !ok || v == nil {
			return false
		}
		cur = v
	}
	return true
}

// requireScore reads an integer score in [0,100]; numeric strings are accepted.
func requireScore(m map[string]any, key string) (int, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return 0, &GenerationSchemaError{Field: key}
	}
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case string:
		n, ok := leadingNumber(v)
		if !ok {
			return 0, &GenerationSchemaError{Field: key, Reason: fmt.Sprintf("not a number: %q", v)}
		}
		f = n
	default:
		return 0, &GenerationSchemaError{Field: key, Reason: fmt.Sprintf("unexpected type %T", raw)}
	}
	score := int(math.Round(f))
	if score < 0 || score > 100 {
		return 0, &GenerationSchemaError{Field: key, Reason: fmt.Sprintf("out of range [0,100]: %d", score)}
	}
	return score, nil
}

// decodeInto maps a validated object onto a typed document. Type mismatches
// surface as schema errors naming the offending field.
func decodeInto(m map[string]any, out any) error {
	b, err := json.Marshal(m)
	if err != nil {
		return &GenerationParseError{Err: err}
	}
	if err := json.Unmarshal(b, out); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			field := te.Field
			if field == "" {
				field = "(root)"
			}
			return &GenerationSchemaError{Field: field, Reason: "expected " + te.Type.String() + ", got " + te.Value}
		}
		return &GenerationSchemaError{Field: "(document)", Reason: err.Error()}
	}
	return nil
}
