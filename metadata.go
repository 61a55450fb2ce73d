package codepush

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// ReadJSONFromFile parses the JSON file at path into v. Update
// manifests (app.json, codepush.json) are small, so the whole file is
// read at once.
func ReadJSONFromFile(path string, v any) error {
	content, err := ReadFileToString(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(content), v); err != nil {
		return fmt.Errorf("%s: the file may be corrupted: %w", path, err)
	}
	return nil
}

// WriteJSONToFile serializes v as JSON and writes it to path.
func WriteJSONToFile(v any, path string) error {
	content, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s: encoding manifest: %w", path, err)
	}
	return WriteStringToFile(string(content), path)
}

// QueryString encodes v's top-level JSON fields as a URL query string,
// using the JSON field names as keys. Keys are sorted, so output is
// deterministic for a given value.
func QueryString(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding query fields: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", fmt.Errorf("encoding query fields: %w", err)
	}

	values := make(url.Values, len(fields))
	for name, field := range fields {
		switch field.(type) {
		case map[string]any, []any:
			// nested values are carried as JSON text, not Go syntax
			nested, err := json.Marshal(field)
			if err != nil {
				return "", fmt.Errorf("encoding query fields: %w", err)
			}
			values.Set(name, string(nested))
		default:
			values.Set(name, fmt.Sprint(field))
		}
	}
	return values.Encode(), nil
}

// ReadString drains r into a string, trimming surrounding whitespace,
// and closes it. A close failure surfaces only when the read itself
// succeeded, so it never masks the substantive error.
func ReadString(r io.ReadCloser) (string, error) {
	content, err := io.ReadAll(r)
	cerr := closeAll(r)
	if err != nil {
		return "", fmt.Errorf("reading stream: %w", err)
	}
	if cerr != nil {
		return "", fmt.Errorf("closing stream: %w", cerr)
	}
	return strings.TrimSpace(string(content)), nil
}
