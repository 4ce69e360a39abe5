package store

import (
	"bytes"
	"encoding/json"
)

// CanonicalJSON encodes v as compact JSON with stable map-key ordering (per
// encoding/json) and HTML escaping disabled, so strings such as "<-" reach the
// interpreter verbatim.
func CanonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// IndentedJSON is the human-facing variant used for result files and CLI output.
func IndentedJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
