package codec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseArgs decodes inline JSON call arguments. Blank input means no arguments.
func ParseArgs(raw string) (any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	v, err := Decode([]byte(raw))
	if err != nil {
		return nil, &Error{Op: "args", Msg: "invalid inline arguments", Err: err}
	}
	return v, nil
}

// LoadArgsFile reads call arguments from a .json, .yaml or .yml file.
// An empty YAML document means no arguments.
func LoadArgsFile(path string) (any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(raw, &v); err != nil {
			return nil, &Error{Op: "args", Msg: "invalid args yaml", Err: err}
		}
		return NormalizeYAML(v)
	default:
		v, err := Decode(raw)
		if err != nil {
			return nil, &Error{Op: "args", Msg: "invalid args json", Err: err}
		}
		return v, nil
	}
}

// NormalizeYAML converts yaml.v3 output into the value model: mappings become
// map[string]any and non-string keys are rejected.
func NormalizeYAML(v any) (any, error) {
	return normalizeYAML(v, "$")
}

func normalizeYAML(v any, path string) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			n, err := normalizeYAML(val, path+"."+k)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			ks, ok := k.(string)
			if !ok {
				return nil, &Error{Op: "args", Path: path, Msg: fmt.Sprintf("mapping key %v is not a string", k)}
			}
			n, err := normalizeYAML(val, path+"."+ks)
			if err != nil {
				return nil, err
			}
			out[ks] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			n, err := normalizeYAML(val, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return v, nil
	}
}
