// Package examfile reads exam definitions authored as JSON or YAML.
package examfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the file at path and returns the definition as JSON. Files
// ending in .yaml or .yml are converted; anything else is returned as is.
func Load(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open exam file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FromYAML(f)
	default:
		return io.ReadAll(f)
	}
}

// FromYAML decodes a YAML document and re-encodes it as JSON.
func FromYAML(r io.Reader) ([]byte, error) {
	var doc interface{}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("decode yaml: empty document")
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(normalize(doc)); err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}

// normalize turns map[interface{}]interface{} values, which YAML produces for
// non-string keys, into JSON-encodable maps.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []interface{}:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	default:
		return v
	}
}
