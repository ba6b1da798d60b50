package shared

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadMapping reads an index mapping from a YAML or JSON file. An empty path
// yields an empty mapping.
func LoadMapping(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping: %w", err)
	}
	return ParseMapping(b)
}

func ParseMapping(b []byte) (map[string]any, error) {
	out := map[string]any{}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("parse mapping: %w", err)
	}
	return out, nil
}
