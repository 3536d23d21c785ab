package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// writeReport serialises v as JSON or YAML depending on the file extension.
func writeReport(path string, v any) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(v, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(v)
	default:
		return fmt.Errorf("unsupported report format %q, use .json, .yaml or .yml", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
