// Package records loads school records from local JSON or YAML files.
package records

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Lllllllleong/policylocaliser/internal/models"
)

// File reads a list of schools from a .json, .yaml or .yml file.
type File struct {
	Path string
}

// Records parses the whole file. Field names match the School Directory columns.
func (f File) Records(_ context.Context) ([]models.SchoolRecord, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schools file: %w", err)
	}
	return Parse(f.Path, data)
}

// Parse decodes data according to the extension of name. Values that are not
// strings (an EstablishedYear written as a number, say) are kept as text.
func Parse(name string, data []byte) ([]models.SchoolRecord, error) {
	var raw []map[string]any
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
	default:
		return nil, fmt.Errorf("unsupported schools file type %q", ext)
	}

	schools := make([]models.SchoolRecord, 0, len(raw))
	for _, fields := range raw {
		schools = append(schools, models.SchoolFromFields(fields))
	}
	return schools, nil
}
