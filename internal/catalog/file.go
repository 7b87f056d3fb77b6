package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fitpro/fitsync/internal/domain"
)

// fileCatalog is the YAML fixture layout.
type fileCatalog struct {
	Courses  []domain.Course  `yaml:"courses"`
	Workouts []domain.Workout `yaml:"workouts"`
}

// LoadFile reads a YAML catalog.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML parses a YAML catalog document.
func ParseYAML(data []byte) (*Catalog, error) {
	var fc fileCatalog
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(fc.Courses) == 0 {
		return nil, ErrEmptyCatalog
	}
	return New(fc.Courses, fc.Workouts), nil
}
