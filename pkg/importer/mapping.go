package importer

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Project fields a column can map to.
const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldType        = "type"
	FieldImageURL    = "image_url"
)

// MappingConfig represents the YAML mapping configuration
type MappingConfig struct {
	Version     int                    `yaml:"version"`
	DefaultType string                 `yaml:"default_type"`
	Sheets      map[string]SheetConfig `yaml:"sheets"`
}

// SheetConfig maps the headers of one sheet to project fields. The sheet
// key "*" applies to any sheet without its own entry.
type SheetConfig struct {
	DefaultType string                  `yaml:"default_type"`
	Columns     map[string]ColumnConfig `yaml:"columns"`
	Aliases     map[string][]string     `yaml:"aliases"`
}

type ColumnConfig struct {
	Field string `yaml:"field"`
}

// DefaultMapping accepts any sheet with Name/Description/Type/Image URL
// headers.
func DefaultMapping() *MappingConfig {
	return &MappingConfig{
		Version:     1,
		DefaultType: "DEFAULT",
		Sheets: map[string]SheetConfig{
			"*": {
				Columns: map[string]ColumnConfig{
					"Name":        {Field: FieldName},
					"Description": {Field: FieldDescription},
					"Type":        {Field: FieldType},
					"Image URL":   {Field: FieldImageURL},
				},
				Aliases: map[string][]string{
					"Name":        {"Project", "Project Name", "Title"},
					"Description": {"Summary", "Notes"},
					"Type":        {"Project Type", "Kind"},
					"Image URL":   {"Image", "ImageUrl", "Cover"},
				},
			},
		},
	}
}

// LoadMapping reads a mapping file, or returns DefaultMapping when path is
// empty.
func LoadMapping(path string) (*MappingConfig, error) {
	if path == "" {
		return DefaultMapping(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg MappingConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(cfg.Sheets) == 0 {
		return nil, fmt.Errorf("%s defines no sheets", path)
	}
	for sheet, sc := range cfg.Sheets {
		for header, col := range sc.Columns {
			switch col.Field {
			case FieldName, FieldDescription, FieldType, FieldImageURL:
			default:
				return nil, fmt.Errorf("sheet %q column %q: unknown field %q", sheet, header, col.Field)
			}
		}
	}
	return &cfg, nil
}

// SheetFor returns the configuration for the named sheet.
func (m *MappingConfig) SheetFor(name string) (SheetConfig, bool) {
	if sc, ok := m.Sheets[name]; ok {
		return sc, true
	}
	sc, ok := m.Sheets["*"]
	return sc, ok
}

// FieldFor resolves a header, or one of its aliases, to a project field.
// Matching ignores case and surrounding space.
func (s SheetConfig) FieldFor(header string) (string, bool) {
	h := strings.TrimSpace(header)
	if h == "" {
		return "", false
	}
	for name, col := range s.Columns {
		if strings.EqualFold(name, h) {
			return col.Field, true
		}
		for _, alias := range s.Aliases[name] {
			if strings.EqualFold(alias, h) {
				return col.Field, true
			}
		}
	}
	return "", false
}
