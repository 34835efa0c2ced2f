package sheetmap

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Metadata is the declarative YAML form of sheet and column settings. It sits
// between the schema and imperative overrides in precedence.
//
//	sheet:
//	  name: Employees
//	  start_row: 1
//	columns:
//	  - field: Salary
//	    title: Monthly salary
//	    formatter: currency
type Metadata struct {
	Sheet   *SheetMetadata   `yaml:"sheet"`
	Columns []ColumnMetadata `yaml:"columns"`
}

type SheetMetadata struct {
	Index           *int   `yaml:"index"`
	Name            string `yaml:"name"`
	HeaderRow       *int   `yaml:"header_row"`
	StartRow        *int   `yaml:"start_row"`
	MaxColumns      *int   `yaml:"max_columns"`
	AutoColumnWidth *bool  `yaml:"auto_column_width"`
}

type ColumnMetadata struct {
	Field     string `yaml:"field"`
	Index     *int   `yaml:"index"`
	Title     string `yaml:"title"`
	Ignored   *bool  `yaml:"ignored"`
	Formatter string `yaml:"formatter"`
	Required  *bool  `yaml:"required"`
	MaxLength *int   `yaml:"max_length"`
	Pattern   string `yaml:"pattern"`
}

func (s *SheetMetadata) apply(c *SheetConfiguration) {
	if s.Index != nil {
		c.Index = *s.Index
	}
	if s.Name != "" {
		c.Name = s.Name
	}
	if s.StartRow != nil {
		c.StartRowIndex = *s.StartRow
		c.HeaderRowIndex = *s.StartRow - 1
	}
	if s.HeaderRow != nil {
		c.HeaderRowIndex = *s.HeaderRow
	}
	if s.MaxColumns != nil {
		c.MaxColumns = *s.MaxColumns
	}
	if s.AutoColumnWidth != nil {
		c.AutoColumnWidth = *s.AutoColumnWidth
	}
}

// ParseMetadata decodes YAML metadata.
func ParseMetadata(data []byte) (*Metadata, error) {
	var meta Metadata
	if err := yaml.UnmarshalStrict(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse sheet metadata: %w", err)
	}
	return &meta, nil
}

// LoadMetadata parses YAML metadata and attaches it to the mapping, replacing
// any earlier metadata. Unknown fields and formatters are rejected here.
func (m *Mapping[T]) LoadMetadata(data []byte) error {
	meta, err := ParseMetadata(data)
	if err != nil {
		return err
	}
	return m.SetMetadata(meta)
}

// LoadMetadataFile reads YAML metadata from path.
func (m *Mapping[T]) LoadMetadataFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read sheet metadata: %w", err)
	}
	return m.LoadMetadata(data)
}

func (m *Mapping[T]) SetMetadata(meta *Metadata) error {
	if meta != nil {
		seen := make(map[string]bool)
		for _, col := range meta.Columns {
			if _, ok := m.schema.field(col.Field); !ok {
				return &ConfigurationError{Type: m.schema.Name, Field: col.Field, Reason: "metadata names an unknown field"}
			}
			if seen[col.Field] {
				return &ConfigurationError{Type: m.schema.Name, Field: col.Field, Reason: "metadata declares the field twice"}
			}
			seen[col.Field] = true
			if col.Formatter != "" {
				if _, ok := m.registry.formatter(col.Formatter); !ok {
					return &ConfigurationError{Type: m.schema.Name, Field: col.Field,
						Reason: fmt.Sprintf("unknown formatter %q", col.Formatter)}
				}
			}
		}
	}
	m.edit(func() { m.meta = meta })
	return nil
}

func (meta *Metadata) column(field string) *ColumnMetadata {
	if meta == nil {
		return nil
	}
	for i := range meta.Columns {
		if meta.Columns[i].Field == field {
			return &meta.Columns[i]
		}
	}
	return nil
}
