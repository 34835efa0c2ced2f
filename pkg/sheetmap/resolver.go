package sheetmap

import (
	"fmt"
	"regexp"

	"github.com/locvowork/sheetmap/pkg/workbook"
)

type direction int

const (
	exporting direction = iota
	importing
)

func (d direction) String() string {
	if d == exporting {
		return "output"
	}
	return "input"
}

// operation is a consistent copy of the mapping state used by one export or import.
type operation[T any] struct {
	set          *descriptorSet[T]
	sheet        SheetConfiguration
	dataFilter   func(*T) bool
	importFilter func(*T) bool
	validator    Validator[T]
	positional   bool
}

// validate checks the sheet settings and column indices against the limits of format.
// An unknown format has no limits.
func (o *operation[T]) validate(typeName string, format workbook.Format) error {
	if err := o.sheet.validate(typeName, format.RowCapacity()); err != nil {
		return err
	}
	limit := format.ColumnCapacity()
	if limit == 0 {
		return nil
	}
	for _, d := range o.set.columns {
		if d.index >= limit {
			return &ConfigurationError{Type: typeName, Field: d.name,
				Reason: fmt.Sprintf("column index %d exceeds the %d columns of a %s sheet", d.index, limit, format)}
		}
	}
	return nil
}

// Columns resolves the mapping and describes every column, ignored ones included.
func (m *Mapping[T]) Columns() ([]ColumnInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, err := m.resolveLocked()
	if err != nil {
		return nil, err
	}
	return set.info(), nil
}

func (m *Mapping[T]) prepare(dir direction) (*operation[T], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, err := m.resolveLocked()
	if err != nil {
		return nil, err
	}
	for _, d := range set.columns {
		if d.kind != KindComplex {
			continue
		}
		if (dir == exporting && d.output == nil && d.writer == nil) ||
			(dir == importing && d.input == nil && d.reader == nil) {
			return nil, &UnsupportedKindError{Type: set.typeName, Field: d.name, Direction: dir.String()}
		}
	}
	return &operation[T]{
		set:          set,
		sheet:        m.sheetConfigLocked(),
		dataFilter:   m.dataFilter,
		importFilter: m.importFilter,
		validator:    m.validator,
		positional:   m.positional,
	}, nil
}

// resolveLocked merges engine defaults, schema options, YAML metadata and
// imperative overrides, in increasing precedence, and assigns column indices.
// The result is cached until the next mutation.
func (m *Mapping[T]) resolveLocked() (*descriptorSet[T], error) {
	if m.cache != nil {
		return m.cache, nil
	}
	typeName := m.schema.Name
	set := &descriptorSet[T]{typeName: typeName}
	byName := make(map[string]*columnDescriptor[T], len(m.schema.Fields))

	for i := range m.schema.Fields {
		f := &m.schema.Fields[i]
		d := &columnDescriptor[T]{
			field:     f,
			name:      f.name,
			shadow:    f.shadow,
			title:     f.name,
			kind:      f.kind,
			nullable:  f.nullable,
			ignored:   f.options.ignored,
			required:  f.options.required,
			maxLength: f.options.maxLength,
			output:    f.output,
		}
		if f.options.title != "" {
			d.title = f.options.title
		}
		if f.options.index != nil {
			d.index, d.explicit = *f.options.index, true
		}
		if f.options.pattern != "" {
			d.pattern = regexp.MustCompile(f.options.pattern)
		}
		if f.options.formatter != "" {
			out, err := m.namedFormatter(f.name, f.options.formatter)
			if err != nil {
				return nil, err
			}
			d.output = out
		}
		set.all = append(set.all, d)
		byName[f.name] = d
	}

	if m.meta != nil {
		for _, col := range m.meta.Columns {
			d, ok := byName[col.Field]
			if !ok {
				return nil, &ConfigurationError{Type: typeName, Field: col.Field, Reason: "metadata names an unknown field"}
			}
			if err := m.applyColumnMetadata(d, col); err != nil {
				return nil, err
			}
		}
	}

	for _, name := range m.order {
		o := m.overrides[name]
		d, ok := byName[name]
		switch {
		case !ok && o.shadow:
			d = &columnDescriptor[T]{name: name, shadow: true, title: name, kind: KindDynamic, nullable: true}
			set.all = append(set.all, d)
			byName[name] = d
		case !ok:
			return nil, &ConfigurationError{Type: typeName, Field: name, Reason: "override names an unknown field"}
		case o.shadow && !d.shadow:
			return nil, &ConfigurationError{Type: typeName, Field: name, Reason: "field is not a shadow column"}
		}
		applyOverride(d, o)
	}

	if err := assignIndices(typeName, set.all); err != nil {
		return nil, err
	}
	set.sortColumns()
	m.cache = set
	m.registry.logger.Debug().
		Str("type", typeName).
		Int("columns", len(set.columns)).
		Msg("resolved column descriptors")
	return set, nil
}

func (m *Mapping[T]) namedFormatter(field, name string) (OutputFormatter[T], error) {
	fn, ok := m.registry.formatter(name)
	if !ok {
		return nil, &ConfigurationError{Type: m.schema.Name, Field: field, Reason: fmt.Sprintf("unknown formatter %q", name)}
	}
	return OutputFormatterFunc[T](func(_ *T, v any) any { return fn(v) }), nil
}

func (m *Mapping[T]) applyColumnMetadata(d *columnDescriptor[T], col ColumnMetadata) error {
	if col.Index != nil {
		d.index, d.explicit = *col.Index, true
	}
	if col.Title != "" {
		d.title = col.Title
	}
	if col.Ignored != nil {
		d.ignored = *col.Ignored
	}
	if col.Required != nil {
		d.required = *col.Required
	}
	if col.MaxLength != nil {
		d.maxLength = *col.MaxLength
	}
	if col.Pattern != "" {
		re, err := regexp.Compile(col.Pattern)
		if err != nil {
			return &ConfigurationError{Type: m.schema.Name, Field: col.Field, Reason: fmt.Sprintf("invalid pattern: %v", err)}
		}
		d.pattern = re
	}
	if col.Formatter != "" {
		out, err := m.namedFormatter(col.Field, col.Formatter)
		if err != nil {
			return err
		}
		d.output = out
	}
	return nil
}

func applyOverride[T any](d *columnDescriptor[T], o *propertyOverride[T]) {
	if o.index != nil {
		d.index, d.explicit = *o.index, true
	}
	if o.title != nil {
		d.title = *o.title
	}
	if o.ignored != nil {
		d.ignored = *o.ignored
	}
	if o.output != nil {
		d.output = o.output
	}
	if o.input != nil {
		d.input = o.input
	}
	if o.reader != nil {
		d.reader = o.reader
	}
	if o.writer != nil {
		d.writer = o.writer
	}
	if o.hasDefault {
		d.defaultValue, d.hasDefault = o.defaultValue, true
	}
}

// assignIndices gives explicit indices first, failing on collisions, then
// places each automatic column at its declaration position among active
// columns when free, or at the lowest free index otherwise.
func assignIndices[T any](typeName string, all []*columnDescriptor[T]) error {
	owner := make(map[int]*columnDescriptor[T])
	for _, d := range all {
		if d.ignored || !d.explicit {
			continue
		}
		if d.index < 0 {
			return &ConfigurationError{Type: typeName, Field: d.name, Reason: fmt.Sprintf("negative column index %d", d.index)}
		}
		if other, taken := owner[d.index]; taken {
			return &ConfigurationError{Type: typeName, Field: d.name,
				Reason: fmt.Sprintf("column index %d already bound to %s", d.index, other.name)}
		}
		owner[d.index] = d
	}

	position, free := 0, 0
	for _, d := range all {
		if d.ignored {
			continue
		}
		if !d.explicit {
			idx := position
			if _, taken := owner[idx]; taken {
				for {
					if _, taken := owner[free]; !taken {
						break
					}
					free++
				}
				idx = free
			}
			d.index = idx
			owner[idx] = d
		}
		position++
	}
	return nil
}
