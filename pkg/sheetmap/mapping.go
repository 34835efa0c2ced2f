package sheetmap

import (
	"sync"
)

// Mapping is the configuration of one record type: its schema, YAML metadata,
// imperative overrides, sheet settings, filters and validator.
//
// Overrides change shared state. Callers that override for a single operation
// bracket the change with Lock/Unlock and revert it before unlocking.
type Mapping[T any] struct {
	session sync.Mutex

	registry *Registry
	schema   Schema[T]

	mu           sync.RWMutex
	meta         *Metadata
	overrides    map[string]*propertyOverride[T]
	order        []string
	sheetEdits   []func(*SheetConfiguration)
	dataFilter   func(*T) bool
	importFilter func(*T) bool
	validator    Validator[T]
	positional   bool
	cache        *descriptorSet[T]
}

func newMapping[T any](r *Registry, schema Schema[T]) *Mapping[T] {
	return &Mapping[T]{
		registry:  r,
		schema:    schema,
		overrides: make(map[string]*propertyOverride[T]),
	}
}

// Lock acquires exclusive use of the mapping for an override session.
func (m *Mapping[T]) Lock() { m.session.Lock() }

func (m *Mapping[T]) Unlock() { m.session.Unlock() }

func (m *Mapping[T]) Schema() Schema[T] { return m.schema }

func (m *Mapping[T]) invalidate() {
	m.cache = nil
}

func (m *Mapping[T]) edit(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
	m.invalidate()
}

// ClearOverrides drops every imperative override: property and sheet
// settings, filters and the configured validator. Schema and YAML metadata stay.
func (m *Mapping[T]) ClearOverrides() {
	m.edit(func() {
		m.overrides = make(map[string]*propertyOverride[T])
		m.order = nil
		m.sheetEdits = nil
		m.dataFilter = nil
		m.importFilter = nil
		m.validator = nil
	})
}

// =============================================================================
// Sheet-level settings
// =============================================================================

// HasSheetConfiguration places the record set at sheet index with the given
// name. startRow is the first data row; the header sits on the row before it,
// so startRow 0 disables the header.
func (m *Mapping[T]) HasSheetConfiguration(index int, name string, startRow int) *Mapping[T] {
	return m.HasSheetSetting(func(c *SheetConfiguration) {
		c.Index = index
		if name != "" {
			c.Name = name
		}
		c.StartRowIndex = startRow
		c.HeaderRowIndex = startRow - 1
	})
}

// HasSheetSetting applies an arbitrary edit on top of the declared sheet settings.
func (m *Mapping[T]) HasSheetSetting(fn func(*SheetConfiguration)) *Mapping[T] {
	if fn == nil {
		return m
	}
	m.edit(func() { m.sheetEdits = append(m.sheetEdits, fn) })
	return m
}

// WithCellFilter restricts which cells are read and written; nil removes it.
func (m *Mapping[T]) WithCellFilter(filter func(CellPosition) bool) *Mapping[T] {
	return m.HasSheetSetting(func(c *SheetConfiguration) { c.CellFilter = filter })
}

// WithDataFilter excludes records from export; nil exports everything.
func (m *Mapping[T]) WithDataFilter(filter func(*T) bool) *Mapping[T] {
	m.edit(func() { m.dataFilter = filter })
	return m
}

// WithImportFilter drops decoded records failing filter; nil keeps everything.
// Null placeholders are never passed to the filter.
func (m *Mapping[T]) WithImportFilter(filter func(*T) bool) *Mapping[T] {
	m.edit(func() { m.importFilter = filter })
	return m
}

// WithValidator replaces the default constraint validator for imports.
func (m *Mapping[T]) WithValidator(v Validator[T]) *Mapping[T] {
	m.edit(func() { m.validator = v })
	return m
}

// SheetConfiguration returns the effective sheet settings: engine defaults,
// then YAML metadata, then imperative edits.
func (m *Mapping[T]) SheetConfiguration() SheetConfiguration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sheetConfigLocked()
}

func (m *Mapping[T]) sheetConfigLocked() SheetConfiguration {
	cfg := DefaultSheetConfiguration(m.schema.Name)
	if m.meta != nil && m.meta.Sheet != nil {
		m.meta.Sheet.apply(&cfg)
	}
	for _, fn := range m.sheetEdits {
		fn(&cfg)
	}
	return cfg
}

// =============================================================================
// Property overrides
// =============================================================================

type propertyOverride[T any] struct {
	index        *int
	title        *string
	ignored      *bool
	output       OutputFormatter[T]
	input        InputFormatter
	reader       CellReader[T]
	writer       CellWriter[T]
	defaultValue any
	hasDefault   bool
	shadow       bool
}

// PropertyConfig edits the override of one column. Every setter takes effect
// immediately; passing nil to a strategy setter removes that override.
type PropertyConfig[T any] struct {
	m    *Mapping[T]
	name string
}

// Property starts overriding the field named name. Unknown names surface as a
// configuration error on the next operation.
func (m *Mapping[T]) Property(name string) *PropertyConfig[T] {
	return m.property(name, false)
}

// ShadowProperty overrides a shadow column, declaring it if the schema does not.
func (m *Mapping[T]) ShadowProperty(name string) *PropertyConfig[T] {
	return m.property(name, true)
}

func (m *Mapping[T]) property(name string, shadow bool) *PropertyConfig[T] {
	m.edit(func() {
		o, ok := m.overrides[name]
		if !ok {
			o = &propertyOverride[T]{}
			m.overrides[name] = o
			m.order = append(m.order, name)
		}
		o.shadow = o.shadow || shadow
	})
	return &PropertyConfig[T]{m: m, name: name}
}

func (p *PropertyConfig[T]) set(fn func(*propertyOverride[T])) *PropertyConfig[T] {
	p.m.edit(func() { fn(p.m.overrides[p.name]) })
	return p
}

func (p *PropertyConfig[T]) HasColumnIndex(index int) *PropertyConfig[T] {
	return p.set(func(o *propertyOverride[T]) { o.index = &index })
}

// ResetColumnIndex returns the column to its declared or automatic index.
func (p *PropertyConfig[T]) ResetColumnIndex() *PropertyConfig[T] {
	return p.set(func(o *propertyOverride[T]) { o.index = nil })
}

func (p *PropertyConfig[T]) HasColumnTitle(title string) *PropertyConfig[T] {
	return p.set(func(o *propertyOverride[T]) { o.title = &title })
}

func (p *PropertyConfig[T]) Ignored(ignored bool) *PropertyConfig[T] {
	return p.set(func(o *propertyOverride[T]) { o.ignored = &ignored })
}

// HasOutputFormatter formats the value on export with access to the record.
func (p *PropertyConfig[T]) HasOutputFormatter(f func(rec *T, value any) any) *PropertyConfig[T] {
	return p.set(func(o *propertyOverride[T]) {
		o.output = nil
		if f != nil {
			o.output = OutputFormatterFunc[T](f)
		}
	})
}

// HasColumnOutputFormatter formats the value on export.
func (p *PropertyConfig[T]) HasColumnOutputFormatter(f func(value any) any) *PropertyConfig[T] {
	return p.set(func(o *propertyOverride[T]) {
		o.output = nil
		if f != nil {
			o.output = OutputFormatterFunc[T](func(_ *T, v any) any { return f(v) })
		}
	})
}

// HasColumnInputFormatter transforms the raw cell value before coercion on import.
func (p *PropertyConfig[T]) HasColumnInputFormatter(f func(raw any) (any, error)) *PropertyConfig[T] {
	return p.set(func(o *propertyOverride[T]) {
		o.input = nil
		if f != nil {
			o.input = InputFormatterFunc(f)
		}
	})
}

func (p *PropertyConfig[T]) HasInputFormatter(f InputFormatter) *PropertyConfig[T] {
	return p.set(func(o *propertyOverride[T]) { o.input = f })
}

func (p *PropertyConfig[T]) HasColumnReader(r CellReader[T]) *PropertyConfig[T] {
	return p.set(func(o *propertyOverride[T]) { o.reader = r })
}

func (p *PropertyConfig[T]) HasColumnWriter(w CellWriter[T]) *PropertyConfig[T] {
	return p.set(func(o *propertyOverride[T]) { o.writer = w })
}

// HasDefaultValue is assigned when the cell is absent or blank on import.
func (p *PropertyConfig[T]) HasDefaultValue(v any) *PropertyConfig[T] {
	return p.set(func(o *propertyOverride[T]) {
		o.defaultValue = v
		o.hasDefault = true
	})
}

func (p *PropertyConfig[T]) ClearDefaultValue() *PropertyConfig[T] {
	return p.set(func(o *propertyOverride[T]) {
		o.defaultValue = nil
		o.hasDefault = false
	})
}

// Reset drops every override of the property.
func (p *PropertyConfig[T]) Reset() *PropertyConfig[T] {
	return p.set(func(o *propertyOverride[T]) {
		*o = propertyOverride[T]{shadow: o.shadow}
	})
}
