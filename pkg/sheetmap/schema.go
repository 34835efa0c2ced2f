package sheetmap

import (
	"fmt"
	"regexp"
	"time"
)

// DataKind drives built-in coercion between cells and field values.
type DataKind int

const (
	KindString DataKind = iota
	KindInt
	KindUint
	KindFloat
	KindBool
	KindTime
	KindBinary
	// KindDynamic fields hold whatever the cell holds.
	KindDynamic
	// KindComplex fields need a formatter, reader or writer.
	KindComplex
)

func (k DataKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindBinary:
		return "binary"
	case KindDynamic:
		return "dynamic"
	default:
		return "complex"
	}
}

// Schema is the hand-authored column declaration of a record type.
type Schema[T any] struct {
	Name   string
	Fields []FieldSpec[T]
}

// NewSchema declares a schema. The name doubles as the default sheet name.
func NewSchema[T any](name string, fields ...FieldSpec[T]) Schema[T] {
	return Schema[T]{Name: name, Fields: fields}
}

func (s Schema[T]) validate() error {
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.name == "" {
			return &ConfigurationError{Type: s.Name, Reason: "field with empty name"}
		}
		if seen[f.name] {
			return &ConfigurationError{Type: s.Name, Field: f.name, Reason: "declared twice"}
		}
		seen[f.name] = true
		if f.options.pattern != "" {
			if _, err := regexp.Compile(f.options.pattern); err != nil {
				return &ConfigurationError{Type: s.Name, Field: f.name, Reason: fmt.Sprintf("invalid pattern: %v", err)}
			}
		}
	}
	return nil
}

func (s Schema[T]) field(name string) (*FieldSpec[T], bool) {
	for i := range s.Fields {
		if s.Fields[i].name == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// FieldSpec binds a record field, or a shadow column, to the engine.
type FieldSpec[T any] struct {
	name     string
	kind     DataKind
	nullable bool
	shadow   bool
	get      func(*T) any
	set      func(*T, any) error
	output   OutputFormatter[T]
	options  fieldOptions
}

func (f FieldSpec[T]) Name() string { return f.name }

func (f FieldSpec[T]) Kind() DataKind { return f.kind }

type fieldOptions struct {
	index     *int
	title     string
	ignored   bool
	required  bool
	maxLength int
	pattern   string
	formatter string
	kind      *DataKind
}

type FieldOption func(*fieldOptions)

// ColumnIndex pins the field to a zero-based column.
func ColumnIndex(i int) FieldOption {
	return func(o *fieldOptions) { o.index = &i }
}

// ColumnName sets the header title; defaults to the field name.
func ColumnName(title string) FieldOption {
	return func(o *fieldOptions) { o.title = title }
}

func Ignore() FieldOption {
	return func(o *fieldOptions) { o.ignored = true }
}

// Required fails default validation when the value is missing or empty.
func Required() FieldOption {
	return func(o *fieldOptions) { o.required = true }
}

func MaxLength(n int) FieldOption {
	return func(o *fieldOptions) { o.maxLength = n }
}

// Pattern fails default validation when a text value does not match expr.
func Pattern(expr string) FieldOption {
	return func(o *fieldOptions) { o.pattern = expr }
}

// Formatter names an output formatter registered on the Registry.
func Formatter(name string) FieldOption {
	return func(o *fieldOptions) { o.formatter = name }
}

// AsKind overrides the inferred data kind, e.g. a []byte field stored as text.
func AsKind(k DataKind) FieldOption {
	return func(o *fieldOptions) { o.kind = &k }
}

// Field declares a column backed by the field that ref points into.
func Field[T any, V any](name string, ref func(*T) *V, opts ...FieldOption) FieldSpec[T] {
	var zero V
	kind, nullable := kindOf(any(zero))
	f := FieldSpec[T]{
		name:     name,
		kind:     kind,
		nullable: nullable,
		get: func(rec *T) any {
			return any(*ref(rec))
		},
		set: func(rec *T, v any) error {
			p := ref(rec)
			if v == nil {
				var z V
				*p = z
				return nil
			}
			if tv, ok := v.(V); ok {
				*p = tv
				return nil
			}
			return assign(any(p), v)
		},
	}
	for _, opt := range opts {
		opt(&f.options)
	}
	if f.options.kind != nil {
		f.kind = *f.options.kind
	}
	return f
}

// Shadow declares an output column with no backing field. Its value is
// produced by output from the whole record.
func Shadow[T any](name string, output func(rec *T) any, opts ...FieldOption) FieldSpec[T] {
	f := FieldSpec[T]{
		name:     name,
		kind:     KindDynamic,
		nullable: true,
		shadow:   true,
	}
	if output != nil {
		f.output = OutputFormatterFunc[T](func(rec *T, _ any) any { return output(rec) })
	}
	for _, opt := range opts {
		opt(&f.options)
	}
	return f
}

func kindOf(v any) (DataKind, bool) {
	switch v.(type) {
	case nil:
		return KindDynamic, true
	case string:
		return KindString, false
	case *string:
		return KindString, true
	case int, int8, int16, int32, int64:
		return KindInt, false
	case *int, *int8, *int16, *int32, *int64:
		return KindInt, true
	case uint, uint8, uint16, uint32, uint64:
		return KindUint, false
	case *uint, *uint8, *uint16, *uint32, *uint64:
		return KindUint, true
	case float32, float64:
		return KindFloat, false
	case *float32, *float64:
		return KindFloat, true
	case bool:
		return KindBool, false
	case *bool:
		return KindBool, true
	case time.Time:
		return KindTime, true
	case *time.Time:
		return KindTime, true
	case []byte:
		return KindBinary, true
	default:
		return KindComplex, false
	}
}
