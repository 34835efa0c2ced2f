package sheetmap

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeLayout is the textual form temporal values are written with.
const DefaultTimeLayout = "2006-01-02 15:04:05"

// Registry owns the mappings of record types and the settings shared by them.
// It replaces process-wide state: callers create one and pass it around.
type Registry struct {
	mu         sync.RWMutex
	mappings   map[any]any
	formatters map[string]func(any) any

	logger     zerolog.Logger
	timeLayout string
	location   *time.Location
}

// typeKey identifies a record type without reflection.
type typeKey[T any] struct{}

type Option func(*Registry)

func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

func WithTimeLayout(layout string) Option {
	return func(r *Registry) {
		if layout != "" {
			r.timeLayout = layout
		}
	}
}

// WithLocation sets the zone textual times without offset are parsed in.
func WithLocation(loc *time.Location) Option {
	return func(r *Registry) {
		if loc != nil {
			r.location = loc
		}
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		mappings:   make(map[any]any),
		formatters: make(map[string]func(any) any),
		logger:     zerolog.Nop(),
		timeLayout: DefaultTimeLayout,
		location:   time.Local,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterFormatter makes a value formatter available to schemas and YAML
// metadata by name.
func (r *Registry) RegisterFormatter(name string, fn func(any) any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formatters[name] = fn
}

func (r *Registry) formatter(name string) (func(any) any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.formatters[name]
	return fn, ok
}

func (r *Registry) Logger() zerolog.Logger { return r.logger }

// Register validates schema and creates the mapping for T. Registering the
// same type twice is a configuration error.
func Register[T any](r *Registry, schema Schema[T]) (*Mapping[T], error) {
	if err := schema.validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.mappings[typeKey[T]{}]; exists {
		return nil, &ConfigurationError{Type: schema.Name, Reason: "record type already registered"}
	}
	m := newMapping(r, schema)
	r.mappings[typeKey[T]{}] = m
	return m, nil
}

// Lookup returns the mapping registered for T.
func Lookup[T any](r *Registry) (*Mapping[T], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mappings[typeKey[T]{}]
	if !ok {
		return nil, false
	}
	return m.(*Mapping[T]), true
}
