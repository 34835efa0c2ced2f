package sheetmap

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigurationConflict marks setup mistakes such as duplicate column
	// indices or overrides naming unknown fields. Fatal, reported before any I/O.
	ErrConfigurationConflict = errors.New("sheetmap: configuration conflict")
	// ErrCellParse marks a cell that could not be coerced to its field type.
	ErrCellParse = errors.New("sheetmap: cell parse failure")
	// ErrCapacityExceeded is returned when a batch cannot fit a sheet. The
	// partitioner sizes batches so export never reports it.
	ErrCapacityExceeded = errors.New("sheetmap: sheet capacity exceeded")
	// ErrUnsupportedDataKind marks a field with no built-in coercion and no
	// user-supplied conversion.
	ErrUnsupportedDataKind = errors.New("sheetmap: unsupported data kind")
)

type ConfigurationError struct {
	Type   string
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("sheetmap: %s: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("sheetmap: %s.%s: %s", e.Type, e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfigurationConflict }

type UnsupportedKindError struct {
	Type      string
	Field     string
	Direction string
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("sheetmap: %s.%s has no %s conversion for its data kind", e.Type, e.Field, e.Direction)
}

func (e *UnsupportedKindError) Unwrap() error { return ErrUnsupportedDataKind }

// CellParseError describes one cell that failed conversion during import.
type CellParseError struct {
	Sheet  string
	Row    int
	Column int
	Field  string
	Title  string // column title, the key used in ValidationResult
	Value  any
	Err    error
}

func (e *CellParseError) Error() string {
	return fmt.Sprintf("sheet %q row %d column %d (%s): cannot convert %v: %v",
		e.Sheet, e.Row, e.Column, e.Field, e.Value, e.Err)
}

func (e *CellParseError) Is(target error) bool { return target == ErrCellParse }

func (e *CellParseError) Unwrap() error { return e.Err }

// Key is the ValidationResult key of the failure, the column title when known.
func (e *CellParseError) Key() string {
	if e.Title != "" {
		return e.Title
	}
	return e.Field
}

// Message is the human-readable text stored in a ValidationResult.
func (e *CellParseError) Message() string {
	return fmt.Sprintf("row %d: cannot convert %v: %v", e.Row, e.Value, e.Err)
}
