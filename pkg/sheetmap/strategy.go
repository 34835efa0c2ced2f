package sheetmap

import "github.com/locvowork/sheetmap/pkg/workbook"

// OutputFormatter turns a field value into the value written to the cell.
type OutputFormatter[T any] interface {
	FormatOutput(rec *T, value any) any
}

type OutputFormatterFunc[T any] func(rec *T, value any) any

func (f OutputFormatterFunc[T]) FormatOutput(rec *T, value any) any { return f(rec, value) }

// InputFormatter transforms a raw cell value before it is coerced to the field type.
type InputFormatter interface {
	FormatInput(raw any) (any, error)
}

type InputFormatterFunc func(raw any) (any, error)

func (f InputFormatterFunc) FormatInput(raw any) (any, error) { return f(raw) }

// CellContext is what custom readers and writers see of the current row.
type CellContext[T any] struct {
	Record *T
	Sheet  workbook.Sheet
	Row    workbook.Row
	// Cell is nil on read when the cell is absent.
	Cell        workbook.Cell
	Field       string
	RowIndex    int
	ColumnIndex int
}

// CellReader replaces reading and coercion entirely. The returned value is
// assigned to the field as is.
type CellReader[T any] interface {
	ReadCell(ctx CellContext[T]) (any, error)
}

type CellReaderFunc[T any] func(ctx CellContext[T]) (any, error)

func (f CellReaderFunc[T]) ReadCell(ctx CellContext[T]) (any, error) { return f(ctx) }

// CellWriter replaces writing entirely; ctx.Cell is already created.
type CellWriter[T any] interface {
	WriteCell(ctx CellContext[T], value any) error
}

type CellWriterFunc[T any] func(ctx CellContext[T], value any) error

func (f CellWriterFunc[T]) WriteCell(ctx CellContext[T], value any) error { return f(ctx, value) }

// Validator checks one imported record.
type Validator[T any] interface {
	Validate(rec *T) ValidationResult
}

type ValidatorFunc[T any] func(rec *T) ValidationResult

func (f ValidatorFunc[T]) Validate(rec *T) ValidationResult { return f(rec) }
