package sheetmap

import "fmt"

// CellPosition addresses a cell by zero-based row and column.
type CellPosition struct {
	Row    int
	Column int
}

// SheetConfiguration controls where and how a record type lives in a workbook.
type SheetConfiguration struct {
	// Index is the zero-based sheet holding the first batch.
	Index int
	// Name of the first sheet; further partitions are suffixed "_2", "_3", ...
	Name string
	// HeaderRowIndex is the header row, or -1 when the sheet has no header.
	HeaderRowIndex int
	// StartRowIndex is the first data row.
	StartRowIndex int
	// MaxColumns limits the columns read and written; 0 means no limit.
	MaxColumns int
	// CellFilter excludes cells from reading and writing when it returns false.
	CellFilter      func(CellPosition) bool
	AutoColumnWidth bool
}

// DefaultSheetConfiguration is a header on row 0 and data from row 1 of the first sheet.
func DefaultSheetConfiguration(name string) SheetConfiguration {
	return SheetConfiguration{
		Name:           name,
		HeaderRowIndex: 0,
		StartRowIndex:  1,
	}
}

func (c SheetConfiguration) HasHeader() bool { return c.HeaderRowIndex >= 0 }

// inScope reports whether a column takes part in the operation on a given row.
func (c SheetConfiguration) inScope(row, column int) bool {
	if c.MaxColumns > 0 && column >= c.MaxColumns {
		return false
	}
	if c.CellFilter != nil && !c.CellFilter(CellPosition{Row: row, Column: column}) {
		return false
	}
	return true
}

func (c SheetConfiguration) validate(typeName string, capacity int) error {
	switch {
	case c.Index < 0:
		return &ConfigurationError{Type: typeName, Reason: fmt.Sprintf("negative sheet index %d", c.Index)}
	case c.StartRowIndex < 0:
		return &ConfigurationError{Type: typeName, Reason: fmt.Sprintf("negative start row %d", c.StartRowIndex)}
	case c.HasHeader() && c.HeaderRowIndex >= c.StartRowIndex:
		return &ConfigurationError{Type: typeName,
			Reason: fmt.Sprintf("header row %d must precede start row %d", c.HeaderRowIndex, c.StartRowIndex)}
	case c.MaxColumns < 0:
		return &ConfigurationError{Type: typeName, Reason: fmt.Sprintf("negative max columns %d", c.MaxColumns)}
	case capacity > 0 && c.StartRowIndex >= capacity:
		return &ConfigurationError{Type: typeName,
			Reason: fmt.Sprintf("start row %d leaves no room in a %d row sheet", c.StartRowIndex, capacity)}
	}
	return nil
}
