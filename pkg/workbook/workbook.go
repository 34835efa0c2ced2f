// Package workbook is the spreadsheet codec used by the mapping engine:
// workbooks, sheets, rows and cells with typed values, formulas and pictures.
package workbook

import (
	"errors"
	"fmt"
	"os"
)

var (
	ErrLegacyFormat       = errors.New("legacy binary workbook containers are not supported")
	ErrUnrecognizedFormat = errors.New("unrecognized workbook content")
	ErrSheetNotFound      = errors.New("sheet not found")
	ErrRowOutOfRange      = errors.New("row index exceeds sheet capacity")
)

// Picture is an image anchored at a cell.
type Picture struct {
	Data []byte
	// Extension includes the dot, for example ".png".
	Extension string
}

type Workbook interface {
	Format() Format
	// CreateSheet appends a sheet. The first call on a new workbook takes
	// over the default sheet.
	CreateSheet(name string) (Sheet, error)
	SheetCount() int
	SheetAt(index int) (Sheet, error)
	Serialize() ([]byte, error)
	Close() error
}

type Sheet interface {
	Name() string
	Index() int
	RowCapacity() int
	// RowCount is one past the last existing row, including blank rows that were created.
	RowCount() int
	CreateRow(index int) (Row, error)
	// RowAt returns nil when the row does not exist.
	RowAt(index int) Row
	MarkHeader(rowIndex, columns int) error
	AutoSizeColumn(column int) error
}

type Row interface {
	Index() int
	// CellAt returns nil for an absent cell unless create is set.
	CellAt(column int, create bool) Cell
	// CellCount is one past the last non-blank cell of the row.
	CellCount() int
}

type Cell interface {
	Row() int
	Column() int
	Value() CellValue
	SetValue(v CellValue) error
	Formula() string
	SetFormula(formula string) error
	// EvaluatedValue returns the calculated result for formula cells and the
	// stored value otherwise.
	EvaluatedValue() (CellValue, error)
	Picture() (*Picture, error)
	SetPicture(p Picture) error
}

// Create returns an empty workbook for the format.
func Create(format Format) (Workbook, error) {
	if format.RowCapacity() == 0 {
		return nil, fmt.Errorf("create workbook: unsupported format %s", format)
	}
	return newExcelizeWorkbook(format), nil
}

// Load opens a workbook from memory. FormatUnknown detects the format from content.
func Load(data []byte, format Format) (Workbook, error) {
	detected, err := DetectFormat(data)
	if err != nil {
		return nil, fmt.Errorf("load workbook: %w", err)
	}
	if format == FormatUnknown {
		format = detected
	}
	return openExcelizeWorkbook(data, format)
}

// Open reads a workbook from disk, taking the format from the file extension.
func Open(path string) (Workbook, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	return Load(data, format)
}
