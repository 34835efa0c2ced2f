package workbook

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// CellKind is the native type of a stored cell value.
type CellKind int

const (
	CellBlank CellKind = iota
	CellString
	CellNumber
	CellBool
	CellError
)

// CellValue is a typed cell value. The zero value is a blank (absent) cell,
// which is distinct from a present empty string.
type CellValue struct {
	Kind   CellKind
	Text   string
	Number float64
	Bool   bool
}

func BlankValue() CellValue { return CellValue{} }

func StringValue(s string) CellValue { return CellValue{Kind: CellString, Text: s} }

func NumberValue(n float64) CellValue { return CellValue{Kind: CellNumber, Number: n} }

func BoolValue(b bool) CellValue { return CellValue{Kind: CellBool, Bool: b} }

func ErrorValue(code string) CellValue { return CellValue{Kind: CellError, Text: code} }

// IsBlank reports whether the cell holds no value at all.
func (v CellValue) IsBlank() bool { return v.Kind == CellBlank }

// Interface returns the value as string, float64 or bool; nil when blank.
// Error cells return their error code text.
func (v CellValue) Interface() any {
	switch v.Kind {
	case CellString, CellError:
		return v.Text
	case CellNumber:
		return v.Number
	case CellBool:
		return v.Bool
	default:
		return nil
	}
}

// String renders the value the way a spreadsheet displays it without number formats.
func (v CellValue) String() string {
	switch v.Kind {
	case CellString, CellError:
		return v.Text
	case CellNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case CellBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	default:
		return ""
	}
}

// parseRawValue interprets excelize's raw text for a cell of the given type.
func parseRawValue(typ excelize.CellType, raw string) CellValue {
	switch typ {
	case excelize.CellTypeBool:
		return BoolValue(raw == "1" || strings.EqualFold(raw, "true"))
	case excelize.CellTypeError:
		return ErrorValue(raw)
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		return StringValue(raw)
	case excelize.CellTypeNumber, excelize.CellTypeUnset, excelize.CellTypeDate:
		if raw == "" {
			return BlankValue()
		}
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return NumberValue(n)
		}
		return StringValue(raw)
	default:
		return StringValue(raw)
	}
}

// parseFormulaResult converts a calculated formula result to a typed value.
func parseFormulaResult(raw string) CellValue {
	switch raw {
	case "":
		return BlankValue()
	case "TRUE":
		return BoolValue(true)
	case "FALSE":
		return BoolValue(false)
	}
	if strings.HasPrefix(raw, "#") {
		return ErrorValue(raw)
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return NumberValue(n)
	}
	return StringValue(raw)
}

// SerialToTime converts a spreadsheet serial date number to a time.
func SerialToTime(serial float64) (time.Time, error) {
	return excelize.ExcelDateToTime(serial, false)
}
