package workbook

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

// Format selects the row capacity and default extension of a workbook.
type Format int

const (
	// FormatUnknown asks Load to detect the format from content.
	FormatUnknown Format = iota
	FormatXls
	FormatXlsx
)

const (
	xlsRowCapacity  = 65536
	xlsxRowCapacity = 1048576

	xlsColumnCapacity  = 256
	xlsxColumnCapacity = 16384
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// RowCapacity returns the maximum number of rows a single sheet may hold.
func (f Format) RowCapacity() int {
	switch f {
	case FormatXls:
		return xlsRowCapacity
	case FormatXlsx:
		return xlsxRowCapacity
	default:
		return 0
	}
}

// ColumnCapacity returns the maximum number of columns a single sheet may hold.
func (f Format) ColumnCapacity() int {
	switch f {
	case FormatXls:
		return xlsColumnCapacity
	case FormatXlsx:
		return xlsxColumnCapacity
	default:
		return 0
	}
}

// Extension returns the default file extension, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatXls:
		return ".xls"
	case FormatXlsx:
		return ".xlsx"
	default:
		return ""
	}
}

// ContentType returns the MIME type used when serving the format over HTTP.
func (f Format) ContentType() string {
	if f == FormatXls {
		return "application/vnd.ms-excel"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (f Format) String() string {
	switch f {
	case FormatXls:
		return "xls"
	case FormatXlsx:
		return "xlsx"
	default:
		return "unknown"
	}
}

// ParseFormat maps "xls"/"xlsx" (case-insensitive, optional leading dot) to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "xls":
		return FormatXls, nil
	case "xlsx":
		return FormatXlsx, nil
	default:
		return FormatUnknown, fmt.Errorf("unsupported workbook format %q", s)
	}
}

// FormatFromPath selects the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return FormatUnknown, fmt.Errorf("cannot infer workbook format from %q", path)
	}
	return ParseFormat(ext)
}

// DetectFormat inspects the container signature of data. Zip containers are
// reported as FormatXlsx; legacy compound documents return ErrLegacyFormat.
func DetectFormat(data []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return FormatXlsx, nil
	case bytes.HasPrefix(data, oleMagic):
		return FormatUnknown, ErrLegacyFormat
	default:
		return FormatUnknown, ErrUnrecognizedFormat
	}
}
