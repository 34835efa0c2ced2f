package sheetmap

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/locvowork/sheetmap/pkg/workbook"
)

const maxSheetNameLength = 31

// rowsPerSheet is the data capacity of one sheet: the format's row capacity
// minus the rows before the first data row (the header among them).
func rowsPerSheet(format workbook.Format, cfg SheetConfiguration) int {
	return format.RowCapacity() - cfg.StartRowIndex
}

// partition splits items into ordered batches of at most size items. It never
// returns a trailing empty batch and always returns at least one batch.
func partition[E any](items []E, size int) ([][]E, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: no room for data rows", ErrCapacityExceeded)
	}
	if len(items) == 0 {
		return [][]E{items}, nil
	}
	batches := make([][]E, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches, nil
}

// partitionSheetName names batch i: the base name, then base_2, base_3, ...
// truncated to the sheet name limit.
func partitionSheetName(base string, i int) string {
	if base == "" {
		base = "Sheet"
	}
	suffix := ""
	if i > 0 {
		suffix = "_" + strconv.Itoa(i+1)
	}
	limit := maxSheetNameLength - len(suffix)
	if utf8.RuneCountInString(base) > limit {
		base = string([]rune(base)[:limit])
	}
	return base + suffix
}

// isPartitionOf reports whether name is a continuation sheet of base.
func isPartitionOf(base, name string) bool {
	cut := strings.LastIndex(name, "_")
	if cut < 0 {
		return false
	}
	n, err := strconv.Atoi(name[cut+1:])
	if err != nil || n < 2 {
		return false
	}
	return partitionSheetName(base, n-1) == name
}

// sheetsOf returns the sheet at cfg.Index and the continuation sheets that
// directly follow it.
func sheetsOf(wb workbook.Workbook, cfg SheetConfiguration) ([]workbook.Sheet, error) {
	first, err := wb.SheetAt(cfg.Index)
	if err != nil {
		return nil, err
	}
	sheets := []workbook.Sheet{first}
	for i := cfg.Index + 1; i < wb.SheetCount(); i++ {
		next, err := wb.SheetAt(i)
		if err != nil {
			return nil, err
		}
		if !isPartitionOf(first.Name(), next.Name()) {
			break
		}
		sheets = append(sheets, next)
	}
	return sheets, nil
}
