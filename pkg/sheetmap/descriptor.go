package sheetmap

import (
	"regexp"
	"sort"
	"strings"
)

// columnDescriptor is the resolved binding of one field or shadow column.
type columnDescriptor[T any] struct {
	field  *FieldSpec[T]
	name   string
	shadow bool

	index    int
	explicit bool
	title    string
	kind     DataKind
	nullable bool
	ignored  bool

	required  bool
	maxLength int
	pattern   *regexp.Regexp

	output       OutputFormatter[T]
	input        InputFormatter
	reader       CellReader[T]
	writer       CellWriter[T]
	defaultValue any
	hasDefault   bool
}

func (d *columnDescriptor[T]) value(rec *T) any {
	if rec == nil || d.field == nil || d.field.get == nil {
		return nil
	}
	return d.field.get(rec)
}

// readable reports whether import looks at the column. Shadow columns are
// write-only unless a reader consumes them.
func (d *columnDescriptor[T]) readable() bool {
	if d.ignored {
		return false
	}
	if d.shadow {
		return d.reader != nil
	}
	return true
}

type descriptorSet[T any] struct {
	typeName string
	// all is in declaration order and includes ignored columns.
	all []*columnDescriptor[T]
	// columns holds the non-ignored descriptors ordered by index.
	columns []*columnDescriptor[T]
}

func (s *descriptorSet[T]) sortColumns() {
	s.columns = s.columns[:0]
	for _, d := range s.all {
		if !d.ignored {
			s.columns = append(s.columns, d)
		}
	}
	sort.SliceStable(s.columns, func(i, j int) bool { return s.columns[i].index < s.columns[j].index })
}

func (s *descriptorSet[T]) width() int {
	if len(s.columns) == 0 {
		return 0
	}
	return s.columns[len(s.columns)-1].index + 1
}

// readColumn is a descriptor bound to the physical column of one sheet.
type readColumn[T any] struct {
	d      *columnDescriptor[T]
	column int
}

// readColumns lays the descriptors over a sheet. With a header, titles found
// in the header row decide the column; a descriptor without a matching title
// keeps its index unless a matched descriptor claimed it, in which case it is
// not read at all so two fields never read the same cell.
func (s *descriptorSet[T]) readColumns(header map[string]int) []readColumn[T] {
	out := make([]readColumn[T], 0, len(s.columns))
	if header == nil {
		for _, d := range s.columns {
			if d.readable() {
				out = append(out, readColumn[T]{d: d, column: d.index})
			}
		}
		return out
	}

	claimed := make(map[int]*columnDescriptor[T])
	matched := make(map[*columnDescriptor[T]]int)
	for _, d := range s.all {
		if !d.readable() {
			continue
		}
		col, ok := header[normalizeTitle(d.title)]
		if !ok {
			continue
		}
		if _, taken := claimed[col]; taken {
			continue
		}
		claimed[col] = d
		matched[d] = col
	}
	for _, d := range s.all {
		if !d.readable() {
			continue
		}
		if col, ok := matched[d]; ok {
			out = append(out, readColumn[T]{d: d, column: col})
			continue
		}
		if owner, taken := claimed[d.index]; taken && owner != d {
			continue
		}
		out = append(out, readColumn[T]{d: d, column: d.index})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].column < out[j].column })
	return out
}

func normalizeTitle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ColumnInfo describes a resolved column for callers.
type ColumnInfo struct {
	Field   string
	Title   string
	Index   int
	Kind    DataKind
	Ignored bool
	Shadow  bool
}

func (s *descriptorSet[T]) info() []ColumnInfo {
	out := make([]ColumnInfo, 0, len(s.all))
	for _, d := range s.all {
		idx := d.index
		if d.ignored {
			idx = -1
		}
		out = append(out, ColumnInfo{
			Field:   d.name,
			Title:   d.title,
			Index:   idx,
			Kind:    d.kind,
			Ignored: d.ignored,
			Shadow:  d.shadow,
		})
	}
	return out
}
