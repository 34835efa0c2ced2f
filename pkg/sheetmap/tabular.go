package sheetmap

import (
	"fmt"
	"strconv"

	"github.com/locvowork/sheetmap/pkg/workbook"
)

// TabularTable is schema-less sheet data. A nil cell value is absent, which
// is distinct from an empty string.
type TabularTable struct {
	Columns []TabularColumn `json:"columns"`
	Rows    []TabularRow    `json:"rows"`
}

type TabularColumn struct {
	Name string `json:"name"`
}

type TabularRow []any

// NewTabularTable creates an empty table with the given column names.
func NewTabularTable(names ...string) *TabularTable {
	t := &TabularTable{Columns: make([]TabularColumn, len(names))}
	for i, name := range names {
		t.Columns[i] = TabularColumn{Name: name}
	}
	return t
}

func (t *TabularTable) AddRow(values ...any) {
	t.Rows = append(t.Rows, TabularRow(values))
}

// Width is the number of columns, counting cells past the named columns.
func (t *TabularTable) Width() int {
	w := len(t.Columns)
	for _, row := range t.Rows {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}

type tableOptions struct {
	removeEmptyRows bool
	maxColumns      int
	typed           bool
	noHeader        bool
	sheetName       string
	sheetIndex      int
}

type TableOption func(*tableOptions)

// WithRemoveEmptyRows drops trailing rows whose cells are all absent or empty.
func WithRemoveEmptyRows() TableOption {
	return func(o *tableOptions) { o.removeEmptyRows = true }
}

// WithMaxColumns caps the number of materialized columns.
func WithMaxColumns(n int) TableOption {
	return func(o *tableOptions) { o.maxColumns = n }
}

// WithTypedValues keeps native cell types (float64, bool, string) instead of
// decoding every cell as text.
func WithTypedValues() TableOption {
	return func(o *tableOptions) { o.typed = true }
}

// WithoutHeader treats the first row as data; columns are named Column1, Column2, ...
func WithoutHeader() TableOption {
	return func(o *tableOptions) { o.noHeader = true }
}

// WithTableSheet selects the sheet index and name used by the table.
func WithTableSheet(index int, name string) TableOption {
	return func(o *tableOptions) {
		o.sheetIndex = index
		o.sheetName = name
	}
}

func newTableOptions(opts []TableOption) tableOptions {
	o := tableOptions{sheetName: "Sheet1"}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o tableOptions) sheet() SheetConfiguration {
	cfg := DefaultSheetConfiguration(o.sheetName)
	cfg.Index = o.sheetIndex
	if o.noHeader {
		cfg.HeaderRowIndex = -1
		cfg.StartRowIndex = 0
	}
	cfg.MaxColumns = o.maxColumns
	return cfg
}

// tableMapping builds a positional mapping over column positions.
func (r *Registry) tableMapping(names []string, width int, o tableOptions) *Mapping[TabularRow] {
	fields := make([]FieldSpec[TabularRow], width)
	for i := 0; i < width; i++ {
		i := i
		title := ""
		if i < len(names) {
			title = names[i]
		}
		if title == "" {
			title = "Column" + strconv.Itoa(i+1)
		}
		fields[i] = FieldSpec[TabularRow]{
			name:     "col" + strconv.Itoa(i),
			kind:     KindDynamic,
			nullable: true,
			get: func(row *TabularRow) any {
				if i < len(*row) {
					return (*row)[i]
				}
				return nil
			},
			set: func(row *TabularRow, v any) error {
				for len(*row) <= i {
					*row = append(*row, nil)
				}
				(*row)[i] = v
				return nil
			},
			options: fieldOptions{index: &i, title: title},
		}
	}
	m := newMapping(r, NewSchema(o.sheetName, fields...))
	m.positional = true
	cfg := o.sheet()
	m.sheetEdits = append(m.sheetEdits, func(c *SheetConfiguration) { *c = cfg })
	if !o.typed {
		for _, f := range fields {
			m.Property(f.name).HasColumnInputFormatter(cellText)
		}
	}
	return m
}

func cellText(raw any) (any, error) {
	switch v := raw.(type) {
	case float64:
		return workbook.NumberValue(v).String(), nil
	case bool:
		return workbook.BoolValue(v).String(), nil
	case string:
		return v, nil
	default:
		return fmt.Sprint(v), nil
	}
}

// TableToBytes exports a table; column names form the header row.
func (r *Registry) TableToBytes(table *TabularTable, format workbook.Format, opts ...TableOption) ([]byte, error) {
	o := newTableOptions(opts)
	names := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		names[i] = c.Name
	}
	m := r.tableMapping(names, table.Width(), o)
	records := make([]*TabularRow, len(table.Rows))
	for i := range table.Rows {
		records[i] = &table.Rows[i]
	}
	return m.ToBytes(records, format)
}

// ToDataTable decodes a workbook into a table. Blank rows come back as rows
// of absent values; WithRemoveEmptyRows and WithMaxColumns trim the result.
func (r *Registry) ToDataTable(data []byte, format workbook.Format, opts ...TableOption) (*TabularTable, error) {
	o := newTableOptions(opts)
	wb, err := workbook.Load(data, format)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	cfg := o.sheet()
	if err := cfg.validate("table", wb.Format().RowCapacity()); err != nil {
		return nil, err
	}
	sheets, err := sheetsOf(wb, cfg)
	if err != nil {
		return nil, fmt.Errorf("import table: %w", err)
	}

	names, width := tableShape(sheets, cfg)
	if o.maxColumns > 0 && width > o.maxColumns {
		width = o.maxColumns
	}
	if len(names) > width {
		names = names[:width]
	}

	m := r.tableMapping(names, width, o)
	op, err := m.prepare(importing)
	if err != nil {
		return nil, err
	}
	records, _, err := m.decode(wb, op, nil, false, importOptions{})
	if err != nil {
		return nil, err
	}

	table := &TabularTable{Columns: make([]TabularColumn, width)}
	for _, d := range op.set.columns {
		table.Columns[d.index] = TabularColumn{Name: d.title}
	}
	table.Rows = make([]TabularRow, len(records))
	for i, rec := range records {
		row := make(TabularRow, width)
		if rec != nil {
			copy(row, *rec)
		}
		table.Rows[i] = row
	}
	if o.removeEmptyRows {
		for len(table.Rows) > 0 && isEmptyRow(table.Rows[len(table.Rows)-1]) {
			table.Rows = table.Rows[:len(table.Rows)-1]
		}
	}
	return table, nil
}

// tableShape reads the header titles and the widest row across sheets.
func tableShape(sheets []workbook.Sheet, cfg SheetConfiguration) ([]string, int) {
	var names []string
	width := 0
	if cfg.HasHeader() {
		if row := sheets[0].RowAt(cfg.HeaderRowIndex); row != nil {
			for col := 0; col < row.CellCount(); col++ {
				name := ""
				if cell := row.CellAt(col, false); cell != nil {
					name = cell.Value().String()
				}
				names = append(names, name)
			}
		}
		width = len(names)
	}
	for _, sheet := range sheets {
		for i := cfg.StartRowIndex; i < sheet.RowCount(); i++ {
			if row := sheet.RowAt(i); row != nil && row.CellCount() > width {
				width = row.CellCount()
			}
		}
	}
	return names, width
}

func isEmptyRow(row TabularRow) bool {
	for _, v := range row {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		return false
	}
	return true
}
