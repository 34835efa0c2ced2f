package sheetmap

import (
	"fmt"

	"github.com/locvowork/sheetmap/pkg/workbook"
)

// rowCodec writes records into sheet rows and reads them back.
type rowCodec[T any] struct {
	set  *descriptorSet[T]
	cfg  SheetConfiguration
	conv converter
}

func (c *rowCodec[T]) writeHeader(sheet workbook.Sheet) error {
	if !c.cfg.HasHeader() {
		return nil
	}
	rowIndex := c.cfg.HeaderRowIndex
	row, err := sheet.CreateRow(rowIndex)
	if err != nil {
		return err
	}
	width := 0
	for _, d := range c.set.columns {
		if !c.cfg.inScope(rowIndex, d.index) {
			continue
		}
		if err := row.CellAt(d.index, true).SetValue(workbook.StringValue(d.title)); err != nil {
			return err
		}
		width = d.index + 1
	}
	return sheet.MarkHeader(rowIndex, width)
}

// writeRecord writes rec into a new row. A nil record still creates the row,
// leaving every cell absent, so the position survives a round trip.
func (c *rowCodec[T]) writeRecord(sheet workbook.Sheet, rowIndex int, rec *T) error {
	row, err := sheet.CreateRow(rowIndex)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	for _, d := range c.set.columns {
		if !c.cfg.inScope(rowIndex, d.index) {
			continue
		}
		if err := c.writeCell(sheet, row, rec, d); err != nil {
			return fmt.Errorf("write %s row %d column %s: %w", sheet.Name(), rowIndex, d.name, err)
		}
	}
	return nil
}

func (c *rowCodec[T]) writeCell(sheet workbook.Sheet, row workbook.Row, rec *T, d *columnDescriptor[T]) error {
	value := d.value(rec)
	if d.writer != nil {
		return d.writer.WriteCell(CellContext[T]{
			Record:      rec,
			Sheet:       sheet,
			Row:         row,
			Cell:        row.CellAt(d.index, true),
			Field:       d.name,
			RowIndex:    row.Index(),
			ColumnIndex: d.index,
		}, value)
	}
	if d.output != nil {
		value = d.output.FormatOutput(rec, value)
	}
	content := c.conv.toCell(value)
	if content.picture != nil {
		return row.CellAt(d.index, true).SetPicture(workbook.Picture{
			Data:      content.picture,
			Extension: pictureExtension(content.picture),
		})
	}
	if content.value.IsBlank() {
		return nil
	}
	return row.CellAt(d.index, true).SetValue(content.value)
}

// headerIndex maps normalized header titles to their column.
func (c *rowCodec[T]) headerIndex(sheet workbook.Sheet) map[string]int {
	header := make(map[string]int)
	rowIndex := c.cfg.HeaderRowIndex
	row := sheet.RowAt(rowIndex)
	if row == nil {
		return header
	}
	for col := 0; col < row.CellCount(); col++ {
		if !c.cfg.inScope(rowIndex, col) {
			continue
		}
		cell := row.CellAt(col, false)
		if cell == nil {
			continue
		}
		title := normalizeTitle(cell.Value().String())
		if _, dup := header[title]; title != "" && !dup {
			header[title] = col
		}
	}
	return header
}

// readRecord decodes one row. It returns nil when every in-scope cell is
// absent; parse failures are returned alongside the partially filled record.
func (c *rowCodec[T]) readRecord(sheet workbook.Sheet, rowIndex int, cols []readColumn[T]) (*T, []*CellParseError) {
	row := sheet.RowAt(rowIndex)
	if row == nil {
		return nil, nil
	}
	cells := make([]workbook.Cell, len(cols))
	inScope := make([]bool, len(cols))
	present := false
	for i, rc := range cols {
		if !c.cfg.inScope(rowIndex, rc.column) {
			continue
		}
		inScope[i] = true
		cells[i] = row.CellAt(rc.column, false)
		if cells[i] != nil {
			present = true
		}
	}
	if !present {
		return nil, nil
	}

	rec := new(T)
	var issues []*CellParseError
	for i, rc := range cols {
		if !inScope[i] {
			continue
		}
		if err := c.readCell(sheet, row, rec, rc, cells[i]); err != nil {
			issues = append(issues, err)
		}
	}
	return rec, issues
}

// readCell runs the import pipeline for one cell: reader, else evaluated
// value, default for blanks, input formatter, then coercion.
func (c *rowCodec[T]) readCell(sheet workbook.Sheet, row workbook.Row, rec *T, rc readColumn[T], cell workbook.Cell) *CellParseError {
	d := rc.d
	fail := func(value any, err error) *CellParseError {
		return &CellParseError{Sheet: sheet.Name(), Row: row.Index(), Column: rc.column, Field: d.name, Title: d.title, Value: value, Err: err}
	}

	if d.reader != nil {
		v, err := d.reader.ReadCell(CellContext[T]{
			Record:      rec,
			Sheet:       sheet,
			Row:         row,
			Cell:        cell,
			Field:       d.name,
			RowIndex:    row.Index(),
			ColumnIndex: rc.column,
		})
		if err != nil {
			return fail(nil, err)
		}
		if d.field != nil && d.field.set != nil {
			if err := d.field.set(rec, v); err != nil {
				return fail(v, err)
			}
		}
		return nil
	}
	if d.field == nil || d.field.set == nil {
		return nil
	}

	raw, err := c.rawValue(d, cell)
	if err != nil {
		return fail(nil, err)
	}
	if raw == nil {
		if d.hasDefault {
			if err := d.field.set(rec, d.defaultValue); err != nil {
				return fail(d.defaultValue, err)
			}
		}
		return nil
	}

	value := raw
	if d.input != nil {
		if value, err = d.input.FormatInput(raw); err != nil {
			return fail(raw, err)
		}
	}
	coerced, err := c.conv.coerce(d.kind, value)
	if err != nil {
		return fail(raw, err)
	}
	if err := d.field.set(rec, coerced); err != nil {
		return fail(raw, err)
	}
	return nil
}

// rawValue is the cell content as string, float64, bool or picture bytes;
// nil for absent or blank cells. Formula cells yield their computed result.
func (c *rowCodec[T]) rawValue(d *columnDescriptor[T], cell workbook.Cell) (any, error) {
	if cell == nil {
		return nil, nil
	}
	if d.kind == KindBinary {
		pic, err := cell.Picture()
		if err != nil {
			return nil, err
		}
		if pic != nil {
			return pic.Data, nil
		}
	}
	v, err := cell.EvaluatedValue()
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}
