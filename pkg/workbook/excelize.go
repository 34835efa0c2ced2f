package workbook

import (
	"bytes"
	"fmt"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	defaultSheetName = "Sheet1"
	defaultRowHeight = 15
	minColumnWidth   = 8
	maxColumnWidth   = 80
)

// excelizeWorkbook implements Workbook on top of an excelize file. Both formats
// are written as OOXML packages; the format only drives capacity and extension.
type excelizeWorkbook struct {
	file   *excelize.File
	format Format
	sheets []*excelizeSheet
	// fresh is set until the default sheet of a new file has been claimed.
	fresh       bool
	headerStyle int
}

type excelizeSheet struct {
	wb    *excelizeWorkbook
	name  string
	index int

	scanned    bool
	rowCount   int
	cellCounts map[int]int
	textWidths map[int]int
}

type excelizeRow struct {
	sheet *excelizeSheet
	index int
}

type excelizeCell struct {
	sheet  *excelizeSheet
	row    int
	column int
	ref    string
}

func newExcelizeWorkbook(format Format) *excelizeWorkbook {
	return &excelizeWorkbook{
		file:        excelize.NewFile(),
		format:      format,
		fresh:       true,
		headerStyle: -1,
	}
}

func openExcelizeWorkbook(data []byte, format Format) (*excelizeWorkbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("load workbook: %w", err)
	}
	wb := &excelizeWorkbook{file: f, format: format, headerStyle: -1}
	for i, name := range f.GetSheetList() {
		wb.sheets = append(wb.sheets, newExcelizeSheet(wb, name, i, false))
	}
	return wb, nil
}

func newExcelizeSheet(wb *excelizeWorkbook, name string, index int, created bool) *excelizeSheet {
	return &excelizeSheet{
		wb:         wb,
		name:       name,
		index:      index,
		scanned:    created,
		cellCounts: make(map[int]int),
		textWidths: make(map[int]int),
	}
}

func (w *excelizeWorkbook) Format() Format { return w.format }

func (w *excelizeWorkbook) CreateSheet(name string) (Sheet, error) {
	if name == "" {
		name = fmt.Sprintf("Sheet%d", len(w.sheets)+1)
	}
	if w.fresh {
		w.fresh = false
		if name != defaultSheetName {
			if err := w.file.SetSheetName(defaultSheetName, name); err != nil {
				return nil, fmt.Errorf("create sheet %q: %w", name, err)
			}
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return nil, fmt.Errorf("create sheet %q: %w", name, err)
	}
	sheet := newExcelizeSheet(w, name, len(w.sheets), true)
	w.sheets = append(w.sheets, sheet)
	return sheet, nil
}

func (w *excelizeWorkbook) SheetCount() int { return len(w.sheets) }

func (w *excelizeWorkbook) SheetAt(index int) (Sheet, error) {
	if index < 0 || index >= len(w.sheets) {
		return nil, fmt.Errorf("sheet %d of %d: %w", index, len(w.sheets), ErrSheetNotFound)
	}
	return w.sheets[index], nil
}

func (w *excelizeWorkbook) Serialize() ([]byte, error) {
	buf, err := w.file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *excelizeWorkbook) Close() error {
	return w.file.Close()
}

func (w *excelizeWorkbook) boldStyle() (int, error) {
	if w.headerStyle >= 0 {
		return w.headerStyle, nil
	}
	id, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return 0, err
	}
	w.headerStyle = id
	return id, nil
}

// =============================================================================
// Sheet
// =============================================================================

func (s *excelizeSheet) Name() string { return s.name }

func (s *excelizeSheet) Index() int { return s.index }

func (s *excelizeSheet) RowCapacity() int { return s.wb.format.RowCapacity() }

func (s *excelizeSheet) RowCount() int {
	s.scan()
	return s.rowCount
}

// scan walks the row iterator once for loaded sheets. Rows with no cells but
// with row attributes are reported by the iterator, so created blank rows count.
func (s *excelizeSheet) scan() {
	if s.scanned {
		return
	}
	s.scanned = true
	rows, err := s.wb.file.Rows(s.name)
	if err != nil {
		return
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		cols, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err == nil && len(cols) > 0 {
			s.cellCounts[n] = len(cols)
		}
		n++
	}
	s.rowCount = n
}

func (s *excelizeSheet) CreateRow(index int) (Row, error) {
	if index < 0 || index >= s.RowCapacity() {
		return nil, fmt.Errorf("sheet %q row %d: %w", s.name, index, ErrRowOutOfRange)
	}
	s.scan()
	// A row height keeps the row element in the package even when it has no cells.
	if err := s.wb.file.SetRowHeight(s.name, index+1, defaultRowHeight); err != nil {
		return nil, fmt.Errorf("sheet %q create row %d: %w", s.name, index, err)
	}
	if index >= s.rowCount {
		s.rowCount = index + 1
	}
	return &excelizeRow{sheet: s, index: index}, nil
}

func (s *excelizeSheet) RowAt(index int) Row {
	if index < 0 || index >= s.RowCount() {
		return nil
	}
	return &excelizeRow{sheet: s, index: index}
}

func (s *excelizeSheet) MarkHeader(rowIndex, columns int) error {
	if columns <= 0 {
		return nil
	}
	style, err := s.wb.boldStyle()
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	from, err := excelize.CoordinatesToCellName(1, rowIndex+1)
	if err != nil {
		return err
	}
	to, err := excelize.CoordinatesToCellName(columns, rowIndex+1)
	if err != nil {
		return err
	}
	return s.wb.file.SetCellStyle(s.name, from, to, style)
}

func (s *excelizeSheet) AutoSizeColumn(column int) error {
	width := s.textWidths[column] + 2
	if width < minColumnWidth {
		width = minColumnWidth
	}
	if width > maxColumnWidth {
		width = maxColumnWidth
	}
	name, err := excelize.ColumnNumberToName(column + 1)
	if err != nil {
		return err
	}
	return s.wb.file.SetColWidth(s.name, name, name, float64(width))
}

func (s *excelizeSheet) touch(row, column int, text string) {
	if column+1 > s.cellCounts[row] {
		s.cellCounts[row] = column + 1
	}
	if row >= s.rowCount {
		s.rowCount = row + 1
	}
	if w := utf8.RuneCountInString(text); w > s.textWidths[column] {
		s.textWidths[column] = w
	}
}

// =============================================================================
// Row & Cell
// =============================================================================

func (r *excelizeRow) Index() int { return r.index }

func (r *excelizeRow) CellCount() int {
	r.sheet.scan()
	return r.sheet.cellCounts[r.index]
}

func (r *excelizeRow) CellAt(column int, create bool) Cell {
	ref, err := excelize.CoordinatesToCellName(column+1, r.index+1)
	if err != nil {
		if create {
			return invalidCell{row: r.index, column: column, err: err}
		}
		return nil
	}
	c := &excelizeCell{sheet: r.sheet, row: r.index, column: column, ref: ref}
	if create {
		return c
	}
	if c.Formula() != "" || !c.Value().IsBlank() {
		return c
	}
	if pic, _ := c.Picture(); pic != nil {
		return c
	}
	return nil
}

func (c *excelizeCell) Row() int { return c.row }

func (c *excelizeCell) Column() int { return c.column }

func (c *excelizeCell) file() *excelize.File { return c.sheet.wb.file }

func (c *excelizeCell) Value() CellValue {
	typ, err := c.file().GetCellType(c.sheet.name, c.ref)
	if err != nil {
		return BlankValue()
	}
	raw, err := c.file().GetCellValue(c.sheet.name, c.ref, excelize.Options{RawCellValue: true})
	if err != nil {
		return BlankValue()
	}
	return parseRawValue(typ, raw)
}

func (c *excelizeCell) SetValue(v CellValue) error {
	f, sheet := c.file(), c.sheet.name
	var err error
	switch v.Kind {
	case CellString, CellError:
		err = f.SetCellStr(sheet, c.ref, v.Text)
	case CellNumber:
		err = f.SetCellFloat(sheet, c.ref, v.Number, -1, 64)
	case CellBool:
		err = f.SetCellBool(sheet, c.ref, v.Bool)
	default:
		err = f.SetCellDefault(sheet, c.ref, "")
	}
	if err != nil {
		return fmt.Errorf("set %s!%s: %w", sheet, c.ref, err)
	}
	if !v.IsBlank() {
		c.sheet.touch(c.row, c.column, v.String())
	}
	return nil
}

func (c *excelizeCell) Formula() string {
	formula, err := c.file().GetCellFormula(c.sheet.name, c.ref)
	if err != nil {
		return ""
	}
	return formula
}

func (c *excelizeCell) SetFormula(formula string) error {
	if err := c.file().SetCellFormula(c.sheet.name, c.ref, strings.TrimPrefix(formula, "=")); err != nil {
		return fmt.Errorf("set formula %s!%s: %w", c.sheet.name, c.ref, err)
	}
	c.sheet.touch(c.row, c.column, formula)
	return nil
}

func (c *excelizeCell) EvaluatedValue() (CellValue, error) {
	if c.Formula() == "" {
		return c.Value(), nil
	}
	raw, err := c.file().CalcCellValue(c.sheet.name, c.ref)
	if err != nil {
		return BlankValue(), fmt.Errorf("evaluate %s!%s: %w", c.sheet.name, c.ref, err)
	}
	return parseFormulaResult(raw), nil
}

func (c *excelizeCell) Picture() (*Picture, error) {
	pics, err := c.file().GetPictures(c.sheet.name, c.ref)
	if err != nil {
		return nil, fmt.Errorf("pictures %s!%s: %w", c.sheet.name, c.ref, err)
	}
	if len(pics) == 0 {
		return nil, nil
	}
	return &Picture{Data: pics[0].File, Extension: pics[0].Extension}, nil
}

func (c *excelizeCell) SetPicture(p Picture) error {
	ext := p.Extension
	if ext == "" {
		ext = ".png"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	err := c.file().AddPictureFromBytes(c.sheet.name, c.ref, &excelize.Picture{
		Extension: ext,
		File:      p.Data,
		Format:    &excelize.GraphicOptions{},
	})
	if err != nil {
		return fmt.Errorf("set picture %s!%s: %w", c.sheet.name, c.ref, err)
	}
	c.sheet.touch(c.row, c.column, "")
	return nil
}

// invalidCell stands in for coordinates excelize cannot address. Reads are
// blank and every write returns the coordinate error.
type invalidCell struct {
	row, column int
	err         error
}

func (c invalidCell) Row() int { return c.row }
func (c invalidCell) Column() int { return c.column }
func (c invalidCell) Value() CellValue { return BlankValue() }
func (c invalidCell) Formula() string { return "" }
func (c invalidCell) EvaluatedValue() (CellValue, error) { return BlankValue(), nil }
func (c invalidCell) Picture() (*Picture, error) { return nil, nil }
func (c invalidCell) SetValue(CellValue) error { return c.fail() }
func (c invalidCell) SetFormula(string) error { return c.fail() }
func (c invalidCell) SetPicture(Picture) error { return c.fail() }

func (c invalidCell) fail() error {
	return fmt.Errorf("cell at row %d column %d: %w", c.row, c.column, c.err)
}
