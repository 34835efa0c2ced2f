package sheetmap

import (
	"fmt"
	"os"

	"github.com/locvowork/sheetmap/pkg/workbook"
)

// ToBytes exports records, nil entries included, as a workbook of the given
// format. Records rejected by the data filter are left out before the rows
// are split over as many sheets as the format needs.
func (m *Mapping[T]) ToBytes(records []*T, format workbook.Format) ([]byte, error) {
	wb, err := m.ToWorkbook(records, format)
	if err != nil {
		return nil, err
	}
	defer wb.Close()
	return wb.Serialize()
}

// ToFile exports records to path, taking the format from its extension.
func (m *Mapping[T]) ToFile(records []*T, path string) error {
	format, err := workbook.FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := m.ToBytes(records, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// ToWorkbook exports records into a new open workbook. The caller closes it.
func (m *Mapping[T]) ToWorkbook(records []*T, format workbook.Format) (workbook.Workbook, error) {
	op, err := m.prepare(exporting)
	if err != nil {
		return nil, err
	}
	if err := op.validate(m.schema.Name, format); err != nil {
		return nil, err
	}

	selected := records
	if op.dataFilter != nil {
		selected = make([]*T, 0, len(records))
		for _, rec := range records {
			if rec == nil || op.dataFilter(rec) {
				selected = append(selected, rec)
			}
		}
	}

	batches, err := partition(selected, rowsPerSheet(format, op.sheet))
	if err != nil {
		return nil, err
	}

	wb, err := workbook.Create(format)
	if err != nil {
		return nil, err
	}
	if err := m.writeBatches(wb, op, batches); err != nil {
		wb.Close()
		return nil, err
	}
	m.registry.logger.Debug().
		Str("type", m.schema.Name).
		Str("format", format.String()).
		Int("records", len(selected)).
		Int("sheets", len(batches)).
		Msg("exported records")
	return wb, nil
}

func (m *Mapping[T]) writeBatches(wb workbook.Workbook, op *operation[T], batches [][]*T) error {
	// Sheets before the configured index are created empty so the data lands
	// at the index it is read back from.
	for i := 0; i < op.sheet.Index; i++ {
		if _, err := wb.CreateSheet(fmt.Sprintf("Sheet%d", i+1)); err != nil {
			return err
		}
	}
	codec := &rowCodec[T]{set: op.set, cfg: op.sheet, conv: m.registry.converter()}
	for i, batch := range batches {
		sheet, err := wb.CreateSheet(partitionSheetName(op.sheet.Name, i))
		if err != nil {
			return err
		}
		if err := codec.writeHeader(sheet); err != nil {
			return err
		}
		for j, rec := range batch {
			if err := codec.writeRecord(sheet, op.sheet.StartRowIndex+j, rec); err != nil {
				return err
			}
		}
		if op.sheet.AutoColumnWidth {
			for _, d := range op.set.columns {
				if err := sheet.AutoSizeColumn(d.index); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
