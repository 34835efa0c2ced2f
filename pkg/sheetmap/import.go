package sheetmap

import (
	"fmt"

	"github.com/locvowork/sheetmap/pkg/workbook"
)

type importOptions struct {
	strict bool
}

type ImportOption func(*importOptions)

// WithStrict makes a cell conversion failure discard its record: the record
// becomes a null placeholder and its validation result is invalid.
func WithStrict() ImportOption {
	return func(o *importOptions) { o.strict = true }
}

// ToEntityList decodes the records of a workbook. Null placeholders mark
// blank rows. Conversion failures are logged and leave the field at its zero value.
func (m *Mapping[T]) ToEntityList(data []byte, format workbook.Format, opts ...ImportOption) ([]*T, error) {
	records, results, err := m.importRecords(data, format, nil, false, opts)
	if err != nil {
		return nil, err
	}
	for i, res := range results {
		if !res.Valid {
			m.registry.logger.Debug().
				Str("type", m.schema.Name).
				Int("record", i).
				Interface("errors", res.Errors).
				Msg("record imported with conversion errors")
		}
	}
	return records, nil
}

// ToEntityListWithValidation decodes the records of a workbook and validates
// each one. The two slices have equal length and are positionally aligned;
// null placeholders are valid. A nil validator falls back to the mapping's
// validator, then to the declared column constraints.
func (m *Mapping[T]) ToEntityListWithValidation(data []byte, format workbook.Format, validator Validator[T], opts ...ImportOption) ([]*T, []ValidationResult, error) {
	return m.importRecords(data, format, validator, true, opts)
}

func (m *Mapping[T]) importRecords(data []byte, format workbook.Format, validator Validator[T], validate bool, opts []ImportOption) ([]*T, []ValidationResult, error) {
	var o importOptions
	for _, opt := range opts {
		opt(&o)
	}

	op, err := m.prepare(importing)
	if err != nil {
		return nil, nil, err
	}
	if err := op.validate(m.schema.Name, format); err != nil {
		return nil, nil, err
	}
	wb, err := workbook.Load(data, format)
	if err != nil {
		return nil, nil, err
	}
	defer wb.Close()
	return m.decode(wb, op, validator, validate, o)
}

func (m *Mapping[T]) decode(wb workbook.Workbook, op *operation[T], validator Validator[T], validate bool, o importOptions) ([]*T, []ValidationResult, error) {
	if err := op.validate(m.schema.Name, wb.Format()); err != nil {
		return nil, nil, err
	}

	if validator == nil {
		validator = op.validator
	}
	if validator == nil {
		validator = constraintValidator[T]{set: op.set}
	}

	sheets, err := sheetsOf(wb, op.sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("import %s: %w", m.schema.Name, err)
	}

	codec := &rowCodec[T]{set: op.set, cfg: op.sheet, conv: m.registry.converter()}
	var (
		records []*T
		results []ValidationResult
	)
	for _, sheet := range sheets {
		var header map[string]int
		if op.sheet.HasHeader() && !op.positional {
			header = codec.headerIndex(sheet)
		}
		cols := op.set.readColumns(header)

		for rowIndex := op.sheet.StartRowIndex; rowIndex < sheet.RowCount(); rowIndex++ {
			rec, issues := codec.readRecord(sheet, rowIndex, cols)
			result := NewValidationResult()
			for _, issue := range issues {
				result.AddError(issue.Key(), issue.Message())
			}
			if rec != nil && op.importFilter != nil && !op.importFilter(rec) {
				continue
			}
			if len(issues) > 0 && o.strict {
				rec = nil
			}
			if rec != nil && validate {
				result.Merge(validator.Validate(rec))
			}
			records = append(records, rec)
			results = append(results, result)
		}
	}

	m.registry.logger.Debug().
		Str("type", m.schema.Name).
		Int("sheets", len(sheets)).
		Int("records", len(records)).
		Msg("imported records")
	return records, results, nil
}
