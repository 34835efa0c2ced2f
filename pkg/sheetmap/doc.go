// Package sheetmap maps typed records and schema-less tables to spreadsheet
// workbooks and back.
//
// A record type is described by a hand-written Schema and registered on a
// Registry, which yields its Mapping:
//
//	reg := sheetmap.NewRegistry()
//	m, err := sheetmap.Register(reg, sheetmap.NewSchema("Employees",
//		sheetmap.Field("ID", func(e *Employee) *int64 { return &e.ID }),
//		sheetmap.Field("Name", func(e *Employee) *string { return &e.Name }, sheetmap.Required()),
//	))
//	data, err := m.ToBytes(employees, workbook.FormatXlsx)
//	back, results, err := m.ToEntityListWithValidation(data, workbook.FormatXlsx, nil)
//
// Column settings come from the schema, then YAML metadata, then imperative
// overrides made through Property; later sources win per attribute.
package sheetmap
