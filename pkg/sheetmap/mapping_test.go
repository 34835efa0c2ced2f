package sheetmap

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/locvowork/sheetmap/pkg/workbook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicImportExport(t *testing.T) {
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			m := newNoticeMapping(t)
			list := append(sampleNotices(10), &notice{Title: "nnnn"}, nil)

			data, err := m.ToBytes(list, format)
			require.NoError(t, err)

			imported, err := m.ToEntityList(data, format)
			require.NoError(t, err)
			assertNoticesEqual(t, list, imported)
		})
	}
}

func TestImportExportWithEmptyValue(t *testing.T) {
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			m := newNoticeMapping(t)
			list := sampleNotices(10)
			for i := 3; i < len(list); i++ {
				list[i].Content = ""
				list[i].Publisher = nil
			}
			list = append(list, &notice{Title: "nnnn"}, nil)

			data, err := m.ToBytes(list, format)
			require.NoError(t, err)

			imported, err := m.ToEntityList(data, format)
			require.NoError(t, err)
			assertNoticesEqual(t, list, imported)
		})
	}
}

func TestImportExportWithoutHeader(t *testing.T) {
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			m := newNoticeMapping(t)
			m.HasSheetConfiguration(0, "test", 0)
			list := append(sampleNotices(10), &notice{Title: "nnnn"}, nil)

			data, err := m.ToBytes(list, format)
			require.NoError(t, err)

			sheet := loadSheet(t, data, 0)
			assert.Equal(t, "test", sheet.Name())
			assert.Equal(t, workbook.NumberValue(1), sheet.RowAt(0).CellAt(0, false).Value())

			imported, err := m.ToEntityList(data, format)
			require.NoError(t, err)
			assertNoticesEqual(t, list, imported)
		})
	}
}

func TestImportWithColumnIndexOverride(t *testing.T) {
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			m := newNoticeMapping(t)
			list := sampleNotices(10)

			data, err := m.ToBytes(list, format)
			require.NoError(t, err)

			m.Lock()
			m.Property("Publisher").HasColumnIndex(3)
			m.Property("PublishedAt").HasColumnIndex(4)
			imported, err := m.ToEntityList(data, format)
			require.NoError(t, err)
			assertNoticesEqual(t, list, imported)

			// Relocated layout written and read back without a header.
			m.HasSheetConfiguration(0, "test", 0)
			swapped, err := m.ToBytes(list, format)
			require.NoError(t, err)
			sheet := loadSheet(t, swapped, 0)
			assert.Equal(t, "publisher_0", sheet.RowAt(0).CellAt(3, false).Value().Text)

			imported, err = m.ToEntityList(swapped, format)
			require.NoError(t, err)
			assertNoticesEqual(t, list, imported)

			m.ClearOverrides()
			m.Unlock()

			cols, err := m.Columns()
			require.NoError(t, err)
			assert.Equal(t, 3, cols[3].Index)
			assert.Equal(t, "PublishedAt", cols[3].Field)
		})
	}
}

func TestHeaderMatchingNeverCrossReads(t *testing.T) {
	m := newNoticeMapping(t)
	list := sampleNotices(3)

	// Title and Content swap places; the header keeps each at its own column.
	m.Property("Title").HasColumnIndex(2)
	m.Property("Content").HasColumnIndex(1)
	data, err := m.ToBytes(list, workbook.FormatXlsx)
	require.NoError(t, err)
	m.ClearOverrides()

	imported, err := m.ToEntityList(data, workbook.FormatXlsx)
	require.NoError(t, err)
	assertNoticesEqual(t, list, imported)
}

func TestShadowProperty(t *testing.T) {
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			m := newNoticeMapping(t)
			list := sampleNotices(10)

			m.ShadowProperty("ShadowProperty").HasOutputFormatter(func(n *notice, _ any) any {
				return fmt.Sprintf("%d...", n.ID)
			})
			data, err := m.ToBytes(list, format)
			require.NoError(t, err)

			sheet := loadSheet(t, data, 0)
			assert.Equal(t, "ShadowProperty", sheet.RowAt(0).CellAt(5, false).Value().Text)
			assert.Equal(t, "1...", sheet.RowAt(1).CellAt(5, false).Value().Text)

			imported, err := m.ToEntityList(data, format)
			require.NoError(t, err)
			assertNoticesEqual(t, list, imported)
		})
	}
}

func TestSchemaShadowColumn(t *testing.T) {
	schema := noticeSchema()
	schema.Fields = append(schema.Fields, Shadow("Summary", func(n *notice) any {
		return n.Title + "/" + n.Content
	}))
	m, err := Register(NewRegistry(), schema)
	require.NoError(t, err)

	list := sampleNotices(2)
	data, err := m.ToBytes(list, workbook.FormatXlsx)
	require.NoError(t, err)

	sheet := loadSheet(t, data, 0)
	assert.Equal(t, "title_1/content_1", sheet.RowAt(2).CellAt(5, false).Value().Text)

	imported, err := m.ToEntityList(data, workbook.FormatXlsx)
	require.NoError(t, err)
	assertNoticesEqual(t, list, imported)
}

func TestIgnoreProperty(t *testing.T) {
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			m := newNoticeMapping(t)
			list := sampleNotices(10)

			m.Property("Id").Ignored(true)
			data, err := m.ToBytes(list, format)
			require.NoError(t, err)

			header := loadSheet(t, data, 0).RowAt(0)
			assert.Equal(t, "Title", header.CellAt(0, false).Value().Text)
			for c := 0; c < header.CellCount(); c++ {
				if cell := header.CellAt(c, false); cell != nil {
					assert.NotEqual(t, "Id", cell.Value().Text)
				}
			}

			imported, err := m.ToEntityList(data, format)
			require.NoError(t, err)
			require.Len(t, imported, len(list))
			for i := range list {
				assert.Zero(t, imported[i].ID)
				assert.Equal(t, list[i].Title, imported[i].Title)
				assert.Equal(t, list[i].Content, imported[i].Content)
				assert.Equal(t, list[i].Publisher, imported[i].Publisher)
			}

			m.Property("Id").Ignored(false).HasColumnIndex(0)
			cols, err := m.Columns()
			require.NoError(t, err)
			assert.Equal(t, 0, cols[0].Index)
			assert.False(t, cols[0].Ignored)
		})
	}
}

func TestColumnInputFormatter(t *testing.T) {
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			m := newNoticeMapping(t)
			list := sampleNotices(10)
			data, err := m.ToBytes(list, format)
			require.NoError(t, err)

			m.Lock()
			defer m.Unlock()
			m.Property("Title").HasColumnInputFormatter(func(raw any) (any, error) {
				return fmt.Sprintf("%v_Test", raw), nil
			})
			imported, err := m.ToEntityList(data, format)
			require.NoError(t, err)
			require.Len(t, imported, len(list))
			for i := range list {
				assert.Equal(t, list[i].Title+"_Test", imported[i].Title)
				assert.Equal(t, list[i].ID, imported[i].ID)
			}

			m.Property("Title").HasColumnInputFormatter(nil)
			imported, err = m.ToEntityList(data, format)
			require.NoError(t, err)
			assertNoticesEqual(t, list, imported)
		})
	}
}

func TestInputOutputColumnFormatter(t *testing.T) {
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			m := newNoticeMapping(t)
			list := sampleNotices(10)

			m.Property("Id").
				HasColumnOutputFormatter(func(v any) any { return fmt.Sprintf("%v_Test", v) }).
				HasColumnInputFormatter(func(raw any) (any, error) {
					return strconv.Atoi(strings.Split(fmt.Sprint(raw), "_")[0])
				})
			data, err := m.ToBytes(list, format)
			require.NoError(t, err)
			assert.Equal(t, "1_Test", loadSheet(t, data, 0).RowAt(1).CellAt(0, false).Value().Text)

			imported, err := m.ToEntityList(data, format)
			require.NoError(t, err)
			assertNoticesEqual(t, list, imported)

			m.Property("Id").HasColumnOutputFormatter(nil).HasColumnInputFormatter(nil)
		})
	}
}

func TestImportFilter(t *testing.T) {
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			m := newNoticeMapping(t)
			list := sampleNotices(10)
			data, err := m.ToBytes(list, format)
			require.NoError(t, err)

			m.WithImportFilter(func(n *notice) bool { return n.ID > 5 })
			imported, results, err := m.ToEntityListWithValidation(data, format, nil)
			require.NoError(t, err)
			assert.Len(t, results, len(imported))
			assertNoticesEqual(t, list[5:], imported)

			m.WithImportFilter(nil)
			imported, err = m.ToEntityList(data, format)
			require.NoError(t, err)
			assert.Len(t, imported, len(list))
		})
	}
}

func TestExportDataFilter(t *testing.T) {
	m := newNoticeMapping(t)
	list := sampleNotices(10)

	m.WithDataFilter(func(n *notice) bool { return n.ID%2 == 0 })
	data, err := m.ToBytes(list, workbook.FormatXlsx)
	require.NoError(t, err)
	assert.Equal(t, 1+5, loadSheet(t, data, 0).RowCount())

	imported, err := m.ToEntityList(data, workbook.FormatXlsx)
	require.NoError(t, err)
	want := []*notice{list[1], list[3], list[5], list[7], list[9]}
	assertNoticesEqual(t, want, imported)

	m.WithDataFilter(nil)
	data, err = m.ToBytes(list, workbook.FormatXlsx)
	require.NoError(t, err)
	assert.Equal(t, 1+10, loadSheet(t, data, 0).RowCount())
}

type account struct {
	Code  string
	Email string
	Name  *string
}

func accountSchema() Schema[account] {
	return NewSchema("Accounts",
		Field("Code", func(a *account) *string { return &a.Code }, Required(), MaxLength(4)),
		Field("Email", func(a *account) *string { return &a.Email }, Pattern(`^[^@\s]+@[^@\s]+$`)),
		Field("Name", func(a *account) **string { return &a.Name }, Required()),
	)
}

func TestValidationAlignment(t *testing.T) {
	m, err := Register(NewRegistry(), accountSchema())
	require.NoError(t, err)

	list := []*account{
		{Code: "A1", Email: "a@example.com", Name: strPtr("Ann")},
		{Code: "TOOLONG", Email: "b@example.com", Name: strPtr("Bob")},
		nil,
		{Code: "C3", Email: "not-an-email", Name: strPtr("Cid")},
		{Code: "D4", Email: "d@example.com"},
	}
	data, err := m.ToBytes(list, workbook.FormatXlsx)
	require.NoError(t, err)

	records, results, err := m.ToEntityListWithValidation(data, workbook.FormatXlsx, nil)
	require.NoError(t, err)
	require.Len(t, records, len(list))
	require.Len(t, results, len(list))

	assert.True(t, results[0].Valid)
	assert.False(t, results[1].Valid)
	assert.Contains(t, results[1].Errors, "Code")
	assert.Nil(t, records[2])
	assert.True(t, results[2].Valid)
	assert.False(t, results[3].Valid)
	assert.Contains(t, results[3].Errors, "Email")
	assert.False(t, results[4].Valid)
	assert.Equal(t, []string{"Name is required"}, results[4].Errors["Name"])

	custom := ValidatorFunc[account](func(a *account) ValidationResult {
		r := NewValidationResult()
		if strings.HasPrefix(a.Code, "A") {
			r.AddError("Code", "A codes are retired")
		}
		return r
	})
	_, results, err = m.ToEntityListWithValidation(data, workbook.FormatXlsx, custom)
	require.NoError(t, err)
	require.Len(t, results, len(list))
	assert.False(t, results[0].Valid)
	assert.True(t, results[1].Valid)
	assert.True(t, results[3].Valid)
}

func TestCellParseFailureAndStrictMode(t *testing.T) {
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			m := newNoticeMapping(t)
			data := buildWorkbook(t, format, [][]any{
				{"Id", "Title", "Content", "PublishedAt", "Publisher"},
				{1, "first", "c1", "2024-01-02 03:04:05", "p1"},
				{"abc", "second", "c2", nil, "p2"},
				{3, "third", "c3", "yesterday", "p3"},
			})

			records, results, err := m.ToEntityListWithValidation(data, format, nil)
			require.NoError(t, err)
			require.Len(t, records, 3)
			require.Len(t, results, 3)
			assert.True(t, results[0].Valid)
			require.NotNil(t, records[1])
			assert.Zero(t, records[1].ID)
			assert.Equal(t, "second", records[1].Title)
			assert.False(t, results[1].Valid)
			assert.Contains(t, results[1].Errors, "Id")
			assert.False(t, results[2].Valid)
			assert.Contains(t, results[2].Errors, "PublishedAt")

			records, results, err = m.ToEntityListWithValidation(data, format, nil, WithStrict())
			require.NoError(t, err)
			require.Len(t, records, 3)
			assert.NotNil(t, records[0])
			assert.Nil(t, records[1])
			assert.False(t, results[1].Valid)
			assert.Nil(t, records[2])

			loose, err := m.ToEntityList(data, format)
			require.NoError(t, err)
			require.Len(t, loose, 3)
			assert.Equal(t, "third", loose[2].Title)
		})
	}
}

type member struct {
	Code     string
	Age      int
	JoinedAt time.Time
}

func TestValidationKeysUseColumnTitles(t *testing.T) {
	m, err := Register(NewRegistry(), NewSchema("Members",
		Field("Code", func(r *member) *string { return &r.Code }, ColumnName("Member Code"), Required()),
		Field("Age", func(r *member) *int { return &r.Age }, ColumnName("Age In Years")),
		Field("JoinedAt", func(r *member) *time.Time { return &r.JoinedAt }, ColumnName("Joined On"), Required()),
	))
	require.NoError(t, err)

	data := buildWorkbook(t, workbook.FormatXlsx, [][]any{
		{"Member Code", "Age In Years", "Joined On"},
		{"M1", 30, "2024-01-02 03:04:05"},
		{nil, "thirty", "2024-01-02 03:04:05"},
		{"M3", 41, "yesterday"},
		{"M4", 52, nil},
	})
	records, results, err := m.ToEntityListWithValidation(data, workbook.FormatXlsx, nil)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.True(t, results[0].Valid)

	assert.ElementsMatch(t, []string{"Member Code", "Age In Years"}, keysOf(results[1].Errors))
	assert.Equal(t, []string{"Member Code is required"}, results[1].Errors["Member Code"])

	require.NotNil(t, records[2])
	assert.Equal(t, []string{"Joined On"}, keysOf(results[2].Errors), "parse and required failures of one column share a key")
	assert.Len(t, results[2].Errors["Joined On"], 2)

	assert.False(t, results[3].Valid, "a required time left blank is missing")
	assert.Equal(t, []string{"Joined On is required"}, results[3].Errors["Joined On"])
}

func keysOf(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

type formulaModel struct {
	Num1 int
	Num2 int
	Sum  int
}

func TestImportWithFormula(t *testing.T) {
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			m, err := Register(NewRegistry(), NewSchema("Test",
				Field("Num1", func(f *formulaModel) *int { return &f.Num1 }),
				Field("Num2", func(f *formulaModel) *int { return &f.Num2 }),
				Field("Sum", func(f *formulaModel) *int { return &f.Sum }),
			))
			require.NoError(t, err)
			m.HasSheetConfiguration(0, "Test", 0)
			m.Property("Num1").HasColumnIndex(0)
			m.Property("Num2").HasColumnIndex(1)
			m.Property("Sum").HasColumnIndex(2)

			data := buildWorkbook(t, format, [][]any{{1, 2, "=$A1+$B1"}})
			list, err := m.ToEntityList(data, format)
			require.NoError(t, err)
			require.NotEmpty(t, list)
			require.NotNil(t, list[0])
			assert.Equal(t, formulaModel{Num1: 1, Num2: 2, Sum: 3}, *list[0])
		})
	}
}

func TestImportWithCellFilter(t *testing.T) {
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			m := newNoticeMapping(t)
			list := sampleNotices(10)
			data, err := m.ToBytes(list, format)
			require.NoError(t, err)

			m.Lock()
			defer m.Unlock()
			m.WithCellFilter(func(pos CellPosition) bool { return pos.Column == 0 })
			imported, err := m.ToEntityList(data, format)
			require.NoError(t, err)
			require.Len(t, imported, len(list))
			for i := range list {
				require.NotNil(t, imported[i])
				assert.Equal(t, list[i].ID, imported[i].ID)
				assert.Empty(t, imported[i].Title)
				assert.Empty(t, imported[i].Content)
				assert.Nil(t, imported[i].Publisher)
				assert.True(t, imported[i].PublishedAt.IsZero())
			}
			m.WithCellFilter(nil)
		})
	}
}

type columnLimited struct {
	ID          int
	Name        string
	Description string
}

func TestMaxColumns(t *testing.T) {
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			m, err := Register(NewRegistry(), NewSchema("test",
				Field("Id", func(c *columnLimited) *int { return &c.ID }, ColumnIndex(0)),
				Field("Name", func(c *columnLimited) *string { return &c.Name }, ColumnIndex(1)),
				Field("Description", func(c *columnLimited) *string { return &c.Description }, ColumnIndex(2)),
			))
			require.NoError(t, err)
			m.HasSheetSetting(func(c *SheetConfiguration) {
				c.MaxColumns = 2
				c.AutoColumnWidth = true
			})

			list := make([]*columnLimited, 10)
			for i := range list {
				list[i] = &columnLimited{ID: i + 1, Name: fmt.Sprintf("title_%d", i), Description: fmt.Sprintf("content_%d", i)}
			}
			data, err := m.ToBytes(list, format)
			require.NoError(t, err)
			assert.Nil(t, loadSheet(t, data, 0).RowAt(1).CellAt(2, false))

			imported, err := m.ToEntityList(data, format)
			require.NoError(t, err)
			require.Len(t, imported, len(list))
			for i := range list {
				assert.Equal(t, list[i].ID, imported[i].ID)
				assert.Equal(t, list[i].Name, imported[i].Name)
				assert.Empty(t, imported[i].Description)
			}
		})
	}
}

type optionalOnly struct {
	Name *string
	At   time.Time
}

func TestNullRecordBoundary(t *testing.T) {
	t.Run("default values stay non-null", func(t *testing.T) {
		m := newNoticeMapping(t)
		list := []*notice{{}, nil, {}}
		data, err := m.ToBytes(list, workbook.FormatXlsx)
		require.NoError(t, err)

		imported, err := m.ToEntityList(data, workbook.FormatXlsx)
		require.NoError(t, err)
		require.Len(t, imported, 3)
		assert.Equal(t, &notice{}, imported[0])
		assert.Nil(t, imported[1])
		assert.Equal(t, &notice{}, imported[2])
	})

	t.Run("all absent values read as null", func(t *testing.T) {
		m, err := Register(NewRegistry(), NewSchema("Optional",
			Field("Name", func(o *optionalOnly) **string { return &o.Name }),
			Field("At", func(o *optionalOnly) *time.Time { return &o.At }),
		))
		require.NoError(t, err)
		list := []*optionalOnly{{Name: strPtr("")}, {}}
		data, err := m.ToBytes(list, workbook.FormatXlsx)
		require.NoError(t, err)

		imported, err := m.ToEntityList(data, workbook.FormatXlsx)
		require.NoError(t, err)
		require.Len(t, imported, 2)
		require.NotNil(t, imported[0], "an empty string is a present value")
		assert.Equal(t, strPtr(""), imported[0].Name)
		assert.Nil(t, imported[1], "a record with only absent values cannot be told from a blank row")
	})
}

func TestConfigurationErrors(t *testing.T) {
	t.Run("duplicate explicit index", func(t *testing.T) {
		m := newNoticeMapping(t)
		m.Property("Id").HasColumnIndex(2)
		m.Property("Title").HasColumnIndex(2)
		_, err := m.ToBytes(sampleNotices(1), workbook.FormatXlsx)
		assert.ErrorIs(t, err, ErrConfigurationConflict)

		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "Title", cfgErr.Field)

		_, err = m.ToEntityList([]byte("not a workbook"), workbook.FormatXlsx)
		assert.ErrorIs(t, err, ErrConfigurationConflict, "configuration is checked before reading input")
	})

	t.Run("unknown override", func(t *testing.T) {
		m := newNoticeMapping(t)
		m.Property("Missing").HasColumnTitle("x")
		_, err := m.Columns()
		assert.ErrorIs(t, err, ErrConfigurationConflict)
	})

	t.Run("duplicate schema field", func(t *testing.T) {
		_, err := Register(NewRegistry(), NewSchema("Dup",
			Field("A", func(n *notice) *int { return &n.ID }),
			Field("A", func(n *notice) *string { return &n.Title }),
		))
		assert.ErrorIs(t, err, ErrConfigurationConflict)
	})

	t.Run("register twice", func(t *testing.T) {
		reg := NewRegistry()
		_, err := Register(reg, noticeSchema())
		require.NoError(t, err)
		_, err = Register(reg, noticeSchema())
		assert.ErrorIs(t, err, ErrConfigurationConflict)

		m, ok := Lookup[notice](reg)
		assert.True(t, ok)
		assert.NotNil(t, m)
		_, ok = Lookup[account](reg)
		assert.False(t, ok)
	})

	t.Run("header after start row", func(t *testing.T) {
		m := newNoticeMapping(t)
		m.HasSheetSetting(func(c *SheetConfiguration) { c.HeaderRowIndex = 3 })
		_, err := m.ToBytes(nil, workbook.FormatXlsx)
		assert.ErrorIs(t, err, ErrConfigurationConflict)
	})

	t.Run("column index beyond format", func(t *testing.T) {
		m := newNoticeMapping(t)
		m.Property("Title").HasColumnIndex(20000)
		_, err := m.ToBytes(sampleNotices(1), workbook.FormatXlsx)
		assert.ErrorIs(t, err, ErrConfigurationConflict)

		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "Title", cfgErr.Field)

		m.Property("Title").HasColumnIndex(300)
		_, err = m.ToBytes(sampleNotices(1), workbook.FormatXlsx)
		assert.NoError(t, err)
		_, err = m.ToBytes(sampleNotices(1), workbook.FormatXls)
		assert.ErrorIs(t, err, ErrConfigurationConflict)
	})
}

type geo struct {
	Lat, Lng float64
}

type place struct {
	Name     string
	Location geo
}

func TestUnsupportedDataKind(t *testing.T) {
	m, err := Register(NewRegistry(), NewSchema("Places",
		Field("Name", func(p *place) *string { return &p.Name }),
		Field("Location", func(p *place) *geo { return &p.Location }),
	))
	require.NoError(t, err)
	list := []*place{{Name: "HQ", Location: geo{Lat: 1.5, Lng: 2.5}}}

	_, err = m.ToBytes(list, workbook.FormatXlsx)
	assert.ErrorIs(t, err, ErrUnsupportedDataKind)

	m.Property("Location").HasColumnOutputFormatter(func(v any) any {
		g := v.(geo)
		return fmt.Sprintf("%g,%g", g.Lat, g.Lng)
	})
	data, err := m.ToBytes(list, workbook.FormatXlsx)
	require.NoError(t, err)

	_, err = m.ToEntityList(data, workbook.FormatXlsx)
	assert.ErrorIs(t, err, ErrUnsupportedDataKind)

	m.Property("Location").HasColumnInputFormatter(func(raw any) (any, error) {
		parts := strings.Split(fmt.Sprint(raw), ",")
		lat, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, err
		}
		lng, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, err
		}
		return geo{Lat: lat, Lng: lng}, nil
	})
	imported, err := m.ToEntityList(data, workbook.FormatXlsx)
	require.NoError(t, err)
	require.Len(t, imported, 1)
	assert.Equal(t, *list[0], *imported[0])
}

func TestMetadataPrecedence(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterFormatter("upper", func(v any) any { return strings.ToUpper(fmt.Sprint(v)) })
	schema := noticeSchema()
	schema.Fields[1] = Field("Title", func(n *notice) *string { return &n.Title }, ColumnName("Heading"))
	m, err := Register(reg, schema)
	require.NoError(t, err)

	cols, err := m.Columns()
	require.NoError(t, err)
	assert.Equal(t, "Heading", cols[1].Title)

	require.NoError(t, m.LoadMetadata([]byte(`
sheet:
  name: Board
  auto_column_width: true
columns:
  - field: Title
    title: Notice title
    formatter: upper
  - field: Publisher
    index: 0
  - field: Id
    index: 4
`)))
	cols, err = m.Columns()
	require.NoError(t, err)
	assert.Equal(t, "Notice title", cols[1].Title)
	assert.Equal(t, 0, cols[4].Index)
	assert.Equal(t, 4, cols[0].Index)
	assert.Equal(t, "Board", m.SheetConfiguration().Name)

	data, err := m.ToBytes(sampleNotices(1), workbook.FormatXlsx)
	require.NoError(t, err)
	sheet := loadSheet(t, data, 0)
	assert.Equal(t, "Board", sheet.Name())
	assert.Equal(t, "TITLE_0", sheet.RowAt(1).CellAt(1, false).Value().Text)

	m.Property("Title").HasColumnTitle("Override")
	m.HasSheetConfiguration(0, "Imperative", 1)
	cols, err = m.Columns()
	require.NoError(t, err)
	assert.Equal(t, "Override", cols[1].Title)
	assert.Equal(t, "Imperative", m.SheetConfiguration().Name)
	assert.True(t, m.SheetConfiguration().AutoColumnWidth)

	m.ClearOverrides()
	cols, err = m.Columns()
	require.NoError(t, err)
	assert.Equal(t, "Notice title", cols[1].Title)

	assert.ErrorIs(t, m.LoadMetadata([]byte("columns:\n  - field: Nope\n")), ErrConfigurationConflict)
	assert.ErrorIs(t, m.LoadMetadata([]byte("columns:\n  - field: Title\n    formatter: missing\n")), ErrConfigurationConflict)
	assert.Error(t, m.LoadMetadata([]byte("sheet: [")))
}

func TestConcurrentOverrideSessions(t *testing.T) {
	m := newNoticeMapping(t)
	list := sampleNotices(5)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			m.Lock()
			defer m.Unlock()
			defer m.ClearOverrides()

			m.HasSheetConfiguration(0, "session", 0)
			m.Property("Title").HasColumnIndex(4)
			m.Property("Publisher").HasColumnIndex(1)
			data, err := m.ToBytes(list, workbook.FormatXlsx)
			if err != nil {
				errs <- err
				return
			}
			got, err := m.ToEntityList(data, workbook.FormatXlsx)
			if err != nil {
				errs <- err
				return
			}
			if len(got) != len(list) || got[2].Title != list[2].Title || *got[2].Publisher != *list[2].Publisher {
				errs <- fmt.Errorf("session %d read a foreign layout", g)
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	cols, err := m.Columns()
	require.NoError(t, err)
	assert.Equal(t, 1, cols[1].Index)
}

type profile struct {
	Name  string
	Photo []byte
}

func TestPictureField(t *testing.T) {
	png, err := base64.StdEncoding.DecodeString(
		"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=")
	require.NoError(t, err)

	m, err := Register(NewRegistry(), NewSchema("Profiles",
		Field("Name", func(p *profile) *string { return &p.Name }),
		Field("Photo", func(p *profile) *[]byte { return &p.Photo }),
	))
	require.NoError(t, err)

	list := []*profile{{Name: "with", Photo: png}, {Name: "without"}}
	data, err := m.ToBytes(list, workbook.FormatXlsx)
	require.NoError(t, err)

	imported, err := m.ToEntityList(data, workbook.FormatXlsx)
	require.NoError(t, err)
	require.Len(t, imported, 2)
	assert.Equal(t, png, imported[0].Photo)
	assert.Empty(t, imported[1].Photo)
}

func TestCellReaderWriterAndDefaults(t *testing.T) {
	m := newNoticeMapping(t)
	m.Property("Title").
		HasColumnWriter(CellWriterFunc[notice](func(ctx CellContext[notice], v any) error {
			return ctx.Cell.SetValue(workbook.StringValue("custom:" + v.(string)))
		})).
		HasColumnReader(CellReaderFunc[notice](func(ctx CellContext[notice]) (any, error) {
			if ctx.Cell == nil {
				return "", nil
			}
			return strings.TrimPrefix(ctx.Cell.Value().Text, "custom:"), nil
		}))
	m.Property("Publisher").HasDefaultValue("anonymous")

	list := sampleNotices(2)
	list[1].Publisher = nil
	data, err := m.ToBytes(list, workbook.FormatXlsx)
	require.NoError(t, err)
	assert.Equal(t, "custom:title_0", loadSheet(t, data, 0).RowAt(1).CellAt(1, false).Value().Text)

	imported, err := m.ToEntityList(data, workbook.FormatXlsx)
	require.NoError(t, err)
	require.Len(t, imported, 2)
	assert.Equal(t, "title_0", imported[0].Title)
	assert.Equal(t, "publisher_0", *imported[0].Publisher)
	assert.Equal(t, "anonymous", *imported[1].Publisher)
}

func TestTimeFromSerialNumber(t *testing.T) {
	m := newNoticeMapping(t)
	data := buildWorkbook(t, workbook.FormatXlsx, [][]any{
		{"Id", "Title", "Content", "PublishedAt", "Publisher"},
		{1, "t", "c", 45292.5, "p"},
	})
	imported, err := m.ToEntityList(data, workbook.FormatXlsx)
	require.NoError(t, err)
	require.Len(t, imported, 1)
	assert.Equal(t, "2024-01-01 12:00:00", imported[0].PublishedAt.Format(DefaultTimeLayout))
}

func TestSheetIndexAndToFile(t *testing.T) {
	m := newNoticeMapping(t)
	m.HasSheetConfiguration(1, "Second", 1)
	list := sampleNotices(3)

	path := t.TempDir() + "/notices.xlsx"
	require.NoError(t, m.ToFile(list, path))

	wb, err := workbook.Open(path)
	require.NoError(t, err)
	defer wb.Close()
	require.Equal(t, 2, wb.SheetCount())
	second, err := wb.SheetAt(1)
	require.NoError(t, err)
	assert.Equal(t, "Second", second.Name())

	data, err := m.ToBytes(list, workbook.FormatXlsx)
	require.NoError(t, err)
	imported, err := m.ToEntityList(data, workbook.FormatUnknown)
	require.NoError(t, err)
	assertNoticesEqual(t, list, imported)

	assert.Error(t, m.ToFile(list, t.TempDir()+"/notices.txt"))
}
