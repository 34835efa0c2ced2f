package sheetmap

import (
	"fmt"
	"testing"
	"time"

	"github.com/locvowork/sheetmap/pkg/workbook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var formats = []workbook.Format{workbook.FormatXls, workbook.FormatXlsx}

type notice struct {
	ID          int
	Title       string
	Content     string
	PublishedAt time.Time
	Publisher   *string
}

func noticeSchema() Schema[notice] {
	return NewSchema("Notices",
		Field("Id", func(n *notice) *int { return &n.ID }),
		Field("Title", func(n *notice) *string { return &n.Title }),
		Field("Content", func(n *notice) *string { return &n.Content }),
		Field("PublishedAt", func(n *notice) *time.Time { return &n.PublishedAt }),
		Field("Publisher", func(n *notice) **string { return &n.Publisher }),
	)
}

func newNoticeMapping(t *testing.T) *Mapping[notice] {
	t.Helper()
	m, err := Register(NewRegistry(), noticeSchema())
	require.NoError(t, err)
	return m
}

func strPtr(s string) *string { return &s }

func sampleNotices(n int) []*notice {
	now := time.Now()
	list := make([]*notice, 0, n)
	for i := 0; i < n; i++ {
		list = append(list, &notice{
			ID:          i + 1,
			Title:       fmt.Sprintf("title_%d", i),
			Content:     fmt.Sprintf("content_%d", i),
			PublishedAt: now.AddDate(0, 0, -i),
			Publisher:   strPtr(fmt.Sprintf("publisher_%d", i)),
		})
	}
	return list
}

func assertNoticesEqual(t *testing.T, want, got []*notice) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if want[i] == nil {
			assert.Nil(t, got[i], "record %d", i)
			continue
		}
		require.NotNil(t, got[i], "record %d", i)
		assert.Equal(t, want[i].ID, got[i].ID, "record %d", i)
		assert.Equal(t, want[i].Title, got[i].Title, "record %d", i)
		assert.Equal(t, want[i].Content, got[i].Content, "record %d", i)
		assert.Equal(t, want[i].Publisher, got[i].Publisher, "record %d", i)
		assert.Equal(t, want[i].PublishedAt.Format(DefaultTimeLayout), got[i].PublishedAt.Format(DefaultTimeLayout), "record %d", i)
	}
}

// buildWorkbook writes rows of raw cell values into a single sheet. Strings
// starting with "=" become formulas and nil leaves the cell absent.
func buildWorkbook(t *testing.T, format workbook.Format, rows [][]any) []byte {
	t.Helper()
	wb, err := workbook.Create(format)
	require.NoError(t, err)
	sheet, err := wb.CreateSheet("Sheet1")
	require.NoError(t, err)
	for r, values := range rows {
		row, err := sheet.CreateRow(r)
		require.NoError(t, err)
		for c, v := range values {
			cell := row.CellAt(c, true)
			switch x := v.(type) {
			case nil:
			case string:
				if len(x) > 1 && x[0] == '=' {
					require.NoError(t, cell.SetFormula(x))
				} else {
					require.NoError(t, cell.SetValue(workbook.StringValue(x)))
				}
			case int:
				require.NoError(t, cell.SetValue(workbook.NumberValue(float64(x))))
			case float64:
				require.NoError(t, cell.SetValue(workbook.NumberValue(x)))
			case bool:
				require.NoError(t, cell.SetValue(workbook.BoolValue(x)))
			default:
				t.Fatalf("unsupported test cell %T", v)
			}
		}
	}
	data, err := wb.Serialize()
	require.NoError(t, err)
	return data
}

func loadSheet(t *testing.T, data []byte, index int) workbook.Sheet {
	t.Helper()
	wb, err := workbook.Load(data, workbook.FormatUnknown)
	require.NoError(t, err)
	sheet, err := wb.SheetAt(index)
	require.NoError(t, err)
	return sheet
}
