package fetcher

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheetName string, rows [][]string) string {
	t.Helper()

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	require.NoError(t, err)

	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range r {
			cell := row.AddCell()
			cell.Value = v
		}
	}

	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX(t *testing.T) {
	path := createTestXLSX(t, "Sheet1", [][]string{
		{"tract", "p20", "p40", "p60", "p80"},
		{"37155970100", "18000", "35000", "52000", "78000"},
	})

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"37155970100", "18000", "35000", "52000", "78000"}, rows[1])
}

func TestReadXLSX_SkipRows(t *testing.T) {
	path := createTestXLSX(t, "Income", [][]string{
		{"Household Income Distribution, 2010 vintage"},
		{"tract", "p20", "p40"},
		{"37155970100", "18000", "35000"},
	})

	rows, err := ReadXLSX(path, XLSXOptions{SkipRows: 2})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "37155970100", rows[0][0])
}

func TestReadXLSX_SheetName(t *testing.T) {
	path := createTestXLSX(t, "Distributions", [][]string{
		{"a", "b"},
	})

	rows, err := ReadXLSX(path, XLSXOptions{SheetName: "Distributions"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestReadXLSX_SheetNameNotFound(t *testing.T) {
	path := createTestXLSX(t, "Sheet1", [][]string{{"a"}})

	_, err := ReadXLSX(path, XLSXOptions{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Missing" not found`)
}

func TestReadXLSX_SheetIndexOutOfRange(t *testing.T) {
	path := createTestXLSX(t, "Sheet1", [][]string{{"a"}})

	_, err := ReadXLSX(path, XLSXOptions{SheetIndex: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadXLSX_FileNotFound(t *testing.T) {
	_, err := ReadXLSX("/nonexistent/file.xlsx", XLSXOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open file")
}
