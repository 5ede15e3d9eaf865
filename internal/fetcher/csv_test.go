package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectRows(t *testing.T, rowCh <-chan []string, errCh <-chan error) [][]string {
	t.Helper()
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	require.NoError(t, <-errCh)
	return rows
}

func TestStreamCSV_Rows(t *testing.T) {
	input := "blockid,units\n371559701001000,4\n371559701001001,7\n"
	headerCh := make(chan []string, 1)

	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
	})

	rows := collectRows(t, rowCh, errCh)
	assert.Equal(t, [][]string{
		{"371559701001000", "4"},
		{"371559701001001", "7"},
	}, rows)
	assert.Equal(t, []string{"blockid", "units"}, <-headerCh)
}

func TestStreamCSV_HeaderSkippedWithoutChannel(t *testing.T) {
	input := "a,b\n1,2\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
	})

	rows := collectRows(t, rowCh, errCh)
	assert.Equal(t, [][]string{{"1", "2"}}, rows)
}

func TestStreamCSV_PipeDelimited(t *testing.T) {
	input := "37155|Robeson County\n29097|Jasper County\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Delimiter: '|',
	})

	rows := collectRows(t, rowCh, errCh)
	assert.Equal(t, [][]string{
		{"37155", "Robeson County"},
		{"29097", "Jasper County"},
	}, rows)
}

func TestStreamCSV_TrimSpace(t *testing.T) {
	input := " 37155 , Robeson County \n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		TrimSpace: true,
	})

	rows := collectRows(t, rowCh, errCh)
	assert.Equal(t, [][]string{{"37155", "Robeson County"}}, rows)
}

func TestStreamCSV_Comment(t *testing.T) {
	input := "# vacancy code map\n1,for rent\n2,rented not occupied\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Comment: '#',
	})

	rows := collectRows(t, rowCh, errCh)
	assert.Len(t, rows, 2)
}

func TestStreamCSV_VariableFields(t *testing.T) {
	input := "a,b,c\n1,2\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})

	rows := collectRows(t, rowCh, errCh)
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"1", "2"}}, rows)
}

func TestStreamCSV_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rowCh, errCh := StreamCSV(ctx, strings.NewReader("a,b\n1,2\n"), CSVOptions{})

	for range rowCh {
	}
	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}

func TestReadAllCSV(t *testing.T) {
	input := "huid,income\nH371559701001000001,45231.5\n"
	rows, err := ReadAllCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
	})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"H371559701001000001", "45231.5"}}, rows)
}

func TestReadAllCSV_Malformed(t *testing.T) {
	input := "a,b\n\"unclosed,2\n"
	_, err := ReadAllCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read row")
}
