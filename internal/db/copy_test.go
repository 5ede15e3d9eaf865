package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "unit_counts", []string{"block_id", "cnt"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"unit_counts"}, []string{"block_id", "cnt"}).WillReturnResult(3)

	rows := [][]any{
		{"371559701001000", 4},
		{"371559701001001", 7},
		{"371559701001002", 1},
	}
	n, err := CopyFrom(context.Background(), mock, "unit_counts", []string{"block_id", "cnt"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"unit_counts"}, []string{"block_id"}).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{"371559701001000"}}
	_, err = CopyFrom(context.Background(), mock, "unit_counts", []string{"block_id"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO unit_counts")
	assert.NoError(t, mock.ExpectationsWereMet())
}

