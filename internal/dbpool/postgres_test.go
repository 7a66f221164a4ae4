package dbpool

import (
	"context"
	"testing"

	mock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresPool_QueryExecPing(t *testing.T) {
	mockPool, err := mock.NewPool(mock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectQuery("SELECT id FROM orders WHERE id = ?").
		WithArgs(int64(1)).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(int64(1)))
	mockPool.ExpectExec("UPDATE orders SET status = ?").
		WithArgs("shipped").
		WillReturnResult(mock.NewResult("UPDATE", 1))
	mockPool.ExpectPing()

	pool := &postgresPool{pool: mockPool}

	rows, err := pool.Query(context.Background(), "SELECT id FROM orders WHERE id = ?", int64(1))
	require.NoError(t, err)
	require.True(t, rows.Next())
	var id int64
	require.NoError(t, rows.Scan(&id))
	assert.Equal(t, int64(1), id)
	require.NoError(t, rows.Close())

	require.NoError(t, pool.Exec(context.Background(), "UPDATE orders SET status = ?", "shipped"))
	require.NoError(t, pool.Ping(context.Background()))

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresPool_QueryErrorPropagates(t *testing.T) {
	mockPool, err := mock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectQuery("SELECT 1").WillReturnError(assert.AnError)

	pool := &postgresPool{pool: mockPool}
	_, err = pool.Query(context.Background(), "SELECT 1")
	assert.Error(t, err)
}
