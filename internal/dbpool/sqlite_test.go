package dbpool

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLitePool_QueryExecPing(t *testing.T) {
	db, mockDB, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mockDB.ExpectQuery("SELECT id FROM orders WHERE id = ?").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mockDB.ExpectExec("UPDATE orders SET status = ?").
		WithArgs("shipped").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectPing()

	pool := &sqlitePool{db: db}

	rows, err := pool.Query(context.Background(), "SELECT id FROM orders WHERE id = ?", int64(1))
	require.NoError(t, err)
	require.True(t, rows.Next())
	var id int64
	require.NoError(t, rows.Scan(&id))
	assert.Equal(t, int64(1), id)
	require.NoError(t, rows.Close())

	require.NoError(t, pool.Exec(context.Background(), "UPDATE orders SET status = ?", "shipped"))
	require.NoError(t, pool.Ping(context.Background()))

	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestSQLitePool_QueryErrorPropagates(t *testing.T) {
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mockDB.ExpectQuery("SELECT 1").WillReturnError(assert.AnError)

	pool := &sqlitePool{db: db}
	_, err = pool.Query(context.Background(), "SELECT 1")
	assert.Error(t, err)
}
