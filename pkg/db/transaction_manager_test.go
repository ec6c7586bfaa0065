// pkg/db/transaction_manager_test.go
package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func TestBeginCommit_ThenRollbackIsSilent(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	tx, err := BeginTx(context.Background(), database)
	require.NoError(t, err)
	require.NoError(t, CommitTx(tx))
	RollbackTx(tx) // deferred rollback after commit

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBeginTx_Error(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	_, err := BeginTx(context.Background(), database)
	assert.ErrorContains(t, err, "begin ledger transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRollbackTx(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	tx, err := BeginTx(context.Background(), database)
	require.NoError(t, err)
	RollbackTx(tx)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "astrolive", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=astrolive sslmode=disable", cfg.DSN())
}
