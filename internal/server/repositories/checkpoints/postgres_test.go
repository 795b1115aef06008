package checkpoints

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestLock_CreatesAndLocksRow(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO location_checkpoints .* ON CONFLICT \(location_id\) DO NOTHING`).
		WithArgs("loc-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT checkpoint FROM location_checkpoints WHERE location_id = \$1 FOR UPDATE`).
		WithArgs("loc-1").WillReturnRows(sqlmock.NewRows([]string{"checkpoint"}).AddRow(int64(1700)))

	ts, err := repo.Lock(context.Background(), "loc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1700), ts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLock_InsertFails(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(`INSERT INTO location_checkpoints`).WillReturnError(errors.New("deadlock"))

	_, err := repo.Lock(context.Background(), "loc-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock")
}

func TestRead(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT checkpoint FROM location_checkpoints WHERE location_id = \$1$`).
		WithArgs("fresh").WillReturnError(sql.ErrNoRows)
	ts, err := repo.Read(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Zero(t, ts)

	mock.ExpectQuery(`SELECT checkpoint FROM location_checkpoints`).
		WithArgs("loc-1").WillReturnRows(sqlmock.NewRows([]string{"checkpoint"}).AddRow(int64(42)))
	ts, err = repo.Read(context.Background(), "loc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), ts)
}

func TestAdvance(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`UPDATE location_checkpoints SET checkpoint = GREATEST\(checkpoint, \$2\) WHERE location_id = \$1`).
		WithArgs("loc-1", int64(99)).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Advance(context.Background(), "loc-1", 99))

	mock.ExpectExec(`UPDATE location_checkpoints`).
		WithArgs("loc-2", int64(5)).WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Advance(context.Background(), "loc-2", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not locked")
	require.NoError(t, mock.ExpectationsWereMet())
}
