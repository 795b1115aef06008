package receipts

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/donets/jtrack/internal/common"
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

func TestFind(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT outcome, committed_at FROM push_receipts WHERE location_id = \$1 AND client_id = \$2 AND payload_hash = \$3`).
		WithArgs("loc-1", "dev-1", "abc").
		WillReturnRows(sqlmock.NewRows([]string{"outcome", "committed_at"}).AddRow([]byte(`{"ok":true}`), int64(77)))

	rec, err := repo.Find(context.Background(), "loc-1", "dev-1", "abc")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(rec.Outcome))
	assert.Equal(t, int64(77), rec.CommittedAt)
	assert.Equal(t, "dev-1", rec.ClientID)

	mock.ExpectQuery(`FROM push_receipts`).WithArgs("loc-1", "dev-1", "zzz").WillReturnError(sql.ErrNoRows)
	_, err = repo.Find(context.Background(), "loc-1", "dev-1", "zzz")
	require.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSave(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO push_receipts .* ON CONFLICT \(location_id, client_id, payload_hash\) DO NOTHING`).
		WithArgs("loc-1", "dev-1", "abc", []byte(`{}`), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Save(context.Background(), &Receipt{LocationID: "loc-1", ClientID: "dev-1", PayloadHash: "abc", Outcome: []byte(`{}`), CommittedAt: 5})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
