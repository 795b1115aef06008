package conflicts

import (
	"context"
	"database/sql"
	"testing"

	"github.com/donets/jtrack/internal/client/migrations"
	"github.com/donets/jtrack/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(context.Background(), db))
	return db
}

func TestRecordListClear(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	first := &Conflict{LocationID: "loc-1", Family: domain.FamilyTickets, EntityID: "t-1", Kind: "transition", Reason: "ticket is Canceled", Current: []byte(`{"id":"t-1"}`), RecordedAt: 5}
	second := &Conflict{LocationID: "loc-1", Family: domain.FamilyPaymentRecords, EntityID: "p-1", Kind: "authorization", Reason: "technicians cannot record payments", RecordedAt: 6}
	require.NoError(t, r.Record(ctx, first))
	require.NoError(t, r.Record(ctx, second))
	require.NoError(t, r.Record(ctx, &Conflict{LocationID: "loc-2", Family: domain.FamilyTickets, EntityID: "x", Kind: KindOverwritten, Reason: "r", RecordedAt: 7}))
	assert.NotZero(t, first.ID)

	got, err := r.List(ctx, "loc-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, *second, got[0])
	assert.Nil(t, got[0].Current)
	assert.Equal(t, *first, got[1])

	require.NoError(t, r.Clear(ctx, "loc-1"))
	got, err = r.List(ctx, "loc-1")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = r.List(ctx, "loc-2")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
