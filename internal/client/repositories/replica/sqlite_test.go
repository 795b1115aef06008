package replica

import (
	"context"
	"database/sql"
	"testing"

	"github.com/donets/jtrack/internal/client/migrations"
	"github.com/donets/jtrack/internal/common"
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

func ticket(id, loc string, updatedAt int64) *domain.Ticket {
	return &domain.Ticket{
		Syncable:        domain.Syncable{ID: id, LocationID: loc, CreatedAt: 1, UpdatedAt: updatedAt},
		Status:          domain.StatusNew,
		Priority:        domain.PriorityNormal,
		Title:           "fix " + id,
		CreatedByUserID: "u-1",
	}
}

func TestPutGet_RoundTrip(t *testing.T) {
	r := NewTickets(setupDB(t))
	ctx := context.Background()

	start := int64(42)
	in := ticket("t-1", "loc-1", 5)
	in.ScheduledStartAt = &start
	require.NoError(t, r.Put(ctx, in))

	got, err := r.Get(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, in, got)

	in.Title = "changed"
	require.NoError(t, r.Put(ctx, in))
	got, err = r.Get(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, "changed", got.Title)
}

func TestGet_NotFound(t *testing.T) {
	_, err := NewTickets(setupDB(t)).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestList_SkipsDeletedAndOtherLocations(t *testing.T) {
	r := NewTickets(setupDB(t))
	ctx := context.Background()

	gone := ticket("t-3", "loc-1", 9)
	gone.MarkDeleted(9)
	for _, tk := range []*domain.Ticket{ticket("t-1", "loc-1", 5), ticket("t-2", "loc-1", 7), gone, ticket("t-4", "loc-2", 8)} {
		require.NoError(t, r.Put(ctx, tk))
	}

	got, err := r.List(ctx, "loc-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t-2", got[0].ID)
	assert.Equal(t, "t-1", got[1].ID)
}

func TestListByTicket(t *testing.T) {
	db := setupDB(t)
	r := NewComments(db)
	ctx := context.Background()

	c := func(id, ticketID string, at int64) *domain.TicketComment {
		return &domain.TicketComment{
			Syncable: domain.Syncable{ID: id, LocationID: "loc-1", UpdatedAt: at},
			TicketID: ticketID, AuthorUserID: "u-1", Body: id,
		}
	}
	require.NoError(t, r.Put(ctx, c("c-2", "t-1", 20)))
	require.NoError(t, r.Put(ctx, c("c-1", "t-1", 10)))
	require.NoError(t, r.Put(ctx, c("c-3", "t-2", 5)))

	got, err := r.ListByTicket(ctx, "loc-1", "t-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"c-1", "c-2"}, []string{got[0].ID, got[1].ID})

	// families share the table without colliding
	_, err = NewTickets(db).Get(ctx, "c-1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRemove(t *testing.T) {
	r := NewPayments(setupDB(t))
	ctx := context.Background()

	p := &domain.PaymentRecord{
		Syncable: domain.Syncable{ID: "p-1", LocationID: "loc-1"},
		TicketID: "t-1", AmountCents: 1000, Currency: "EUR", Status: domain.PaymentPending, Method: "cash",
	}
	require.NoError(t, r.Put(ctx, p))
	require.NoError(t, r.Remove(ctx, "p-1"))
	require.NoError(t, r.Remove(ctx, "p-1"))

	_, err := r.Get(ctx, "p-1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.Equal(t, domain.FamilyPaymentRecords, r.Family())
}
