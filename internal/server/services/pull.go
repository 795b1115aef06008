package services

import (
	"context"

	"github.com/donets/jtrack/internal/domain"
	"github.com/donets/jtrack/internal/protocol"
	"github.com/donets/jtrack/internal/server/repositories/entities"
	"github.com/donets/jtrack/internal/server/store"
)

// Pull returns one page of changes since req.LastPulledAt. The first page
// freezes the walk at the location's current checkpoint; following pages
// pass the returned cursor back. Without a limit the first page is the
// whole change set.
func (s *SyncService) Pull(ctx context.Context, p Principal, req *protocol.PullRequest) (*protocol.PullResponse, error) {
	limit := 0
	if req.Limit != nil {
		limit = *req.Limit
	}

	resp := &protocol.PullResponse{Changes: protocol.NewChanges()}

	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := roleOf(ctx, tx, p, req.LocationID); err != nil {
			return err
		}

		cursor := &protocol.PullCursor{}
		if req.Cursor != nil {
			*cursor = *req.Cursor
		} else {
			cp, err := tx.Checkpoints().Read(ctx, req.LocationID)
			if err != nil {
				return err
			}
			cursor.SnapshotAt = cp
		}

		pg := pager{locationID: req.LocationID, since: req.LastPulledAt, cursor: cursor, limit: limit}
		var more [4]bool
		var err error
		if more[0], err = pullFamily(ctx, pg, domain.FamilyTickets, tx.Tickets(), &resp.Changes.Tickets); err != nil {
			return err
		}
		if more[1], err = pullFamily(ctx, pg, domain.FamilyTicketComments, tx.Comments(), &resp.Changes.TicketComments); err != nil {
			return err
		}
		if more[2], err = pullFamily(ctx, pg, domain.FamilyTicketAttachments, tx.Attachments(), &resp.Changes.TicketAttachments); err != nil {
			return err
		}
		if more[3], err = pullFamily(ctx, pg, domain.FamilyPaymentRecords, tx.Payments(), &resp.Changes.PaymentRecords); err != nil {
			return err
		}

		resp.Timestamp = cursor.SnapshotAt
		resp.HasMore = more[0] || more[1] || more[2] || more[3]
		if resp.HasMore {
			resp.Cursor = cursor
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}
	return resp, nil
}

type pager struct {
	locationID string
	since      *int64
	cursor     *protocol.PullCursor
	limit      int
}

// pullFamily reads one page of family f into cs and advances the cursor.
// It asks for one row past the limit to learn whether the family has more.
func pullFamily[E domain.Entity](ctx context.Context, pg pager, f domain.Family, repo entities.Repository[E], cs *protocol.ChangeSet[E]) (bool, error) {
	q := entities.ChangeQuery{
		LocationID: pg.locationID,
		Since:      pg.since,
		SnapshotAt: pg.cursor.SnapshotAt,
		Offset:     pg.cursor.Offset(f),
	}
	if pg.limit > 0 {
		q.Limit = pg.limit + 1
	}

	rows, err := repo.Changed(ctx, q)
	if err != nil {
		return false, err
	}

	more := false
	if pg.limit > 0 && len(rows) > pg.limit {
		rows = rows[:pg.limit]
		more = true
	}
	for _, e := range rows {
		protocol.Place(cs, e, pg.since)
	}
	pg.cursor.Advance(f, len(rows))
	return more, nil
}
