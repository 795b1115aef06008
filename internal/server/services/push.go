package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/donets/jtrack/internal/clock"
	"github.com/donets/jtrack/internal/common"
	"github.com/donets/jtrack/internal/cryptox"
	"github.com/donets/jtrack/internal/domain"
	"github.com/donets/jtrack/internal/protocol"
	"github.com/donets/jtrack/internal/server/events"
	"github.com/donets/jtrack/internal/server/repositories/entities"
	"github.com/donets/jtrack/internal/server/repositories/receipts"
	"github.com/donets/jtrack/internal/server/store"
)

// Push applies a client's queued changes in one transaction. Pushes to
// the same location are serialized on the checkpoint row lock. Any
// persistence failure rolls back every write of the push.
func (s *SyncService) Push(ctx context.Context, p Principal, req *protocol.PushRequest) (*protocol.PushResponse, error) {
	hash, err := payloadHash(req)
	if err != nil {
		return nil, fmt.Errorf("hash push payload: %w", err)
	}

	var (
		resp   *protocol.PushResponse
		replay bool
	)
	err = s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		checkpoint, err := tx.Checkpoints().Lock(ctx, req.LocationID)
		if err != nil {
			return err
		}

		role, err := roleOf(ctx, tx, p, req.LocationID)
		if err != nil {
			return err
		}

		if err := checkScope(ctx, tx, req); err != nil {
			return err
		}

		rec, err := tx.Receipts().Find(ctx, req.LocationID, req.ClientID, hash)
		switch {
		case err == nil:
			resp = &protocol.PushResponse{}
			if err := json.Unmarshal(rec.Outcome, resp); err != nil {
				return fmt.Errorf("decode receipt: %w", err)
			}
			resp.NewTimestamp = checkpoint
			replay = true
			return nil
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}

		commitTs := max(clock.UnixMilli(s.clock), checkpoint+1)
		a := &applier{
			tx:       tx,
			svc:      s,
			user:     p.UserID,
			role:     role,
			since:    req.LastPulledAt,
			commitTs: commitTs,
			resp:     &protocol.PushResponse{OK: true, NewTimestamp: commitTs},
		}
		if err := a.apply(ctx, &req.Changes); err != nil {
			return err
		}
		resp = a.resp
		resp.Normalize()

		outcome, err := json.Marshal(resp)
		if err != nil {
			return fmt.Errorf("encode receipt: %w", err)
		}
		if err := tx.Receipts().Save(ctx, &receipts.Receipt{
			LocationID:  req.LocationID,
			ClientID:    req.ClientID,
			PayloadHash: hash,
			Outcome:     outcome,
			CommittedAt: commitTs,
		}); err != nil {
			return err
		}
		return tx.Checkpoints().Advance(ctx, req.LocationID, commitTs)
	})
	if err != nil {
		return nil, storeError(err)
	}

	log := s.logger.With("location", req.LocationID, "client", req.ClientID)
	if replay {
		log.Info(ctx, "push replayed from receipt", "checkpoint", resp.NewTimestamp)
		return resp, nil
	}
	log.Info(ctx, "push committed",
		"timestamp", resp.NewTimestamp,
		"applied", len(resp.Applied),
		"rejected", len(resp.Rejected),
		"conflicts", len(resp.Conflicts))

	if s.publisher != nil && len(resp.Applied) > 0 {
		s.publisher.Publish(ctx, events.ChangeEvent{
			LocationID: req.LocationID,
			UserID:     p.UserID,
			ClientID:   req.ClientID,
			Timestamp:  resp.NewTimestamp,
			Applied:    resp.Applied,
		})
	}
	return resp, nil
}

// payloadHash digests the pushed location and changes.
func payloadHash(req *protocol.PushRequest) (string, error) {
	return cryptox.Digest(struct {
		LocationID string
		Changes    protocol.Changes
	}{req.LocationID, req.Changes})
}

// checkScope fails the whole push with common.ErrForbidden when any
// entity or referenced ticket belongs to another location.
func checkScope(ctx context.Context, tx store.Tx, req *protocol.PushRequest) error {
	loc := req.LocationID
	c := &req.Changes
	tickets := tx.Tickets()

	parent := func(ticketID string) error {
		t, err := tickets.Get(ctx, ticketID)
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if t.LocationID != loc {
			return fmt.Errorf("%w: ticket %s belongs to another location", common.ErrForbidden, ticketID)
		}
		return nil
	}

	if err := scopeFamily(ctx, loc, tickets, &c.Tickets, nil); err != nil {
		return err
	}
	if err := scopeFamily(ctx, loc, tx.Comments(), &c.TicketComments, parent); err != nil {
		return err
	}
	if err := scopeFamily(ctx, loc, tx.Attachments(), &c.TicketAttachments, parent); err != nil {
		return err
	}
	return scopeFamily(ctx, loc, tx.Payments(), &c.PaymentRecords, parent)
}

func scopeFamily[E domain.Entity](ctx context.Context, loc string, repo entities.Repository[E], cs *protocol.ChangeSet[E], parent func(string) error) error {
	owned := func(id string) error {
		cur, err := repo.Get(ctx, id)
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if cur.Meta().LocationID != loc {
			return fmt.Errorf("%w: entity %s belongs to another location", common.ErrForbidden, id)
		}
		return nil
	}

	for _, list := range [][]E{cs.Created, cs.Updated} {
		for _, e := range list {
			m := e.Meta()
			if m.LocationID != loc {
				return fmt.Errorf("%w: entity %s targets location %s", common.ErrForbidden, m.ID, m.LocationID)
			}
			if err := owned(m.ID); err != nil {
				return err
			}
			if child, ok := any(e).(domain.Child); ok && parent != nil {
				if err := parent(child.ParentTicketID()); err != nil {
					return err
				}
			}
		}
	}
	for _, id := range cs.Deleted {
		if err := owned(id); err != nil {
			return err
		}
	}
	return nil
}
