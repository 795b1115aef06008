package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/donets/jtrack/internal/client/client"
	"github.com/donets/jtrack/internal/client/repositories/outbox"
	"github.com/donets/jtrack/internal/client/repositories/replica"
	"github.com/donets/jtrack/internal/domain"
	"github.com/donets/jtrack/internal/protocol"
)

// mergeChanges applies one pulled page to the replica. Entities with
// queued local writes keep the local copy; the next push decides them.
func mergeChanges(ctx context.Context, r *client.Repositories, c *protocol.Changes, pending map[outbox.Key]bool) (int, error) {
	total := 0
	steps := []func() (int, error){
		func() (int, error) { return mergeSet(ctx, r.Tickets, domain.FamilyTickets, &c.Tickets, pending) },
		func() (int, error) {
			return mergeSet(ctx, r.Comments, domain.FamilyTicketComments, &c.TicketComments, pending)
		},
		func() (int, error) {
			return mergeSet(ctx, r.Attachments, domain.FamilyTicketAttachments, &c.TicketAttachments, pending)
		},
		func() (int, error) {
			return mergeSet(ctx, r.Payments, domain.FamilyPaymentRecords, &c.PaymentRecords, pending)
		},
	}
	for _, step := range steps {
		n, err := step()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func mergeSet[E domain.Entity](ctx context.Context, repo replica.Repository[E], f domain.Family, cs *protocol.ChangeSet[E], pending map[outbox.Key]bool) (int, error) {
	n := 0
	put := func(list []E) error {
		for _, e := range list {
			if pending[outbox.Key{Family: f, ID: e.Meta().ID}] {
				continue
			}
			if err := repo.Put(ctx, e); err != nil {
				return err
			}
			n++
		}
		return nil
	}
	if err := put(cs.Created); err != nil {
		return n, err
	}
	if err := put(cs.Updated); err != nil {
		return n, err
	}
	for _, id := range cs.Deleted {
		if pending[outbox.Key{Family: f, ID: id}] {
			continue
		}
		if err := repo.Remove(ctx, id); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// revert replaces the local copy of a rejected entity with the server
// copy, or drops it when the server has none.
func revert(ctx context.Context, r *client.Repositories, ref protocol.EntityRef, current protocol.RawEntity) error {
	switch ref.Family {
	case domain.FamilyTickets:
		return revertTo(ctx, r.Tickets, ref.ID, current, &domain.Ticket{})
	case domain.FamilyTicketComments:
		return revertTo(ctx, r.Comments, ref.ID, current, &domain.TicketComment{})
	case domain.FamilyTicketAttachments:
		return revertTo(ctx, r.Attachments, ref.ID, current, &domain.TicketAttachment{})
	case domain.FamilyPaymentRecords:
		return revertTo(ctx, r.Payments, ref.ID, current, &domain.PaymentRecord{})
	}
	return fmt.Errorf("unknown family %q", ref.Family)
}

func revertTo[E domain.Entity](ctx context.Context, repo replica.Repository[E], id string, current protocol.RawEntity, e E) error {
	if isNull(current) {
		return repo.Remove(ctx, id)
	}
	if err := json.Unmarshal(current, e); err != nil {
		return fmt.Errorf("decode server copy of %s: %w", id, err)
	}
	return repo.Put(ctx, e)
}

func isNull(raw protocol.RawEntity) bool {
	return len(raw) == 0 || string(raw) == "null"
}
