package services

import (
	"fmt"

	"github.com/donets/jtrack/internal/client/repositories/outbox"
	"github.com/donets/jtrack/internal/codec"
	"github.com/donets/jtrack/internal/domain"
	"github.com/donets/jtrack/internal/protocol"
)

// pendingWrite is the net effect of every queued entry of one entity.
type pendingWrite struct {
	key     outbox.Key
	op      outbox.Op
	payload []byte
	dropped bool
}

// collapse folds queued entries into one change per entity, keeping the
// order in which entities were first touched. It returns the highest seq
// it consumed so exactly those rows can be removed after a push.
//
//	create, update... → created with the latest snapshot
//	create, ..., delete → nothing (the server never saw it)
//	update, ..., delete → deleted
//
// The server checks one status transition per ticket and push, so
// collapse stops before the second status change of a ticket. The
// entries after maxSeq are left for the next batch.
func collapse(entries []outbox.Entry) (protocol.Changes, int64, error) {
	var (
		order  []*pendingWrite
		byKey  = map[outbox.Key]*pendingWrite{}
		moved  = map[outbox.Key]bool{}
		maxSeq int64
	)
	for _, e := range entries {
		k := outbox.Key{Family: e.Family, ID: e.EntityID}
		if e.MovesStatus {
			if moved[k] {
				break
			}
			moved[k] = true
		}
		if e.Seq > maxSeq {
			maxSeq = e.Seq
		}
		w, ok := byKey[k]
		if !ok {
			w = &pendingWrite{key: k, op: e.Op, payload: e.Payload}
			byKey[k] = w
			order = append(order, w)
			continue
		}
		switch {
		case w.op == outbox.OpDelete:
		case e.Op == outbox.OpDelete && w.op == outbox.OpCreate:
			w.dropped = true
			w.op = outbox.OpDelete
		case e.Op == outbox.OpDelete:
			w.op = outbox.OpDelete
			w.payload = nil
		default:
			w.payload = e.Payload
		}
	}

	changes := protocol.NewChanges()
	for _, w := range order {
		if w.dropped {
			continue
		}
		var err error
		switch w.key.Family {
		case domain.FamilyTickets:
			err = place(&changes.Tickets, w, func() *domain.Ticket { return &domain.Ticket{} })
		case domain.FamilyTicketComments:
			err = place(&changes.TicketComments, w, func() *domain.TicketComment { return &domain.TicketComment{} })
		case domain.FamilyTicketAttachments:
			err = place(&changes.TicketAttachments, w, func() *domain.TicketAttachment { return &domain.TicketAttachment{} })
		case domain.FamilyPaymentRecords:
			err = place(&changes.PaymentRecords, w, func() *domain.PaymentRecord { return &domain.PaymentRecord{} })
		default:
			err = fmt.Errorf("unknown family %q", w.key.Family)
		}
		if err != nil {
			return protocol.Changes{}, 0, err
		}
	}
	return changes, maxSeq, nil
}

func place[E domain.Entity](cs *protocol.ChangeSet[E], w *pendingWrite, alloc func() E) error {
	if w.op == outbox.OpDelete {
		cs.Deleted = append(cs.Deleted, w.key.ID)
		return nil
	}
	e := alloc()
	if err := codec.Unmarshal(w.payload, e); err != nil {
		return fmt.Errorf("decode %s[%s]: %w", w.key.Family, w.key.ID, err)
	}
	if w.op == outbox.OpCreate {
		cs.Created = append(cs.Created, e)
	} else {
		cs.Updated = append(cs.Updated, e)
	}
	return nil
}

// remaining returns the entries a collapse that consumed up to maxSeq
// left behind. entries are in seq order.
func remaining(entries []outbox.Entry, maxSeq int64) []outbox.Entry {
	for i, e := range entries {
		if e.Seq > maxSeq {
			return entries[i:]
		}
	}
	return nil
}
