package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/donets/jtrack/internal/common"
	"github.com/donets/jtrack/internal/domain"
	"github.com/donets/jtrack/internal/protocol"
	"github.com/donets/jtrack/internal/server/repositories/entities"
	"github.com/donets/jtrack/internal/server/storage"
	"github.com/donets/jtrack/internal/server/store"
)

// applier carries the state of one push while its families are applied.
type applier struct {
	tx       store.Tx
	svc      *SyncService
	user     string
	role     domain.Role
	since    *int64
	commitTs int64
	resp     *protocol.PushResponse

	// attachments keyed in this push that still need an upload URL
	keyed map[string]bool
}

type verdict struct {
	kind   protocol.OutcomeKind
	reason string
}

func deny(kind protocol.OutcomeKind, reason string) *verdict {
	return &verdict{kind: kind, reason: reason}
}

// rule holds the family-specific checks. Nil hooks allow everything.
type rule[E domain.Entity] struct {
	family domain.Family
	repo   entities.Repository[E]
	// upsert may rewrite server-owned fields of e before it is written.
	upsert  func(ctx context.Context, e E, cur E, exists bool) (*verdict, error)
	remove  func(ctx context.Context, cur E) (*verdict, error)
	written func(ctx context.Context, e E) error
}

func (a *applier) apply(ctx context.Context, c *protocol.Changes) error {
	if err := applyFamily(ctx, a, a.ticketRule(), &c.Tickets); err != nil {
		return err
	}
	if err := applyFamily(ctx, a, a.commentRule(), &c.TicketComments); err != nil {
		return err
	}
	if err := applyFamily(ctx, a, a.attachmentRule(), &c.TicketAttachments); err != nil {
		return err
	}
	return applyFamily(ctx, a, a.paymentRule(), &c.PaymentRecords)
}

func applyFamily[E domain.Entity](ctx context.Context, a *applier, r rule[E], cs *protocol.ChangeSet[E]) error {
	for _, e := range cs.Created {
		if err := applyUpsert(ctx, a, r, e); err != nil {
			return err
		}
	}
	for _, e := range cs.Updated {
		if err := applyUpsert(ctx, a, r, e); err != nil {
			return err
		}
	}
	for _, id := range cs.Deleted {
		if err := applyDelete(ctx, a, r, id); err != nil {
			return err
		}
	}
	return nil
}

func applyUpsert[E domain.Entity](ctx context.Context, a *applier, r rule[E], e E) error {
	m := e.Meta()
	cur, exists, err := lookup(ctx, r.repo, m.ID)
	if err != nil {
		return err
	}

	if exists && cur.Meta().Deleted() {
		return a.reject(r.family, m.ID, deny(protocol.KindValidation, "entity was deleted"), cur, exists)
	}
	if r.upsert != nil {
		v, err := r.upsert(ctx, e, cur, exists)
		if err != nil {
			return err
		}
		if v != nil {
			return a.reject(r.family, m.ID, v, cur, exists)
		}
	}

	a.noteConflict(r.family, cur, exists)
	if exists {
		m.CreatedAt = cur.Meta().CreatedAt
	} else {
		m.CreatedAt = a.commitTs
	}
	m.UpdatedAt = a.commitTs
	m.DeletedAt = nil

	if err := r.repo.Upsert(ctx, e); err != nil {
		return err
	}
	a.resp.Applied = append(a.resp.Applied, protocol.EntityRef{Family: r.family, ID: m.ID})

	if r.written != nil {
		return r.written(ctx, e)
	}
	return nil
}

func applyDelete[E domain.Entity](ctx context.Context, a *applier, r rule[E], id string) error {
	ref := protocol.EntityRef{Family: r.family, ID: id}

	cur, exists, err := lookup(ctx, r.repo, id)
	if err != nil {
		return err
	}
	if !exists || cur.Meta().Deleted() {
		a.resp.Applied = append(a.resp.Applied, ref)
		return nil
	}

	if r.remove != nil {
		v, err := r.remove(ctx, cur)
		if err != nil {
			return err
		}
		if v != nil {
			return a.reject(r.family, id, v, cur, exists)
		}
	}

	a.noteConflict(r.family, cur, exists)
	cur.Meta().MarkDeleted(a.commitTs)
	if err := r.repo.Upsert(ctx, cur); err != nil {
		return err
	}
	a.resp.Applied = append(a.resp.Applied, ref)
	return nil
}

func lookup[E domain.Entity](ctx context.Context, repo entities.Repository[E], id string) (E, bool, error) {
	cur, err := repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return cur, false, nil
		}
		return cur, false, err
	}
	return cur, true, nil
}

// noteConflict records an applied write that overwrites server state the
// pusher had not seen.
func (a *applier) noteConflict(f domain.Family, cur domain.Entity, exists bool) {
	if !exists {
		return
	}
	m := cur.Meta()
	if a.since == nil || m.UpdatedAt > *a.since {
		a.resp.Conflicts = append(a.resp.Conflicts, protocol.EntityRef{Family: f, ID: m.ID})
	}
}

func (a *applier) reject(f domain.Family, id string, v *verdict, cur domain.Entity, exists bool) error {
	current := protocol.RawEntity("null")
	if exists {
		b, err := json.Marshal(cur)
		if err != nil {
			return fmt.Errorf("encode current %s %s: %w", f, id, err)
		}
		current = b
	}
	a.resp.Rejected = append(a.resp.Rejected, protocol.Rejection{
		EntityRef: protocol.EntityRef{Family: f, ID: id},
		Kind:      v.kind,
		Reason:    v.reason,
		Current:   current,
	})
	return nil
}

// liveTicket reports whether a ticket exists and is not deleted. Tickets
// applied earlier in the same push are visible.
func (a *applier) liveTicket(ctx context.Context, id string) (bool, error) {
	t, ok, err := lookup(ctx, a.tx.Tickets(), id)
	if err != nil || !ok {
		return false, err
	}
	return !t.Deleted(), nil
}

func (a *applier) requireTicket(ctx context.Context, id string) (*verdict, error) {
	ok, err := a.liveTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return deny(protocol.KindValidation, "ticket not found"), nil
	}
	return nil, nil
}

func (a *applier) ticketRule() rule[*domain.Ticket] {
	return rule[*domain.Ticket]{
		family: domain.FamilyTickets,
		repo:   a.tx.Tickets(),
		upsert: func(_ context.Context, t, cur *domain.Ticket, exists bool) (*verdict, error) {
			from := domain.StatusNew
			if exists {
				from = cur.Status
				t.CreatedByUserID = cur.CreatedByUserID
			} else {
				t.CreatedByUserID = a.user
			}
			if exists && from == t.Status {
				return nil, nil
			}
			if res := domain.ValidateStatusTransition(from, t.Status, a.role); !res.Valid {
				return deny(protocol.KindTransition, res.Reason), nil
			}
			return nil, nil
		},
		remove: func(context.Context, *domain.Ticket) (*verdict, error) {
			if a.role == domain.RoleTechnician {
				return deny(protocol.KindAuthorization, "technicians cannot delete tickets"), nil
			}
			return nil, nil
		},
	}
}

func (a *applier) commentRule() rule[*domain.TicketComment] {
	return rule[*domain.TicketComment]{
		family: domain.FamilyTicketComments,
		repo:   a.tx.Comments(),
		upsert: func(ctx context.Context, c, cur *domain.TicketComment, exists bool) (*verdict, error) {
			if exists {
				if cur.AuthorUserID != a.user && !a.role.AtLeastManager() {
					return deny(protocol.KindAuthorization, "only the author or a manager can edit this comment"), nil
				}
				c.AuthorUserID = cur.AuthorUserID
			} else {
				c.AuthorUserID = a.user
			}
			return a.requireTicket(ctx, c.TicketID)
		},
		remove: func(_ context.Context, cur *domain.TicketComment) (*verdict, error) {
			if cur.AuthorUserID != a.user && !a.role.AtLeastManager() {
				return deny(protocol.KindAuthorization, "only the author or a manager can delete this comment"), nil
			}
			return nil, nil
		},
	}
}

func (a *applier) attachmentRule() rule[*domain.TicketAttachment] {
	return rule[*domain.TicketAttachment]{
		family: domain.FamilyTicketAttachments,
		repo:   a.tx.Attachments(),
		upsert: func(ctx context.Context, at, cur *domain.TicketAttachment, exists bool) (*verdict, error) {
			v, err := a.requireTicket(ctx, at.TicketID)
			if v != nil || err != nil {
				return v, err
			}
			if exists {
				at.StorageKey = cur.StorageKey
				at.UploadedByUserID = cur.UploadedByUserID
				return nil, nil
			}
			at.UploadedByUserID = a.user
			at.StorageKey = storage.NewStorageKey(at.LocationID, at.ID, a.svc.clock.Now())
			if a.keyed == nil {
				a.keyed = map[string]bool{}
			}
			a.keyed[at.ID] = true
			return nil, nil
		},
		written: func(ctx context.Context, at *domain.TicketAttachment) error {
			if a.svc.presigner == nil || !a.keyed[at.ID] {
				return nil
			}
			delete(a.keyed, at.ID)
			url, err := a.svc.presigner.PresignPut(ctx, at.StorageKey, at.ContentType)
			if err != nil {
				return err
			}
			a.resp.Uploads = append(a.resp.Uploads, protocol.UploadTask{
				AttachmentID: at.ID,
				StorageKey:   at.StorageKey,
				URL:          url,
			})
			return nil
		},
	}
}

func (a *applier) paymentRule() rule[*domain.PaymentRecord] {
	return rule[*domain.PaymentRecord]{
		family: domain.FamilyPaymentRecords,
		repo:   a.tx.Payments(),
		upsert: func(ctx context.Context, p, _ *domain.PaymentRecord, _ bool) (*verdict, error) {
			if a.role == domain.RoleTechnician {
				return deny(protocol.KindAuthorization, "technicians cannot record payments"), nil
			}
			return a.requireTicket(ctx, p.TicketID)
		},
		remove: func(context.Context, *domain.PaymentRecord) (*verdict, error) {
			if a.role == domain.RoleTechnician {
				return deny(protocol.KindAuthorization, "technicians cannot delete payments"), nil
			}
			return nil, nil
		},
		written: a.advancePaymentWorkflow,
	}
}
