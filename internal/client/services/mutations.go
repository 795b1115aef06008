package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/donets/jtrack/internal/client/client"
	"github.com/donets/jtrack/internal/client/repositories/conflicts"
	"github.com/donets/jtrack/internal/client/repositories/outbox"
	"github.com/donets/jtrack/internal/client/repositories/replica"
	"github.com/donets/jtrack/internal/clock"
	"github.com/donets/jtrack/internal/codec"
	"github.com/donets/jtrack/internal/common"
	"github.com/donets/jtrack/internal/domain"
	"github.com/donets/jtrack/internal/protocol"
	"github.com/google/uuid"
)

// TransitionError is returned when the local role may not move a ticket
// to the requested status. Allowed lists what it may do instead.
type TransitionError struct {
	From    domain.Status
	To      domain.Status
	Reason  string
	Allowed []domain.Status
}

func (e *TransitionError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	return fmt.Sprintf("cannot change status %s → %s: %s (allowed: %s)", e.From, e.To, e.Reason, strings.Join(allowed, ", "))
}

type TicketInput struct {
	Title            string
	Description      string
	Priority         domain.Priority
	AssignedToUserID string
	ScheduledStartAt *int64
	ScheduledEndAt   *int64
}

// TicketPatch changes only the fields that are set.
type TicketPatch struct {
	Title            *string
	Description      *string
	Priority         *domain.Priority
	AssignedToUserID *string
}

type PaymentInput struct {
	TicketID    string
	AmountCents int64
	Currency    string
	Status      domain.PaymentStatus
	Method      string
	Reference   string
}

// TicketView is a ticket with its live children.
type TicketView struct {
	Ticket      *domain.Ticket
	Comments    []*domain.TicketComment
	Attachments []*domain.TicketAttachment
	Payments    []*domain.PaymentRecord
}

// MutationService records local edits. Every call writes the replica and
// appends to the outbox in one SQLite transaction.
type MutationService interface {
	CreateTicket(ctx context.Context, in TicketInput) (*domain.Ticket, error)
	UpdateTicket(ctx context.Context, id string, patch TicketPatch) (*domain.Ticket, error)
	ChangeTicketStatus(ctx context.Context, id string, next domain.Status) (*domain.Ticket, error)
	DeleteTicket(ctx context.Context, id string) error
	AddComment(ctx context.Context, ticketID, body string) (*domain.TicketComment, error)
	DeleteComment(ctx context.Context, id string) error
	AddAttachment(ctx context.Context, ticketID, path string) (*domain.TicketAttachment, error)
	RecordPayment(ctx context.Context, in PaymentInput) (*domain.PaymentRecord, error)
	Tickets(ctx context.Context) ([]*domain.Ticket, error)
	Ticket(ctx context.Context, id string) (*TicketView, error)
	Conflicts(ctx context.Context) ([]conflicts.Conflict, error)
	ClearConflicts(ctx context.Context) error
	PendingCount(ctx context.Context) (int, error)
}

type mutationService struct {
	db      *sql.DB
	clock   clock.Clock
	session Session
}

func NewMutationService(db *sql.DB, clk clock.Clock, session Session) MutationService {
	return &mutationService{db: db, clock: clk, session: session}
}

func (s *mutationService) now() int64 { return clock.UnixMilli(s.clock) }

func (s *mutationService) syncable(id string) domain.Syncable {
	now := s.now()
	return domain.Syncable{ID: id, LocationID: s.session.LocationID, CreatedAt: now, UpdatedAt: now}
}

// enqueue stores e in the replica and queues op for it.
func enqueue[E domain.Entity](ctx context.Context, r *client.Repositories, repo replica.Repository[E], family domain.Family, op outbox.Op, e E) error {
	return record(ctx, r, repo, outbox.Entry{Family: family, Op: op}, e)
}

// record is enqueue for callers that set more of the entry than its op.
func record[E domain.Entity](ctx context.Context, r *client.Repositories, repo replica.Repository[E], entry outbox.Entry, e E) error {
	m := e.Meta()
	if err := repo.Put(ctx, e); err != nil {
		return err
	}

	if entry.Op != outbox.OpDelete {
		payload, err := codec.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode %s[%s]: %w", entry.Family, m.ID, err)
		}
		entry.Payload = payload
	}
	entry.LocationID = m.LocationID
	entry.EntityID = m.ID
	entry.CreatedAt = m.UpdatedAt
	return r.Outbox.Append(ctx, &entry)
}

// live loads an entity of the session's location that is not deleted.
func live[E domain.Entity](ctx context.Context, repo replica.Repository[E], locationID, id string) (E, error) {
	e, err := repo.Get(ctx, id)
	if err != nil {
		var zero E
		return zero, err
	}
	if m := e.Meta(); m.LocationID != locationID || m.Deleted() {
		var zero E
		return zero, common.ErrorNotFound
	}
	return e, nil
}

func (s *mutationService) CreateTicket(ctx context.Context, in TicketInput) (*domain.Ticket, error) {
	if in.Priority == "" {
		in.Priority = domain.PriorityNormal
	}
	t := &domain.Ticket{
		Syncable:         s.syncable(uuid.NewString()),
		Status:           domain.StatusNew,
		Priority:         in.Priority,
		Title:            in.Title,
		Description:      in.Description,
		ScheduledStartAt: in.ScheduledStartAt,
		ScheduledEndAt:   in.ScheduledEndAt,
		AssignedToUserID: in.AssignedToUserID,
		CreatedByUserID:  s.session.UserID,
	}
	if err := protocol.Validate(t); err != nil {
		return nil, err
	}

	err := client.WithTx(ctx, s.db, func(ctx context.Context, r *client.Repositories) error {
		return enqueue(ctx, r, r.Tickets, domain.FamilyTickets, outbox.OpCreate, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// updateTicket applies fn to the live local ticket and queues the update.
func (s *mutationService) updateTicket(ctx context.Context, id string, fn func(t *domain.Ticket) error) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := client.WithTx(ctx, s.db, func(ctx context.Context, r *client.Repositories) error {
		t, err := live(ctx, r.Tickets, s.session.LocationID, id)
		if err != nil {
			return err
		}
		before := t.Status
		if err := fn(t); err != nil {
			return err
		}
		t.UpdatedAt = s.now()
		if err := protocol.Validate(t); err != nil {
			return err
		}
		out = t
		return record(ctx, r, r.Tickets, outbox.Entry{
			Family:      domain.FamilyTickets,
			Op:          outbox.OpUpdate,
			MovesStatus: t.Status != before,
		}, t)
	})
	return out, err
}

func (s *mutationService) UpdateTicket(ctx context.Context, id string, patch TicketPatch) (*domain.Ticket, error) {
	return s.updateTicket(ctx, id, func(t *domain.Ticket) error {
		if patch.Title != nil {
			t.Title = *patch.Title
		}
		if patch.Description != nil {
			t.Description = *patch.Description
		}
		if patch.Priority != nil {
			t.Priority = *patch.Priority
		}
		if patch.AssignedToUserID != nil {
			t.AssignedToUserID = *patch.AssignedToUserID
		}
		return nil
	})
}

func (s *mutationService) ChangeTicketStatus(ctx context.Context, id string, next domain.Status) (*domain.Ticket, error) {
	return s.updateTicket(ctx, id, func(t *domain.Ticket) error {
		res := domain.ValidateStatusTransition(t.Status, next, s.session.Role)
		if !res.Valid {
			return &TransitionError{
				From:    t.Status,
				To:      next,
				Reason:  res.Reason,
				Allowed: domain.ListAllowedStatusTransitions(t.Status, s.session.Role),
			}
		}
		t.Status = next
		return nil
	})
}

func (s *mutationService) DeleteTicket(ctx context.Context, id string) error {
	if s.session.Role == domain.RoleTechnician {
		return fmt.Errorf("%w: technicians cannot delete tickets", client.ErrForbidden)
	}
	return client.WithTx(ctx, s.db, func(ctx context.Context, r *client.Repositories) error {
		t, err := live(ctx, r.Tickets, s.session.LocationID, id)
		if err != nil {
			return err
		}
		t.MarkDeleted(s.now())
		return enqueue(ctx, r, r.Tickets, domain.FamilyTickets, outbox.OpDelete, t)
	})
}

func (s *mutationService) AddComment(ctx context.Context, ticketID, body string) (*domain.TicketComment, error) {
	c := &domain.TicketComment{
		Syncable:     s.syncable(uuid.NewString()),
		TicketID:     ticketID,
		AuthorUserID: s.session.UserID,
		Body:         body,
	}
	if err := protocol.Validate(c); err != nil {
		return nil, err
	}

	err := client.WithTx(ctx, s.db, func(ctx context.Context, r *client.Repositories) error {
		if _, err := live(ctx, r.Tickets, s.session.LocationID, ticketID); err != nil {
			return fmt.Errorf("ticket %s: %w", ticketID, err)
		}
		return enqueue(ctx, r, r.Comments, domain.FamilyTicketComments, outbox.OpCreate, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *mutationService) DeleteComment(ctx context.Context, id string) error {
	return client.WithTx(ctx, s.db, func(ctx context.Context, r *client.Repositories) error {
		c, err := live(ctx, r.Comments, s.session.LocationID, id)
		if err != nil {
			return err
		}
		c.MarkDeleted(s.now())
		return enqueue(ctx, r, r.Comments, domain.FamilyTicketComments, outbox.OpDelete, c)
	})
}

// AddAttachment queues attachment metadata and remembers path so the body
// can be uploaded once the server hands out a presigned URL.
func (s *mutationService) AddAttachment(ctx context.Context, ticketID, path string) (*domain.TicketAttachment, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	contentType := mime.TypeByExtension(filepath.Ext(abs))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	a := &domain.TicketAttachment{
		Syncable:         s.syncable(uuid.NewString()),
		TicketID:         ticketID,
		UploadedByUserID: s.session.UserID,
		FileName:         filepath.Base(abs),
		ContentType:      contentType,
		SizeBytes:        info.Size(),
	}
	if err := protocol.Validate(a); err != nil {
		return nil, err
	}

	err = client.WithTx(ctx, s.db, func(ctx context.Context, r *client.Repositories) error {
		if _, err := live(ctx, r.Tickets, s.session.LocationID, ticketID); err != nil {
			return fmt.Errorf("ticket %s: %w", ticketID, err)
		}
		if err := r.Metadata.Set(ctx, uploadKey(a.ID), []byte(abs)); err != nil {
			return err
		}
		return enqueue(ctx, r, r.Attachments, domain.FamilyTicketAttachments, outbox.OpCreate, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *mutationService) RecordPayment(ctx context.Context, in PaymentInput) (*domain.PaymentRecord, error) {
	if s.session.Role == domain.RoleTechnician {
		return nil, fmt.Errorf("%w: technicians cannot record payments", client.ErrForbidden)
	}
	p := &domain.PaymentRecord{
		Syncable:    s.syncable(uuid.NewString()),
		TicketID:    in.TicketID,
		AmountCents: in.AmountCents,
		Currency:    strings.ToUpper(in.Currency),
		Status:      in.Status,
		Method:      in.Method,
		Reference:   in.Reference,
	}
	if err := protocol.Validate(p); err != nil {
		return nil, err
	}

	err := client.WithTx(ctx, s.db, func(ctx context.Context, r *client.Repositories) error {
		if _, err := live(ctx, r.Tickets, s.session.LocationID, in.TicketID); err != nil {
			return fmt.Errorf("ticket %s: %w", in.TicketID, err)
		}
		return enqueue(ctx, r, r.Payments, domain.FamilyPaymentRecords, outbox.OpCreate, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *mutationService) Tickets(ctx context.Context) ([]*domain.Ticket, error) {
	return client.NewRepositories(s.db).Tickets.List(ctx, s.session.LocationID)
}

func (s *mutationService) Ticket(ctx context.Context, id string) (*TicketView, error) {
	r := client.NewRepositories(s.db)
	loc := s.session.LocationID

	t, err := live(ctx, r.Tickets, loc, id)
	if err != nil {
		return nil, err
	}
	v := &TicketView{Ticket: t}
	if v.Comments, err = r.Comments.ListByTicket(ctx, loc, id); err != nil {
		return nil, err
	}
	if v.Attachments, err = r.Attachments.ListByTicket(ctx, loc, id); err != nil {
		return nil, err
	}
	if v.Payments, err = r.Payments.ListByTicket(ctx, loc, id); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *mutationService) Conflicts(ctx context.Context) ([]conflicts.Conflict, error) {
	return client.NewRepositories(s.db).Conflicts.List(ctx, s.session.LocationID)
}

func (s *mutationService) ClearConflicts(ctx context.Context) error {
	return client.NewRepositories(s.db).Conflicts.Clear(ctx, s.session.LocationID)
}

func (s *mutationService) PendingCount(ctx context.Context) (int, error) {
	return client.NewRepositories(s.db).Outbox.Count(ctx, s.session.LocationID)
}

// IsNotFound reports whether err means the local entity does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrorNotFound)
}
