package entities

import (
	"github.com/donets/jtrack/internal/dbx"
	"github.com/donets/jtrack/internal/domain"
)

// NewTickets returns the tickets repository bound to db.
func NewTickets(db dbx.DBTX) *PostgresRepository[*domain.Ticket] {
	return newPostgresRepository(db, table[*domain.Ticket]{
		name: "tickets",
		columns: []string{"status", "priority", "title", "description",
			"scheduled_start_at", "scheduled_end_at", "assigned_to_user_id", "created_by_user_id"},
		alloc: func() *domain.Ticket { return &domain.Ticket{} },
		dest: func(t *domain.Ticket) []any {
			return []any{&t.Status, &t.Priority, &t.Title, &t.Description,
				&t.ScheduledStartAt, &t.ScheduledEndAt, &t.AssignedToUserID, &t.CreatedByUserID}
		},
		args: func(t *domain.Ticket) []any {
			return []any{string(t.Status), string(t.Priority), t.Title, t.Description,
				dbx.NullInt64(t.ScheduledStartAt), dbx.NullInt64(t.ScheduledEndAt), t.AssignedToUserID, t.CreatedByUserID}
		},
	})
}

func NewComments(db dbx.DBTX) *PostgresRepository[*domain.TicketComment] {
	return newPostgresRepository(db, table[*domain.TicketComment]{
		name:    "ticket_comments",
		columns: []string{"ticket_id", "author_user_id", "body"},
		alloc:   func() *domain.TicketComment { return &domain.TicketComment{} },
		dest: func(c *domain.TicketComment) []any {
			return []any{&c.TicketID, &c.AuthorUserID, &c.Body}
		},
		args: func(c *domain.TicketComment) []any {
			return []any{c.TicketID, c.AuthorUserID, c.Body}
		},
	})
}

func NewAttachments(db dbx.DBTX) *PostgresRepository[*domain.TicketAttachment] {
	return newPostgresRepository(db, table[*domain.TicketAttachment]{
		name:    "ticket_attachments",
		columns: []string{"ticket_id", "uploaded_by_user_id", "file_name", "content_type", "size_bytes", "storage_key"},
		alloc:   func() *domain.TicketAttachment { return &domain.TicketAttachment{} },
		dest: func(a *domain.TicketAttachment) []any {
			return []any{&a.TicketID, &a.UploadedByUserID, &a.FileName, &a.ContentType, &a.SizeBytes, &a.StorageKey}
		},
		args: func(a *domain.TicketAttachment) []any {
			return []any{a.TicketID, a.UploadedByUserID, a.FileName, a.ContentType, a.SizeBytes, a.StorageKey}
		},
	})
}

func NewPayments(db dbx.DBTX) *PostgresRepository[*domain.PaymentRecord] {
	return newPostgresRepository(db, table[*domain.PaymentRecord]{
		name:    "payment_records",
		columns: []string{"ticket_id", "amount_cents", "currency", "status", "method", "reference"},
		alloc:   func() *domain.PaymentRecord { return &domain.PaymentRecord{} },
		dest: func(p *domain.PaymentRecord) []any {
			return []any{&p.TicketID, &p.AmountCents, &p.Currency, &p.Status, &p.Method, &p.Reference}
		},
		args: func(p *domain.PaymentRecord) []any {
			return []any{p.TicketID, p.AmountCents, p.Currency, string(p.Status), p.Method, p.Reference}
		},
	})
}
