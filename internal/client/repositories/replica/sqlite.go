// Package replica keeps the agent's local copy of every entity family.
// Rows are stored as CBOR snapshots keyed by (family, id).
package replica

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/donets/jtrack/internal/codec"
	"github.com/donets/jtrack/internal/common"
	"github.com/donets/jtrack/internal/dbx"
	"github.com/donets/jtrack/internal/domain"
)

type Repository[E domain.Entity] interface {
	// Get returns common.ErrorNotFound when the row is absent.
	Get(ctx context.Context, id string) (E, error)
	Put(ctx context.Context, e E) error
	Remove(ctx context.Context, id string) error
	// List returns live rows of a location, most recently written first.
	List(ctx context.Context, locationID string) ([]E, error)
	// ListByTicket returns live children of one ticket, oldest first.
	ListByTicket(ctx context.Context, locationID, ticketID string) ([]E, error)
}

type SQLiteRepository[E domain.Entity] struct {
	db     dbx.DBTX
	family domain.Family
	alloc  func() E
}

func NewTickets(db dbx.DBTX) *SQLiteRepository[*domain.Ticket] {
	return &SQLiteRepository[*domain.Ticket]{db: db, family: domain.FamilyTickets, alloc: func() *domain.Ticket { return &domain.Ticket{} }}
}

func NewComments(db dbx.DBTX) *SQLiteRepository[*domain.TicketComment] {
	return &SQLiteRepository[*domain.TicketComment]{db: db, family: domain.FamilyTicketComments, alloc: func() *domain.TicketComment { return &domain.TicketComment{} }}
}

func NewAttachments(db dbx.DBTX) *SQLiteRepository[*domain.TicketAttachment] {
	return &SQLiteRepository[*domain.TicketAttachment]{db: db, family: domain.FamilyTicketAttachments, alloc: func() *domain.TicketAttachment { return &domain.TicketAttachment{} }}
}

func NewPayments(db dbx.DBTX) *SQLiteRepository[*domain.PaymentRecord] {
	return &SQLiteRepository[*domain.PaymentRecord]{db: db, family: domain.FamilyPaymentRecords, alloc: func() *domain.PaymentRecord { return &domain.PaymentRecord{} }}
}

func (r *SQLiteRepository[E]) Family() domain.Family { return r.family }

func (r *SQLiteRepository[E]) Get(ctx context.Context, id string) (E, error) {
	var zero E
	var data []byte
	err := r.db.QueryRowContext(ctx, `SELECT data FROM replica WHERE family = ? AND id = ?`, string(r.family), id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, common.ErrorNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("failed to get %s[%s]: %w", r.family, id, err)
	}
	return r.decode(data)
}

func (r *SQLiteRepository[E]) Put(ctx context.Context, e E) error {
	m := e.Meta()
	data, err := codec.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s[%s]: %w", r.family, m.ID, err)
	}

	parent := ""
	if c, ok := any(e).(domain.Child); ok {
		parent = c.ParentTicketID()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO replica (family, id, location_id, parent_id, updated_at, deleted, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(family, id) DO UPDATE SET
			location_id = excluded.location_id,
			parent_id = excluded.parent_id,
			updated_at = excluded.updated_at,
			deleted = excluded.deleted,
			data = excluded.data
	`, string(r.family), m.ID, m.LocationID, parent, m.UpdatedAt, m.Deleted(), data)
	if err != nil {
		return fmt.Errorf("failed to put %s[%s]: %w", r.family, m.ID, err)
	}
	return nil
}

func (r *SQLiteRepository[E]) Remove(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM replica WHERE family = ? AND id = ?`, string(r.family), id)
	if err != nil {
		return fmt.Errorf("failed to remove %s[%s]: %w", r.family, id, err)
	}
	return nil
}

func (r *SQLiteRepository[E]) List(ctx context.Context, locationID string) ([]E, error) {
	return r.query(ctx, `SELECT data FROM replica
		WHERE family = ? AND location_id = ? AND deleted = 0
		ORDER BY updated_at DESC, id`, string(r.family), locationID)
}

func (r *SQLiteRepository[E]) ListByTicket(ctx context.Context, locationID, ticketID string) ([]E, error) {
	return r.query(ctx, `SELECT data FROM replica
		WHERE family = ? AND location_id = ? AND parent_id = ? AND deleted = 0
		ORDER BY updated_at, id`, string(r.family), locationID, ticketID)
}

func (r *SQLiteRepository[E]) query(ctx context.Context, q string, args ...any) ([]E, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.family, err)
	}
	defer rows.Close()

	var out []E
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", r.family, err)
		}
		e, err := r.decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", r.family, err)
	}
	return out, nil
}

func (r *SQLiteRepository[E]) decode(data []byte) (E, error) {
	e := r.alloc()
	if err := codec.Unmarshal(data, e); err != nil {
		var zero E
		return zero, fmt.Errorf("decode %s: %w", r.family, err)
	}
	return e, nil
}
