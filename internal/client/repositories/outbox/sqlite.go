// Package outbox is the agent's durable queue of local mutations waiting
// to be pushed. Rows are ordered by an autoincrement sequence.
package outbox

import (
	"context"
	"fmt"

	"github.com/donets/jtrack/internal/dbx"
	"github.com/donets/jtrack/internal/domain"
)

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Entry is one queued mutation. Payload is the CBOR snapshot of the
// entity after the mutation and is empty for deletes. MovesStatus marks a
// ticket update that changed its status.
type Entry struct {
	Seq         int64
	LocationID  string
	Family      domain.Family
	EntityID    string
	Op          Op
	Payload     []byte
	MovesStatus bool
	CreatedAt   int64
}

// Key identifies one entity across families.
type Key struct {
	Family domain.Family
	ID     string
}

type Repository interface {
	Append(ctx context.Context, e *Entry) error
	// List returns the queued entries of a location in sequence order.
	List(ctx context.Context, locationID string) ([]Entry, error)
	// DeleteUpTo drops the entries of a location with seq <= maxSeq.
	DeleteUpTo(ctx context.Context, locationID string, maxSeq int64) error
	// Pending returns the entities that still have queued entries.
	Pending(ctx context.Context, locationID string) (map[Key]bool, error)
	Count(ctx context.Context, locationID string) (int, error)
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Append(ctx context.Context, e *Entry) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO outbox (location_id, family, entity_id, op, payload, moves_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.LocationID, string(e.Family), e.EntityID, string(e.Op), e.Payload, e.MovesStatus, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append outbox entry: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read outbox seq: %w", err)
	}
	e.Seq = seq
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, locationID string) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, location_id, family, entity_id, op, payload, moves_status, created_at
		FROM outbox WHERE location_id = ? ORDER BY seq
	`, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var family, op string
		if err := rows.Scan(&e.Seq, &e.LocationID, &family, &e.EntityID, &op, &e.Payload, &e.MovesStatus, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox row: %w", err)
		}
		e.Family, e.Op = domain.Family(family), Op(op)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox rows: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteUpTo(ctx context.Context, locationID string, maxSeq int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM outbox WHERE location_id = ? AND seq <= ?`, locationID, maxSeq)
	if err != nil {
		return fmt.Errorf("failed to trim outbox: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Pending(ctx context.Context, locationID string) (map[Key]bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT family, entity_id FROM outbox WHERE location_id = ?`, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending entities: %w", err)
	}
	defer rows.Close()

	out := make(map[Key]bool)
	for rows.Next() {
		var family, id string
		if err := rows.Scan(&family, &id); err != nil {
			return nil, fmt.Errorf("failed to scan pending entity: %w", err)
		}
		out[Key{Family: domain.Family(family), ID: id}] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending entities: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Count(ctx context.Context, locationID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox WHERE location_id = ?`, locationID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count outbox: %w", err)
	}
	return n, nil
}
