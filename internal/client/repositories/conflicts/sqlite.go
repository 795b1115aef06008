// Package conflicts records entities whose local edits the server refused
// or overwrote, so the user can review what was reverted.
package conflicts

import (
	"context"
	"fmt"

	"github.com/donets/jtrack/internal/dbx"
	"github.com/donets/jtrack/internal/domain"
)

// KindOverwritten marks an applied write that replaced newer server state.
const KindOverwritten = "overwritten"

// Conflict is one reviewed-later outcome. Current is the server copy as
// JSON, or nil when the server had none.
type Conflict struct {
	ID         int64
	LocationID string
	Family     domain.Family
	EntityID   string
	Kind       string
	Reason     string
	Current    []byte
	RecordedAt int64
}

type Repository interface {
	Record(ctx context.Context, c *Conflict) error
	// List returns the conflicts of a location, newest first.
	List(ctx context.Context, locationID string) ([]Conflict, error)
	Clear(ctx context.Context, locationID string) error
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Record(ctx context.Context, c *Conflict) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO conflicts (location_id, family, entity_id, kind, reason, current, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.LocationID, string(c.Family), c.EntityID, c.Kind, c.Reason, c.Current, c.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to record conflict: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read conflict id: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, locationID string) ([]Conflict, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, location_id, family, entity_id, kind, reason, current, recorded_at
		FROM conflicts WHERE location_id = ? ORDER BY id DESC
	`, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	defer rows.Close()

	var out []Conflict
	for rows.Next() {
		var c Conflict
		var family string
		if err := rows.Scan(&c.ID, &c.LocationID, &family, &c.EntityID, &c.Kind, &c.Reason, &c.Current, &c.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}
		c.Family = domain.Family(family)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conflicts: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context, locationID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM conflicts WHERE location_id = ?`, locationID); err != nil {
		return fmt.Errorf("failed to clear conflicts: %w", err)
	}
	return nil
}
