// Package checkpoints stores the per-location sync checkpoint. Locking
// the checkpoint row is what serializes pushes to one location.
package checkpoints

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/donets/jtrack/internal/dbx"
)

type Repository interface {
	// Lock takes the location's checkpoint row for update, creating it at
	// zero on first use, and returns the current value.
	Lock(ctx context.Context, locationID string) (int64, error)
	// Read returns the current checkpoint without locking; zero when the
	// location was never written.
	Read(ctx context.Context, locationID string) (int64, error)
	Advance(ctx context.Context, locationID string, ts int64) error
}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Lock(ctx context.Context, locationID string) (int64, error) {
	ensure := `INSERT INTO location_checkpoints (location_id, checkpoint)
		VALUES ($1, 0) ON CONFLICT (location_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, ensure, locationID); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	var ts int64
	query := `SELECT checkpoint FROM location_checkpoints WHERE location_id = $1 FOR UPDATE`
	if err := r.db.QueryRowContext(ctx, query, locationID).Scan(&ts); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return ts, nil
}

func (r *PostgresRepository) Read(ctx context.Context, locationID string) (int64, error) {
	var ts int64
	query := `SELECT checkpoint FROM location_checkpoints WHERE location_id = $1`
	err := r.db.QueryRowContext(ctx, query, locationID).Scan(&ts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return ts, nil
}

// Advance moves the checkpoint forward. It never moves it backwards.
func (r *PostgresRepository) Advance(ctx context.Context, locationID string, ts int64) error {
	query := `UPDATE location_checkpoints SET checkpoint = GREATEST(checkpoint, $2)
		WHERE location_id = $1`
	res, err := r.db.ExecContext(ctx, query, locationID, ts)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("checkpoint for location %s not locked", locationID)
	}
	return nil
}
