// Package receipts keeps the idempotency ledger of committed pushes. A
// replayed push with the same client id and payload hash is answered from
// its receipt instead of being applied twice.
package receipts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/donets/jtrack/internal/common"
	"github.com/donets/jtrack/internal/dbx"
)

type Receipt struct {
	LocationID  string
	ClientID    string
	PayloadHash string
	// Outcome is the JSON-encoded push response that was returned.
	Outcome     []byte
	CommittedAt int64
}

type Repository interface {
	// Find returns common.ErrorNotFound when no receipt matches.
	Find(ctx context.Context, locationID, clientID, payloadHash string) (*Receipt, error)
	Save(ctx context.Context, r *Receipt) error
}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Find(ctx context.Context, locationID, clientID, payloadHash string) (*Receipt, error) {
	query := `SELECT outcome, committed_at FROM push_receipts
		WHERE location_id = $1 AND client_id = $2 AND payload_hash = $3`

	rec := &Receipt{LocationID: locationID, ClientID: clientID, PayloadHash: payloadHash}
	err := r.db.QueryRowContext(ctx, query, locationID, clientID, payloadHash).Scan(&rec.Outcome, &rec.CommittedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Save(ctx context.Context, rec *Receipt) error {
	query := `INSERT INTO push_receipts (location_id, client_id, payload_hash, outcome, committed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (location_id, client_id, payload_hash) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query, rec.LocationID, rec.ClientID, rec.PayloadHash, rec.Outcome, rec.CommittedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
