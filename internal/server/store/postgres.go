package store

import (
	"context"
	"database/sql"

	"github.com/donets/jtrack/internal/dbx"
	"github.com/donets/jtrack/internal/domain"
	"github.com/donets/jtrack/internal/server/repositories/checkpoints"
	"github.com/donets/jtrack/internal/server/repositories/entities"
	"github.com/donets/jtrack/internal/server/repositories/memberships"
	"github.com/donets/jtrack/internal/server/repositories/receipts"
	"github.com/donets/jtrack/internal/server/repositories/repomanager"
)

type PostgresStore struct {
	db *sql.DB
	rm repomanager.RepositoryManager
}

func NewPostgresStore(db *sql.DB, rm repomanager.RepositoryManager) *PostgresStore {
	return &PostgresStore{db: db, rm: rm}
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, db dbx.DBTX) error {
		return fn(ctx, &pgTx{db: db, rm: s.rm})
	})
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type pgTx struct {
	db dbx.DBTX
	rm repomanager.RepositoryManager
}

func (t *pgTx) Memberships() memberships.Repository { return t.rm.Memberships(t.db) }
func (t *pgTx) Checkpoints() checkpoints.Repository { return t.rm.Checkpoints(t.db) }
func (t *pgTx) Receipts() receipts.Repository       { return t.rm.Receipts(t.db) }

func (t *pgTx) Tickets() entities.Repository[*domain.Ticket] { return t.rm.Tickets(t.db) }

func (t *pgTx) Comments() entities.Repository[*domain.TicketComment] {
	return t.rm.Comments(t.db)
}

func (t *pgTx) Attachments() entities.Repository[*domain.TicketAttachment] {
	return t.rm.Attachments(t.db)
}

func (t *pgTx) Payments() entities.Repository[*domain.PaymentRecord] {
	return t.rm.Payments(t.db)
}
