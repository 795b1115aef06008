package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/donets/jtrack/internal/client/migrations"
	"github.com/donets/jtrack/internal/client/repositories/conflicts"
	"github.com/donets/jtrack/internal/client/repositories/metadata"
	"github.com/donets/jtrack/internal/client/repositories/outbox"
	"github.com/donets/jtrack/internal/client/repositories/replica"
	"github.com/donets/jtrack/internal/dbx"
	"github.com/donets/jtrack/internal/domain"

	_ "modernc.org/sqlite"
)

// Repositories bundles every local repository bound to one handle,
// either the database or an open transaction.
type Repositories struct {
	Metadata    metadata.Repository
	Outbox      outbox.Repository
	Conflicts   conflicts.Repository
	Tickets     replica.Repository[*domain.Ticket]
	Comments    replica.Repository[*domain.TicketComment]
	Attachments replica.Repository[*domain.TicketAttachment]
	Payments    replica.Repository[*domain.PaymentRecord]
}

func NewRepositories(db dbx.DBTX) *Repositories {
	return &Repositories{
		Metadata:    metadata.NewSQLiteRepository(db),
		Outbox:      outbox.NewSQLiteRepository(db),
		Conflicts:   conflicts.NewSQLiteRepository(db),
		Tickets:     replica.NewTickets(db),
		Comments:    replica.NewComments(db),
		Attachments: replica.NewAttachments(db),
		Payments:    replica.NewPayments(db),
	}
}

// WithTx runs fn against repositories bound to a single transaction.
func WithTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, r *Repositories) error) error {
	return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, NewRepositories(tx))
	})
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrations.Up(ctx, db)
}

// InitDatabase opens the SQLite file at dsn and brings its schema up to
// date. SQLite allows one writer, so the pool is kept to one connection.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
