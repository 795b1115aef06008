// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/donets/jtrack/internal/dbx"
	"github.com/donets/jtrack/internal/domain"
	"github.com/donets/jtrack/internal/server/migrations"
	"github.com/donets/jtrack/internal/server/repositories/checkpoints"
	"github.com/donets/jtrack/internal/server/repositories/entities"
	"github.com/donets/jtrack/internal/server/repositories/memberships"
	"github.com/donets/jtrack/internal/server/repositories/receipts"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

func (m *PostgresRepositoryManager) Memberships(db dbx.DBTX) memberships.Repository {
	return memberships.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Checkpoints(db dbx.DBTX) checkpoints.Repository {
	return checkpoints.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Receipts(db dbx.DBTX) receipts.Repository {
	return receipts.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Tickets(db dbx.DBTX) entities.Repository[*domain.Ticket] {
	return entities.NewTickets(db)
}

func (m *PostgresRepositoryManager) Comments(db dbx.DBTX) entities.Repository[*domain.TicketComment] {
	return entities.NewComments(db)
}

func (m *PostgresRepositoryManager) Attachments(db dbx.DBTX) entities.Repository[*domain.TicketAttachment] {
	return entities.NewAttachments(db)
}

func (m *PostgresRepositoryManager) Payments(db dbx.DBTX) entities.Repository[*domain.PaymentRecord] {
	return entities.NewPayments(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// OpenPostgres opens a pgx-backed *sql.DB and verifies connectivity.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}
