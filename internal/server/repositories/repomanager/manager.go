package repomanager

import (
	"context"
	"database/sql"

	"github.com/donets/jtrack/internal/dbx"
	"github.com/donets/jtrack/internal/domain"
	"github.com/donets/jtrack/internal/server/repositories/checkpoints"
	"github.com/donets/jtrack/internal/server/repositories/entities"
	"github.com/donets/jtrack/internal/server/repositories/memberships"
	"github.com/donets/jtrack/internal/server/repositories/receipts"
)

// RepositoryManager vends repositories bound to a DBTX so a service can
// use the same set inside and outside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Memberships(db dbx.DBTX) memberships.Repository
	Checkpoints(db dbx.DBTX) checkpoints.Repository
	Receipts(db dbx.DBTX) receipts.Repository
	Tickets(db dbx.DBTX) entities.Repository[*domain.Ticket]
	Comments(db dbx.DBTX) entities.Repository[*domain.TicketComment]
	Attachments(db dbx.DBTX) entities.Repository[*domain.TicketAttachment]
	Payments(db dbx.DBTX) entities.Repository[*domain.PaymentRecord]
}
