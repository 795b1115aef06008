// Package store gives the sync engine one transactional view over every
// repository it needs. The Postgres store is used in production; the
// memory store backs development runs and engine tests.
package store

import (
	"context"

	"github.com/donets/jtrack/internal/domain"
	"github.com/donets/jtrack/internal/server/repositories/checkpoints"
	"github.com/donets/jtrack/internal/server/repositories/entities"
	"github.com/donets/jtrack/internal/server/repositories/memberships"
	"github.com/donets/jtrack/internal/server/repositories/receipts"
)

// Tx exposes repositories bound to one open transaction.
type Tx interface {
	Memberships() memberships.Repository
	Checkpoints() checkpoints.Repository
	Receipts() receipts.Repository
	Tickets() entities.Repository[*domain.Ticket]
	Comments() entities.Repository[*domain.TicketComment]
	Attachments() entities.Repository[*domain.TicketAttachment]
	Payments() entities.Repository[*domain.PaymentRecord]
}

// Store runs fn inside a transaction that commits when fn returns nil
// and rolls back otherwise.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}
