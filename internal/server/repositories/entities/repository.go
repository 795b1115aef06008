// Package entities persists the four syncable families. Every family
// shares one generic repository; per-family column lists live in the
// table descriptors next to it.
package entities

import (
	"context"

	"github.com/donets/jtrack/internal/domain"
)

// ChangeQuery selects one page of a family as seen by a puller.
//
// A row qualifies when it was created at or before SnapshotAt and either
// Since is nil and the row was alive at SnapshotAt, or the row was
// written after Since. Rows never leave that set through later writes,
// so offsets stay stable across a paginated walk. Limit 0 means no limit.
type ChangeQuery struct {
	LocationID string
	Since      *int64
	SnapshotAt int64
	Offset     int
	Limit      int
}

// Repository is the storage contract of one entity family.
type Repository[E domain.Entity] interface {
	// Get returns the row with id, deleted or not. It returns
	// common.ErrorNotFound when no such row exists.
	Get(ctx context.Context, id string) (E, error)

	// Upsert inserts e or overwrites the row with the same id. A row with
	// that id in a different location is left untouched and
	// common.ErrForbidden is returned.
	Upsert(ctx context.Context, e E) error

	// Changed lists rows matching q ordered by (createdAt, id).
	Changed(ctx context.Context, q ChangeQuery) ([]E, error)
}
