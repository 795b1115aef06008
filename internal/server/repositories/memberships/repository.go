// Package memberships resolves the role a user holds at a location.
package memberships

import (
	"context"

	"github.com/donets/jtrack/internal/domain"
)

type Membership struct {
	UserID     string
	LocationID string
	Role       domain.Role
	Active     bool
}

type Repository interface {
	// Role returns the role of an active membership, or
	// common.ErrorNotFound when the user has none at the location.
	Role(ctx context.Context, userID, locationID string) (domain.Role, error)
	Grant(ctx context.Context, m Membership) error
}
